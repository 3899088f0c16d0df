package unitresolver

import "context"

type UnitResolverMock struct {
	Units map[int]string
	Calls [][]int
}

var _ UnitResolver = (*UnitResolverMock)(nil)

func CreateUnitResolverMock(units map[int]string) *UnitResolverMock {
	return &UnitResolverMock{Units: units}
}

func (u *UnitResolverMock) ResolveUnits(_ context.Context, pids []int) (map[int]string, error) {
	u.Calls = append(u.Calls, pids)
	out := make(map[int]string)
	for _, pid := range pids {
		if unit, ok := u.Units[pid]; ok {
			out[pid] = unit
		}
	}
	return out, nil
}
