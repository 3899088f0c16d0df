package unitresolver

import "context"

// UnitResolver maps process ids to the systemd unit they run in. Pids without
// a unit are absent from the result. Names are reported as-is; deciding
// whether a unit is actionable is up to the caller.
type UnitResolver interface {
	ResolveUnits(ctx context.Context, pids []int) (map[int]string, error)
}
