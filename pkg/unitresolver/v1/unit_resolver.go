package unitresolver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/kubescape/find-deleted/pkg/config"
	"github.com/kubescape/find-deleted/pkg/unitresolver"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

// NoUnit is what ps prints for a process outside any unit.
const NoUnit = "-"

var psLine = regexp.MustCompile(`^ *(\d+) (.*)`)

// CommandRunner runs name with args and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PsUnitResolver asks ps(1) for the unit of each pid, a bounded number of
// pids per invocation.
type PsUnitResolver struct {
	command   string
	batchSize int
	run       CommandRunner
}

var _ unitresolver.UnitResolver = (*PsUnitResolver)(nil)

func CreatePsUnitResolver(cfg config.UnitLookupConfig) *PsUnitResolver {
	return &PsUnitResolver{
		command:   cfg.Command,
		batchSize: BatchSize(cfg),
		run:       execRunner,
	}
}

// BatchSize is the number of pids that fit in one command line.
func BatchSize(cfg config.UnitLookupConfig) int {
	if cfg.BytesPerPid <= 0 {
		return 1
	}
	return max(cfg.ArgBudget/cfg.BytesPerPid-cfg.Reserved, 1)
}

func (p *PsUnitResolver) ResolveUnits(ctx context.Context, pids []int) (map[int]string, error) {
	sorted := slices.Clone(pids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	units := make(map[int]string, len(sorted))
	for chunk := range slices.Chunk(sorted, p.batchSize) {
		if err := p.resolveChunk(ctx, chunk, units); err != nil {
			return nil, err
		}
	}
	return units, nil
}

func (p *PsUnitResolver) resolveChunk(ctx context.Context, chunk []int, units map[int]string) error {
	args := make([]string, 0, len(chunk)+1)
	args = append(args, "-opid=,unit=")
	for _, pid := range chunk {
		args = append(args, strconv.Itoa(pid))
	}
	out, err := p.run(ctx, p.command, args...)
	if err != nil {
		// ps exits 1 when none of the pids exist any more
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return fmt.Errorf("running %s: %w", p.command, err)
		}
		logger.L().Debug("PsUnitResolver - no listed process is alive", helpers.Int("pids", len(chunk)))
	}
	parseOutput(out, units)
	return nil
}

func parseOutput(out []byte, units map[int]string) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := psLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		unit := strings.TrimSpace(m[2])
		if unit == "" || unit == NoUnit {
			continue
		}
		pid, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		units[pid] = unit
	}
}
