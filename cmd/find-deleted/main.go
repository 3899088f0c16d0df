package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kubescape/find-deleted/pkg/config"
	"github.com/kubescape/find-deleted/pkg/grouping"
	"github.com/kubescape/find-deleted/pkg/mapsreader"
	mapsreaderv1 "github.com/kubescape/find-deleted/pkg/mapsreader/v1"
	"github.com/kubescape/find-deleted/pkg/matcher"
	"github.com/kubescape/find-deleted/pkg/metricsmanager"
	metricprometheus "github.com/kubescape/find-deleted/pkg/metricsmanager/prometheus"
	"github.com/kubescape/find-deleted/pkg/pathfilter"
	"github.com/kubescape/find-deleted/pkg/procinfo"
	"github.com/kubescape/find-deleted/pkg/report"
	"github.com/kubescape/find-deleted/pkg/scanner"
	"github.com/kubescape/find-deleted/pkg/staleness"
	"github.com/kubescape/find-deleted/pkg/tracker"
	"github.com/kubescape/find-deleted/pkg/unitresolver"
	unitresolverv1 "github.com/kubescape/find-deleted/pkg/unitresolver/v1"
	"github.com/kubescape/find-deleted/pkg/utils"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/spf13/pflag"
)

type processInfo interface {
	procinfo.ExecutableResolver
	procinfo.OwnerResolver
}

// collaborators is everything a scan touches outside of memory.
type collaborators struct {
	reader  mapsreader.MapsReader
	stater  staleness.Stater
	units   unitresolver.UnitResolver
	procs   processInfo
	mounts  *pathfilter.MountTable
	metrics metricsmanager.MetricsManager
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	flags := pflag.NewFlagSet("find-deleted", pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", "", "path to the YAML configuration (default: deleted.yml in . or /etc/find-deleted)")
	logLevel := flags.String("log-level", helpers.WarningLevel.String(), "log level: debug, info, warning, error")
	output := flags.StringP("output", "o", report.FormatText, "report format: text or yaml")
	flags.String("metrics-textfile", "", "write scan gauges to this file for the node_exporter textfile collector")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return utils.ExitCodeSuccess
		}
		return utils.ExitCodeInvalidConfig
	}

	// stdout carries the report only
	logger.L().SetWriter(os.Stderr)
	if err := logger.L().SetLevel(*logLevel); err != nil {
		logger.L().Error("invalid log level", helpers.String("level", *logLevel), helpers.Error(err))
		return utils.ExitCodeInvalidConfig
	}
	if *output != report.FormatText && *output != report.FormatYAML {
		logger.L().Error("invalid output format", helpers.String("output", *output))
		return utils.ExitCodeInvalidConfig
	}

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		logger.L().Error("load config error", helpers.Error(err))
		return utils.ExitCodeInvalidConfig
	}

	deps, err := newCollaborators(cfg)
	if err != nil {
		logger.L().Error("initializing scan", helpers.Error(err))
		return exitCode(err)
	}

	if err := execute(ctx, cfg, deps, stdout, *output); err != nil {
		logger.L().Error("scan failed", helpers.Error(err))
		return exitCode(err)
	}
	return utils.ExitCodeSuccess
}

func exitCode(err error) int {
	if errors.Is(err, config.ErrInvalidConfig) {
		return utils.ExitCodeInvalidConfig
	}
	return utils.ExitCodeError
}

func newCollaborators(cfg config.Config) (collaborators, error) {
	procs, err := procinfo.NewResolver(cfg.ProcRoot)
	if err != nil {
		return collaborators{}, err
	}

	var mounts *pathfilter.MountTable
	if len(cfg.IgnoreFSTypes) > 0 {
		mounts, err = pathfilter.LoadMountTable(cfg.IgnoreFSTypes)
		if err != nil {
			return collaborators{}, err
		}
	}

	var metrics metricsmanager.MetricsManager = metricsmanager.NewMetricsMock()
	if cfg.MetricsTextfile != "" {
		metrics = metricprometheus.NewPrometheusMetric(cfg.MetricsTextfile)
	}

	return collaborators{
		reader:  mapsreaderv1.CreateMapsReader(cfg.ProcRoot),
		stater:  staleness.NewUnixStater(cfg.HostRoot),
		units:   unitresolverv1.CreatePsUnitResolver(cfg.UnitLookup),
		procs:   procs,
		mounts:  mounts,
		metrics: metrics,
	}, nil
}

// execute performs one scan and writes the report.
func execute(ctx context.Context, cfg config.Config, deps collaborators, stdout io.Writer, format string) error {
	start := time.Now()

	catchall, err := matcher.FromSpec(*cfg.CatchallUnits)
	if err != nil {
		return fmt.Errorf("%w: catchall_units: %w", config.ErrInvalidConfig, err)
	}
	groups, err := matcher.NewGroups(cfg.GroupServices)
	if err != nil {
		return fmt.Errorf("%w: group_services: %w", config.ErrInvalidConfig, err)
	}
	filter, err := pathfilter.NewFilter(cfg, deps.mounts)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	t := tracker.NewTracker()
	usage, err := scanner.NewScanner(deps.reader, filter, staleness.NewClassifier(deps.stater, t), t).Scan()
	if err != nil {
		return fmt.Errorf("scanning processes: %w", err)
	}

	units, err := deps.units.ResolveUnits(ctx, usage.Pids())
	if err != nil {
		return fmt.Errorf("resolving units: %w", err)
	}

	res := grouping.NewEngine(catchall, groups, deps.procs, t).Build(usage, units)
	doc := report.NewDocument(res, len(usage), t, deps.procs)
	if err := report.Render(stdout, doc, format); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	deps.metrics.ReportStalePaths(doc.Summary.StalePaths)
	deps.metrics.ReportUnits(doc.Summary.Units)
	deps.metrics.ReportExecutables(doc.Summary.Executables)
	deps.metrics.ReportDroppedProcesses(doc.Summary.DroppedProcesses)
	deps.metrics.ReportPermissionErrors(doc.Summary.PermissionErrors)
	deps.metrics.ReportScanDuration(time.Since(start))
	return deps.metrics.Destroy()
}
