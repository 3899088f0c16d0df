package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"
)

const (
	DefaultConfigName = "deleted"
	DefaultConfigDir  = "/etc/find-deleted"
	EnvPrefix         = "FIND_DELETED"

	FilterVirtual   = "virtual"
	FilterEphemeral = "ephemeral"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// MatcherSpec selects strings by prefix, by exact value or by a regular
// expression that has to match the whole string.
type MatcherSpec struct {
	ByPrefix []string `mapstructure:"by_prefix" json:"by_prefix"`
	ByFull   []string `mapstructure:"by_full" json:"by_full"`
	ByRegex  []string `mapstructure:"by_regex" json:"by_regex"`
}

func (m MatcherSpec) IsEmpty() bool {
	return len(m.ByPrefix) == 0 && len(m.ByFull) == 0 && len(m.ByRegex) == 0
}

// GroupSpec names an operator-defined group of units.
type GroupSpec struct {
	Group       string `mapstructure:"group" json:"group"`
	MatcherSpec `mapstructure:",squash"`
}

type UnitLookupConfig struct {
	Command     string `mapstructure:"command" json:"command"`
	ArgBudget   int    `mapstructure:"arg_budget" json:"arg_budget"`
	BytesPerPid int    `mapstructure:"bytes_per_pid" json:"bytes_per_pid"`
	Reserved    int    `mapstructure:"reserved" json:"reserved"`
}

type Config struct {
	IgnorePaths     MatcherSpec      `mapstructure:"ignore_paths" json:"ignore_paths"`
	CatchallUnits   *MatcherSpec     `mapstructure:"catchall_units" json:"catchall_units"`
	GroupServices   []GroupSpec      `mapstructure:"group_services" json:"group_services"`
	BuiltinFilters  []string         `mapstructure:"builtin_filters" json:"builtin_filters"`
	IgnoreFSTypes   []string         `mapstructure:"ignore_fstypes" json:"ignore_fstypes"`
	ProcRoot        string           `mapstructure:"proc_root" json:"proc_root"`
	HostRoot        string           `mapstructure:"host_root" json:"host_root"`
	UnitLookup      UnitLookupConfig `mapstructure:"unit_lookup" json:"unit_lookup"`
	MetricsTextfile string           `mapstructure:"metrics_textfile" json:"metrics_textfile"`
}

// DefaultCatchallUnits matches units whose restart does not release the
// mappings of the processes they contain.
func DefaultCatchallUnits() MatcherSpec {
	return MatcherSpec{
		ByFull: []string{"init.scope"},
		ByRegex: []string{
			`session-c?\d+\.scope`,
			`user@\d+\.service`,
			`user-\d+\.slice`,
		},
	}
}

// LoadConfig reads the YAML configuration. With an empty configFile the
// default locations are searched and a missing file means built-in defaults.
// Flags, when given, override the file.
func LoadConfig(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultConfigDir)
	}

	v.SetDefault("builtin_filters", []string{FilterVirtual, FilterEphemeral})
	v.SetDefault("proc_root", "/proc")
	v.SetDefault("host_root", "/")
	v.SetDefault("unit_lookup.command", "ps")
	v.SetDefault("unit_lookup.arg_budget", 4096)
	v.SetDefault("unit_lookup.bytes_per_pid", 8)
	v.SetDefault("unit_lookup.reserved", 32)
	v.SetDefault("metrics_textfile", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if f := flags.Lookup("metrics-textfile"); f != nil {
			if err := v.BindPFlag("metrics_textfile", f); err != nil {
				return Config{}, err
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	// viper drops keys holding an empty map or null, so the file itself is
	// checked against the schema as well
	catchallInFile := false
	if used := v.ConfigFileUsed(); used != "" {
		var err error
		if catchallInFile, err = checkConfigFile(used); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, used, err)
		}
	}

	var config Config
	if err := v.UnmarshalExact(&config); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case config.CatchallUnits != nil:
	case catchallInFile:
		// an explicitly empty catchall_units disables catchall detection
		config.CatchallUnits = &MatcherSpec{}
	default:
		catchall := DefaultCatchallUnits()
		config.CatchallUnits = &catchall
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return config, nil
}

// checkConfigFile rejects unknown keys at any level of the document and
// reports whether catchall_units is present.
func checkConfigFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	var strict Config
	if err := yaml.UnmarshalStrict(data, &strict); err != nil {
		return false, err
	}
	var top map[string]interface{}
	if err := yaml.Unmarshal(data, &top); err != nil {
		return false, err
	}
	_, ok := top["catchall_units"]
	return ok, nil
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs error
	errs = multierr.Append(errs, validateMatcher("ignore_paths", c.IgnorePaths))
	if c.CatchallUnits != nil {
		errs = multierr.Append(errs, validateMatcher("catchall_units", *c.CatchallUnits))
	}
	for i, group := range c.GroupServices {
		if group.Group == "" {
			errs = multierr.Append(errs, fmt.Errorf("group_services[%d]: missing group name", i))
		}
		errs = multierr.Append(errs, validateMatcher(fmt.Sprintf("group_services[%d]", i), group.MatcherSpec))
	}
	for _, name := range c.BuiltinFilters {
		if !slices.Contains([]string{FilterVirtual, FilterEphemeral}, name) {
			errs = multierr.Append(errs, fmt.Errorf("builtin_filters: unknown filter %q", name))
		}
	}
	if c.ProcRoot == "" {
		errs = multierr.Append(errs, errors.New("proc_root: must not be empty"))
	}
	if c.UnitLookup.Command == "" {
		errs = multierr.Append(errs, errors.New("unit_lookup.command: must not be empty"))
	}
	if c.UnitLookup.BytesPerPid <= 0 {
		errs = multierr.Append(errs, errors.New("unit_lookup.bytes_per_pid: must be positive"))
	} else if c.UnitLookup.ArgBudget/c.UnitLookup.BytesPerPid-c.UnitLookup.Reserved < 1 {
		errs = multierr.Append(errs, errors.New("unit_lookup: arg_budget leaves no room for pids"))
	}
	return errs
}

func validateMatcher(key string, spec MatcherSpec) error {
	var errs error
	for _, expr := range spec.ByRegex {
		if _, err := regexp.Compile(expr); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s.by_regex: %w", key, err))
		}
	}
	return errs
}
