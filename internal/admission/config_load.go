// Package admission provides configuration loading.
package admission

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadOptions controls config loading.
type LoadOptions struct {
	ConfigPath string
	Args       []string
	Environ    []string
}

// LoadConfig loads configuration from defaults, file, env, and flags, in
// that order of precedence. Invalid values fail here, at load time.
func LoadConfig(opts LoadOptions) (*Config, error) {
	args := opts.Args
	if args == nil {
		args = os.Args[1:]
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	flags, err := parseFlagOverrides(args)
	if err != nil {
		return nil, err
	}
	configPath := opts.ConfigPath
	if flags.ConfigPath != nil {
		configPath = *flags.ConfigPath
	}

	cfg := defaultConfig()
	if configPath != "" {
		file, err := loadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := applyFileOverrides(cfg, file); err != nil {
			return nil, err
		}
	}
	if err := applyEnvOverrides(cfg, environ); err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, flags)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTPListenAddr:     ":8080",
		EnableHTTP:         true,
		HTTPReadTimeout:    5 * time.Second,
		HTTPWriteTimeout:   10 * time.Second,
		HTTPIdleTimeout:    60 * time.Second,
		DrainTimeout:       5 * time.Second,
		MaxBodyBytes:       1 << 20,
		ViolationRetention: 10000,
		ViolationBuffer:    1024,
		ViolationTopN:      10,
		Registry: RegistryPolicy{
			Shards:         16,
			MaxStatesShard: 4096,
			IdleWindow:     24 * time.Hour,
		},
		SweepInterval: time.Minute,
	}
}

type fileConfig struct {
	ListenAddr         *string              `yaml:"listen_addr"`
	EnableHTTP         *bool                `yaml:"enable_http"`
	EnableAuth         *bool                `yaml:"enable_auth"`
	AdminToken         *string              `yaml:"admin_token"`
	ReadTimeoutMS      *int64               `yaml:"read_timeout_ms"`
	WriteTimeoutMS     *int64               `yaml:"write_timeout_ms"`
	IdleTimeoutMS      *int64               `yaml:"idle_timeout_ms"`
	DrainTimeoutMS     *int64               `yaml:"drain_timeout_ms"`
	MaxBodyBytes       *int64               `yaml:"max_body_bytes"`
	EndpointCosts      map[string]int64     `yaml:"endpoint_costs"`
	Tiers              map[string]tierInput `yaml:"tiers"`
	ViolationRetention *int                 `yaml:"violation_retention"`
	ViolationBuffer    *int                 `yaml:"violation_buffer"`
	ViolationTopN      *int                 `yaml:"violation_top_n"`
	RegistryShards     *int                 `yaml:"registry_shards"`
	MaxStatesShard     *int                 `yaml:"max_states_per_shard"`
	IdleWindowMS       *int64               `yaml:"idle_window_ms"`
	SweepIntervalMS    *int64               `yaml:"sweep_interval_ms"`
}

type tierInput struct {
	BurstCapacity       *float64 `yaml:"burst_capacity"`
	RefillPerSecond     *float64 `yaml:"refill_per_second"`
	PerMinute           *int64   `yaml:"per_minute"`
	PerHour             *int64   `yaml:"per_hour"`
	PerDay              *int64   `yaml:"per_day"`
	CostBudgetPerMinute *int64   `yaml:"cost_budget_per_minute"`
	MonthlyRequests     *int64   `yaml:"monthly_requests"`
	MonthlyComputeUnits *int64   `yaml:"monthly_compute_units"`
	OverageAllowed      *bool    `yaml:"overage_allowed"`
	OverageUnitPrice    *float64 `yaml:"overage_unit_price"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Wrap(CodeConfiguration, fmt.Sprintf("read config file: %v", err), err)
	}
	var file fileConfig
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, Wrap(CodeConfiguration, fmt.Sprintf("parse config file: %v", err), err)
	}
	return &file, nil
}

func applyFileOverrides(cfg *Config, file *fileConfig) error {
	if cfg == nil || file == nil {
		return nil
	}
	if file.ListenAddr != nil {
		cfg.HTTPListenAddr = *file.ListenAddr
	}
	if file.EnableHTTP != nil {
		cfg.EnableHTTP = *file.EnableHTTP
	}
	if file.EnableAuth != nil {
		cfg.EnableAuth = *file.EnableAuth
	}
	if file.AdminToken != nil {
		cfg.AdminToken = *file.AdminToken
	}
	if file.ReadTimeoutMS != nil {
		cfg.HTTPReadTimeout = time.Duration(*file.ReadTimeoutMS) * time.Millisecond
	}
	if file.WriteTimeoutMS != nil {
		cfg.HTTPWriteTimeout = time.Duration(*file.WriteTimeoutMS) * time.Millisecond
	}
	if file.IdleTimeoutMS != nil {
		cfg.HTTPIdleTimeout = time.Duration(*file.IdleTimeoutMS) * time.Millisecond
	}
	if file.DrainTimeoutMS != nil {
		cfg.DrainTimeout = time.Duration(*file.DrainTimeoutMS) * time.Millisecond
	}
	if file.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *file.MaxBodyBytes
	}
	if file.EndpointCosts != nil {
		cfg.EndpointCosts = file.EndpointCosts
	}
	if file.Tiers != nil {
		overrides, err := tierOverrides(file.Tiers)
		if err != nil {
			return err
		}
		cfg.TierOverrides = overrides
	}
	if file.ViolationRetention != nil {
		cfg.ViolationRetention = *file.ViolationRetention
	}
	if file.ViolationBuffer != nil {
		cfg.ViolationBuffer = *file.ViolationBuffer
	}
	if file.ViolationTopN != nil {
		cfg.ViolationTopN = *file.ViolationTopN
	}
	if file.RegistryShards != nil {
		cfg.Registry.Shards = *file.RegistryShards
	}
	if file.MaxStatesShard != nil {
		cfg.Registry.MaxStatesShard = *file.MaxStatesShard
	}
	if file.IdleWindowMS != nil {
		cfg.Registry.IdleWindow = time.Duration(*file.IdleWindowMS) * time.Millisecond
	}
	if file.SweepIntervalMS != nil {
		cfg.SweepInterval = time.Duration(*file.SweepIntervalMS) * time.Millisecond
	}
	return nil
}

// tierOverrides resolves partial tier inputs against the built-in profiles.
func tierOverrides(inputs map[string]tierInput) (map[Tier]LimitProfile, error) {
	overrides := make(map[Tier]LimitProfile, len(inputs))
	for name, input := range inputs {
		tier := Tier(strings.ToUpper(name))
		base, ok := tierProfiles[tier]
		if !ok {
			return nil, Wrap(CodeConfiguration, fmt.Sprintf("unknown tier %q", name), nil)
		}
		if input.BurstCapacity != nil {
			base.BurstCapacity = *input.BurstCapacity
		}
		if input.RefillPerSecond != nil {
			base.RefillPerSecond = *input.RefillPerSecond
		}
		if input.PerMinute != nil {
			base.PerMinute = *input.PerMinute
		}
		if input.PerHour != nil {
			base.PerHour = *input.PerHour
		}
		if input.PerDay != nil {
			base.PerDay = *input.PerDay
		}
		if input.CostBudgetPerMinute != nil {
			base.CostBudgetPerMinute = *input.CostBudgetPerMinute
		}
		if input.MonthlyRequests != nil {
			base.MonthlyRequests = *input.MonthlyRequests
		}
		if input.MonthlyComputeUnits != nil {
			base.MonthlyComputeUnits = *input.MonthlyComputeUnits
		}
		if input.OverageAllowed != nil {
			base.OverageAllowed = *input.OverageAllowed
		}
		if input.OverageUnitPrice != nil {
			base.OverageUnitPrice = *input.OverageUnitPrice
		}
		overrides[tier] = base
	}
	return overrides, nil
}

func applyEnvOverrides(cfg *Config, environ []string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	values := envMap(environ)
	if value, ok := values["ADMISSION_HTTP_ADDR"]; ok {
		cfg.HTTPListenAddr = value
	}
	if value, ok := values["ADMISSION_ENABLE_HTTP"]; ok {
		parsed, err := parseBoolEnv("ADMISSION_ENABLE_HTTP", value)
		if err != nil {
			return err
		}
		cfg.EnableHTTP = parsed
	}
	if value, ok := values["ADMISSION_ENABLE_AUTH"]; ok {
		parsed, err := parseBoolEnv("ADMISSION_ENABLE_AUTH", value)
		if err != nil {
			return err
		}
		cfg.EnableAuth = parsed
	}
	if value, ok := values["ADMISSION_ADMIN_TOKEN"]; ok {
		cfg.AdminToken = value
	}
	if value, ok := values["ADMISSION_SWEEP_INTERVAL_MS"]; ok {
		parsed, err := parseIntEnv("ADMISSION_SWEEP_INTERVAL_MS", value)
		if err != nil {
			return err
		}
		cfg.SweepInterval = time.Duration(parsed) * time.Millisecond
	}
	if value, ok := values["ADMISSION_VIOLATION_RETENTION"]; ok {
		parsed, err := parseIntEnv("ADMISSION_VIOLATION_RETENTION", value)
		if err != nil {
			return err
		}
		cfg.ViolationRetention = int(parsed)
	}
	return nil
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, item := range environ {
		idx := strings.IndexByte(item, '=')
		if idx <= 0 {
			continue
		}
		values[item[:idx]] = item[idx+1:]
	}
	return values
}

func parseBoolEnv(key, value string) (bool, error) {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, Wrap(CodeConfiguration, fmt.Sprintf("%s must be a boolean, got %q", key, value), err)
	}
	return parsed, nil
}

func parseIntEnv(key, value string) (int64, error) {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, Wrap(CodeConfiguration, fmt.Sprintf("%s must be an integer, got %q", key, value), err)
	}
	return parsed, nil
}

type flagOverrides struct {
	ConfigPath         *string
	HTTPListenAddr     *string
	EnableHTTP         *bool
	EnableAuth         *bool
	AdminToken         *string
	SweepIntervalMS    *int
	ViolationRetention *int
}

func parseFlagOverrides(args []string) (flagOverrides, error) {
	fs := flag.NewFlagSet("admissiond", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	configPath := fs.String("config", "", "config file path")
	httpAddr := fs.String("http_addr", "", "http address")
	enableHTTP := fs.Bool("enable_http", false, "enable http")
	enableAuth := fs.Bool("enable_auth", false, "enable auth")
	adminToken := fs.String("admin_token", "", "admin token")
	sweepInterval := fs.Int("sweep_interval_ms", 0, "sweep interval ms")
	violationRetention := fs.Int("violation_retention", 0, "violation retention")

	if err := fs.Parse(args); err != nil {
		return flagOverrides{}, Wrap(CodeConfiguration, "invalid flag values", err)
	}

	overrides := flagOverrides{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			overrides.ConfigPath = configPath
		case "http_addr":
			overrides.HTTPListenAddr = httpAddr
		case "enable_http":
			overrides.EnableHTTP = enableHTTP
		case "enable_auth":
			overrides.EnableAuth = enableAuth
		case "admin_token":
			overrides.AdminToken = adminToken
		case "sweep_interval_ms":
			overrides.SweepIntervalMS = sweepInterval
		case "violation_retention":
			overrides.ViolationRetention = violationRetention
		}
	})
	return overrides, nil
}

func applyFlagOverrides(cfg *Config, overrides flagOverrides) {
	if cfg == nil {
		return
	}
	if overrides.HTTPListenAddr != nil {
		cfg.HTTPListenAddr = *overrides.HTTPListenAddr
	}
	if overrides.EnableHTTP != nil {
		cfg.EnableHTTP = *overrides.EnableHTTP
	}
	if overrides.EnableAuth != nil {
		cfg.EnableAuth = *overrides.EnableAuth
	}
	if overrides.AdminToken != nil {
		cfg.AdminToken = *overrides.AdminToken
	}
	if overrides.SweepIntervalMS != nil {
		cfg.SweepInterval = time.Duration(*overrides.SweepIntervalMS) * time.Millisecond
	}
	if overrides.ViolationRetention != nil {
		cfg.ViolationRetention = *overrides.ViolationRetention
	}
}
