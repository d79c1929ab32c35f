package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/xigmatekctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	configEnvVar   = "XIGMATEKCTL_CONFIG"
	configName     = "xigmatekctl"
	configType     = "toml"
	configPath     = "/etc"
	envPrefix      = "XIGMATEKCTL"
	defaultDBPath  = "/var/lib/xigmatekctl/telemetry.db"
	defaultMinTemp = 20
	defaultMaxTemp = 90
)

// Config holds the validated daemon configuration. All values are immutable
// after Load returns.
type Config struct {
	Interval        float64 `mapstructure:"interval"`
	WakeEveryUpdate bool    `mapstructure:"wake_every_update"`
	WakeInterval    int     `mapstructure:"wake_interval"`
	MinTemp         int     `mapstructure:"min_temp"`
	MaxTemp         int     `mapstructure:"max_temp"`
	CPUOffset       int     `mapstructure:"cpu_offset"`
	GPUOffset       int     `mapstructure:"gpu_offset"`
	FallbackCPU     int     `mapstructure:"fallback_cpu"`
	FallbackGPU     int     `mapstructure:"fallback_gpu"`
	LogLevel        string  `mapstructure:"log_level"`
	Telemetry       bool    `mapstructure:"telemetry"`
	TelemetryDB     string  `mapstructure:"database"`
	Debug           bool    `mapstructure:"debug"`
	Verbose         bool    `mapstructure:"verbose"`
}

// Load reads configuration from /etc/xigmatekctl.toml (or the file named by
// XIGMATEKCTL_CONFIG), environment variables and command line flags, in
// increasing order of precedence, and validates the result.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	flags := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.String("config", "", "Path to configuration file")
	flags.Float64("interval", 2.0, "Seconds between display updates")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Bool("telemetry", false, "Enable cycle telemetry collection")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errors.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, flags); err != nil {
		return nil, err
	}

	// Flags set on the command line override file and env values
	flags.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		v.Set(key, f.Value.String())
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", 2.0)
	v.SetDefault("wake_every_update", true)
	v.SetDefault("wake_interval", 10)
	v.SetDefault("min_temp", defaultMinTemp)
	v.SetDefault("max_temp", defaultMaxTemp)
	v.SetDefault("cpu_offset", 0)
	v.SetDefault("gpu_offset", 0)
	v.SetDefault("fallback_cpu", 35)
	v.SetDefault("fallback_gpu", 40)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", defaultDBPath)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet) error {
	explicit, _ := flags.GetString("config")
	if explicit == "" {
		explicit = os.Getenv(configEnvVar)
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(errors.ErrReadConfig, err).WithMessage("Failed to read config file")
		}

		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(errors.ErrReadConfig, err).WithMessage("Failed to read config file")
		}
	}

	return nil
}

// Validate checks invariants that must hold before the daemon starts.
// A violation is fatal at startup and never surfaces at runtime.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New(errors.ErrInvalidInterval).WithData(c.Interval)
	}

	if c.MinTemp >= c.MaxTemp {
		return errors.New(errors.ErrInvalidTempWindow).
			WithData([2]int{c.MinTemp, c.MaxTemp})
	}

	if c.WakeInterval < 1 {
		return errors.New(errors.ErrInvalidWakeInterval).WithData(c.WakeInterval)
	}

	if !isValidLogLevel(c.LogLevel) {
		return errors.New(errors.ErrInvalidLogLevel).WithData(c.LogLevel)
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warning", "error":
		return true
	default:
		return false
	}
}
