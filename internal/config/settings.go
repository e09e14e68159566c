// Package config loads fixagent settings through viper and validates them.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, for example
// FIXAGENT_DISCOVERY_PORT.
const EnvPrefix = "FIXAGENT"

// Settings is the full fixagent configuration.
type Settings struct {
	DataDir   string            `mapstructure:"data_dir" validate:"required"`
	Database  string            `mapstructure:"database" validate:"required"`
	Log       LogSettings       `mapstructure:"log"`
	HTTP      HTTPSettings      `mapstructure:"http"`
	Discovery DiscoverySettings `mapstructure:"discovery"`
	Monitor   MonitorSettings   `mapstructure:"monitor"`
	Agent     AgentSettings     `mapstructure:"agent"`
}

// LogSettings controls the level and the optional rotated log file.
type LogSettings struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// HTTPSettings configures the backend client.
type HTTPSettings struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// DiscoverySettings configures candidate generation and probing.
type DiscoverySettings struct {
	Scheme       string        `mapstructure:"scheme" validate:"oneof=http https"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	EmulatorHost string        `mapstructure:"emulator_host"`
	Subnets      []string      `mapstructure:"subnets" validate:"dive,cidrv4"`
	BatchSize    int           `mapstructure:"batch_size" validate:"min=1,max=1024"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"gt=0"`
	HealthPath   string        `mapstructure:"health_path" validate:"required,startswith=/"`
	RateLimit    float64       `mapstructure:"rate_limit" validate:"gte=0"`
}

// MonitorSettings configures the connectivity monitor.
type MonitorSettings struct {
	Interval         time.Duration `mapstructure:"interval" validate:"gt=0"`
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"min=1"`
	Rescan           bool          `mapstructure:"rescan"`
}

// AgentSettings configures the local HTTP surface.
type AgentSettings struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// DatabasePath joins DataDir and Database unless Database is absolute.
func (s *Settings) DatabasePath() string {
	if filepath.IsAbs(s.Database) {
		return s.Database
	}
	return filepath.Join(s.DataDir, s.Database)
}

var validate = validator.New()

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("database", "fixagent.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("http.timeout", 15*time.Second)

	v.SetDefault("discovery.scheme", "http")
	v.SetDefault("discovery.port", 4000)
	v.SetDefault("discovery.emulator_host", "10.0.2.2")
	v.SetDefault("discovery.subnets", []string{"192.168.0.0/24", "192.168.1.0/24"})
	v.SetDefault("discovery.batch_size", 30)
	v.SetDefault("discovery.probe_timeout", 2*time.Second)
	v.SetDefault("discovery.health_path", "/api")
	v.SetDefault("discovery.rate_limit", 0.0)

	v.SetDefault("monitor.interval", 30*time.Second)
	v.SetDefault("monitor.failure_threshold", 3)
	v.SetDefault("monitor.rescan", true)

	v.SetDefault("agent.addr", "127.0.0.1:8090")
}

// Load reads path (YAML, optional when empty), applies FIXAGENT_ env
// overrides and defaults, and returns validated Settings.
func Load(path string) (*Settings, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(&s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, formatValidationErrors(verrs)
		}
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &s, nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
