package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "SHIFTLEDGER"

type Config struct {
	Env      string `mapstructure:"env"       validate:"required,oneof=dev prod"`
	HTTPAddr string `mapstructure:"http_addr" validate:"required"`
	// GRPCAddr is where the health service listens.  Empty disables it.
	GRPCAddr string `mapstructure:"grpc_addr"`
	DBPath   string `mapstructure:"db_path"   validate:"required"`
	Timezone string `mapstructure:"timezone"  validate:"required"`

	IntegrityIntervalMinutes int `mapstructure:"integrity_interval_minutes" validate:"gte=0"`
	RetentionPollHours       int `mapstructure:"retention_poll_hours"       validate:"gte=0"`

	RequireLocation           bool `mapstructure:"require_location"`
	RequireVerifiedCredential bool `mapstructure:"require_verified_credential"`

	Security SecurityConfig `mapstructure:"security"`
}

// SecurityConfig seeds the persisted security settings.
type SecurityConfig struct {
	EncryptionEnabled       bool `mapstructure:"encryption_enabled"`
	AnomalyDetectionEnabled bool `mapstructure:"anomaly_detection_enabled"`
	AuditLoggingEnabled     bool `mapstructure:"audit_logging_enabled"`
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IntegrityInterval is the integrity check period.
func (c *Config) IntegrityInterval() time.Duration {
	return time.Duration(c.IntegrityIntervalMinutes) * time.Minute
}

// RetentionPoll is how often the retention task asks whether a cleanup is due.
func (c *Config) RetentionPoll() time.Duration {
	return time.Duration(c.RetentionPollHours) * time.Hour
}

// Load reads the optional YAML file at path, applies SHIFTLEDGER_* environment
// overrides and validates the result.  With an empty path, config.yaml is
// looked up in ./configs and the working directory.
func Load(path string) (*Config, error) {
	vip := newViper(path)
	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(vip)
}

// Watch re-reads the file at path whenever it changes and hands each valid
// result to onChange.  Invalid edits are logged and ignored.
func Watch(path string, logger *slog.Logger, onChange func(*Config)) error {
	if path == "" {
		return nil
	}

	vip := newViper(path)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	vip.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(vip)
		if err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	vip.WatchConfig()
	return nil
}

func newViper(path string) *viper.Viper {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(envPrefix)
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("env", "dev")
	vip.SetDefault("http_addr", ":8080")
	vip.SetDefault("grpc_addr", "")
	vip.SetDefault("db_path", "./data/shiftledger.db")
	vip.SetDefault("timezone", "Local")
	vip.SetDefault("integrity_interval_minutes", 5)
	vip.SetDefault("retention_poll_hours", 6)
	vip.SetDefault("require_location", false)
	vip.SetDefault("require_verified_credential", false)
	vip.SetDefault("security.encryption_enabled", true)
	vip.SetDefault("security.anomaly_detection_enabled", true)
	vip.SetDefault("security.audit_logging_enabled", true)
	return vip
}

func decode(vip *viper.Viper) (*Config, error) {
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("config validation failed: timezone: %w", err)
	}
	return &cfg, nil
}
