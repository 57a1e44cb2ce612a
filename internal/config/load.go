package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config file and from environment
// variables with the TASK_ prefix (e.g. TASK_AUTH_TOKEN_SECRET). Environment
// variables take precedence over file values. The populated Config is
// validated before being returned; validation failures are startup-fatal by
// design, notably a missing token signing secret.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults. The scheduler delays are the contract values: 6h after an
	// empty scan, 12h after a scan that dispatched reminders.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("auth.bcrypt_cost", 8)
	v.SetDefault("scheduler.empty_interval", 6*time.Hour)
	v.SetDefault("scheduler.active_interval", 12*time.Hour)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.addr", "")

	// Keys without a meaningful default still need to be registered so
	// AutomaticEnv can populate them during Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.token_secret", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
