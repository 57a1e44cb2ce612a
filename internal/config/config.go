package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Mail      MailConfig      `mapstructure:"mail"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings. The signing secret has no
// default: a missing or short secret fails validation and aborts startup.
type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret" validate:"required,min=32"`
	BcryptCost  int    `mapstructure:"bcrypt_cost"  validate:"gte=4,lte=31"`
}

// SchedulerConfig controls the reminder scheduler's re-arm delays.
// EmptyInterval applies after a scan that found no incomplete tasks,
// ActiveInterval after a scan that dispatched reminders.
type SchedulerConfig struct {
	EmptyInterval  time.Duration `mapstructure:"empty_interval"  validate:"required,gt=0"`
	ActiveInterval time.Duration `mapstructure:"active_interval" validate:"required,gt=0"`
}

// MailConfig configures the SMTP notification dispatcher. An empty Addr
// disables outbound mail; notifications are then logged only.
type MailConfig struct {
	Addr string `mapstructure:"addr"`
	From string `mapstructure:"from" validate:"omitempty,email"`
}
