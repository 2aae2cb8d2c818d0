package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	Port        string `mapstructure:"port"`

	// Engine settings. Dates are plain calendar dates interpreted in this
	// single timezone; there is no per-team timezone handling.
	Timezone                 string `mapstructure:"timezone"`
	EscalationTimeoutMinutes int    `mapstructure:"escalation_timeout_minutes"`
	SweepIntervalSeconds     int    `mapstructure:"sweep_interval_seconds"`
	NotifyTimeoutSeconds     int    `mapstructure:"notify_timeout_seconds"`
	StatsCron                string `mapstructure:"stats_cron"`

	// Sessions
	SessionTTLHours int    `mapstructure:"session_ttl_hours"`
	BootstrapToken  string `mapstructure:"bootstrap_token"`

	// Notification delivery
	SlackBotToken string `mapstructure:"slack_bot_token"`

	// Calendar export (one-way mirror)
	CalendarEnabled     bool   `mapstructure:"calendar_enabled"`
	CalendarID          string `mapstructure:"calendar_id"`
	CalendarCredentials string `mapstructure:"calendar_credentials"`
}

// App holds the global config instance
var App Config

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) error {
	// Auto-load .env file if present, so 'go run' works without manually
	// exporting env vars. Missing .env is fine in Docker/production.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("escalation_timeout_minutes", 10)
	v.SetDefault("sweep_interval_seconds", 60)
	v.SetDefault("notify_timeout_seconds", 5)
	v.SetDefault("stats_cron", "15 3 * * *")
	v.SetDefault("session_ttl_hours", 72)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("dutybot")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("dutybot")

	// Bind standard environment variables for Docker/deploy compatibility.
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("timezone", "DUTYBOT_TIMEZONE")
	_ = v.BindEnv("escalation_timeout_minutes", "ESCALATION_TIMEOUT_MINUTES")
	_ = v.BindEnv("sweep_interval_seconds", "SWEEP_INTERVAL_SECONDS")
	_ = v.BindEnv("slack_bot_token", "SLACK_BOT_TOKEN")
	_ = v.BindEnv("bootstrap_token", "BOOTSTRAP_TOKEN")
	_ = v.BindEnv("calendar_enabled", "CALENDAR_ENABLED")
	_ = v.BindEnv("calendar_id", "CALENDAR_ID")
	_ = v.BindEnv("calendar_credentials", "CALENDAR_CREDENTIALS")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and environment variables")
		} else {
			return err
		}
	} else {
		log.Printf("Loaded config from: %s", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&App); err != nil {
		return err
	}

	return nil
}

// Location resolves the configured timezone, falling back to UTC on a bad
// name so scheduling keeps working.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Invalid timezone %q, falling back to UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

// EscalationTimeout returns the level-2 promotion timeout.
func (c Config) EscalationTimeout() time.Duration {
	return time.Duration(c.EscalationTimeoutMinutes) * time.Minute
}

// SweepInterval returns the sweeper tick interval.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// NotifyTimeout bounds a single outbound notification call.
func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

// SessionTTL returns how long issued session tokens live.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}
