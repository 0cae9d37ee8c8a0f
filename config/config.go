package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates the runtime settings for the platform daemon.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	EventLog    EventLogConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// EventLogConfig selects the event log backend. Backend is "memory" or
// "bolt"; Path is the bolt database file. AppendTimeout bounds the context
// each command dispatch (and so each append) runs under.
type EventLogConfig struct {
	Backend       string
	Path          string
	AppendTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the daemon can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "platformd"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:            getString("SERVER_HOST", "0.0.0.0"),
			Port:            getString("SERVER_PORT", "8080"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		EventLog: EventLogConfig{
			Backend:       getString("EVENTLOG_BACKEND", "memory"),
			Path:          getString("EVENTLOG_PATH", "data/events.db"),
			AppendTimeout: getDuration("EVENTLOG_APPEND_TIMEOUT", 5*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
