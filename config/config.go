package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port         int
	Host         string // client-side default server host
	DBPath       string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	MaxFrame     int // bytes
}

func Load() *Config {
	cfg := &Config{
		Port:         8080,
		Host:         "127.0.0.1",
		DBPath:       "gochat.db",
		ReadTimeout:  120,
		WriteTimeout: 30,
		MaxFrame:     64 * 1024,
	}

	if portStr := os.Getenv("GOCHAT_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if host := os.Getenv("GOCHAT_HOST"); host != "" {
		cfg.Host = host
	}

	if dbPath := os.Getenv("GOCHAT_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if timeoutStr := os.Getenv("GOCHAT_READ_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if timeoutStr := os.Getenv("GOCHAT_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if sizeStr := os.Getenv("GOCHAT_MAX_FRAME"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil {
			cfg.MaxFrame = size
		}
	}

	return cfg
}
