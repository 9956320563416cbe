/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the voice studio
type Config struct {
	Server  ServerConfig
	TTS     TTSConfig
	Storage StorageConfig
	Logging LoggingConfig
	NATS    NATSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         int
	GRPCPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxSessions  int // Form sessions kept in memory before the oldest is evicted

	// TrustedHosts lists the Host values allowed to name the playback origin
	// and to have X-Forwarded-Proto honoured. Empty accepts any Host and
	// ignores forwarded headers.
	TrustedHosts []string
}

// TTSConfig holds Text-to-Speech service configuration
type TTSConfig struct {
	URL           string        // REST API URL for an OpenAI-compatible speech service; empty disables synthesis
	Model         string        // Model name sent with each request
	Voice         string        // Voice to use (e.g., "af_bella")
	MaxConcurrent int           // Maximum concurrent TTS requests
	Timeout       time.Duration // Request timeout towards the speech service
}

// StorageConfig holds the generation ledger and audio output locations
type StorageConfig struct {
	DBPath    string
	OutputDir string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string // Empty disables event publishing
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("VOICEGEN_HOST", "0.0.0.0"),
			Port:         getEnvInt("VOICEGEN_PORT", 8000),
			GRPCPort:     getEnvInt("VOICEGEN_GRPC_PORT", 50051),
			ReadTimeout:  getEnvDuration("VOICEGEN_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("VOICEGEN_WRITE_TIMEOUT", 5*time.Minute),
			MaxSessions:  getEnvInt("VOICEGEN_MAX_SESSIONS", 1024),
			TrustedHosts: getEnvList("VOICEGEN_TRUSTED_HOSTS"),
		},
		TTS: TTSConfig{
			URL:           getEnvString("TTS_URL", ""),
			Model:         getEnvString("TTS_MODEL", "kokoro"),
			Voice:         getEnvString("TTS_VOICE", "af_bella"),
			MaxConcurrent: getEnvInt("TTS_MAX_CONCURRENT", 4),
			Timeout:       getEnvDuration("TTS_TIMEOUT", 2*time.Minute),
		},
		Storage: StorageConfig{
			DBPath:    getEnvString("DB_PATH", "./data/voicegen.db"),
			OutputDir: getEnvString("OUTPUT_DIR", "output"),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "console"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", ""),
			Subject:       getEnvString("NATS_SUBJECT", "voicegen.generations"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}

	if c.Server.GRPCPort == c.Server.Port {
		return fmt.Errorf("HTTP and gRPC ports must differ: %d", c.Server.Port)
	}

	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive: %d", c.Server.MaxSessions)
	}

	if c.TTS.MaxConcurrent <= 0 {
		return fmt.Errorf("TTS max concurrent must be positive: %d", c.TTS.MaxConcurrent)
	}

	if c.Storage.OutputDir == "" {
		return fmt.Errorf("output directory must be provided")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("database path must be provided")
	}

	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("NATS subject must be provided when NATS_URL is set")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
