package config

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ServerConfig holds the HTTP listener options
type ServerConfig struct {
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	RootDir  string `yaml:"root_dir" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// HistoryConfig bounds the undo history
type HistoryConfig struct {
	// Limit is the maximum number of undoable records; 0 means unbounded.
	Limit int `yaml:"limit" validate:"min=0"`
}

// WatchConfig controls reloading of seed files edited on disk
type WatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Extension string `yaml:"extension" validate:"required,startswith=."`
}

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	CertFile     string   `yaml:"cert_file" validate:"required_if=Enabled true"`
	KeyFile      string   `yaml:"key_file" validate:"required_if=Enabled true"`
	GenerateCert bool     `yaml:"generate_cert"`
	Hosts        []string `yaml:"hosts"`
}

// CORSConfig holds CORS configuration options
type CORSConfig struct {
	Enabled          bool   `yaml:"enabled"`
	AllowOrigins     string `yaml:"allow_origins"`
	AllowMethods     string `yaml:"allow_methods"`
	AllowHeaders     string `yaml:"allow_headers"`
	AllowCredentials bool   `yaml:"allow_credentials"`
	MaxAge           int    `yaml:"max_age" validate:"min=0"`
}

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	TLS     TLSConfig     `yaml:"tls"`
	CORS    CORSConfig    `yaml:"cors"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     3000,
			RootDir:  ".",
			LogLevel: "info",
		},
		Watch: WatchConfig{
			Enabled:   true,
			Extension: ".json",
		},
		TLS: TLSConfig{
			CertFile: "cert/cert.pem",
			KeyFile:  "cert/key.pem",
			Hosts:    []string{"localhost", "127.0.0.1"},
		},
		CORS: CORSConfig{
			AllowOrigins: "*",
			AllowMethods: "GET, POST, PUT, OPTIONS, PATCH",
			AllowHeaders: "Content-Type, Accept, Subscribe, Version, Parents",
			MaxAge:       86400,
		},
	}
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Server.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
