package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	LogLevel           string `yaml:"logLevel"`
	RabbitURL          string `yaml:"rabbitURL"`
	EventsExchange     string `yaml:"eventsExchange"`
	Queue              string `yaml:"queue"`
	DeadLetterExchange string `yaml:"deadLetterExchange"`
	Prefetch           int    `yaml:"prefetch"`
	// VerifyURL is the page that consumes ?token= from verification mails.
	VerifyURL string `yaml:"verifyURL"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.RabbitURL, "RABBIT_URL")
	overrideString(&cfg.EventsExchange, "EVENTS_EXCHANGE")
	overrideString(&cfg.Queue, "NOTIFIER_QUEUE")
	overrideString(&cfg.VerifyURL, "VERIFY_URL")
	if v := os.Getenv("NOTIFIER_PREFETCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Prefetch = n
		}
	}
	if cfg.Queue == "" {
		cfg.Queue = "turfhub.notifier"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.RabbitURL == "" {
		return errors.New("config: rabbitURL is required")
	}
	if cfg.Prefetch < 0 {
		return errors.New("config: prefetch must be >= 0")
	}
	return nil
}
