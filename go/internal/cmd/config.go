package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the server settings read from the optional YAML file.
// Environment variables override file values.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		Secret       string  `yaml:"secret"`
		RateLimitRPS float64 `yaml:"rate_limit_rps"`
	} `yaml:"auth"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
}

func loadConfig(path string) (*Config, error) {
	var config Config
	config.Server.Port = "8080"
	config.Auth.RateLimitRPS = 5

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Auth.Secret = getEnv("AUTH_SECRET", config.Auth.Secret)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)

	if config.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is required (AUTH_SECRET or config file)")
	}
	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
