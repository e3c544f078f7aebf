// Package config loads the process configuration from environment
// variables layered over an embedded YAML defaults file, validating
// required fields and returning an error rather than exiting the process.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config.default.yaml
var defaultYAML []byte

type defaults struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	CORS          bool   `yaml:"cors"`
	Swagger       bool   `yaml:"swagger"`
	IngestEnabled bool   `yaml:"ingest_enabled"`
}

func loadDefaults() defaults {
	d := defaults{Host: "localhost", Port: "3000", Swagger: true}
	_ = yaml.Unmarshal(defaultYAML, &d)
	return d
}

// Env is the deployment environment. It is validated at load time; the
// server only reports at boot that verbose logging is on for development
// and test, and no log output is filtered by it.
type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
	EnvTest        Env = "test"
)

// Config holds every recognized environment variable.
type Config struct {
	NodeEnv Env

	Host string
	Port string

	CORS    bool
	Swagger bool

	IngestEnabled bool

	DatabaseURL string
	RedisURL    string

	KMAAPIKey string

	PEWSSimEQKID   string
	PEWSSimStartAt string
	PEWSSimulation bool
}

// Load reads and validates configuration from the environment. It returns
// an error rather than calling log.Fatal itself, leaving exit-on-error to
// cmd/server so tests can exercise invalid configurations.
func Load() (*Config, error) {
	d := loadDefaults()

	c := &Config{
		NodeEnv: Env(env("NODE_ENV", string(EnvDevelopment))),
		Host:    env("HOST", d.Host),
		Port:    env("PORT", d.Port),
		CORS:    boolEnv("CORS", d.CORS),
		Swagger: boolEnv("SWAGGER", d.Swagger),

		IngestEnabled: boolEnv("INGEST_ENABLED", d.IngestEnabled),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		KMAAPIKey: os.Getenv("KMA_API_KEY"),

		PEWSSimEQKID:   os.Getenv("KMA_PEWS_SIM_EQK_ID"),
		PEWSSimStartAt: os.Getenv("KMA_PEWS_SIM_START_AT"),
	}

	switch c.NodeEnv {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return nil, fmt.Errorf("NODE_ENV: invalid value %q", c.NodeEnv)
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if c.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}

	if (c.PEWSSimEQKID == "") != (c.PEWSSimStartAt == "") {
		return nil, fmt.Errorf("KMA_PEWS_SIM_EQK_ID and KMA_PEWS_SIM_START_AT must be set together")
	}
	c.PEWSSimulation = c.PEWSSimEQKID != ""

	return c, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1"
}
