package papi

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a client configuration. Durations are
// strings in time.ParseDuration format.
type fileConfig struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
	Service  string `yaml:"service"`
	Timeout  string `yaml:"timeout"`
	Secure   bool   `yaml:"secure"`
}

// LoadConfig reads a client configuration from a YAML file and validates
// it. The password may be omitted from the file and supplied through the
// PAPI_PASSWORD environment variable instead.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg := &Config{
		Host:     fc.Host,
		Username: fc.Username,
		Password: fc.Password,
		Port:     fc.Port,
		Service:  Service(fc.Service),
		Secure:   fc.Secure,
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid timeout %q in config file", fc.Timeout)
		}
		cfg.Timeout = d
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("PAPI_PASSWORD")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFromEnv builds a client configuration from PAPI_* environment
// variables: PAPI_HOST, PAPI_USERNAME, PAPI_PASSWORD, PAPI_PORT,
// PAPI_SERVICE, PAPI_TIMEOUT, PAPI_SECURE. A .env file in the working
// directory is loaded first when present.
func ConfigFromEnv() (*Config, error) {
	// Ignore a missing .env; the process environment still applies.
	_ = godotenv.Load()

	cfg := &Config{
		Host:     os.Getenv("PAPI_HOST"),
		Username: os.Getenv("PAPI_USERNAME"),
		Password: os.Getenv("PAPI_PASSWORD"),
		Service:  Service(os.Getenv("PAPI_SERVICE")),
	}
	if v := os.Getenv("PAPI_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid PAPI_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("PAPI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid PAPI_TIMEOUT %q", v)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("PAPI_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid PAPI_SECURE %q", v)
		}
		cfg.Secure = secure
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
