// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Config defines the structure for all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Database   DatabaseConfig   `yaml:"database"`
	DBWriter   DBWriterConfig   `yaml:"db_writer"`
	Server     ServerConfig     `yaml:"server"`
	Alert      AlertConfig      `yaml:"alert"`
}

// DatasetConfig describes where the raw records come from and how they are partitioned.
type DatasetConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// TestingEvery routes every n-th record (1-based) to the testing set.
	TestingEvery int      `yaml:"testing_every"`
	Strict       FlexBool `yaml:"strict"`
}

// ClassifierConfig lists the hyperparameters to evaluate, one at a time.
type ClassifierConfig struct {
	K        []int  `yaml:"k"`
	Distance string `yaml:"distance"`
}

// DatabaseConfig holds the connection settings for the dataset store.
type DatabaseConfig struct {
	Enabled  FlexBool `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"-"` // Loaded from env
	Name     string   `yaml:"name"`
	SSLMode  string   `yaml:"sslmode"`
}

// DBWriterConfig controls batching of the evaluation progress log.
type DBWriterConfig struct {
	BatchSize            int `yaml:"batch_size"`
	WriteIntervalSeconds int `yaml:"write_interval_seconds"`
}

// ServerConfig configures the optional HTTP server.
type ServerConfig struct {
	Enabled FlexBool `yaml:"enabled"`
	Addr    string   `yaml:"addr"`
}

// AlertConfig controls the tuning completion notice.
type AlertConfig struct {
	Enabled FlexBool `yaml:"enabled"`
}

// URL returns the postgres connection URL for the database settings.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

var current atomic.Pointer[Config]

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Dataset: DatasetConfig{
			Name:         "iris",
			TestingEvery: 5,
		},
		Classifier: ClassifierConfig{
			K:        []int{1, 3, 5, 7},
			Distance: "euclidean",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		DBWriter: DBWriterConfig{
			BatchSize:            100,
			WriteIntervalSeconds: 1,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables, and makes it the current configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaults()

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	current.Store(cfg)
	return cfg, nil
}

// ReloadConfig re-reads the configuration file and atomically swaps it in.
// The previous configuration stays current if loading fails.
func ReloadConfig(configPath string) (*Config, error) {
	return LoadConfig(configPath)
}

// GetConfig returns the most recently loaded configuration, or the defaults
// if nothing has been loaded yet.
func GetConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return defaults()
}

// Load sensitive data and overrides from environment variables
func applyEnv(cfg *Config) error {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if path := os.Getenv("KNN_DATASET_PATH"); path != "" {
		cfg.Dataset.Path = path
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		port, err := strconv.Atoi(dbPort)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", dbPort, err)
		}
		cfg.Database.Port = port
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Name = dbName
	}
	return nil
}

// Validate checks the values the evaluation cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Dataset.Name == "" {
		errs = append(errs, errors.New("dataset.name must not be empty"))
	}
	if c.Dataset.TestingEvery < 2 {
		errs = append(errs, fmt.Errorf("dataset.testing_every must be at least 2, got %d", c.Dataset.TestingEvery))
	}
	for _, k := range c.Classifier.K {
		if k < 1 {
			errs = append(errs, fmt.Errorf("classifier.k values must be positive, got %d", k))
		}
	}
	if bool(c.Database.Enabled) && c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required when the database is enabled"))
	}
	return errors.Join(errs...)
}
