package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// DatabaseURLEnv supplies the DSN when the config file leaves it empty
	DatabaseURLEnv = "MUN_DATABASE_URL"

	DefaultRegistrationPrefix  = "REG"
	DefaultAllottedPercent     = 25
	DefaultConfirmedPercent    = 10
	DefaultConfirmationWindow  = 48 * time.Hour
	DefaultSweepSchedule       = "@every 1h"
	DefaultSQLitePath          = "mun_allotment.db"
	defaultConfigFileName      = "mun_config"
	defaultConfigFileExtension = ".yaml"
)

// DatabaseConfig selects the store backend
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=postgres sqlite"`
	DSN    string `yaml:"dsn,omitempty"`
}

// AdmissionConfig holds the admission caps as a percentage of registrations
type AdmissionConfig struct {
	AllottedPercent  float64 `yaml:"allottedPercent,omitempty" validate:"gt=0,lte=100"`
	ConfirmedPercent float64 `yaml:"confirmedPercent,omitempty" validate:"gt=0,lte=100"`
}

// Config represents the application configuration
type Config struct {
	ConferenceName     string          `yaml:"conferenceName" validate:"required"`
	RegistrationPrefix string          `yaml:"registrationPrefix,omitempty" validate:"alphanum,max=8"`
	Database           DatabaseConfig  `yaml:"database"`
	Admission          AdmissionConfig `yaml:"admission,omitempty"`
	ConfirmationWindow string          `yaml:"confirmationWindow,omitempty"`
	SweepSchedule      string          `yaml:"sweepSchedule,omitempty"`
	ConferenceDates    string          `yaml:"conferenceDates,omitempty"`
	RegistrationFee    int             `yaml:"registrationFee,omitempty" validate:"gte=0"`
	GmailUserID        string          `yaml:"gmailUserID,omitempty" validate:"required_if=NoEmail false"`
	GmailSender        string          `yaml:"gmailSender,omitempty"`
	NoEmail            bool            `yaml:"noEmail,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from mun_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads and validates the configuration with an environment suffix
// For example, env="test" will look for "mun_config.test.yaml" and ".env.test"
func LoadWithEnv(env string) (*Config, error) {
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RegistrationPrefix == "" {
		cfg.RegistrationPrefix = DefaultRegistrationPrefix
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = os.Getenv(DatabaseURLEnv)
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = DefaultSQLitePath
	}
	if cfg.Admission.AllottedPercent == 0 {
		cfg.Admission.AllottedPercent = DefaultAllottedPercent
	}
	if cfg.Admission.ConfirmedPercent == 0 {
		cfg.Admission.ConfirmedPercent = DefaultConfirmedPercent
	}
	if cfg.ConfirmationWindow == "" {
		cfg.ConfirmationWindow = DefaultConfirmationWindow.String()
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}
}

// Validate validates the configuration struct and checks duration, cron and rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Database.DSN == "" {
		return fmt.Errorf("config validation failed: database.dsn is empty and %s is not set", DatabaseURLEnv)
	}

	window, err := time.ParseDuration(cfg.ConfirmationWindow)
	if err != nil {
		return fmt.Errorf("invalid confirmationWindow: %w", err)
	}
	if window <= 0 {
		return fmt.Errorf("invalid confirmationWindow: must be positive, got %s", cfg.ConfirmationWindow)
	}

	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweepSchedule: %w", err)
	}

	if cfg.ConferenceDates != "" {
		rule, err := rrule.StrToRRule(cfg.ConferenceDates)
		if err != nil {
			return fmt.Errorf("invalid rrule in conferenceDates: %w", err)
		}
		if rule.OrigOptions.Count == 0 && rule.OrigOptions.Until.IsZero() {
			return fmt.Errorf("invalid rrule in conferenceDates: COUNT or UNTIL is required")
		}
	}

	return nil
}

// ConfirmationWindowDuration returns how long an allotted portfolio is held awaiting payment
func (c *Config) ConfirmationWindowDuration() time.Duration {
	window, err := time.ParseDuration(c.ConfirmationWindow)
	if err != nil || window <= 0 {
		return DefaultConfirmationWindow
	}
	return window
}

// ConferenceDays expands conferenceDates into the individual conference days
func (c *Config) ConferenceDays() ([]time.Time, error) {
	if c.ConferenceDates == "" {
		return nil, nil
	}

	rule, err := rrule.StrToRRule(c.ConferenceDates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse conferenceDates: %w", err)
	}

	return rule.All(), nil
}

// loadDotEnv loads secrets from .env or .env.<env> when present
func loadDotEnv(env string) error {
	name := ".env"
	if env != "" {
		name = ".env." + env
	}

	if err := godotenv.Load(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", name, err)
	}

	return nil
}

// findConfigFile searches for mun_config.yaml in current directory and home directory
// If env is provided, it adds it as an extension (e.g., "mun_config.test.yaml")
func findConfigFile(env string) (string, error) {
	configFileName := defaultConfigFileName + defaultConfigFileExtension
	if env != "" {
		configFileName = defaultConfigFileName + "." + env + defaultConfigFileExtension
	}

	return searchPaths(configFileName)
}

// searchPaths returns the first of ./name and $HOME/name that exists
func searchPaths(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
