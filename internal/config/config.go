package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port" validate:"omitempty,numeric"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`
	Storage struct {
		Driver     string `yaml:"driver" validate:"omitempty,oneof=memory sqlite postgres"`
		SQLitePath string `yaml:"sqlitePath"`
		CoverDir   string `yaml:"coverDir"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL                 string `yaml:"ttl"`
		DefaultQuestionType string `yaml:"defaultQuestionType" validate:"omitempty,oneof=single multiple"`
		OptionsPerQuestion  int    `yaml:"optionsPerQuestion" validate:"gte=0,lte=10"`
		DraftIdle           string `yaml:"draftIdle"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret  string `yaml:"jwtSecret" validate:"omitempty,min=32"`
		TokenTTL   string `yaml:"tokenTTL"`
		AllowGuest *bool  `yaml:"allowGuest"`
	} `yaml:"auth"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	} `yaml:"log"`
}

// Load reads YAML config from path and validates it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints. The postgres url depends on another section and is
// checked by hand.
func Validate(cfg Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	var messages []string
	if err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("validate config: %w", err)
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				messages = append(messages, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		}
	}
	if cfg.Storage.Driver == "postgres" && cfg.Postgres.URL == "" {
		messages = append(messages, "Config.Postgres.URL is required when storage.driver is postgres")
	}
	if len(messages) > 0 {
		return fmt.Errorf("invalid config:\n- %s", strings.Join(messages, "\n- "))
	}
	return nil
}

// StorageDriver resolves the document store driver. Without an explicit driver a
// configured postgres url wins, then memory.
func (c Config) StorageDriver() string {
	if c.Storage.Driver != "" {
		return c.Storage.Driver
	}
	if c.Postgres.URL != "" {
		return "postgres"
	}
	return "memory"
}

// GuestsAllowed defaults to true when unset.
func (c Config) GuestsAllowed() bool {
	return c.Auth.AllowGuest == nil || *c.Auth.AllowGuest
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
