package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runner's deployment configuration. Values load from a YAML
// file, then environment variables override field by field.
type Config struct {
	ServiceName string `yaml:"serviceName"`
	ListenAddr  string `yaml:"listenAddr"`
	FormsDir    string `yaml:"formsDir"`

	PreviewMode bool `yaml:"previewMode"`

	SessionCookieName string        `yaml:"sessionCookieName"`
	SessionTTL        time.Duration `yaml:"sessionTTL"`

	DatabaseURL string `yaml:"databaseURL"`
	NotifyURL   string `yaml:"notifyURL"`

	TemplatesDir string `yaml:"templatesDir"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		ServiceName:       "Forms runner",
		ListenAddr:        ":3009",
		SessionCookieName: "formrunner_session",
		SessionTTL:        20 * time.Minute,
	}
}

// Load reads the YAML file at path (skipped when empty), loads a .env file
// when present, and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.ServiceName, "FORMRUNNER_SERVICE_NAME")
	setString(&cfg.ListenAddr, "FORMRUNNER_LISTEN_ADDR")
	setString(&cfg.FormsDir, "FORMRUNNER_FORMS_DIR")
	setString(&cfg.SessionCookieName, "FORMRUNNER_SESSION_COOKIE")
	setString(&cfg.DatabaseURL, "FORMRUNNER_DATABASE_URL")
	setString(&cfg.NotifyURL, "FORMRUNNER_NOTIFY_URL")
	setString(&cfg.TemplatesDir, "FORMRUNNER_TEMPLATES_DIR")
	setBool(&cfg.PreviewMode, "FORMRUNNER_PREVIEW_MODE")
	setDuration(&cfg.SessionTTL, "FORMRUNNER_SESSION_TTL")
}

func (cfg Config) validate() error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if cfg.SessionCookieName == "" {
		return fmt.Errorf("config: session cookie name is required")
	}
	return nil
}

func setString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*target = value
	}
}

func setBool(target *bool, key string) {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func setDuration(target *time.Duration, key string) {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			*target = parsed
		}
	}
}
