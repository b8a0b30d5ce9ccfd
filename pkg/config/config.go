package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	// Local persistence defaults to sqlite; the file location has no default
	// and must be supplied.
	defaultDatastore = "sqlite"

	defaultHost        = "127.0.0.1"
	defaultPort        = 5000
	defaultProvider    = "openai"
	defaultScanTimeout = 2 * time.Minute
	defaultLLMTimeout  = 60 * time.Second
)

// Config aggregates runtime settings for the assistant service.
type Config struct {
	Subnets     []string     `yaml:"subnets"`
	Datastore   string       `yaml:"datastore"`
	DBPath      string       `yaml:"db_path"`
	DatabaseURL string       `yaml:"database_url"`
	Host        string       `yaml:"host"`
	Port        int          `yaml:"port"`
	Scan        ScanConfig   `yaml:"scan"`
	LLM         LLMConfig    `yaml:"llm"`
	PubSub      PubSubConfig `yaml:"pubsub"`
}

// ScanConfig tunes the network sweep.
type ScanConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	NmapPath      string        `yaml:"nmap_path"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Schedule      string        `yaml:"schedule"`
}

// LLMConfig configures the fallback completion endpoint.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // openai, gemini
	URL      string        `yaml:"url"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PubSubConfig enables export of completed scans. Export is off when Topic is
// empty.
type PubSubConfig struct {
	ProjectID    string `yaml:"project_id"`
	Topic        string `yaml:"topic"`
	EmulatorHost string `yaml:"emulator_host"`
}

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Default returns the built-in settings. Subnets and the storage location are
// left empty on purpose.
func Default() *Config {
	return &Config{
		Datastore: defaultDatastore,
		Host:      defaultHost,
		Port:      defaultPort,
		Scan: ScanConfig{
			Timeout: defaultScanTimeout,
		},
		LLM: LLMConfig{
			Provider: defaultProvider,
			Timeout:  defaultLLMTimeout,
		},
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := readEnv("SPINDLE_SUBNETS", ""); v != "" {
		c.Subnets = SplitRanges(v)
	}
	c.Datastore = readEnv("SPINDLE_DATASTORE", c.Datastore)
	c.DBPath = readEnv("SPINDLE_DB_PATH", c.DBPath)
	c.DatabaseURL = readEnv("SPINDLE_DATABASE_URL", c.DatabaseURL)
	c.Host = readEnv("SPINDLE_HOST", c.Host)

	c.LLM.Provider = readEnv("SPINDLE_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.URL = readEnv("SPINDLE_LLAMA_URL", c.LLM.URL)
	c.LLM.Model = readEnv("SPINDLE_LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = readEnv("SPINDLE_LLM_API_KEY", c.LLM.APIKey)

	c.Scan.NmapPath = readEnv("SPINDLE_NMAP_PATH", c.Scan.NmapPath)
	c.Scan.Schedule = readEnv("SPINDLE_SCAN_SCHEDULE", c.Scan.Schedule)

	c.PubSub.ProjectID = readEnv("PUBSUB_PROJECT_ID", c.PubSub.ProjectID)
	c.PubSub.Topic = readEnv("SPINDLE_PUBSUB_TOPIC", c.PubSub.Topic)
	c.PubSub.EmulatorHost = readEnv("PUBSUB_EMULATOR_HOST", c.PubSub.EmulatorHost)

	var err error
	if c.Port, err = readEnvInt("SPINDLE_PORT", c.Port); err != nil {
		return err
	}
	if c.Scan.MaxConcurrent, err = readEnvInt("SPINDLE_MAX_CONCURRENT_SWEEPS", c.Scan.MaxConcurrent); err != nil {
		return err
	}
	if c.Scan.Timeout, err = readEnvDuration("SPINDLE_SCAN_TIMEOUT", c.Scan.Timeout); err != nil {
		return err
	}
	if c.LLM.Timeout, err = readEnvDuration("SPINDLE_LLM_TIMEOUT", c.LLM.Timeout); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if len(c.Subnets) == 0 {
		return &ConfigurationError{Field: "subnets", Reason: "at least one address range is required"}
	}
	switch c.Datastore {
	case "sqlite":
		if c.DBPath == "" {
			return &ConfigurationError{Field: "db_path", Reason: "storage location is required for sqlite"}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return &ConfigurationError{Field: "database_url", Reason: "connection string is required for postgres"}
		}
	default:
		return &ConfigurationError{Field: "datastore", Reason: fmt.Sprintf("unsupported datastore %q", c.Datastore)}
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return &ConfigurationError{Field: "llm.provider", Reason: fmt.Sprintf("unsupported provider %q", c.LLM.Provider)}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigurationError{Field: "port", Reason: fmt.Sprintf("out of range: %d", c.Port)}
	}
	if c.Scan.Timeout <= 0 {
		return &ConfigurationError{Field: "scan.timeout", Reason: "must be positive"}
	}
	if c.Scan.MaxConcurrent < 0 {
		return &ConfigurationError{Field: "scan.max_concurrent", Reason: "must not be negative"}
	}
	if c.Scan.Schedule != "" {
		if _, err := cron.ParseStandard(c.Scan.Schedule); err != nil {
			return &ConfigurationError{Field: "scan.schedule", Reason: err.Error()}
		}
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return &ConfigurationError{Field: "pubsub.project_id", Reason: "required when a topic is set"}
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SplitRanges parses a comma-separated list of address ranges, keeping order
// and dropping blanks.
func SplitRanges(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readEnv returns a key's value from environment, or fallback
func readEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func readEnvInt(key string, fallback int) (int, error) {
	val := readEnv(key, "")
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, &ConfigurationError{Field: key, Reason: fmt.Sprintf("not an integer: %q", val)}
	}
	return n, nil
}

func readEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := readEnv(key, "")
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, &ConfigurationError{Field: key, Reason: fmt.Sprintf("not a duration: %q", val)}
	}
	return d, nil
}
