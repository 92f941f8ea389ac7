package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment represents the logical deployment environment. It is derived
// from environment variables so low-level packages can consult it without an
// import cycle back through Config.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// ParseEnvironment parses an environment string (case-insensitive). Unknown
// input reports ok=false.
func ParseEnvironment(raw string) (env Environment, ok bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch Environment(raw) {
	case Development, Testing, Production:
		return Environment(raw), true
	default:
		return Development, false
	}
}

// CurrentEnvironment returns the environment from APP_ENV (preferred) or
// ENVIRONMENT (legacy fallback). Unknown values default to Development.
func CurrentEnvironment() Environment {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if raw == "" {
		raw = strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	}
	if env, ok := ParseEnvironment(raw); ok {
		return env
	}
	return Development
}

// IsProduction reports whether the process is running in production mode.
// Components that must fail closed on weak secrets or insecure transport
// consult this rather than hardcoding an env var name.
func IsProduction() bool { return CurrentEnvironment() == Production }

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls persistence.
type DatabaseConfig struct {
	Driver          string `json:"driver" env:"DATABASE_DRIVER"`
	DSN             string `json:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" env:"DATABASE_PORT"`
	User            string `json:"user" env:"DATABASE_USER"`
	Password        string `json:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// SecurityConfig controls secret material subject to production validation
// (minimum length, rejection of placeholder values).
type SecurityConfig struct {
	SecretEncryptionKey string `json:"secret_encryption_key" env:"SECRET_ENCRYPTION_KEY"`
	WebhookSigningKey   string `json:"webhook_signing_key" env:"WEBHOOK_SIGNING_KEY"`
	AuthDisabled        bool   `json:"auth_disabled" env:"AUTH_DISABLED"`
}

// CacheConfig controls the in-memory cache fabric shared by pairing,
// vintage, and weather lookups.
type CacheConfig struct {
	MaxEntries     int           `json:"max_entries" env:"CACHE_MAX_ENTRIES"`
	MaxMemoryBytes int64         `json:"max_memory_bytes" env:"CACHE_MAX_MEMORY_BYTES"`
	DefaultTTL     time.Duration `json:"default_ttl" env:"CACHE_DEFAULT_TTL"`
	EvictionPolicy string        `json:"eviction_policy" env:"CACHE_EVICTION_POLICY"`
	CleanupEvery   time.Duration `json:"cleanup_every" env:"CACHE_CLEANUP_EVERY"`
}

// WeatherConfig controls the external weather data provider.
type WeatherConfig struct {
	BaseURL           string        `json:"base_url" env:"WEATHER_BASE_URL"`
	APIKey            string        `json:"api_key" env:"WEATHER_API_KEY"`
	RequestTimeout    time.Duration `json:"request_timeout" env:"WEATHER_REQUEST_TIMEOUT"`
	RateLimitPerSec   float64       `json:"rate_limit_per_sec" env:"WEATHER_RATE_LIMIT_PER_SEC"`
	RateLimitBurst    int           `json:"rate_limit_burst" env:"WEATHER_RATE_LIMIT_BURST"`
	MaxRetries        int           `json:"max_retries" env:"WEATHER_MAX_RETRIES"`
	CircuitOpenAfter  int           `json:"circuit_open_after" env:"WEATHER_CIRCUIT_OPEN_AFTER"`
	KillSwitchEnabled bool          `json:"kill_switch_enabled" env:"WEATHER_KILL_SWITCH_ENABLED"`
}

// AIConfig controls the LLM-backed pairing explanation and summary provider.
type AIConfig struct {
	Provider    string        `json:"provider" env:"AI_PROVIDER"`
	APIKey      string        `json:"api_key" env:"AI_API_KEY"`
	Model       string        `json:"model" env:"AI_MODEL"`
	Timeout     time.Duration `json:"timeout" env:"AI_TIMEOUT"`
	MaxRetries  int           `json:"max_retries" env:"AI_MAX_RETRIES"`
	Temperature float64       `json:"temperature" env:"AI_TEMPERATURE"`
}

// SchedulerConfig controls the weather background scheduler's worker pool.
type SchedulerConfig struct {
	WorkerCount   int           `json:"worker_count" env:"SCHEDULER_WORKER_COUNT"`
	PollInterval  time.Duration `json:"poll_interval" env:"SCHEDULER_POLL_INTERVAL"`
	MaxRetries    int           `json:"max_retries" env:"SCHEDULER_MAX_RETRIES"`
	RetryBaseWait time.Duration `json:"retry_base_wait" env:"SCHEDULER_RETRY_BASE_WAIT"`
}

// TracingConfig configures OTLP resource attributes attached to metrics and
// logs (no trace export is wired; this only shapes identifying labels).
type TracingConfig struct {
	ServiceName        string            `json:"service_name" env:"TRACING_SERVICE_NAME"`
	ResourceAttributes map[string]string `json:"resource_attributes" mapstructure:"resource_attributes"`
	AttributesEnv      string            `json:"-" yaml:"-" env:"TRACING_OTLP_ATTRIBUTES"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
	Security  SecurityConfig  `json:"security"`
	Cache     CacheConfig     `json:"cache"`
	Weather   WeatherConfig   `json:"weather"`
	AI        AIConfig        `json:"ai"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Tracing   TracingConfig   `json:"tracing"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "cellar-intel",
		},
		Security: SecurityConfig{},
		Cache: CacheConfig{
			MaxEntries:     10000,
			MaxMemoryBytes: 64 * 1024 * 1024,
			DefaultTTL:     15 * time.Minute,
			EvictionPolicy: "hybrid",
			CleanupEvery:   time.Minute,
		},
		Weather: WeatherConfig{
			RequestTimeout:   10 * time.Second,
			RateLimitPerSec:  5,
			RateLimitBurst:   10,
			MaxRetries:       3,
			CircuitOpenAfter: 5,
		},
		AI: AIConfig{
			Provider:    "genai",
			Model:       "gemini-2.0-flash",
			Timeout:     20 * time.Second,
			MaxRetries:  2,
			Temperature: 0.4,
		},
		Scheduler: SchedulerConfig{
			WorkerCount:   4,
			PollInterval:  30 * time.Second,
			MaxRetries:    3,
			RetryBaseWait: 5 * time.Second,
		},
		Tracing: TracingConfig{ServiceName: "cellar-intel"},
	}
}

// ConnectionString builds a PostgreSQL connection string using host parameters.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

// applyDatabaseURLOverride aligns config loading with cmd/cellar-intel: DATABASE_URL
// overrides any file-based DSN to reduce setup friction in hosted environments.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

func (t *TracingConfig) normalize() {
	if t == nil {
		return
	}
	t.MergeAttributes(t.AttributesEnv)
}

// MergeAttributes merges comma-separated key=value pairs into ResourceAttributes.
func (t *TracingConfig) MergeAttributes(raw string) {
	if t == nil {
		return
	}
	pairs := parseAttributePairs(raw)
	if len(pairs) == 0 {
		return
	}
	if t.ResourceAttributes == nil {
		t.ResourceAttributes = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		if k == "" {
			continue
		}
		t.ResourceAttributes[k] = v
	}
}

func parseAttributePairs(raw string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		val := ""
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}
		result[key] = val
	}
	return result
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	c.Tracing.normalize()
}

// minSecretLength is the floor enforced on production secrets, matching the
// service's long-standing guard against accidentally-deployed dev defaults.
const minSecretLength = 32

var placeholderSecrets = []string{
	"changeme", "change-me", "secret", "password", "test", "example", "default",
}

// ValidateSecret rejects empty, too-short, or placeholder-looking secrets
// when running in production. Outside production it only rejects emptiness
// when required is true, so local development can run without provisioning
// real key material.
func ValidateSecret(name, value string, required bool) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required && IsProduction() {
			return fmt.Errorf("%s is required in production", name)
		}
		return nil
	}
	if !IsProduction() {
		return nil
	}
	if len(trimmed) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters in production", name, minSecretLength)
	}
	lower := strings.ToLower(trimmed)
	for _, placeholder := range placeholderSecrets {
		if strings.Contains(lower, placeholder) {
			return fmt.Errorf("%s looks like a placeholder value, refusing to start in production", name)
		}
	}
	return nil
}

// Validate enforces the secret and cross-field rules that must hold before
// the process is allowed to serve traffic.
func (c *Config) Validate() error {
	if c.Security.AuthDisabled && IsProduction() {
		return fmt.Errorf("security.auth_disabled cannot be set in production")
	}
	if err := ValidateSecret("security.secret_encryption_key", c.Security.SecretEncryptionKey, true); err != nil {
		return err
	}
	if err := ValidateSecret("security.webhook_signing_key", c.Security.WebhookSigningKey, false); err != nil {
		return err
	}
	if c.Security.SecretEncryptionKey != "" && c.Security.SecretEncryptionKey == c.Security.WebhookSigningKey {
		return fmt.Errorf("security.secret_encryption_key and security.webhook_signing_key must differ")
	}
	if IsProduction() && strings.TrimSpace(c.AI.APIKey) == "" {
		return fmt.Errorf("ai.api_key is required in production")
	}
	return nil
}

// ParseEnvInt parses an integer from the named environment variable.
func ParseEnvInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
