package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	AI       AIConfig
	Ollama   OllamaConfig
	OpenAI   OpenAIConfig
	Auth     AuthConfig
	Worker   WorkerConfig
	Search   SearchConfig
	Realtime RealtimeConfig
}

type ServerConfig struct {
	Port           int `validate:"min=1,max=65535"`
	MaxConnections int `validate:"min=1"`
}

type StorageConfig struct {
	DataDir string `validate:"required"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

type AIConfig struct {
	Provider          string  `validate:"oneof=ollama openai"`
	Timeout           string  `validate:"required"`
	RequestsPerSecond float64 `validate:"gt=0"`
	Burst             int     `validate:"min=1"`
}

type OllamaConfig struct {
	BaseURL    string `validate:"required,url"`
	ChatModel  string `validate:"required"`
	EmbedModel string `validate:"required"`
}

type OpenAIConfig struct {
	BaseURL    string `validate:"omitempty,url"`
	ChatModel  string `validate:"required"`
	EmbedModel string `validate:"required"`
	APIKey     string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  string `validate:"required"`
}

type WorkerConfig struct {
	Concurrency  int    `validate:"min=1,max=64"`
	PollInterval string `validate:"required"`
}

type SearchConfig struct {
	QATopK int `validate:"min=1,max=50"`
}

type RealtimeConfig struct {
	AllowedOrigins string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			MaxConnections: 512,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		AI: AIConfig{
			Provider:          "ollama",
			Timeout:           "60s",
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Auth: AuthConfig{
			TokenTTL: "24h",
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			PollInterval: "500ms",
		},
		Search: SearchConfig{
			QATopK: 3,
		},
		Realtime: RealtimeConfig{
			AllowedOrigins: "*",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.docmind.app) and secrets
// fall back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/docmind/config.json
// and secrets fall back to $XDG_DATA_HOME/docmind/secrets.json.
//
// Environment variables (DOCMIND_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{}, ".env")
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

const secretService = "docmind"

func loadWith(b ConfigBackend, kc keychain, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(envFile); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv exports variables from path without overriding the ones already
// set in the process environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if cur, _ := s.extract(*cfg).(string); cur != "" {
			continue
		}
		if v, err := kc.Get(secretService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// secretAccount maps a dotted key to its secret store account name.
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and required secrets.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, d := range []struct{ key, val string }{
		{"ai.timeout", c.AI.Timeout},
		{"auth.token_ttl", c.Auth.TokenTTL},
		{"worker.poll_interval", c.Worker.PollInterval},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("invalid config: %s: %w", d.key, err)
		}
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("missing required config: auth.jwt_secret. "+
			"Set it via environment variable DOCMIND_AUTH_JWT_SECRET%s", secretHint("auth_jwt_secret"))
	}
	if c.AI.Provider == "openai" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("missing required config: openai.api_key (ai.provider is openai). "+
			"Set it via environment variable DOCMIND_OPENAI_API_KEY%s", secretHint("openai_api_key"))
	}
	return nil
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TimeoutDuration is the per-call deadline for AI provider requests.
func (c AIConfig) TimeoutDuration() time.Duration { return mustDuration(c.Timeout, time.Minute) }

func (c AuthConfig) TTL() time.Duration { return mustDuration(c.TokenTTL, 24*time.Hour) }

func (c WorkerConfig) Poll() time.Duration {
	return mustDuration(c.PollInterval, 500*time.Millisecond)
}

// Origins splits the comma separated allow list.
func (c RealtimeConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
