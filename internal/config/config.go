package config

import (
	"strings"
	"time"

	"github.com/kalambet/llmcore/internal/transport"
)

// secretService is the keychain service holding llmcore secrets.
const secretService = "llmcore"

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Models  ModelsConfig
	Engine  EngineConfig
	Ollama  OllamaConfig
}

type ServerConfig struct {
	Port     int
	MCPPort  int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// ModelsConfig points at the model registry. An empty Registry selects the
// built-in one.
type ModelsConfig struct {
	Registry string
}

type EngineConfig struct {
	DefaultModel string
	Temperature  float64
	MaxRetries   int
	BaseDelayMS  int
	Jitter       bool
	SwarmSize    int
	Timeout      string
}

type OllamaConfig struct {
	BaseURL string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			DefaultModel: "GPT 4o MINI",
			Temperature:  0.7,
			MaxRetries:   3,
			BaseDelayMS:  200,
			Jitter:       true,
			SwarmSize:    4,
			Timeout:      "30s",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
	}
}

// RetryPolicy converts the engine settings to a transport policy.
func (e EngineConfig) RetryPolicy() transport.RetryPolicy {
	p := transport.RetryPolicy{
		MaxRetries: e.MaxRetries,
		BaseDelay:  time.Duration(e.BaseDelayMS) * time.Millisecond,
	}
	if e.Jitter {
		p.Jitter = transport.JitterFull
	}
	return p
}

// AttemptTimeout parses Timeout, returning 0 when it is empty or invalid.
func (e EngineConfig) AttemptTimeout() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.llmcore.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/llmcore/config.json
// and secrets fall back to $XDG_DATA_HOME/llmcore/secrets.json.
//
// Environment variables (LLMCORE_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// The API token is optional; the keychain is only a fallback.
	if cfg.Server.APIToken == "" {
		if tok, err := kc.Get(secretService, "api_token"); err == nil && tok != "" {
			cfg.Server.APIToken = tok
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainLookup(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// StoreSecret saves a secret under the llmcore keychain service. Registry
// references of the form env:NAME fall back to the secret stored as NAME.
func StoreSecret(account, value string) error {
	return keychainStore(secretService, account, value)
}
