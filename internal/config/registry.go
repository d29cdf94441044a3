package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/provider"
)

//go:embed models.json
var defaultModels []byte

type modelEntry struct {
	Name        string  `mapstructure:"name"`
	ModelTag    string  `mapstructure:"model_tag"`
	InputPrice  float64 `mapstructure:"input_price"`
	OutputPrice float64 `mapstructure:"output_price"`
	TokenWindow int     `mapstructure:"token_window"`
	Reasoning   string  `mapstructure:"reasoning"`
	Dimensions  int     `mapstructure:"dimensions"`
}

type providerEntry struct {
	APIKey    string                `mapstructure:"api_key"`
	BaseURL   string                `mapstructure:"base_url"`
	Models    map[string]modelEntry `mapstructure:"models"`
	Embedders map[string]modelEntry `mapstructure:"embedders"`
}

// Registry maps model names to providers, endpoints and prices. Names are
// matched case-insensitively. Secrets are resolved on lookup, so a registry
// with unset keys still loads.
type Registry struct {
	providers map[string]providerEntry

	envOnce sync.Once
	secrets keychain
}

// LoadRegistry reads the models document at path, or the built-in registry
// when path is empty. JSON, YAML and TOML files are accepted.
func LoadRegistry(path string) (*Registry, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	if path == "" {
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(defaultModels)); err != nil {
			return nil, fmt.Errorf("parsing built-in models registry: %w", err)
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, llm.ConfigError("Failed to read models registry %s: %v", path, err)
		}
	}

	providers := make(map[string]providerEntry)
	if err := v.Unmarshal(&providers); err != nil {
		return nil, llm.ConfigError("Failed to parse models registry: %v", err)
	}
	return &Registry{providers: providers, secrets: keychainReader{}}, nil
}

// Lookup resolves a chat model by name.
func (r *Registry) Lookup(name string) (llm.ModelInfo, error) {
	info, err := r.find(name, false)
	if err != nil {
		return llm.ModelInfo{}, llm.ConfigError("Model '%s' not found", name)
	}
	return r.withKey(info)
}

// LookupEmbedder resolves an embedding model by name.
func (r *Registry) LookupEmbedder(name string) (llm.ModelInfo, error) {
	info, err := r.find(name, true)
	if err != nil {
		return llm.ModelInfo{}, llm.ConfigError("Embedder '%s' not found", name)
	}
	return r.withKey(info)
}

// Models lists every chat model sorted by provider then name. Secrets and
// env: references are left unresolved.
func (r *Registry) Models() []llm.ModelInfo {
	return r.list(false)
}

// Embedders lists the embedding models the same way.
func (r *Registry) Embedders() []llm.ModelInfo {
	return r.list(true)
}

func (r *Registry) list(embedders bool) []llm.ModelInfo {
	var out []llm.ModelInfo
	for key, p := range r.providers {
		entries := p.Models
		if embedders {
			entries = p.Embedders
		}
		for name, m := range entries {
			info, err := modelInfo(key, name, p, m)
			if err != nil {
				slog.Warn("skipping registry entry", "model", name, "error", err)
				continue
			}
			info.APIKey = ""
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Registry) find(name string, embedder bool) (llm.ModelInfo, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for key, p := range r.providers {
		entries := p.Models
		if embedder {
			entries = p.Embedders
		}
		for entryName, m := range entries {
			display := m.Name
			if display == "" {
				display = entryName
			}
			if strings.ToLower(entryName) == want || strings.ToLower(display) == want {
				return modelInfo(key, entryName, p, m)
			}
		}
	}
	return llm.ModelInfo{}, llm.ErrConfig
}

func (r *Registry) withKey(info llm.ModelInfo) (llm.ModelInfo, error) {
	key, err := r.resolveSecret(info.APIKey)
	if err != nil {
		return llm.ModelInfo{}, err
	}
	info.APIKey = key
	base, err := r.resolveSecret(info.BaseURL)
	if err != nil {
		return llm.ModelInfo{}, err
	}
	info.BaseURL = base
	return info, nil
}

// resolveSecret expands env:NAME references from the environment, loading
// .env once, and then the keychain. Other values are literal.
func (r *Registry) resolveSecret(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, "env:")
	if !ok {
		return ref, nil
	}
	r.envOnce.Do(func() { _ = godotenv.Load() })

	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	if r.secrets != nil {
		if v, err := r.secrets.Get(secretService, name); err == nil && v != "" {
			return v, nil
		}
	}
	return "", llm.ConfigError("Environment variable '%s' not found. Please set it in your .env file.", name)
}

func modelInfo(providerKey, entryName string, p providerEntry, m modelEntry) (llm.ModelInfo, error) {
	reasoning, err := llm.ParseReasoningCapability(m.Reasoning)
	if err != nil {
		return llm.ModelInfo{}, err
	}
	name := m.Name
	if name == "" {
		name = entryName
	}
	return llm.ModelInfo{
		Name:        name,
		Provider:    providerName(providerKey),
		ModelTag:    m.ModelTag,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		InputPrice:  m.InputPrice,
		OutputPrice: m.OutputPrice,
		TokenWindow: m.TokenWindow,
		Reasoning:   reasoning,
		Dimensions:  m.Dimensions,
	}, nil
}

// providerName restores the canonical spelling of a provider key that the
// loader lowercased.
func providerName(key string) string {
	for _, n := range []string{
		provider.NameOpenAI,
		provider.NameAnthropic,
		provider.NameGoogle,
		provider.NameXAI,
		provider.NameInception,
		provider.NameOllama,
		provider.NameOpenRouter,
	} {
		if strings.EqualFold(n, key) {
			return n
		}
	}
	return key
}
