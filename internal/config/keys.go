package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LLMCORE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "LLMCORE_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.api_token", typ: kString, env: "LLMCORE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LLMCORE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "LLMCORE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "models.registry", typ: kString, env: "LLMCORE_MODELS_REGISTRY",
		apply:   func(cfg *Config, v any) { cfg.Models.Registry = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Registry },
	},
	{
		key: "engine.default_model", typ: kString, env: "LLMCORE_ENGINE_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Engine.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.DefaultModel },
	},
	{
		key: "engine.temperature", typ: kFloat, env: "LLMCORE_ENGINE_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Engine.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engine.Temperature },
	},
	{
		key: "engine.max_retries", typ: kInt, env: "LLMCORE_ENGINE_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Engine.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.MaxRetries },
	},
	{
		key: "engine.base_delay_ms", typ: kInt, env: "LLMCORE_ENGINE_BASE_DELAY_MS",
		apply:   func(cfg *Config, v any) { cfg.Engine.BaseDelayMS = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.BaseDelayMS },
	},
	{
		key: "engine.jitter", typ: kBool, env: "LLMCORE_ENGINE_JITTER",
		apply:   func(cfg *Config, v any) { cfg.Engine.Jitter = v.(bool) },
		extract: func(cfg Config) any { return cfg.Engine.Jitter },
	},
	{
		key: "engine.swarm_size", typ: kInt, env: "LLMCORE_ENGINE_SWARM_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Engine.SwarmSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.SwarmSize },
	},
	{
		key: "engine.timeout", typ: kString, env: "LLMCORE_ENGINE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Engine.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Timeout },
	},
	{
		key: "ollama.base_url", typ: kString, env: "LLMCORE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
}

// applyBackend copies stored values onto cfg. A value of the wrong type is
// skipped with a warning; a backend that cannot be read is an error.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Lookup(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		v, err := coerce(s.typ, raw)
		if err != nil {
			slog.Warn("ignoring invalid config value", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

// coerce converts a stored value to typ. JSON files yield float64 for every
// number and UserDefaults yields strings, so both are accepted.
func coerce(typ keyType, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return parseValue(typ, v)
	case int:
		switch typ {
		case kInt:
			return v, nil
		case kFloat:
			return float64(v), nil
		}
	case float64:
		switch typ {
		case kFloat:
			return v, nil
		case kInt:
			if v != math.Trunc(v) || v < math.MinInt || v > math.MaxInt {
				return nil, fmt.Errorf("%v is not an integer", v)
			}
			return int(v), nil
		}
	case bool:
		if typ == kBool {
			return v, nil
		}
	}
	if typ == kString {
		return fmt.Sprint(raw), nil
	}
	return nil, fmt.Errorf("unexpected %T value", raw)
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			slog.Warn("ignoring invalid environment override", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}

func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}
