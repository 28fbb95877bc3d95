package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
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
		key: "server.port", typ: kInt, env: "SKYCHAT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "SKYCHAT_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "assistant.api_key", typ: kString, env: "SKYCHAT_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Assistant.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.APIKey },
	},
	{
		key: "assistant.base_url", typ: kString, env: "SKYCHAT_ASSISTANT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Assistant.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.BaseURL },
	},
	{
		key: "assistant.id", typ: kString, env: "SKYCHAT_ASSISTANT_ID",
		apply:   func(cfg *Config, v any) { cfg.Assistant.AssistantID = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.AssistantID },
	},
	{
		key: "assistant.store_id", typ: kString, env: "SKYCHAT_STORE_ID",
		apply:   func(cfg *Config, v any) { cfg.Assistant.StoreID = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.StoreID },
	},
	{
		key: "assistant.model", typ: kString, env: "SKYCHAT_ASSISTANT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.Model },
	},
	{
		key: "search.hardware_store", typ: kString, env: "SKYCHAT_SEARCH_HARDWARE_STORE",
		apply:   func(cfg *Config, v any) { cfg.Search.HardwareStore = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.HardwareStore },
	},
	{
		key: "search.regulations_store", typ: kString, env: "SKYCHAT_SEARCH_REGULATIONS_STORE",
		apply:   func(cfg *Config, v any) { cfg.Search.RegulationsStore = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.RegulationsStore },
	},
	{
		key: "search.operations_store", typ: kString, env: "SKYCHAT_SEARCH_OPERATIONS_STORE",
		apply:   func(cfg *Config, v any) { cfg.Search.OperationsStore = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.OperationsStore },
	},
	{
		key: "search.weather_store", typ: kString, env: "SKYCHAT_SEARCH_WEATHER_STORE",
		apply:   func(cfg *Config, v any) { cfg.Search.WeatherStore = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.WeatherStore },
	},
	{
		key: "glossary.path", typ: kString, env: "SKYCHAT_GLOSSARY_PATH",
		apply:   func(cfg *Config, v any) { cfg.Glossary.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Glossary.Path },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SKYCHAT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "SKYCHAT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
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
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
