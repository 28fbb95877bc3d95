package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Assistant AssistantConfig
	Search    SearchConfig
	Glossary  GlossaryConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type AssistantConfig struct {
	APIKey      string
	BaseURL     string
	AssistantID string
	StoreID     string
	Model       string
}

// SearchConfig maps knowledge-base domain tags to vector store IDs.
type SearchConfig struct {
	HardwareStore    string
	RegulationsStore string
	OperationsStore  string
	WeatherStore     string
}

// DomainStores returns the configured domain tag → vector store mapping,
// skipping domains with no store configured.
func (s SearchConfig) DomainStores() map[string]string {
	m := make(map[string]string)
	for tag, store := range map[string]string{
		"hardware":    s.HardwareStore,
		"regulations": s.RegulationsStore,
		"operations":  s.OperationsStore,
		"weather":     s.WeatherStore,
	} {
		if store != "" {
			m[tag] = store
		}
	}
	return m
}

type GlossaryConfig struct {
	Path string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Assistant: AssistantConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.skychat.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/skychat/config.json
// and secrets must be provided via environment variables.
//
// Environment variables (SKYCHAT_*) override backend values on all platforms.
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

	// Try platform keychain for API key if still empty.
	if cfg.Assistant.APIKey == "" {
		if key, err := kc.Get("skychat", "api_key"); err == nil && key != "" {
			cfg.Assistant.APIKey = key
		}
	}

	if cfg.Assistant.APIKey == "" {
		msg := "missing required config: assistant API key. " +
			"Set it via environment variable SKYCHAT_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from macOS Keychain via the security CLI.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
