package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, "v1") {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse directly into typed Config struct. The custom UnmarshalJSON
	// methods resolve env vars immediately.
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment
// resolution. Secrets must be env refs so they never sit in config files.
func validateRawConfig(rawConfig map[string]any) error {
	if sessions, ok := rawConfig["sessions"].(map[string]any); ok {
		for _, name := range []string{"signingSecret", "encryptionKey"} {
			if err := requireEnvRef(sessions, name); err != nil {
				return err
			}
		}
		if redis, ok := sessions["redis"].(map[string]any); ok {
			if err := requireEnvRef(redis, "password"); err != nil {
				return err
			}
		}
	}

	if oauth, ok := rawConfig["oauth"].(map[string]any); ok {
		for _, providerName := range []string{"google", "facebook"} {
			if provider, ok := oauth[providerName].(map[string]any); ok {
				if err := requireEnvRef(provider, "clientSecret"); err != nil {
					return fmt.Errorf("oauth.%s: %w", providerName, err)
				}
			}
		}
	}

	return nil
}

func requireEnvRef(section map[string]any, name string) error {
	value, exists := section[name]
	if !exists {
		return nil
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("%s must use environment variable reference for security", name)
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
		}
	}
	return nil
}
