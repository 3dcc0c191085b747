package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the session store backend
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageRedis     StorageKind = "redis"
	StorageFirestore StorageKind = "firestore"
)

// ServerConfig is the HTTP listener configuration
type ServerConfig struct {
	BaseURL string `json:"baseURL"`
	Addr    string `json:"addr"`
	Name    string `json:"name,omitempty"`
}

// BackendConfig points at the review platform REST API
type BackendConfig struct {
	APIURL  string        `json:"apiUrl"`
	Timeout time.Duration `json:"-"`

	TimeoutRaw string `json:"timeout,omitempty"`
}

// RedisConfig configures the Redis session store
type RedisConfig struct {
	Addr        string          `json:"addr"`
	PasswordRaw json.RawMessage `json:"password,omitempty"`

	// Computed fields
	Password Secret `json:"-"`
}

// FirestoreConfig configures the Firestore session store
type FirestoreConfig struct {
	GCPProject string `json:"gcpProject"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// SessionsConfig configures session storage and the token lifecycle
type SessionsConfig struct {
	Storage         StorageKind   `json:"storage"`
	TTL             time.Duration `json:"-"`
	CleanupInterval time.Duration `json:"-"`

	Redis     *RedisConfig     `json:"redis,omitempty"`
	Firestore *FirestoreConfig `json:"firestore,omitempty"`

	// Computed fields
	SigningSecret Secret `json:"-"`
	EncryptionKey Secret `json:"-"`
}

// ProviderConfig holds OAuth client credentials for one identity provider
type ProviderConfig struct {
	// Computed fields
	ClientID     string `json:"-"`
	ClientSecret Secret `json:"-"`
}

// OAuthConfig groups the configured identity providers. A nil provider
// means that sign-in method is not offered.
type OAuthConfig struct {
	Google   *ProviderConfig `json:"google,omitempty"`
	Facebook *ProviderConfig `json:"facebook,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Server   ServerConfig   `json:"server"`
	Backend  BackendConfig  `json:"backend"`
	Sessions SessionsConfig `json:"sessions"`
	OAuth    OAuthConfig    `json:"oauth"`
}

// RawConfigValue represents a value that could be a plain string or an
// env ref. This is only used during parsing, not in the final config.
type RawConfigValue struct {
	value string
}

// ParseConfigValue parses a JSON value that could be a string or a
// {"$env": "VAR_NAME"} reference object. Env refs are resolved at load
// time so secrets stay out of config files.
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s not set", envVar)
		}
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return &RawConfigValue{value: value}, nil
	}

	return nil, fmt.Errorf("unknown reference type in config value")
}
