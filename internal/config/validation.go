package config

import (
	"fmt"
	"net/url"

	"github.com/rentranks/rentranks-front/internal/log"
)

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if _, err := url.Parse(config.Server.BaseURL); err != nil {
		return fmt.Errorf("server.baseURL is not a valid URL: %w", err)
	}
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if config.Backend.APIURL == "" {
		return fmt.Errorf("backend.apiUrl is required")
	}
	u, err := url.Parse(config.Backend.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.apiUrl is not a valid URL: %s", config.Backend.APIURL)
	}

	if err := validateSessions(&config.Sessions); err != nil {
		return fmt.Errorf("sessions config: %w", err)
	}

	if err := validateOAuth(&config.OAuth); err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}

	return nil
}

func validateSessions(sessions *SessionsConfig) error {
	switch sessions.Storage {
	case StorageMemory, "":
	case StorageRedis:
		if sessions.Redis == nil || sessions.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when using redis storage")
		}
	case StorageFirestore:
		if sessions.Firestore == nil || sessions.Firestore.GCPProject == "" {
			return fmt.Errorf("firestore.gcpProject is required when using firestore storage")
		}
		if len(sessions.EncryptionKey) != 32 {
			return fmt.Errorf("encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(sessions.EncryptionKey))
		}
	default:
		return fmt.Errorf("invalid storage kind: %s", sessions.Storage)
	}

	if len(sessions.SigningSecret) < 32 {
		return fmt.Errorf("signingSecret must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(sessions.SigningSecret))
	}

	if sessions.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}
	if sessions.CleanupInterval < 0 {
		return fmt.Errorf("cleanupInterval cannot be negative")
	}
	if sessions.TTL > 0 && sessions.CleanupInterval > sessions.TTL {
		log.LogWarn("Session cleanup interval is greater than session ttl")
	}

	return nil
}

func validateOAuth(oauth *OAuthConfig) error {
	providers := map[string]*ProviderConfig{
		"google":   oauth.Google,
		"facebook": oauth.Facebook,
	}
	for name, p := range providers {
		if p == nil {
			continue
		}
		if p.ClientID == "" {
			return fmt.Errorf("%s: clientId is required", name)
		}
		if p.ClientSecret == "" {
			return fmt.Errorf("%s: clientSecret is required", name)
		}
	}
	return nil
}
