package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for BackendConfig
func (b *BackendConfig) UnmarshalJSON(data []byte) error {
	type rawBackend struct {
		APIURL     string `json:"apiUrl"`
		TimeoutRaw string `json:"timeout,omitempty"`
	}

	var raw rawBackend
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.APIURL = raw.APIURL
	b.TimeoutRaw = raw.TimeoutRaw

	if raw.TimeoutRaw != "" {
		timeout, err := time.ParseDuration(raw.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend timeout: %w", err)
		}
		b.Timeout = timeout
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for RedisConfig
func (r *RedisConfig) UnmarshalJSON(data []byte) error {
	type rawRedis struct {
		Addr     string          `json:"addr"`
		Password json.RawMessage `json:"password,omitempty"`
	}

	var raw rawRedis
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Addr = raw.Addr
	r.PasswordRaw = raw.Password

	if raw.Password != nil {
		parsed, err := ParseConfigValue(raw.Password)
		if err != nil {
			return fmt.Errorf("parsing redis password: %w", err)
		}
		r.Password = Secret(parsed.value)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionsConfig
func (s *SessionsConfig) UnmarshalJSON(data []byte) error {
	type rawSessions struct {
		Storage         StorageKind      `json:"storage"`
		TTL             string           `json:"ttl,omitempty"`
		CleanupInterval string           `json:"cleanupInterval,omitempty"`
		SigningSecret   json.RawMessage  `json:"signingSecret"`
		EncryptionKey   json.RawMessage  `json:"encryptionKey,omitempty"`
		Redis           *RedisConfig     `json:"redis,omitempty"`
		Firestore       *FirestoreConfig `json:"firestore,omitempty"`
	}

	var raw rawSessions
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Storage = raw.Storage
	s.Redis = raw.Redis
	s.Firestore = raw.Firestore

	if raw.TTL != "" {
		ttl, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("parsing sessions ttl: %w", err)
		}
		s.TTL = ttl
	}

	if raw.CleanupInterval != "" {
		interval, err := time.ParseDuration(raw.CleanupInterval)
		if err != nil {
			return fmt.Errorf("parsing sessions cleanupInterval: %w", err)
		}
		s.CleanupInterval = interval
	}

	if raw.SigningSecret != nil {
		parsed, err := ParseConfigValue(raw.SigningSecret)
		if err != nil {
			return fmt.Errorf("parsing signingSecret: %w", err)
		}
		s.SigningSecret = Secret(parsed.value)
	}

	if raw.EncryptionKey != nil {
		parsed, err := ParseConfigValue(raw.EncryptionKey)
		if err != nil {
			return fmt.Errorf("parsing encryptionKey: %w", err)
		}
		s.EncryptionKey = Secret(parsed.value)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.ClientID != nil {
		parsed, err := ParseConfigValue(raw.ClientID)
		if err != nil {
			return fmt.Errorf("parsing clientId: %w", err)
		}
		p.ClientID = parsed.value
	}

	if raw.ClientSecret != nil {
		parsed, err := ParseConfigValue(raw.ClientSecret)
		if err != nil {
			return fmt.Errorf("parsing clientSecret: %w", err)
		}
		p.ClientSecret = Secret(parsed.value)
	}

	return nil
}
