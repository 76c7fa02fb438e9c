package auth

import "errors"

// Validation errors.
var (
	ErrInvalidKey  = errors.New("invalid API key")
	ErrKeyDisabled = errors.New("API key disabled")
	ErrMissingKey  = errors.New("no API key found")
)

// APIKey is one admin credential.
type APIKey struct {
	// Name identifies the holder in logs. The key itself is never logged.
	Name string

	// Key is the secret value.
	Key string

	Enabled bool
}

// APIKeyStore stores and validates API keys.
type APIKeyStore interface {
	Validate(key string) (*APIKey, error)
	List() []string
}
