package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a provider has no value for a secret.
var ErrNotFound = errors.New("secret not found")

// SecretProvider retrieves secrets from a backend.
type SecretProvider interface {
	// GetSecret retrieves a secret by name.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the provider name, which is also the reference
	// prefix it answers to ("env", "file").
	Provider() string
}
