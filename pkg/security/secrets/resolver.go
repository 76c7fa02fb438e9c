package secrets

import (
	"context"
	"fmt"
	"strings"
)

// Resolver turns configuration values into secrets. A value of the form
// "<provider>:<name>" is looked up in the named provider; anything else is
// returned as is.
//
//	key: env:TOOLGATE_ADMIN_KEY
//	key: file:/run/secrets/toolgate-admin
type Resolver struct {
	providers map[string]SecretProvider
}

// NewResolver creates a resolver over the given providers. A later provider
// with the same name replaces an earlier one.
func NewResolver(providers ...SecretProvider) *Resolver {
	r := &Resolver{providers: make(map[string]SecretProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Provider()] = p
	}
	return r
}

// DefaultResolver resolves "env:" against unprefixed environment variables
// and "file:" against absolute or working-directory-relative paths.
func DefaultResolver() *Resolver {
	return NewResolver(NewEnvProvider(""), NewFileProvider(""))
}

// IsReference reports whether value names a provider known to r.
func (r *Resolver) IsReference(value string) bool {
	_, _, ok := r.split(value)
	return ok
}

// Resolve returns the secret value references point to, or value itself.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	provider, name, ok := r.split(value)
	if !ok {
		return value, nil
	}
	if name == "" {
		return "", fmt.Errorf("empty %s secret reference", provider.Provider())
	}
	return provider.GetSecret(ctx, name)
}

func (r *Resolver) split(value string) (SecretProvider, string, bool) {
	prefix, name, found := strings.Cut(value, ":")
	if !found {
		return nil, "", false
	}
	provider, ok := r.providers[prefix]
	if !ok {
		return nil, "", false
	}
	return provider, name, true
}
