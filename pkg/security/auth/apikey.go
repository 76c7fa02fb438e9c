package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"sort"
	"sync"
)

// APIKeyValidator validates API keys against a configured set. Keys are
// indexed by SHA-256 digest and compared in constant time.
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]*APIKey
}

// NewAPIKeyValidator creates a new API key validator with the given keys.
func NewAPIKeyValidator(keys []*APIKey) *APIKeyValidator {
	v := &APIKeyValidator{}
	v.SetKeys(keys)
	return v
}

// Validate checks if the given API key is valid and returns its entry.
func (v *APIKeyValidator) Validate(key string) (*APIKey, error) {
	digest := sha256.Sum256([]byte(key))

	v.mu.RLock()
	info, ok := v.keys[digest]
	v.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare([]byte(info.Key), []byte(key)) != 1 {
		return nil, ErrInvalidKey
	}
	if !info.Enabled {
		return nil, ErrKeyDisabled
	}
	return info, nil
}

// List returns the sorted names of all configured keys.
func (v *APIKeyValidator) List() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.keys))
	for _, k := range v.keys {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// SetKeys atomically replaces the key set, e.g. after a configuration
// reload.
func (v *APIKeyValidator) SetKeys(keys []*APIKey) {
	m := make(map[[sha256.Size]byte]*APIKey, len(keys))
	for _, k := range keys {
		m[sha256.Sum256([]byte(k.Key))] = k
	}

	v.mu.Lock()
	v.keys = m
	v.mu.Unlock()
}

// Len returns the number of configured keys.
func (v *APIKeyValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
