package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider loads secrets from environment variables.
//
// Secret names are upper-cased with hyphens replaced by underscores, then
// prefixed:
//   - Secret name: "admin-key"
//   - Env var name: "TOOLGATE_SECRET_ADMIN_KEY" (with prefix "TOOLGATE_SECRET_")
//
// A name that is already an environment variable name is used unchanged.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates a new environment variable secret provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret retrieves a secret from an environment variable. An empty
// variable counts as unset.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	envVar := p.envVarName(name)

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("%w in environment: %s (env var: %s)", ErrNotFound, name, envVar)
	}
	return value, nil
}

// Provider returns "env".
func (p *EnvProvider) Provider() string {
	return "env"
}

func (p *EnvProvider) envVarName(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
