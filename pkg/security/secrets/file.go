package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider loads secrets from files, Kubernetes secret-mount style.
// Files must be regular files with mode 0600 or 0400.
//
// With a BasePath the secret name is a file name inside it and paths that
// escape the directory are rejected. Without one the name is the path.
type FileProvider struct {
	BasePath string
}

// NewFileProvider creates a new file-based secret provider.
func NewFileProvider(basePath string) *FileProvider {
	return &FileProvider{BasePath: basePath}
}

// GetSecret reads a secret file and trims surrounding whitespace.
func (p *FileProvider) GetSecret(ctx context.Context, name string) (string, error) {
	path, err := p.resolve(name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", path)
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
	}

	// #nosec G304 - path is confined to BasePath when one is set
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret file is empty: %s", path)
	}
	return value, nil
}

// Provider returns "file".
func (p *FileProvider) Provider() string {
	return "file"
}

func (p *FileProvider) resolve(name string) (string, error) {
	if p.BasePath == "" {
		return filepath.Clean(name), nil
	}

	absBase, err := filepath.Abs(p.BasePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(p.BasePath, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret path: directory traversal detected")
	}
	return absPath, nil
}
