package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config describes TLS for the admin server. Setting ClientCAFile turns on
// mutual TLS.
type Config struct {
	Enabled bool

	// CertFile and KeyFile are PEM-encoded.
	CertFile string
	KeyFile  string

	// MinVersion is "1.2" or "1.3". Empty means "1.3".
	MinVersion string

	// CipherSuites restricts TLS 1.2 suites. Empty uses Go's defaults.
	CipherSuites []string

	// ClientCAFile verifies client certificates when set.
	ClientCAFile string

	// ClientAuth is "require", "request" or "verify_if_given".
	// Empty means "require".
	ClientAuth string
}

// ToTLSConfig builds a server tls.Config, or returns nil when TLS is
// disabled. With a started reloader the certificate is served through
// GetCertificate so renewed files are picked up without a restart;
// otherwise the pair is loaded once.
func (c *Config) ToTLSConfig(reloader *CertificateReloader) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	minVersion, _ := ParseMinVersion(c.MinVersion)
	suites, _ := ParseCipherSuites(c.CipherSuites)

	// #nosec G402 - MinVersion is validated; TLS 1.0 and 1.1 are rejected
	tlsConfig := &tls.Config{
		MinVersion:   minVersion,
		CipherSuites: suites,
	}

	if reloader != nil {
		tlsConfig.GetCertificate = reloader.GetCertificateFunc()
	} else {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate: %w", err)
		}
		if err := ValidateCertificate(&cert); err != nil {
			return nil, fmt.Errorf("certificate validation failed: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if c.ClientCAFile != "" {
		pool, err := loadCertPool(c.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to configure mTLS: %w", err)
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth, _ = ParseClientAuth(c.ClientAuth)
	}

	return tlsConfig, nil
}

// Validate checks the settings without touching the filesystem.
func (c *Config) Validate() error {
	if c.CertFile == "" {
		return fmt.Errorf("cert_file is required when TLS is enabled")
	}
	if c.KeyFile == "" {
		return fmt.Errorf("key_file is required when TLS is enabled")
	}
	if _, err := ParseMinVersion(c.MinVersion); err != nil {
		return err
	}
	if _, err := ParseCipherSuites(c.CipherSuites); err != nil {
		return err
	}
	if _, err := ParseClientAuth(c.ClientAuth); err != nil {
		return err
	}
	return nil
}

// ParseMinVersion maps "1.2" and "1.3" to their tls constants. Empty means
// TLS 1.3.
func ParseMinVersion(v string) (uint16, error) {
	switch v {
	case "1.3", "":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q: must be '1.2' or '1.3'", v)
	}
}

// ParseCipherSuites maps suite names to IDs. Only AEAD suites with forward
// secrecy are accepted.
func ParseCipherSuites(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}

	suites := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := cipherSuiteMap[name]
		if !ok {
			return nil, fmt.Errorf("unsupported cipher suite %q", name)
		}
		suites = append(suites, id)
	}
	return suites, nil
}

// ParseClientAuth maps a client auth mode to its tls constant. Empty means
// require.
func ParseClientAuth(mode string) (tls.ClientAuthType, error) {
	switch mode {
	case "require", "":
		return tls.RequireAndVerifyClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "verify_if_given":
		return tls.VerifyClientCertIfGiven, nil
	default:
		return 0, fmt.Errorf("invalid client auth %q: must be 'require', 'request', or 'verify_if_given'", mode)
	}
}

var cipherSuiteMap = map[string]uint16{
	// TLS 1.3 suites are always enabled; listing them is accepted.
	"TLS_AES_128_GCM_SHA256":       tls.TLS_AES_128_GCM_SHA256,
	"TLS_AES_256_GCM_SHA384":       tls.TLS_AES_256_GCM_SHA384,
	"TLS_CHACHA20_POLY1305_SHA256": tls.TLS_CHACHA20_POLY1305_SHA256,

	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

func loadCertPool(path string) (*x509.CertPool, error) {
	// #nosec G304 - operator-supplied CA path
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
