package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultReloadInterval is how often the reloader checks file mtimes.
const DefaultReloadInterval = 5 * time.Minute

// CertificateReloader serves a certificate pair from disk and swaps in a
// new one when the files change, so renewals need no restart. A renewal
// that fails to load or validate is logged and the previous pair is kept.
type CertificateReloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	cert     *tls.Certificate
	certTime time.Time
	keyTime  time.Time
}

// NewCertificateReloader creates a reloader. A non-positive interval means
// DefaultReloadInterval; a nil logger means slog.Default.
func NewCertificateReloader(certFile, keyFile string, interval time.Duration, logger *slog.Logger) *CertificateReloader {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		interval: interval,
		logger:   logger.With("component", "tls"),
	}
}

// Start loads the pair and then polls for changes until ctx is done.
func (r *CertificateReloader) Start(ctx context.Context) error {
	if err := r.reload(); err != nil {
		return err
	}
	r.logCertificateInfo()

	go r.reloadLoop(ctx)
	return nil
}

func (r *CertificateReloader) reloadLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.needsReload() {
				continue
			}
			if err := r.reload(); err != nil {
				r.logger.Error("failed to reload certificate, keeping previous",
					"error", err,
					"cert_file", r.certFile,
				)
				continue
			}
			r.logger.Info("certificate reloaded", "cert_file", r.certFile)
			r.logCertificateInfo()

		case <-ctx.Done():
			return
		}
	}
}

func (r *CertificateReloader) needsReload() bool {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.certTime) || keyInfo.ModTime().After(r.keyTime)
}

func (r *CertificateReloader) reload() error {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return err
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return err
	}

	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}
	if err := ValidateCertificate(&cert); err != nil {
		return err
	}

	r.mu.Lock()
	r.cert = &cert
	r.certTime = certInfo.ModTime()
	r.keyTime = keyInfo.ModTime()
	r.mu.Unlock()
	return nil
}

// GetCertificate returns the current certificate, or nil before Start.
func (r *CertificateReloader) GetCertificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificateFunc adapts the reloader to tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert := r.GetCertificate()
		if cert == nil {
			return nil, errors.New("no certificate loaded")
		}
		return cert, nil
	}
}

func (r *CertificateReloader) logCertificateInfo() {
	cert := r.GetCertificate()
	if cert == nil || len(cert.Certificate) == 0 {
		return
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return
	}

	days, soon := CheckCertificateExpiration(leaf)
	if soon {
		r.logger.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}
	r.logger.Info("certificate loaded",
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", days,
	)
}
