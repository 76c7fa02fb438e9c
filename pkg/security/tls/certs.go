package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"
)

// ExpiryWarningWindow is how close to expiry a certificate draws a warning.
const ExpiryWarningWindow = 30 * 24 * time.Hour

// ValidateCertificate checks that the leaf of cert is currently valid.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	return ValidateX509Certificate(leaf)
}

// ValidateX509Certificate checks the validity period of cert.
func ValidateX509Certificate(cert *x509.Certificate) error {
	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// CheckCertificateExpiration returns the whole days left on cert and
// whether that is inside ExpiryWarningWindow.
func CheckCertificateExpiration(cert *x509.Certificate) (daysUntilExpiry int, expiringSoon bool) {
	remaining := time.Until(cert.NotAfter)
	return int(remaining.Hours() / 24), remaining < ExpiryWarningWindow
}

// ValidateCertificateChain verifies cert as a server certificate against
// the CAs in caFile.
func ValidateCertificateChain(cert *x509.Certificate, caFile string) error {
	pool, err := loadCertPool(caFile)
	if err != nil {
		return err
	}
	opts := x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate chain validation failed: %w", err)
	}
	return nil
}

// LoadCertificateFile parses the first PEM certificate in path.
func LoadCertificateFile(path string) (*x509.Certificate, error) {
	// #nosec G304 - operator-supplied certificate path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("failed to parse certificate PEM in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// CertificateInfo is the human-readable summary of a certificate.
type CertificateInfo struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	DNSNames     []string  `json:"dns_names,omitempty"`
	IPAddresses  []string  `json:"ip_addresses,omitempty"`
}

// ExtractCertificateInfo summarizes cert.
func ExtractCertificateInfo(cert *x509.Certificate) *CertificateInfo {
	info := &CertificateInfo{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		SerialNumber: fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		DNSNames:     cert.DNSNames,
	}
	for _, ip := range cert.IPAddresses {
		info.IPAddresses = append(info.IPAddresses, ip.String())
	}
	return info
}
