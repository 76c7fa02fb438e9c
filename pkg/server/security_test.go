package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/csv"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/security/auth"
)

// selfSignedCert returns a localhost certificate and a pool that trusts it.
func selfSignedCert(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

func TestServer_TLS(t *testing.T) {
	manager, err := limits.NewManager(limits.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer manager.Close()

	cert, pool := selfSignedCert(t)

	cfg := config.Default().Server
	cfg.ListenAddress = "127.0.0.1:0"
	srv := New(&cfg, Options{
		Manager: manager,
		TLS:     &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == nil {
		t.Fatal("Server did not start")
	}

	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}},
		Timeout:   5 * time.Second,
	}
	resp, err := client.Get("https://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health over TLS failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.TLS == nil || resp.TLS.Version != tls.VersionTLS13 {
		t.Error("Expected a TLS 1.3 connection")
	}

	plain := &http.Client{Timeout: 2 * time.Second}
	if resp, err := plain.Get("http://" + srv.Addr().String() + "/health"); err == nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			t.Error("Expected plain HTTP to be refused")
		}
	}
}

func TestServer_Auth(t *testing.T) {
	manager, err := limits.NewManager(limits.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer manager.Close()

	validator := auth.NewAPIKeyValidator([]*auth.APIKey{
		{Name: "ops", Key: "0123456789abcdef-ops", Enabled: true},
	})
	handler := New(&config.Default().Server, Options{
		Manager: manager,
		Auth:    auth.NewAPIKeyMiddleware(validator, nil, auth.WithExemptPaths("/health")),
	}).Handler()

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing key", "/v1/stats", "", http.StatusUnauthorized},
		{"wrong key", "/v1/stats", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "/v1/stats", "Bearer 0123456789abcdef-ops", http.StatusOK},
		{"exempt path", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("X-Request-ID") == "" {
				t.Error("Expected rejected requests to keep a request ID")
			}
		})
	}
}

func TestServer_ExportViolations(t *testing.T) {
	env := newTestEnv(t)

	body := `{"session_id":"s1","tool_name":"nl_query"}`
	for i := 0; i < 7; i++ {
		env.do(t, http.MethodPost, "/v1/check", body)
	}

	w := env.do(t, http.MethodGet, "/v1/violations/export?format=csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Expected CSV content type, got %q", w.Header().Get("Content-Type"))
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".csv") {
		t.Errorf("Expected csv attachment, got %q", cd)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("Expected header and 2 rows, got %d", len(rows))
	}

	w = env.do(t, http.MethodGet, "/v1/violations/export", "")
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON by default, got %q", w.Header().Get("Content-Type"))
	}

	if w := env.do(t, http.MethodGet, "/v1/violations/export?format=xml", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", w.Code)
	}
}
