/*
Package tls provides TLS and mTLS for the toolgate admin server.

	cfg := &tls.Config{
		Enabled:    true,
		CertFile:   "/etc/toolgate/tls/server.crt",
		KeyFile:    "/etc/toolgate/tls/server.key",
		MinVersion: "1.3",
	}

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, 5*time.Minute, logger)
	if err := reloader.Start(ctx); err != nil {
		return err
	}

	tlsConfig, err := cfg.ToTLSConfig(reloader)

# Mutual TLS

Setting ClientCAFile makes the server verify client certificates against
that CA bundle. ClientAuth chooses whether a certificate is required
("require"), verified only when sent ("verify_if_given"), or merely
requested ("request").

# Certificate Reload

CertificateReloader polls the certificate and key modification times and
swaps in the new pair when either changes. A pair that fails to load or
has expired is rejected and the previous certificate keeps serving.
*/
package tls
