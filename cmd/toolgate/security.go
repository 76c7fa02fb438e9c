package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/security/auth"
	"mercator-hq/toolgate/pkg/security/secrets"
	securitytls "mercator-hq/toolgate/pkg/security/tls"
	"mercator-hq/toolgate/pkg/telemetry/health"
)

// resolveAPIKeys turns the configured keys into auth keys, resolving
// secret references.
func resolveAPIKeys(ctx context.Context, cfg *config.AuthConfig, resolver *secrets.Resolver) ([]*auth.APIKey, error) {
	keys := make([]*auth.APIKey, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		value, err := resolver.Resolve(ctx, k.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve API key %q: %w", k.Name, err)
		}
		keys = append(keys, &auth.APIKey{
			Name:    k.Name,
			Key:     value,
			Enabled: !k.Disabled,
		})
	}
	return keys, nil
}

// newAuth returns nil, nil, nil when authentication is disabled. The
// metrics path joins the exempt paths so scrapers need no key.
func newAuth(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*auth.APIKeyValidator, *auth.APIKeyMiddleware, error) {
	if !cfg.Server.Auth.Enabled {
		return nil, nil, nil
	}

	keys, err := resolveAPIKeys(ctx, &cfg.Server.Auth, secrets.DefaultResolver())
	if err != nil {
		return nil, nil, err
	}
	validator := auth.NewAPIKeyValidator(keys)

	exempt := append([]string{}, cfg.Server.Auth.ExemptPaths...)
	if cfg.Telemetry.Metrics.Enabled {
		exempt = append(exempt, cfg.Telemetry.Metrics.Path)
	}

	mw := auth.NewAPIKeyMiddleware(validator, nil,
		auth.WithExemptPaths(exempt...),
		auth.WithLogger(logger),
	)
	return validator, mw, nil
}

// newTLS returns nil, nil, nil when TLS is disabled. The certificate
// reloader polls until ctx is done.
func newTLS(ctx context.Context, cfg *config.TLSConfig, logger *slog.Logger) (*tls.Config, *securitytls.CertificateReloader, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	reloader := securitytls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	if err := reloader.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	tlsConfig, err := cfg.SecurityConfig().ToTLSConfig(reloader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	return tlsConfig, reloader, nil
}

// certificateCheck fails once the served certificate is outside its
// validity period.
func certificateCheck(reloader *securitytls.CertificateReloader) health.CheckFunc {
	return func(ctx context.Context) error {
		return securitytls.ValidateCertificate(reloader.GetCertificate())
	}
}
