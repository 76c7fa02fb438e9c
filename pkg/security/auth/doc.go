/*
Package auth provides API key authentication for the toolgate admin API.

The admin API can reset sessions and read the violation journal, so it is
usually exposed only behind a key:

	validator := auth.NewAPIKeyValidator([]*auth.APIKey{
		{Name: "ops", Key: opsKey, Enabled: true},
	})

	authn := auth.NewAPIKeyMiddleware(validator, nil,
		auth.WithExemptPaths("/health", "/version"),
	)
	handler = authn.Handle(handler)

Keys are read from "Authorization: Bearer <key>" or "X-API-Key: <key>" by
default. Rejections answer 401 with the standard JSON error body.

Inside a handler the authenticated key is available from the context:

	if key, ok := auth.GetAPIKey(r.Context()); ok {
		logger.Info("admin call", "key_name", key.Name)
	}

SetKeys swaps the key set atomically, so rotated keys take effect on the
next configuration reload without a restart.
*/
package auth
