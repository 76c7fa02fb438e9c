/*
Package secrets resolves secret references in toolgate configuration.

Admin API keys should not live in the configuration file. Instead the file
names where to find them:

	server:
	  auth:
	    enabled: true
	    keys:
	      - name: ops
	        key: env:TOOLGATE_OPS_KEY
	      - name: ci
	        key: file:/run/secrets/toolgate-ci

"env:" reads an environment variable and "file:" reads a file that must
be mode 0600 or 0400. Any other value is taken literally.

	resolver := secrets.DefaultResolver()
	key, err := resolver.Resolve(ctx, cfgKey.Key)

Values are read on every call, so a configuration reload picks up rotated
secrets.
*/
package secrets
