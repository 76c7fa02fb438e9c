/*
Package security groups the admin API's transport and access controls.

  - tls: TLS and mTLS for the admin server, with certificate hot reload.
  - auth: API key authentication middleware.
  - secrets: resolution of "env:" and "file:" references so keys stay out
    of the configuration file.

The limiter itself has no notion of identity; these packages only guard
who may call the admin API.
*/
package security
