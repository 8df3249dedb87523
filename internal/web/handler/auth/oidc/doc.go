// Package oidc provides the single sign-on handlers of the OpenID Connect
// (OIDC) authentication flow.
//
// It implements login initiation with CSRF protection via single use state
// tokens, the authorization callback with ID token verification and user
// provisioning, group synchronization from provider claims, and logout with
// provider end session support. Accounts provisioned here are approved right
// away, the identity provider already vouched for them.
//
// The handlers register only when OIDC is enabled in the configuration:
//
//	// GET  /auth/sso/login    - redirect to the identity provider
//	// GET  /auth/sso/callback - handle the provider callback
//	// GET  /auth/sso/logout   - end the session, and the provider session when supported
package oidc
