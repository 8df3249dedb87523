// Package uniuri generates cryptographically secure random strings suitable
// for use as unique identifiers and single-use tokens, with configurable
// length and character set. The sign-on flow mints its OIDC state tokens
// here.
package uniuri
