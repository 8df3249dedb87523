package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/uniuri"
)

// ErrOIDCDisabled is returned when OIDC is disabled via configuration.
var ErrOIDCDisabled = errors.New("oidc authentication is disabled")

// OIDCConfig holds OpenID Connect (OIDC) configuration for authentication.
type OIDCConfig struct {
	// Enabled indicates if OIDC authentication is enabled.
	Enabled bool
	// ProviderName is the display name recorded on accounts created through
	// this provider (e.g., "keycloak", "azure"). Defaults to "oidc".
	ProviderName string
	// ProviderURL is the OIDC provider's discovery URL (e.g., "https://accounts.google.com").
	ProviderURL string
	// ClientID is the OAuth2 client identifier.
	ClientID string
	// ClientSecret is the OAuth2 client secret.
	ClientSecret string
	// RedirectURL is the OAuth2 callback URL where the provider redirects after authentication.
	RedirectURL string
	// Scopes are the OAuth2 scopes to request (default: ["openid", "profile", "email"]).
	Scopes []string
	// GroupsClaim is the ID token claim name containing user groups (e.g., "groups", "roles").
	GroupsClaim string
	// PostLoginURL is where the browser is sent after a successful callback.
	PostLoginURL string
}

// OIDCProvider handles OIDC authentication.
type OIDCProvider struct {
	config   *OIDCConfig
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
	db       *gorm.DB
}

// NewOIDCProvider creates a new OIDC provider.
func NewOIDCProvider(ctx context.Context, config *OIDCConfig, db *gorm.DB) (*OIDCProvider, error) {
	if !config.Enabled {
		return nil, ErrOIDCDisabled
	}

	provider, err := oidc.NewProvider(ctx, config.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: config.ClientID,
	})

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	if config.ProviderName == "" {
		config.ProviderName = "oidc"
	}

	oauth2Config := oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	return &OIDCProvider{
		config:   config,
		provider: provider,
		verifier: verifier,
		oauth2:   oauth2Config,
		db:       db,
	}, nil
}

// StateTokenLen is the length of the state tokens minted for the OIDC
// authorization redirect, twice the uniuri default.
const StateTokenLen = 2 * uniuri.StdLen

// GenerateStateToken generates a random state token for CSRF protection.
func GenerateStateToken() string {
	return uniuri.NewLen(StateTokenLen)
}

// GetAuthURL returns the OIDC authorization URL with state token.
func (p *OIDCProvider) GetAuthURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// PostLoginURL returns the configured post-login redirect target, or "/" if unset.
func (p *OIDCProvider) PostLoginURL() string {
	if p.config.PostLoginURL == "" {
		return "/"
	}

	return p.config.PostLoginURL
}

// HandleCallback handles the OIDC callback and returns the authenticated user,
// their provider groups and the raw ID token. The raw token is kept in the
// session so logout can pass it as the id_token_hint.
func (p *OIDCProvider) HandleCallback(ctx context.Context, code string) (*models.User, []string, string, error) {
	// Exchange code for token
	oauth2Token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to exchange token: %w", err)
	}

	// Extract ID token
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, nil, "", ErrNoIDToken
	}

	// Verify ID token
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to verify ID token: %w", err)
	}

	// Extract claims
	var claims oidcClaims
	if err = idToken.Claims(&claims); err != nil {
		return nil, nil, "", fmt.Errorf("failed to parse claims: %w", err)
	}

	// Resolve groups via helper to keep this function's complexity low
	groups := p.groupsFromToken(idToken, claims.Groups)

	user, err := p.upsertOIDCUser(&claims)
	if err != nil {
		return nil, nil, "", err
	}

	return user, groups, rawIDToken, nil
}

// oidcClaims are the ID token claims the application consumes.
type oidcClaims struct {
	Sub               string   `json:"sub"`
	Email             string   `json:"email"`
	EmailVerified     bool     `json:"email_verified"`
	Name              string   `json:"name"`
	PreferredUsername string   `json:"preferred_username"`
	Groups            []string `json:"groups"` // This might be under a different claim
}

// upsertOIDCUser creates or updates a user record from verified ID token claims.
// Accounts created here are approved right away and skip the registration
// review queue, the identity provider already vouched for them.
func (p *OIDCProvider) upsertOIDCUser(claims *oidcClaims) (*models.User, error) {
	var user models.User

	err := p.db.Where("external_id = ? AND auth_source = ?", claims.Sub, models.AuthSourceOIDC).
		First(&user).Error

	now := time.Now()

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Email
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Create new user
		user = models.User{
			Status:      models.StatusApproved,
			Username:    username,
			Email:       claims.Email,
			DisplayName: claims.Name,
			RoleID:      defaultRoleID(p.db),
			AuthSource:  models.AuthSourceOIDC,
			ExternalID:  claims.Sub,
			SSOProvider: p.config.ProviderName,
			LastLoginAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err = p.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to query user: %w", err)
	default:
		// Update existing user with fresh provider data
		user.Email = claims.Email
		user.DisplayName = claims.Name
		user.LastLoginAt = &now
		user.UpdatedAt = now

		if err = p.db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	return &user, nil
}

// groupsFromToken determines the user's groups using the configured claim.
// It defaults to the provided defaultGroups and overrides them if a custom claim is set and present.
func (p *OIDCProvider) groupsFromToken(idToken *oidc.IDToken, defaultGroups []string) []string {
	gc := p.config.GroupsClaim
	if gc == "" || gc == "groups" {
		return defaultGroups
	}

	var allClaims map[string]interface{}
	if err := idToken.Claims(&allClaims); err != nil {
		return defaultGroups
	}

	v, ok := allClaims[gc]
	if !ok {
		return defaultGroups
	}

	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		tmp := make([]string, 0, len(vv))
		for _, g := range vv {
			if s, ok := g.(string); ok {
				tmp = append(tmp, s)
			}
		}

		return tmp
	default:
		return defaultGroups
	}
}

// GetLogoutURL constructs the OIDC provider's logout URL if supported.
// It includes the ID token hint and post-logout redirect URI parameters.
// Returns an empty string if the provider doesn't support logout endpoints.
func (p *OIDCProvider) GetLogoutURL(idToken, postLogoutRedirectURI string) string {
	// Check if provider supports end_session_endpoint
	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}

	if err := p.provider.Claims(&claims); err != nil || claims.EndSessionEndpoint == "" {
		// Provider doesn't support logout endpoint
		return ""
	}

	// Build logout URL
	logoutURL := fmt.Sprintf("%s?id_token_hint=%s&post_logout_redirect_uri=%s",
		claims.EndSessionEndpoint,
		idToken,
		postLogoutRedirectURI,
	)

	return logoutURL
}
