package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AuthSource represents the authentication source for a user account.
// It indicates how the user authenticates (local database, LDAP, or OIDC).
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceOIDC indicates the user authenticates via OpenID Connect (OIDC).
	AuthSourceOIDC AuthSource = "oidc"
	// AuthSourceLDAP indicates the user authenticates via LDAP or Active Directory.
	AuthSourceLDAP AuthSource = "ldap"
)

// Status represents the lifecycle state of a user account. New local
// registrations start out pending and have to be approved by an
// administrator before the account can log in.
type Status string

const (
	// StatusPending indicates the account waits for administrator approval.
	StatusPending Status = "pending"
	// StatusApproved indicates the account is approved and can log in.
	StatusApproved Status = "approved"
	// StatusRejected indicates the registration was turned down.
	StatusRejected Status = "rejected"
	// StatusDisabled indicates a formerly approved account was switched off.
	StatusDisabled Status = "disabled"
)

// User represents a user account in the system.
// Users can authenticate via local database, LDAP, or OIDC.
// They are assigned roles and can belong to multiple groups for permission management.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Status is the approval state of the account (pending, approved, rejected or disabled).
	Status Status `gorm:"type:varchar(20);not null;default:'pending'"`
	// Username is the unique username for login.
	Username string `gorm:"unique;size:100;not null"`
	// Email is the user's email address. Optional for local registrations.
	Email string `gorm:"size:255"`
	// Password is the Argon2id hashed password (only used for local authentication).
	Password string `gorm:"size:255"`
	// DisplayName is the name shown in the interface, filled from SSO claims when available.
	DisplayName string `gorm:"size:150"`
	// RoleID is the ID of the role assigned to this user. Nil until an
	// administrator or a group mapping assigns one.
	RoleID *uint `gorm:"column:role_id"`
	// Role is the associated role (enforced with a foreign key constraint).
	Role *Role `gorm:"foreignKey:RoleID;references:ID;constraint:OnDelete:SET NULL,OnUpdate:CASCADE"`
	// AuthSource indicates how this user authenticates (local, oidc, or ldap).
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'"`
	// ExternalID is the external identifier for OIDC (sub claim) or LDAP (DN) users.
	ExternalID string `gorm:"size:255"`
	// SSOProvider names the identity provider an SSO account came from.
	SSOProvider string `gorm:"size:50"`
	// ApproveUserID is the administrator who approved or rejected the registration.
	ApproveUserID *uint64
	// ApproveUser is the approving administrator.
	ApproveUser *User `gorm:"foreignKey:ApproveUserID;constraint:OnDelete:SET NULL"`
	// ApprovedAt is the timestamp of the approval decision.
	ApprovedAt *time.Time
	// LastLoginAt is the timestamp of the last successful login.
	LastLoginAt *time.Time
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This function should be used when creating or updating local user passwords.
// It uses the default Argon2id parameters for secure password hashing.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
// Returns true if the password matches, false otherwise.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
