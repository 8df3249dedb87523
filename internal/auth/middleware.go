package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/slidetrans/slidetrans/internal/web/session"
)

// unauthorized is the JSON body for requests without a valid session.
func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "authentication required",
	})
}

// forbidden is the JSON body for authenticated requests lacking a permission.
func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"success": false,
		"message": "permission denied",
	})
}

// internalError is the JSON body for permission checks that failed outright.
func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "internal server error",
	})
}

// RequirePermission creates Fiber middleware that requires a specific permission.
func RequirePermission(authService *Service, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get session cookie
		sessionID := c.Cookies("session")
		if sessionID == "" {
			log.Debug().Str("path", c.Path()).Msg("No session cookie found")
			return unauthorized(c)
		}

		// Read session data
		sessionData := new(session.Data)
		if err := sessionData.Read(sessionID); err != nil {
			log.Debug().Err(err).Msg("Failed to read session")
			return unauthorized(c)
		}

		// Check if the session is valid
		if sessionData.User.ID == 0 {
			log.Debug().Msg("Invalid session data")
			return unauthorized(c)
		}

		// Check if the user has permission
		hasPermission, err := authService.HasPermission(sessionData.User.ID, permission)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", sessionData.User.ID).Str("permission", permission).
				Msg("Failed to check permission")

			return internalError(c)
		}

		if !hasPermission {
			log.Warn().Uint64("user_id", sessionData.User.ID).Str("permission", permission).
				Msg("User lacks required permission")

			return forbidden(c)
		}

		// User has permission, proceed
		return c.Next()
	}
}

// RequireAnyPermission creates Fiber middleware that requires at least one of the given permissions.
func RequireAnyPermission(authService *Service, permissions ...string) fiber.Handler { //nolint:dupl // ok for now
	return func(c *fiber.Ctx) error {
		// Get session cookie
		sessionID := c.Cookies("session")
		if sessionID == "" {
			return unauthorized(c)
		}

		// Read session data
		sessionData := new(session.Data)
		if err := sessionData.Read(sessionID); err != nil {
			return unauthorized(c)
		}

		if sessionData.User.ID == 0 {
			return unauthorized(c)
		}

		// Check if user has any of the permissions
		hasPermission, err := authService.HasAnyPermission(sessionData.User.ID, permissions)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", sessionData.User.ID).Strs("permissions", permissions).
				Msg("Failed to check permissions")

			return internalError(c)
		}

		if !hasPermission {
			log.Warn().Uint64("user_id", sessionData.User.ID).Strs("permissions", permissions).
				Msg("User lacks required permissions")

			return forbidden(c)
		}

		// User has at least one permission, proceed
		return c.Next()
	}
}

// RequireAllPermissions creates Fiber middleware that requires all the given permissions.
func RequireAllPermissions(authService *Service, permissions ...string) fiber.Handler { //nolint:dupl // ok for now
	return func(c *fiber.Ctx) error {
		// Get session cookie
		sessionID := c.Cookies("session")
		if sessionID == "" {
			return unauthorized(c)
		}

		// Read session data
		sessionData := new(session.Data)
		if err := sessionData.Read(sessionID); err != nil {
			return unauthorized(c)
		}

		if sessionData.User.ID == 0 {
			return unauthorized(c)
		}

		// Check if user has all permissions
		hasPermissions, err := authService.HasAllPermissions(sessionData.User.ID, permissions)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", sessionData.User.ID).Strs("permissions", permissions).
				Msg("Failed to check permissions")

			return internalError(c)
		}

		if !hasPermissions {
			log.Warn().Uint64("user_id", sessionData.User.ID).Strs("permissions", permissions).
				Msg("User lacks required permissions")

			return forbidden(c)
		}

		// User has all permissions, proceed
		return c.Next()
	}
}

// HasPermissionInContext checks if the current user in the Fiber context has a permission.
// Useful for per-field decisions inside handlers, such as who may publish
// shared glossary entries.
func HasPermissionInContext(c *fiber.Ctx, authService *Service, permission string) bool {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return false
	}

	sessionData := new(session.Data)
	if err := sessionData.Read(sessionID); err != nil {
		return false
	}

	if sessionData.User.ID == 0 {
		return false
	}

	hasPermission, err := authService.HasPermission(sessionData.User.ID, permission)
	if err != nil {
		return false
	}

	return hasPermission
}

// GetUserPermissionsFromContext retrieves all permissions for the current user.
func GetUserPermissionsFromContext(c *fiber.Ctx, authService *Service) ([]string, error) {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return nil, nil
	}

	sessionData := new(session.Data)
	if err := sessionData.Read(sessionID); err != nil {
		return nil, err
	}

	if sessionData.User.ID == 0 {
		return nil, nil
	}

	return authService.GetUserPermissions(sessionData.User.ID)
}
