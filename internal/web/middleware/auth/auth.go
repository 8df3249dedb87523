// Package auth provides the session middleware of the web service.
package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	authservice "github.com/slidetrans/slidetrans/internal/auth"
	"github.com/slidetrans/slidetrans/internal/db/models"
	"github.com/slidetrans/slidetrans/internal/web/session"
)

// Locals keys the middleware fills for downstream handlers.
const (
	// LocalsUser carries the signed-in models.User.
	LocalsUser = "CurrentUser"

	// LocalsUsername carries the username string the access log adapter reads.
	LocalsUsername = "username"
)

// publicPrefixes are served without a session.
var publicPrefixes = []string{ //nolint:gochecknoglobals
	"/auth/login",
	"/auth/register",
	"/auth/logout",
	"/auth/sso/",
	"/checkalive",
	"/metrics",
}

// New builds the session middleware. Requests outside the public prefixes
// need a valid session cookie. The account behind the session is re-read on
// every request so a disable takes effect without waiting for the session
// to expire, and the fresh user lands in the request locals.
func New(authService *authservice.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := strings.ToLower(c.Path())

		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		sessionID := c.Cookies("session")
		if sessionID == "" {
			return unauthorized(c)
		}

		sessData := new(session.Data)
		if err := sessData.Read(sessionID); err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("failed to read session")
			return unauthorized(c)
		}

		if sessData.User.ID == 0 {
			return unauthorized(c)
		}

		user, err := authService.GetUserByID(sessData.User.ID)
		if err != nil {
			return unauthorized(c)
		}

		if user.Status != models.StatusApproved {
			// The account was disabled after the session was issued.
			if err := session.Delete(sessionID); err != nil {
				log.Debug().Err(err).Msg("failed to delete session of inactive account")
			}

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "account disabled",
			})
		}

		c.Locals(LocalsUser, *user)
		c.Locals(LocalsUsername, user.Username)

		return c.Next()
	}
}

// CurrentUser returns the signed-in user the middleware stored in the
// request locals.
func CurrentUser(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals(LocalsUser).(models.User)
	return user, ok
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "authentication required",
	})
}
