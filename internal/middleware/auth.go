package middleware

import (
	"context"
	"strings"
	"time"

	"poststream/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID uint
	ProfileID uint
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// Verifier turns a bearer token into a Principal or fails with an
// unauthorized error.
type Verifier func(ctx context.Context, token string) (*Principal, error)

const principalKey = "principal"

// AuthRequired rejects requests without a valid bearer token. On success it
// stores the profile id under "userID", the account id under "accountID"
// and the full Principal.
func AuthRequired(verify Verifier) fiber.Handler {
	return authenticate(verify, true)
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalAuth(verify Verifier) fiber.Handler {
	return authenticate(verify, false)
}

func authenticate(verify Verifier, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			if !required {
				return c.Next()
			}
			return unauthorized(c, "Authorization header required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return unauthorized(c, "Invalid authorization header format")
		}

		principal, err := verify(c.UserContext(), parts[1])
		if err != nil {
			if models.HasCode(err, models.CodeUnauthorized) || models.IsNotFound(err) {
				return unauthorized(c, "Invalid or expired token")
			}
			Logger.ErrorContext(c.UserContext(), "token verification failed", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}

		c.Locals("userID", principal.ProfileID)
		c.Locals("accountID", principal.AccountID)
		c.Locals(principalKey, principal)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, principal.ProfileID))
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
}

// CurrentPrincipal returns the caller set by the auth middleware.
func CurrentPrincipal(c *fiber.Ctx) (*Principal, bool) {
	p, ok := c.Locals(principalKey).(*Principal)
	return p, ok && p != nil
}

// ViewerID returns the caller's profile id, or 0 for anonymous requests.
func ViewerID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}
