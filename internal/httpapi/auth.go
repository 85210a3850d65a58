package httpapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/spigell/insight/internal/errors"
)

const (
	TokenHeader = "jwt_token"

	userIDLocal = "user_id"
)

// Claims is the token payload issued by the authentication service.
type Claims struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	jwt.RegisteredClaims
}

// RequireUser verifies the HS256 token from the jwt_token header or a bearer
// Authorization header and stores the user id for handlers.
func RequireUser(secret []byte) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *fiber.Ctx) error {
		raw := tokenFrom(c)
		if raw == "" {
			return apperrors.Unauthorized("missing token", nil)
		}
		if len(secret) == 0 {
			return apperrors.Unauthorized("token verification is not configured", nil)
		}

		var claims Claims
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return apperrors.Unauthorized("token expired", err)
		case err != nil:
			return apperrors.Unauthorized("invalid token", err)
		}

		userID, err := uuid.Parse(claims.User.ID)
		if err != nil {
			return apperrors.Unauthorized("invalid token", err)
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

func tokenFrom(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Get(TokenHeader)); token != "" {
		return token
	}

	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}

	return ""
}

// UserID returns the authenticated user set by RequireUser.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(userIDLocal).(uuid.UUID)
	return id, ok
}
