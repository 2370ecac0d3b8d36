// Package admin covers the back-office: operator sign-in, the admin guard
// and dashboard figures.
package admin

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the role claim carried by operator tokens.
const RoleAdmin = "admin"

// TokenTTL is how long an operator token stays valid.
const TokenTTL = 12 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDisabled           = errors.New("admin sign-in is not configured")
)

// Authenticator checks operator credentials against the configured email and
// bcrypt hash.
type Authenticator struct {
	email        string
	passwordHash []byte
	secret       []byte
	now          func() time.Time
}

func NewAuthenticator(email, passwordHash, secret string) *Authenticator {
	return &Authenticator{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		now:          time.Now,
	}
}

// SignIn returns a signed token with role=admin.
func (a *Authenticator) SignIn(email, password string) (string, error) {
	if a.email == "" || len(a.passwordHash) == 0 {
		return "", ErrDisabled
	}
	given := strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(given), []byte(a.email)) == 1
	// bcrypt runs even on an email mismatch
	passOK := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	if !emailOK || !passOK {
		return "", ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"role":  RoleAdmin,
		"email": a.email,
		"exp":   a.now().Add(TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// RequireAdmin rejects requests whose token lacks role=admin. It runs after
// the JWT middleware, which stores the parsed token in Locals("user").
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok, ok := c.Locals("user").(*jwt.Token)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok || claims["role"] != RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "admin access required"})
		}
		return c.Next()
	}
}
