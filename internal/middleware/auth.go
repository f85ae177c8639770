package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type Claims struct {
	jwt.RegisteredClaims
	Id          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
}

var ErrTokenVerificationDisabled = errors.New("token verification is not configured")

type JWTVerifier struct {
	secretKey []byte
}

func NewJWTVerifier(jwtSecret string) *JWTVerifier {
	return &JWTVerifier{secretKey: []byte(jwtSecret)}
}

func (v *JWTVerifier) VerifyToken(tokenString string) (*Claims, error) {
	if v == nil || len(v.secretKey) == 0 {
		return nil, ErrTokenVerificationDisabled
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Id == "" {
		return nil, fmt.Errorf("token has no user id")
	}
	return claims, nil
}

// Identity is the authenticated caller of a protected route
type Identity struct {
	UserID      string
	Permissions []string
}

type identityKey struct{}

// IdentityFrom returns the identity stored by Authenticate
func IdentityFrom(c fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(identityKey{}).(Identity)
	return id, ok
}

func UserID(c fiber.Ctx) string {
	id, _ := IdentityFrom(c)
	return id.UserID
}

// Authenticate accepts a bearer token, or the X-User-ID / X-User-Permissions headers
// set by the gateway after it validated the token.
func Authenticate(verifier *JWTVerifier, log logrus.FieldLogger) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			claims, err := verifier.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.WithError(err).WithField("path", c.Path()).Warn("token validation failed")
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid token",
				})
			}
			c.Locals(identityKey{}, Identity{UserID: claims.Id, Permissions: claims.Permissions})
			return c.Next()
		}

		if userID := strings.TrimSpace(c.Get("X-User-ID")); userID != "" {
			c.Locals(identityKey{}, Identity{
				UserID:      userID,
				Permissions: splitPermissions(c.Get("X-User-Permissions")),
			})
			return c.Next()
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing authorization token",
		})
	}
}

func splitPermissions(header string) []string {
	if header == "" {
		return nil
	}
	var perms []string
	for _, p := range strings.Split(header, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}
