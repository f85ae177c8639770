package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

const (
	ReadMistakePermission  = "read:mistake"
	WriteMistakePermission = "write:mistake"

	// Prefixes that pass every permission check
	AdminPermission   = "admin"
	ManagerPermission = "manager"
)

func HasPermission(permissions []string, required string) bool {
	for _, perm := range permissions {
		if perm == required || strings.HasPrefix(perm, AdminPermission) || strings.HasPrefix(perm, ManagerPermission) {
			return true
		}
	}
	return false
}

// PermissionRequired must run after Authenticate
func PermissionRequired(required string) fiber.Handler {
	return func(c fiber.Ctx) error {
		identity, ok := IdentityFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		if !HasPermission(identity.Permissions, required) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Missing permission " + required,
			})
		}
		return c.Next()
	}
}
