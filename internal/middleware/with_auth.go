package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// Roles understood by the API.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Authenticated rejects requests whose token did not carry a usable user id.
func Authenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch id := c.Locals("user_id").(type) {
		case uint:
			if id > 0 {
				return c.Next()
			}
		case int:
			if id > 0 {
				return c.Next()
			}
		}
		return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "authentication required")
	}
}

// StaffOnly allows instructors and admins.
func StaffOnly() fiber.Handler {
	return RequireRole(RoleInstructor, RoleAdmin)
}

// StudentOnly allows students.
func StudentOnly() fiber.Handler {
	return RequireRole(RoleStudent)
}
