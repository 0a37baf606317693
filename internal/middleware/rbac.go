package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// RequireRole lets the request through when the caller's role is one of roles. Naming a role
// the API does not know is a wiring mistake and panics at startup.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if _, known := rolePrecedence[normalized]; !known {
			panic(fmt.Sprintf("middleware: unknown role %q", role))
		}
		allowed[normalized] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(string)
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; !ok {
			return utils.SendErrorCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions")
		}
		return c.Next()
	}
}
