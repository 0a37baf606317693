package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-courseware-api/internal/utils"
)

// rolePrecedence ranks the roles a token may carry; a token listing several acts as the most
// privileged one it names.
var rolePrecedence = map[string]int{
	RoleStudent:    1,
	RoleInstructor: 2,
	RoleAdmin:      3,
}

// JWTProtected validates HMAC-signed bearer tokens and exposes the caller as the user_id and
// user_role locals. Whether a user id is required is left to Authenticated.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(30*time.Second),
	)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "bearer token required")
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "invalid token")
		}

		if userID, ok := userIDFromClaims(claims); ok {
			c.Locals("user_id", userID)
		}
		if role := roleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func userIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		if id, err := parseUserID(claims[key]); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func parseUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, fmt.Errorf("invalid subject %v", v)
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

// roleFromClaims reads "role" or "roles" and ignores names the API does not know.
func roleFromClaims(claims jwt.MapClaims) string {
	var names []string
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			names = append(names, v)
		case []interface{}:
			for _, item := range v {
				if name, ok := item.(string); ok {
					names = append(names, name)
				}
			}
		}
	}

	best := ""
	for _, name := range names {
		role := strings.ToLower(strings.TrimSpace(name))
		if rolePrecedence[role] > rolePrecedence[best] {
			best = role
		}
	}
	return best
}
