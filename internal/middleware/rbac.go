package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assess-api/internal/utils"
)

// Roles recognised on grader routes.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// GraderRoles may reset, select and stale attempts.
var GraderRoles = []string{RoleTeacher, RoleAdmin}

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[normalizeRole(c.Locals("user_role"))]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
