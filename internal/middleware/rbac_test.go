package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func graderApp(role interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != nil {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(RequireRole(GraderRoles...))
	app.Get("/grading", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAllowsGraderRoles(t *testing.T) {
	for _, role := range []interface{}{"admin", " Teacher ", []interface{}{"", "teacher"}} {
		resp, err := graderApp(role).Test(httptest.NewRequest(http.MethodGet, "/grading", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "role %v", role)
	}
}

func TestRequireRoleRejectsOtherRoles(t *testing.T) {
	for _, role := range []interface{}{"student", nil, 42} {
		resp, err := graderApp(role).Test(httptest.NewRequest(http.MethodGet, "/grading", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusForbidden, resp.StatusCode, "role %v", role)
	}
}
