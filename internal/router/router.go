package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assess-api/internal/config"
	"github.com/noah-isme/gema-assess-api/internal/handler"
	"github.com/noah-isme/gema-assess-api/internal/middleware"
	"github.com/noah-isme/gema-assess-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssessmentHandler *handler.AssessmentHandler
	TurnHandler       *handler.TurnHandler
	SessionHandler    *handler.SessionHandler
	AssignmentHandler *handler.AssignmentHandler
	// JWTMiddleware guards grader routes. OptionalJWTMiddleware identifies
	// respondents when a token is present.
	JWTMiddleware         fiber.Handler
	OptionalJWTMiddleware fiber.Handler
	HealthProbes          map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	api.Get("/metrics", observability.MetricsHandler())

	passthrough := func(c *fiber.Ctx) error { return c.Next() }

	optionalJWT := deps.OptionalJWTMiddleware
	if optionalJWT == nil {
		optionalJWT = passthrough
	}
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = passthrough
	}

	respondent := api.Group("/assessments", optionalJWT)

	if deps.TurnHandler != nil {
		deps.TurnHandler.Register(respondent, middleware.RateLimit("assessment_turn", cfg.TurnRateLimit, time.Minute))
		deps.TurnHandler.RegisterWebsocket(respondent)
	}
	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(respondent)
	}

	if deps.AssessmentHandler != nil {
		deps.AssessmentHandler.Register(respondent)

		grader := app.Group("/api/v1/grading/assessments", jwtMiddleware, middleware.RequireRole(middleware.GraderRoles...))
		deps.AssessmentHandler.RegisterGrader(grader)
		if deps.AssignmentHandler != nil {
			deps.AssignmentHandler.RegisterGrader(grader)
		}
	}
}
