package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Users         *handlers.UsersHandler
	Tasks         *handlers.TasksHandler
	Authenticator *auth.RequestAuthenticator
	Metrics       *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Every /api route passes through the
// request authenticator; each protected route declares its operation so the
// resource-independent part of the policy runs before the handler.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api", cfg.Authenticator.Handle)
	api.Post("/auth/login", cfg.Auth.Login)

	users := api.Group("/users")
	users.Post("", auth.RequireOperation(auth.OpUserCreate), cfg.Users.Create)
	users.Get("", auth.RequireOperation(auth.OpUserList), cfg.Users.List)
	users.Get("/:id", auth.RequireOperation(auth.OpUserRead), cfg.Users.Get)
	users.Put("/:id", auth.RequireOperation(auth.OpUserUpdate), cfg.Users.Update)
	users.Delete("/:id", auth.RequireOperation(auth.OpUserDelete), cfg.Users.Delete)

	tasks := api.Group("/tasks")
	tasks.Post("", auth.RequireOperation(auth.OpTaskCreate), cfg.Tasks.Create)
	tasks.Get("", auth.RequireOperation(auth.OpTaskList), cfg.Tasks.List)
	tasks.Get("/:id", auth.RequireOperation(auth.OpTaskRead), cfg.Tasks.Get)
	tasks.Put("/:id", auth.RequireOperation(auth.OpTaskUpdate), cfg.Tasks.Update)
	tasks.Delete("/:id", auth.RequireOperation(auth.OpTaskDelete), cfg.Tasks.Delete)
	tasks.Post("/:id/assign/:userId", auth.RequireOperation(auth.OpTaskAssign), cfg.Tasks.Assign)
}
