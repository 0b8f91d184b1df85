package web

import (
	"context"
	"fmt"
	"time"

	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/tasks"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds the settings of the web module.
type Config struct {
	Addr               string
	CORSAllowedOrigins string
	CookieSecure       bool
	GoogleEnabled      bool
	Location           *time.Location
	AuthRateLimit      int
	RedisAddr          string
	RedisPassword      string
	ProviderTimeout    time.Duration
	StoreTimeout       time.Duration
}

// HealthChecker is a module whose health is reported on /health.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// WebModule is the HTTP surface: session guard, pages, auth actions and the
// task API.
type WebModule struct {
	config   Config
	logger   types.Logger
	app      *fiber.App
	identity auth.IdentityPort
	tasks    tasks.TaskPort
	storage  fiber.Storage
	checks   []HealthChecker
}

// Compile-time interface checks.
var _ mono.Module = (*WebModule)(nil)
var _ mono.DependentModule = (*WebModule)(nil)
var _ mono.HealthCheckableModule = (*WebModule)(nil)

// NewModule creates a new WebModule. The health of checks is included in
// the /health response.
func NewModule(config Config, logger types.Logger, checks ...HealthChecker) *WebModule {
	if config.Addr == "" {
		config.Addr = ":3000"
	}
	return &WebModule{
		config: config,
		logger: logger,
		checks: checks,
	}
}

// Name returns the module name.
func (m *WebModule) Name() string {
	return "web"
}

// Dependencies returns the list of module dependencies.
func (m *WebModule) Dependencies() []string {
	return []string{"auth", "tasks"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *WebModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.identity = auth.NewAuthAdapter(container, m.config.ProviderTimeout)
	case "tasks":
		m.tasks = tasks.NewTaskAdapter(container, m.config.StoreTimeout+m.config.ProviderTimeout)
	}
}

// Start builds the Fiber app and starts listening.
func (m *WebModule) Start(_ context.Context) error {
	if m.identity == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.tasks == nil {
		return fmt.Errorf("tasks dependency not set")
	}

	if m.config.RedisAddr != "" && m.config.AuthRateLimit > 0 {
		m.storage = newRedisStorage(m.config.RedisAddr, m.config.RedisPassword)
	}
	m.app = m.newApp()

	// Catch immediate startup errors such as a port already in use.
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.config.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", m.config.Addr)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (m *WebModule) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	if m.storage != nil {
		if err := m.storage.Close(); err != nil {
			m.logger.Warn("Failed to close rate limit storage", "error", err)
		}
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status of the module.
func (m *WebModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.config.Addr,
		},
	}
}

// newApp assembles middleware and routes.
func (m *WebModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Task Tracker",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	if m.config.CORSAllowedOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     m.config.CORSAllowedOrigins,
			AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Content-Type",
			AllowCredentials: true,
		}))
	}

	app.Get("/health", m.healthHandler)

	app.Use(SessionGuard(m.identity, DefaultRoutes(), CookieSettings{Secure: m.config.CookieSecure}, m.logger))

	m.registerRoutes(app, NewHandlers(m.identity, m.tasks, m.config, m.logger))
	return app
}

// registerRoutes sets up all HTTP routes.
func (m *WebModule) registerRoutes(app *fiber.App, h *Handlers) {
	app.Get("/", h.Landing)

	authRoutes := app.Group("/auth")
	authRoutes.Get("/login", h.LoginPage)
	authRoutes.Get("/register", h.RegisterPage)
	authRoutes.Get("/reset-password", h.ResetPasswordPage)
	authRoutes.Get("/update-password", h.UpdatePasswordPage)
	authRoutes.Get("/google", h.GoogleSignIn)
	authRoutes.Get("/callback", h.OAuthCallback)
	authRoutes.Post("/logout", h.SignOut)
	authRoutes.Post("/update-password", h.UpdatePassword)

	// Posts that check or mint credentials are rate limited per client.
	if m.config.AuthRateLimit > 0 {
		limited := newAuthLimiter(m.config.AuthRateLimit, m.storage)
		authRoutes.Post("/login", limited, h.SignIn)
		authRoutes.Post("/register", limited, h.SignUp)
		authRoutes.Post("/reset-password", limited, h.ResetPassword)
	} else {
		authRoutes.Post("/login", h.SignIn)
		authRoutes.Post("/register", h.SignUp)
		authRoutes.Post("/reset-password", h.ResetPassword)
	}

	app.Get("/dashboard", h.Dashboard)

	taskRoutes := app.Group("/dashboard/tasks")
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Patch("/:id", h.UpdateTask)
	taskRoutes.Delete("/:id", h.DeleteTask)
	taskRoutes.Post("/:id/toggle", h.ToggleTask)
}

// healthHandler handles GET /health.
func (m *WebModule) healthHandler(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:  "healthy",
		Modules: make(map[string]ModuleHealth, len(m.checks)),
	}
	for _, check := range m.checks {
		status := check.Health(c.UserContext())
		resp.Modules[check.Name()] = ModuleHealth{Healthy: status.Healthy, Message: status.Message}
		if !status.Healthy {
			resp.Status = "unhealthy"
		}
	}

	if resp.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// errorHandler handles errors globally.
func (m *WebModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "error", err)
	}
	return c.Status(code).JSON(ActionResult{Success: false, Error: message})
}
