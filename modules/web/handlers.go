package web

import (
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/tasks"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

const (
	resetRequestedMessage  = "If an account exists for that email, a password reset link has been sent."
	passwordUpdatedMessage = "Your password has been updated."
)

// Handlers contains the HTTP handlers of the web module.
type Handlers struct {
	identity      auth.IdentityPort
	tasks         tasks.TaskPort
	cookies       CookieSettings
	location      *time.Location
	googleEnabled bool
	logger        types.Logger
	now           func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(identity auth.IdentityPort, taskPort tasks.TaskPort, cfg Config, logger types.Logger) *Handlers {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{
		identity:      identity,
		tasks:         taskPort,
		cookies:       CookieSettings{Secure: cfg.CookieSecure},
		location:      loc,
		googleEnabled: cfg.GoogleEnabled,
		logger:        logger,
		now:           time.Now,
	}
}

// Landing handles GET /.
func (h *Handlers) Landing(c *fiber.Ctx) error {
	return c.JSON(PageResponse{Page: "landing"})
}

// LoginPage handles GET /auth/login.
func (h *Handlers) LoginPage(c *fiber.Ctx) error {
	return c.JSON(PageResponse{
		Page:          "login",
		Error:         c.Query("error"),
		GoogleEnabled: h.googleEnabled,
	})
}

// RegisterPage handles GET /auth/register.
func (h *Handlers) RegisterPage(c *fiber.Ctx) error {
	return c.JSON(PageResponse{Page: "register", GoogleEnabled: h.googleEnabled})
}

// ResetPasswordPage handles GET /auth/reset-password.
func (h *Handlers) ResetPasswordPage(c *fiber.Ctx) error {
	return c.JSON(PageResponse{Page: "reset-password", User: currentUser(c)})
}

// UpdatePasswordPage handles GET /auth/update-password.
func (h *Handlers) UpdatePasswordPage(c *fiber.Ctx) error {
	return c.JSON(PageResponse{Page: "update-password", Token: c.Query("token"), User: currentUser(c)})
}

// Dashboard handles GET /dashboard. A failed listing is reported on the page
// together with a retry link instead of an empty list.
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	resp := DashboardResponse{
		Page:      "dashboard",
		User:      currentUser(c),
		Filter:    c.Query("filter"),
		Search:    c.Query("search"),
		Sort:      c.Query("sort"),
		Direction: c.Query("direction"),
		Tasks:     []TaskView{},
	}

	q, err := tasks.ParseQuery(resp.Filter, resp.Search, resp.Sort, resp.Direction)
	if err == nil {
		resp.Filter = string(q.Filter)
		resp.Search = q.Search
		resp.Sort = string(q.SortField)
		resp.Direction = string(q.SortDirection)

		var list []domain.Task
		list, err = h.tasks.List(c.UserContext(), q)
		if err == nil {
			resp.Tasks = h.views(list)
			resp.Counts = countTasks(resp.Tasks)
			return c.JSON(resp)
		}
	}

	if apperr.KindOf(err) == apperr.KindNotAuthenticated {
		return c.Redirect("/auth/login", fiber.StatusFound)
	}
	h.logFailure(c, "load dashboard", err)
	resp.LoadError = apperr.Message(err)
	resp.RetryURL = c.OriginalURL()
	return c.JSON(resp)
}

// SignIn handles POST /auth/login.
func (h *Handlers) SignIn(c *fiber.Ctx) error {
	var form SignInForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c)
	}

	identity, tokens, err := h.identity.SignIn(c.UserContext(), form.Email, form.Password)
	if err != nil {
		return h.fail(c, "sign in", err)
	}
	setSessionCookies(c, h.cookies, tokens)
	return c.JSON(ActionResult{Success: true, User: identity})
}

// SignUp handles POST /auth/register.
func (h *Handlers) SignUp(c *fiber.Ctx) error {
	var form SignUpForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c)
	}

	identity, tokens, err := h.identity.SignUp(c.UserContext(), form.Email, form.Password, form.ConfirmPassword)
	if err != nil {
		return h.fail(c, "sign up", err)
	}
	setSessionCookies(c, h.cookies, tokens)
	return c.Status(fiber.StatusCreated).JSON(ActionResult{Success: true, User: identity})
}

// SignOut handles POST /auth/logout. Cookies are cleared even when the
// provider cannot be reached.
func (h *Handlers) SignOut(c *fiber.Ctx) error {
	creds := currentCredentials(c)
	if !creds.Empty() {
		if err := h.identity.SignOut(c.UserContext(), creds); err != nil {
			h.logFailure(c, "sign out", err)
		}
	}
	clearSessionCookies(c, h.cookies)
	return c.JSON(ActionResult{Success: true})
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handlers) ResetPassword(c *fiber.Ctx) error {
	var form ResetPasswordForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c)
	}

	if err := h.identity.ResetPassword(c.UserContext(), form.Email); err != nil {
		return h.fail(c, "reset password", err)
	}
	return c.JSON(ActionResult{Success: true, Message: resetRequestedMessage})
}

// UpdatePassword handles POST /auth/update-password.
func (h *Handlers) UpdatePassword(c *fiber.Ctx) error {
	var form UpdatePasswordForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c)
	}

	if err := h.identity.UpdatePassword(c.UserContext(), form.Token, form.Password, form.ConfirmPassword); err != nil {
		return h.fail(c, "update password", err)
	}
	return c.JSON(ActionResult{Success: true, Message: passwordUpdatedMessage})
}

// GoogleSignIn handles GET /auth/google by redirecting to Google's consent
// screen. The state is remembered in a short-lived cookie.
func (h *Handlers) GoogleSignIn(c *fiber.Ctx) error {
	url, state, err := h.identity.OAuthURL(c.UserContext())
	if err != nil {
		h.logFailure(c, "start google sign-in", err)
		return c.Redirect("/auth/login?error=oauth_failed", fiber.StatusFound)
	}

	setCookie(c, h.cookies, stateCookie, state, h.now().Add(stateCookieTTL))
	return c.Redirect(url, fiber.StatusFound)
}

// OAuthCallback handles GET /auth/callback. It only ever redirects.
func (h *Handlers) OAuthCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Redirect("/auth/login?error=missing_code", fiber.StatusFound)
	}

	state := c.Query("state")
	expected := c.Cookies(stateCookie)
	clearCookie(c, h.cookies, stateCookie)
	if state == "" || state != expected {
		h.logger.Warn("OAuth state mismatch", "path", c.Path())
		return c.Redirect("/auth/login?error=oauth_failed", fiber.StatusFound)
	}

	_, tokens, err := h.identity.ExchangeCode(c.UserContext(), code, state)
	if err != nil || tokens == nil {
		h.logFailure(c, "exchange oauth code", err)
		return c.Redirect("/auth/login?error=oauth_failed", fiber.StatusFound)
	}

	setSessionCookies(c, h.cookies, tokens)
	return c.Redirect("/dashboard", fiber.StatusFound)
}

// ListTasks handles GET /dashboard/tasks.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	q, err := tasks.ParseQuery(c.Query("filter"), c.Query("search"), c.Query("sort"), c.Query("direction"))
	if err != nil {
		return h.fail(c, "list tasks", err)
	}

	list, err := h.tasks.List(c.UserContext(), q)
	if err != nil {
		return h.fail(c, "list tasks", err)
	}
	return c.JSON(TaskListResult{Success: true, Tasks: h.views(list)})
}

// CreateTask handles POST /dashboard/tasks.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	var form CreateTaskForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c)
	}

	t, err := h.tasks.Create(c.UserContext(), tasks.CreateInput{
		Title:       form.Title,
		Description: form.Description,
		DueDate:     form.DueDate,
	})
	if err != nil {
		return h.fail(c, "create task", err)
	}
	return c.Status(fiber.StatusCreated).JSON(ActionResult{Success: true, Task: h.view(t)})
}

// GetTask handles GET /dashboard/tasks/:id.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	t, err := h.tasks.Get(c.UserContext(), c.Params("id"))
	return h.taskResult(c, "get task", t, err)
}

// UpdateTask handles PATCH /dashboard/tasks/:id.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	var form UpdateTaskForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c)
	}

	t, err := h.tasks.Update(c.UserContext(), c.Params("id"), tasks.UpdateInput{
		Title:       form.Title,
		Description: form.Description,
		DueDate:     form.DueDate,
		IsCompleted: form.IsCompleted,
	})
	return h.taskResult(c, "update task", t, err)
}

// ToggleTask handles POST /dashboard/tasks/:id/toggle.
func (h *Handlers) ToggleTask(c *fiber.Ctx) error {
	t, err := h.tasks.ToggleCompletion(c.UserContext(), c.Params("id"))
	return h.taskResult(c, "toggle task", t, err)
}

// DeleteTask handles DELETE /dashboard/tasks/:id.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	deleted, err := h.tasks.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, "delete task", err)
	}
	if !deleted {
		return notFound(c)
	}
	return c.JSON(ActionResult{Success: true, Message: "task deleted"})
}

func (h *Handlers) taskResult(c *fiber.Ctx, op string, t *domain.Task, err error) error {
	if err != nil {
		return h.fail(c, op, err)
	}
	if t == nil {
		return notFound(c)
	}
	return c.JSON(ActionResult{Success: true, Task: h.view(t)})
}

func (h *Handlers) today() string {
	return domain.Today(h.now(), h.location)
}

func (h *Handlers) view(t *domain.Task) *TaskView {
	return &TaskView{Task: *t, Overdue: t.IsOverdue(h.today())}
}

func (h *Handlers) views(list []domain.Task) []TaskView {
	today := h.today()
	out := make([]TaskView, 0, len(list))
	for i := range list {
		out = append(out, TaskView{Task: list[i], Overdue: list[i].IsOverdue(today)})
	}
	return out
}

func countTasks(views []TaskView) TaskCounts {
	counts := TaskCounts{Total: len(views)}
	for _, v := range views {
		if v.IsCompleted {
			counts.Completed++
		} else {
			counts.Pending++
		}
		if v.Overdue {
			counts.Overdue++
		}
	}
	return counts
}

// fail writes err as an ActionResult with the matching status code.
func (h *Handlers) fail(c *fiber.Ctx, op string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.logFailure(c, op, err)
	}
	return c.Status(status).JSON(ActionResult{Success: false, Error: apperr.Message(err)})
}

func (h *Handlers) logFailure(c *fiber.Ctx, op string, err error) {
	h.logger.Warn("Request failed", "operation", op, "path", c.Path(), "error", err)
}

// credentialFailures are identity provider failures caused by what the
// caller presented rather than by the provider itself.
var credentialFailures = map[string]int{
	auth.ErrInvalidCredentials.Error(): fiber.StatusUnauthorized,
	auth.ErrInvalidResetToken.Error():  fiber.StatusUnauthorized,
	auth.ErrInvalidState.Error():       fiber.StatusUnauthorized,
	auth.ErrUserExists.Error():         fiber.StatusConflict,
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotAuthenticated:
		return fiber.StatusUnauthorized
	case apperr.KindStorage:
		return fiber.StatusServiceUnavailable
	case apperr.KindProvider:
		if status, ok := credentialFailures[apperr.Message(err)]; ok {
			return status
		}
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(ActionResult{
		Success: false,
		Error:   "invalid request body",
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ActionResult{
		Success: false,
		Error:   "task not found",
	})
}
