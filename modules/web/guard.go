package web

import (
	"context"
	"strings"

	"github.com/example/task-tracker/domain/session"
	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/auth"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// RouteClass is the access class of a path.
type RouteClass int

const (
	// RoutePublic is reachable by everyone.
	RoutePublic RouteClass = iota
	// RouteProtected requires a signed-in user.
	RouteProtected
	// RouteAuthOnly is meant for anonymous users (sign-in, sign-up).
	RouteAuthOnly
	// RouteLanding is the root page.
	RouteLanding
)

func (c RouteClass) String() string {
	switch c {
	case RouteProtected:
		return "protected"
	case RouteAuthOnly:
		return "auth-only"
	case RouteLanding:
		return "landing"
	default:
		return "public"
	}
}

// RouteRule assigns a class to every path starting with Prefix, or only to
// Prefix itself when Exact is set.
type RouteRule struct {
	Prefix string
	Exact  bool
	Class  RouteClass
}

// RouteTable classifies paths. The longest matching rule wins.
type RouteTable []RouteRule

// DefaultRoutes returns the application's route table.
func DefaultRoutes() RouteTable {
	return RouteTable{
		{Prefix: "/dashboard", Class: RouteProtected},
		{Prefix: "/auth/login", Class: RouteAuthOnly},
		{Prefix: "/auth/register", Class: RouteAuthOnly},
		{Prefix: "/", Exact: true, Class: RouteLanding},
	}
}

// Classify returns the class of path. Unmatched paths are public.
func (t RouteTable) Classify(path string) RouteClass {
	class := RoutePublic
	best := -1
	for _, rule := range t {
		matched := path == rule.Prefix
		if !rule.Exact && !matched {
			matched = strings.HasPrefix(path, rule.Prefix)
		}
		if matched && len(rule.Prefix) > best {
			best = len(rule.Prefix)
			class = rule.Class
		}
	}
	return class
}

// Decision is the outcome of the session guard for one request.
type Decision struct {
	Redirect string
}

// Pass reports whether the request continues to its handler.
func (d Decision) Pass() bool {
	return d.Redirect == ""
}

// Decide applies the access rules to a classified request.
func Decide(class RouteClass, signedIn bool) Decision {
	switch {
	case class == RouteProtected && !signedIn:
		return Decision{Redirect: "/auth/login"}
	case class == RouteAuthOnly && signedIn:
		return Decision{Redirect: "/dashboard"}
	case class == RouteLanding && signedIn:
		return Decision{Redirect: "/dashboard"}
	default:
		return Decision{}
	}
}

// SessionResolver is the part of the identity provider the guard needs.
type SessionResolver interface {
	ResolveSession(ctx context.Context, creds session.Credentials, allowRefresh bool) (*auth.Resolution, error)
}

const (
	userLocalKey        = "user"
	credentialsLocalKey = "credentials"
)

// SessionGuard resolves the caller from the session cookies, keeps the
// cookies in step with the provider and enforces the route table.
// Resolution failures are treated as anonymous.
func SessionGuard(resolver SessionResolver, routes RouteTable, cookies CookieSettings, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds := readCredentials(c)

		var identity *user.Identity
		if !creds.Empty() {
			res, err := resolver.ResolveSession(c.UserContext(), creds, true)
			switch {
			case err != nil:
				logger.Warn("Session lookup failed, continuing as anonymous", "path", c.Path(), "error", err)
			case res == nil:
			case res.Invalid:
				clearSessionCookies(c, cookies)
				creds = session.Credentials{}
			default:
				identity = res.User
				if res.Refreshed != nil {
					setSessionCookies(c, cookies, res.Refreshed)
					creds = res.Refreshed.Credentials()
				}
			}
		}

		if identity != nil {
			c.Locals(userLocalKey, identity)
			c.Locals(credentialsLocalKey, creds)
			c.SetUserContext(session.WithCredentials(c.UserContext(), creds))
		}

		decision := Decide(routes.Classify(c.Path()), identity != nil)
		if !decision.Pass() {
			return c.Redirect(decision.Redirect, fiber.StatusFound)
		}
		return c.Next()
	}
}

// currentUser returns the user resolved by the guard, if any.
func currentUser(c *fiber.Ctx) *user.Identity {
	identity, _ := c.Locals(userLocalKey).(*user.Identity)
	return identity
}

// currentCredentials returns the credentials in effect for this request,
// including ones rotated by the guard.
func currentCredentials(c *fiber.Ctx) session.Credentials {
	if creds, ok := c.Locals(credentialsLocalKey).(session.Credentials); ok {
		return creds
	}
	return readCredentials(c)
}
