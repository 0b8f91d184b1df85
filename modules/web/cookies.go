package web

import (
	"time"

	"github.com/example/task-tracker/domain/session"
	"github.com/gofiber/fiber/v2"
)

// stateCookie holds the OAuth state between /auth/google and the callback.
const stateCookie = "tt-oauth-state"

const stateCookieTTL = 10 * time.Minute

// CookieSettings controls the attributes of the cookies the web module sets.
type CookieSettings struct {
	Secure bool
}

func readCredentials(c *fiber.Ctx) session.Credentials {
	return session.Credentials{
		AccessToken:  c.Cookies(session.AccessCookie),
		RefreshToken: c.Cookies(session.RefreshCookie),
	}
}

func setSessionCookies(c *fiber.Ctx, s CookieSettings, tokens *session.Tokens) {
	setCookie(c, s, session.AccessCookie, tokens.AccessToken, tokens.AccessExpiresAt)
	setCookie(c, s, session.RefreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt)
}

func clearSessionCookies(c *fiber.Ctx, s CookieSettings) {
	clearCookie(c, s, session.AccessCookie)
	clearCookie(c, s, session.RefreshCookie)
}

func setCookie(c *fiber.Ctx, s CookieSettings, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   s.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearCookie(c *fiber.Ctx, s CookieSettings, name string) {
	setCookie(c, s, name, "", time.Unix(0, 0))
}
