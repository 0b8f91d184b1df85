package auth

import (
	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/domain/session"
	domain "github.com/example/task-tracker/domain/user"
)

// Service names registered by the auth module.
const (
	ServiceSignUp         = "sign-up"
	ServiceSignIn         = "sign-in"
	ServiceOAuthURL       = "oauth-url"
	ServiceExchangeCode   = "exchange-code"
	ServiceSignOut        = "sign-out"
	ServiceResolveSession = "resolve-session"
	ServiceResetPassword  = "reset-password"
	ServiceUpdatePassword = "update-password"
)

// SignUpRequest represents an email/password registration request.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// SignInRequest represents an email/password login request.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a signed-in user and their new tokens.
type SessionResponse struct {
	User    *domain.Identity `json:"user,omitempty"`
	Tokens  *session.Tokens  `json:"tokens,omitempty"`
	Failure *apperr.Payload  `json:"failure,omitempty"`
}

// OAuthURLRequest asks for a consent page URL.
type OAuthURLRequest struct{}

// OAuthURLResponse carries the consent URL and its state value.
type OAuthURLResponse struct {
	URL     string          `json:"url,omitempty"`
	State   string          `json:"state,omitempty"`
	Failure *apperr.Payload `json:"failure,omitempty"`
}

// ExchangeCodeRequest completes an OAuth redirect.
type ExchangeCodeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// SignOutRequest ends the session identified by the credentials.
type SignOutRequest struct {
	Credentials session.Credentials `json:"credentials"`
}

// ResolveSessionRequest asks who the credentials belong to.
type ResolveSessionRequest struct {
	Credentials  session.Credentials `json:"credentials"`
	AllowRefresh bool                `json:"allow_refresh"`
}

// ResolveSessionResponse is the wire form of Resolution.
type ResolveSessionResponse struct {
	User      *domain.Identity `json:"user,omitempty"`
	Refreshed *session.Tokens  `json:"refreshed,omitempty"`
	Invalid   bool             `json:"invalid,omitempty"`
	Failure   *apperr.Payload  `json:"failure,omitempty"`
}

// ResetPasswordRequest asks for a reset link.
type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// UpdatePasswordRequest sets a new password from a reset link.
type UpdatePasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AckResponse is returned by operations without a result.
type AckResponse struct {
	Failure *apperr.Payload `json:"failure,omitempty"`
}
