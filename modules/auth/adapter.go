package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/domain/session"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// IdentityPort is the client view of the identity provider used by other
// modules.
type IdentityPort interface {
	SignUp(ctx context.Context, email, password, confirmPassword string) (*domain.Identity, *session.Tokens, error)
	SignIn(ctx context.Context, email, password string) (*domain.Identity, *session.Tokens, error)
	OAuthURL(ctx context.Context) (url string, state string, err error)
	ExchangeCode(ctx context.Context, code, state string) (*domain.Identity, *session.Tokens, error)
	SignOut(ctx context.Context, creds session.Credentials) error
	ResolveSession(ctx context.Context, creds session.Credentials, allowRefresh bool) (*Resolution, error)
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, token, password, confirmPassword string) error
}

// AuthAdapter implements IdentityPort using the service container. Every
// call is bounded by the configured timeout.
type AuthAdapter struct {
	container mono.ServiceContainer
	timeout   time.Duration
}

var _ IdentityPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer, timeout time.Duration) *AuthAdapter {
	return &AuthAdapter{
		container: container,
		timeout:   timeout,
	}
}

// SignUp registers an email/password account.
func (a *AuthAdapter) SignUp(ctx context.Context, email, password, confirmPassword string) (*domain.Identity, *session.Tokens, error) {
	req := SignUpRequest{Email: email, Password: password, ConfirmPassword: confirmPassword}
	var resp SessionResponse
	if err := call(ctx, a, ServiceSignUp, &req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.User, resp.Tokens, resp.Failure.Err()
}

// SignIn authenticates with email and password.
func (a *AuthAdapter) SignIn(ctx context.Context, email, password string) (*domain.Identity, *session.Tokens, error) {
	req := SignInRequest{Email: email, Password: password}
	var resp SessionResponse
	if err := call(ctx, a, ServiceSignIn, &req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.User, resp.Tokens, resp.Failure.Err()
}

// OAuthURL returns the consent page URL and its state.
func (a *AuthAdapter) OAuthURL(ctx context.Context) (string, string, error) {
	req := OAuthURLRequest{}
	var resp OAuthURLResponse
	if err := call(ctx, a, ServiceOAuthURL, &req, &resp); err != nil {
		return "", "", err
	}
	return resp.URL, resp.State, resp.Failure.Err()
}

// ExchangeCode completes an OAuth sign-in.
func (a *AuthAdapter) ExchangeCode(ctx context.Context, code, state string) (*domain.Identity, *session.Tokens, error) {
	req := ExchangeCodeRequest{Code: code, State: state}
	var resp SessionResponse
	if err := call(ctx, a, ServiceExchangeCode, &req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.User, resp.Tokens, resp.Failure.Err()
}

// SignOut revokes the session.
func (a *AuthAdapter) SignOut(ctx context.Context, creds session.Credentials) error {
	req := SignOutRequest{Credentials: creds}
	var resp AckResponse
	if err := call(ctx, a, ServiceSignOut, &req, &resp); err != nil {
		return err
	}
	return resp.Failure.Err()
}

// ResolveSession maps credentials to a user. Empty credentials resolve to
// no user without a round trip.
func (a *AuthAdapter) ResolveSession(ctx context.Context, creds session.Credentials, allowRefresh bool) (*Resolution, error) {
	if creds.Empty() {
		return &Resolution{}, nil
	}

	req := ResolveSessionRequest{Credentials: creds, AllowRefresh: allowRefresh}
	var resp ResolveSessionResponse
	if err := call(ctx, a, ServiceResolveSession, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	return &Resolution{
		User:      resp.User,
		Refreshed: resp.Refreshed,
		Invalid:   resp.Invalid,
	}, nil
}

// ResetPassword requests a reset link.
func (a *AuthAdapter) ResetPassword(ctx context.Context, email string) error {
	req := ResetPasswordRequest{Email: email}
	var resp AckResponse
	if err := call(ctx, a, ServiceResetPassword, &req, &resp); err != nil {
		return err
	}
	return resp.Failure.Err()
}

// UpdatePassword sets a new password from a reset token.
func (a *AuthAdapter) UpdatePassword(ctx context.Context, token, password, confirmPassword string) error {
	req := UpdatePasswordRequest{Token: token, Password: password, ConfirmPassword: confirmPassword}
	var resp AckResponse
	if err := call(ctx, a, ServiceUpdatePassword, &req, &resp); err != nil {
		return err
	}
	return resp.Failure.Err()
}

func call[Req, Resp any](ctx context.Context, a *AuthAdapter, service string, req *Req, resp *Resp) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return apperr.Provider("identity provider unavailable", err)
	}
	return nil
}
