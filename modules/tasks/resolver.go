package tasks

import (
	"context"

	"github.com/example/task-tracker/domain/session"
	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/auth"
)

// SessionResolver is the subset of the identity provider needed to find
// the current user.
type SessionResolver interface {
	ResolveSession(ctx context.Context, creds session.Credentials, allowRefresh bool) (*auth.Resolution, error)
}

// SessionIdentity resolves the current user from the credentials carried
// by the request context. It never rotates tokens; that happens in the
// HTTP session guard.
type SessionIdentity struct {
	resolver SessionResolver
}

var _ IdentityResolver = (*SessionIdentity)(nil)

// NewSessionIdentity creates a SessionIdentity.
func NewSessionIdentity(resolver SessionResolver) *SessionIdentity {
	return &SessionIdentity{resolver: resolver}
}

// CurrentUser returns the signed-in user or nil.
func (i *SessionIdentity) CurrentUser(ctx context.Context) (*user.Identity, error) {
	creds, ok := session.FromContext(ctx)
	if !ok || creds.Empty() {
		return nil, nil
	}

	res, err := i.resolver.ResolveSession(ctx, creds, false)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}
