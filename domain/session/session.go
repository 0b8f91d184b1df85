// Package session holds the credential types that travel between the browser,
// the HTTP layer and the identity provider.
package session

import (
	"context"
	"time"
)

// Cookie names carrying the session credentials.
const (
	AccessCookie  = "tt-access-token"
	RefreshCookie = "tt-refresh-token"
)

// Credentials are the opaque tokens a browser presents on each request.
type Credentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether no credential was presented.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Tokens is a freshly issued credential pair with expiry times.
type Tokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Credentials returns the pair in the form presented back on later requests.
func (t Tokens) Credentials() Credentials {
	return Credentials{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}

type credentialsKey struct{}

// WithCredentials returns a copy of ctx carrying creds.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// FromContext returns the credentials carried by ctx.
func FromContext(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}
