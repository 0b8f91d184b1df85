package auth

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/domain/session"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when password is too short.
	ErrWeakPassword = errors.New("password must be at least 6 characters long")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrPasswordMismatch is returned when the confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrOAuthDisabled is returned when no OAuth provider is configured.
	ErrOAuthDisabled = errors.New("google sign-in is not configured")
	// ErrInvalidState is returned when the OAuth state does not verify.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrInvalidResetToken is returned for unusable password reset links.
	ErrInvalidResetToken = errors.New("password reset link is invalid or has expired")
)

// rotationReuseWindow lets requests that raced with a refresh reuse its
// result instead of presenting an already-rotated token.
const rotationReuseWindow = 10 * time.Second

// Resolution is the outcome of resolving presented credentials.
type Resolution struct {
	User *domain.Identity
	// Refreshed is set when the credentials were rotated and must be
	// written back to the client.
	Refreshed *session.Tokens
	// Invalid is set when credentials were presented but can never
	// establish a session and should be discarded.
	Invalid bool
}

// Dependencies are the collaborators of AuthService.
type Dependencies struct {
	Repo        *UserRepository
	Hasher      *PasswordHasher
	JWT         *JWTManager
	Revocations RevocationStore
	OAuth       OAuthProvider
	Mailer      Mailer
	PublicURL   string
}

// AuthService handles authentication business logic.
type AuthService struct {
	repo        *UserRepository
	hasher      *PasswordHasher
	jwt         *JWTManager
	revocations RevocationStore
	oauth       OAuthProvider
	mailer      Mailer
	publicURL   string

	refreshGroup singleflight.Group
	rotations    *rotationCache
}

// NewAuthService creates a new AuthService.
func NewAuthService(deps Dependencies) *AuthService {
	revocations := deps.Revocations
	if revocations == nil {
		revocations = NewMemoryRevocationStore()
	}
	return &AuthService{
		repo:        deps.Repo,
		hasher:      deps.Hasher,
		jwt:         deps.JWT,
		revocations: revocations,
		oauth:       deps.OAuth,
		mailer:      deps.Mailer,
		publicURL:   strings.TrimRight(deps.PublicURL, "/"),
		rotations:   newRotationCache(rotationReuseWindow),
	}
}

// OAuthEnabled reports whether third-party sign-in is available.
func (s *AuthService) OAuthEnabled() bool {
	return s.oauth != nil
}

// SignUp creates an email/password account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, email, password, confirmPassword string) (*domain.User, *session.Tokens, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if password != confirmPassword {
		return nil, nil, apperr.Wrap(apperr.KindValidation, ErrPasswordMismatch)
	}
	if err := ValidatePassword(password); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindValidation, err)
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, nil, apperr.Provider("failed to check email existence", err)
	}
	if exists {
		return nil, nil, apperr.Wrap(apperr.KindProvider, ErrUserExists)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, apperr.Provider("failed to hash password", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, nil, apperr.Wrap(apperr.KindProvider, err)
		}
		return nil, nil, apperr.Provider("failed to create user", err)
	}

	tokens, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// SignIn authenticates with email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.User, *session.Tokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, apperr.Wrap(apperr.KindProvider, ErrInvalidCredentials)
		}
		return nil, nil, apperr.Provider("failed to find user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil, apperr.Wrap(apperr.KindProvider, ErrInvalidCredentials)
	}

	tokens, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// OAuthURL returns the provider consent URL together with the state value
// the callback must echo back.
func (s *AuthService) OAuthURL(_ context.Context) (string, string, error) {
	if s.oauth == nil {
		return "", "", apperr.Wrap(apperr.KindProvider, ErrOAuthDisabled)
	}
	state, err := s.jwt.GenerateStateToken()
	if err != nil {
		return "", "", apperr.Provider("failed to generate oauth state", err)
	}
	return s.oauth.AuthCodeURL(state), state, nil
}

// ExchangeCode completes an OAuth sign-in. The account is found by provider
// subject, then linked by verified email, then created.
func (s *AuthService) ExchangeCode(ctx context.Context, code, state string) (*domain.User, *session.Tokens, error) {
	if s.oauth == nil {
		return nil, nil, apperr.Wrap(apperr.KindProvider, ErrOAuthDisabled)
	}
	if _, err := s.jwt.ValidateStateToken(state); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindProvider, ErrInvalidState)
	}

	ext, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, apperr.Provider("failed to exchange authorization code", err)
	}

	user, err := s.findOrCreateExternal(ctx, ext)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *AuthService) findOrCreateExternal(ctx context.Context, ext *ExternalIdentity) (*domain.User, error) {
	user, err := s.repo.FindByGoogleSubject(ctx, ext.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Provider("failed to find user", err)
	}

	email := strings.ToLower(strings.TrimSpace(ext.Email))
	if ext.EmailVerified {
		user, err = s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.repo.LinkGoogleSubject(ctx, user.ID, ext.Subject); err != nil {
				return nil, apperr.Provider("failed to link google account", err)
			}
			subject := ext.Subject
			user.GoogleSubject = &subject
			return user, nil
		case !errors.Is(err, ErrUserNotFound):
			return nil, apperr.Provider("failed to find user", err)
		}
	}

	subject := ext.Subject
	now := time.Now()
	user = &domain.User{
		ID:            uuid.New().String(),
		Email:         email,
		GoogleSubject: &subject,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, apperr.Wrap(apperr.KindProvider, err)
		}
		return nil, apperr.Provider("failed to create user", err)
	}
	return user, nil
}

// SignOut revokes both tokens of a session. Unparseable tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, creds session.Credentials) error {
	if claims, err := s.jwt.ValidateAccessToken(creds.AccessToken); err == nil {
		if err := s.revocations.Revoke(ctx, claims.ID, claims.TTL()); err != nil {
			return apperr.Provider("failed to revoke session", err)
		}
	}
	if claims, err := s.jwt.ValidateRefreshToken(creds.RefreshToken); err == nil {
		s.rotations.forget(claims.ID)
		if err := s.revocations.Revoke(ctx, claims.ID, claims.TTL()); err != nil {
			return apperr.Provider("failed to revoke session", err)
		}
	}
	return nil
}

// ResolveSession maps presented credentials to a user. With allowRefresh, an
// unusable access token is replaced by rotating the refresh token.
func (s *AuthService) ResolveSession(ctx context.Context, creds session.Credentials, allowRefresh bool) (*Resolution, error) {
	if creds.Empty() {
		return &Resolution{}, nil
	}

	if creds.AccessToken != "" {
		user, err := s.userFromAccessToken(ctx, creds.AccessToken)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return &Resolution{User: user}, nil
		}
	}

	if !allowRefresh {
		return &Resolution{}, nil
	}
	if creds.RefreshToken == "" {
		return &Resolution{Invalid: true}, nil
	}
	return s.refresh(ctx, creds.RefreshToken)
}

func (s *AuthService) userFromAccessToken(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, nil
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Provider("failed to check token revocation", err)
	}
	if revoked {
		return nil, nil
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, apperr.Provider("failed to find user", err)
	}
	return user.Identity(), nil
}

type rotation struct {
	user   *domain.Identity
	tokens *session.Tokens
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (*Resolution, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return &Resolution{Invalid: true}, nil
	}

	v, err, _ := s.refreshGroup.Do(claims.ID, func() (any, error) {
		if r, ok := s.rotations.get(claims.ID); ok {
			return r, nil
		}

		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperr.Provider("failed to check token revocation", err)
		}
		if revoked {
			return nil, nil
		}

		user, err := s.repo.FindByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, nil
			}
			return nil, apperr.Provider("failed to find user", err)
		}

		tokens, err := s.issue(user)
		if err != nil {
			return nil, err
		}
		if err := s.revocations.Revoke(ctx, claims.ID, claims.TTL()); err != nil {
			return nil, apperr.Provider("failed to rotate refresh token", err)
		}

		r := &rotation{user: user.Identity(), tokens: tokens}
		s.rotations.put(claims.ID, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	r, _ := v.(*rotation)
	if r == nil {
		return &Resolution{Invalid: true}, nil
	}
	return &Resolution{User: r.user, Refreshed: r.tokens}, nil
}

// ResetPassword hands a reset link to the mailer when the account exists.
// Unknown addresses succeed silently so accounts cannot be enumerated.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return apperr.Provider("failed to find user", err)
	}

	token, err := s.jwt.GenerateResetToken(user.ID, user.Email)
	if err != nil {
		return apperr.Provider("failed to generate reset token", err)
	}

	link := s.publicURL + "/auth/update-password?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return apperr.Provider("failed to send reset email", err)
	}
	return nil
}

// UpdatePassword sets a new password using a reset token. Each token can be
// used once.
func (s *AuthService) UpdatePassword(ctx context.Context, resetToken, password, confirmPassword string) error {
	if password != confirmPassword {
		return apperr.Wrap(apperr.KindValidation, ErrPasswordMismatch)
	}
	if err := ValidatePassword(password); err != nil {
		return apperr.Wrap(apperr.KindValidation, err)
	}

	claims, err := s.jwt.ValidateResetToken(resetToken)
	if err != nil {
		return apperr.Wrap(apperr.KindProvider, ErrInvalidResetToken)
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return apperr.Provider("failed to check token revocation", err)
	}
	if revoked {
		return apperr.Wrap(apperr.KindProvider, ErrInvalidResetToken)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Provider("failed to hash password", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, claims.UserID, passwordHash); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperr.Wrap(apperr.KindProvider, ErrInvalidResetToken)
		}
		return apperr.Provider("failed to update password", err)
	}

	if err := s.revocations.Revoke(ctx, claims.ID, claims.TTL()); err != nil {
		return apperr.Provider("failed to consume reset token", err)
	}
	return nil
}

// issue generates a fresh access and refresh token pair.
func (s *AuthService) issue(user *domain.User) (*session.Tokens, error) {
	accessToken, accessExp, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Provider("failed to generate access token", err)
	}

	refreshToken, refreshExp, err := s.jwt.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Provider("failed to generate refresh token", err)
	}

	return &session.Tokens{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Wrap(apperr.KindValidation, ErrInvalidEmail)
	}
	return email, nil
}

// rotationCache remembers recent refresh results keyed by the rotated
// token id.
type rotationCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]rotationEntry
	now     func() time.Time
}

type rotationEntry struct {
	r       *rotation
	expires time.Time
}

func newRotationCache(window time.Duration) *rotationCache {
	return &rotationCache{
		window:  window,
		entries: make(map[string]rotationEntry),
		now:     time.Now,
	}
}

func (c *rotationCache) get(id string) (*rotation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.r, true
}

func (c *rotationCache) put(id string, r *rotation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[id] = rotationEntry{r: r, expires: now.Add(c.window)}
}

func (c *rotationCache) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}
