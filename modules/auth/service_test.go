package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/domain/session"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Every pooled connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// fakeOAuthProvider implements OAuthProvider for testing
type fakeOAuthProvider struct {
	exchangeFunc func(ctx context.Context, code string) (*ExternalIdentity, error)
}

func (f *fakeOAuthProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/consent?state=" + url.QueryEscape(state)
}

func (f *fakeOAuthProvider) Exchange(ctx context.Context, code string) (*ExternalIdentity, error) {
	if f.exchangeFunc != nil {
		return f.exchangeFunc(ctx, code)
	}
	return nil, errors.New("not implemented")
}

// recordingMailer implements Mailer for testing
type recordingMailer struct {
	mu    sync.Mutex
	sent  map[string]string
	fails bool
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, link string) error {
	if m.fails {
		return errors.New("smtp down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = make(map[string]string)
	}
	m.sent[email] = link
	return nil
}

type testService struct {
	*AuthService
	repo   *UserRepository
	jwt    *JWTManager
	oauth  *fakeOAuthProvider
	mailer *recordingMailer
}

func newTestService(t *testing.T) *testService {
	t.Helper()

	repo := NewUserRepository(setupTestDB(t))
	jwt := NewJWTManager(testJWTConfig())
	oauth := &fakeOAuthProvider{}
	mailer := &recordingMailer{}

	svc := NewAuthService(Dependencies{
		Repo:        repo,
		Hasher:      NewPasswordHasherWithCost(bcrypt.MinCost),
		JWT:         jwt,
		Revocations: NewMemoryRevocationStore(),
		OAuth:       oauth,
		Mailer:      mailer,
		PublicURL:   "http://localhost:3000/",
	})
	return &testService{AuthService: svc, repo: repo, jwt: jwt, oauth: oauth, mailer: mailer}
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		wantKind apperr.Kind
		wantErr  error
	}{
		{"invalid email", "not-an-email", "secret1", "secret1", apperr.KindValidation, ErrInvalidEmail},
		{"display name form", "Bob <bob@example.com>", "secret1", "secret1", apperr.KindValidation, ErrInvalidEmail},
		{"mismatched confirmation", "a@example.com", "secret1", "secret2", apperr.KindValidation, ErrPasswordMismatch},
		{"short password", "a@example.com", "12345", "12345", apperr.KindValidation, ErrWeakPassword},
		{"too long password", "a@example.com", strings.Repeat("x", 73), strings.Repeat("x", 73), apperr.KindValidation, ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			_, _, err := svc.SignUp(context.Background(), tt.email, tt.password, tt.confirm)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignUpThenSignIn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, tokens, err := svc.SignUp(ctx, "  Alice@Example.com ", "secret1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	_, _, err = svc.SignUp(ctx, "alice@example.com", "secret1", "secret1")
	assert.ErrorIs(t, err, ErrUserExists)
	assert.ErrorIs(t, err, apperr.ErrProvider)

	signedIn, _, err := svc.SignIn(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)

	_, _, err = svc.SignIn(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveSession_AccessToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, tokens, err := svc.SignUp(ctx, "bob@example.com", "secret1", "secret1")
	require.NoError(t, err)

	res, err := svc.ResolveSession(ctx, tokens.Credentials(), true)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, "bob@example.com", res.User.Email)
	assert.Nil(t, res.Refreshed)
	assert.False(t, res.Invalid)
}

func TestResolveSession_NoCredentials(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.ResolveSession(context.Background(), session.Credentials{}, true)
	require.NoError(t, err)
	assert.Nil(t, res.User)
	assert.False(t, res.Invalid)
}

func TestResolveSession_RefreshRotates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, tokens, err := svc.SignUp(ctx, "carol@example.com", "secret1", "secret1")
	require.NoError(t, err)

	expired := session.Credentials{AccessToken: "garbage", RefreshToken: tokens.RefreshToken}

	res, err := svc.ResolveSession(ctx, expired, false)
	require.NoError(t, err)
	assert.Nil(t, res.User, "refresh must not happen when disallowed")
	assert.Nil(t, res.Refreshed)

	res, err = svc.ResolveSession(ctx, expired, true)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, user.ID, res.User.ID)
	require.NotNil(t, res.Refreshed)
	assert.NotEqual(t, tokens.RefreshToken, res.Refreshed.RefreshToken)

	// The rotated pair resolves on its own.
	again, err := svc.ResolveSession(ctx, res.Refreshed.Credentials(), true)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.User.ID)
	assert.Nil(t, again.Refreshed)
}

func TestResolveSession_ReuseWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, tokens, err := svc.SignUp(ctx, "dan@example.com", "secret1", "secret1")
	require.NoError(t, err)
	creds := session.Credentials{RefreshToken: tokens.RefreshToken}

	first, err := svc.ResolveSession(ctx, creds, true)
	require.NoError(t, err)
	second, err := svc.ResolveSession(ctx, creds, true)
	require.NoError(t, err)

	require.NotNil(t, second.Refreshed)
	assert.Equal(t, first.Refreshed.RefreshToken, second.Refreshed.RefreshToken)

	// Past the window the old token is spent.
	svc.rotations.forget(mustClaims(t, svc.jwt, tokens.RefreshToken).ID)
	third, err := svc.ResolveSession(ctx, creds, true)
	require.NoError(t, err)
	assert.True(t, third.Invalid)
	assert.Nil(t, third.User)
}

func TestResolveSession_ConcurrentRefreshSharesResult(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, tokens, err := svc.SignUp(ctx, "erin@example.com", "secret1", "secret1")
	require.NoError(t, err)
	creds := session.Credentials{RefreshToken: tokens.RefreshToken}

	const n = 8
	results := make([]*Resolution, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.ResolveSession(ctx, creds, true)
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.NotNil(t, res, "result %d", i)
		require.NotNil(t, res.Refreshed, "result %d", i)
		assert.Equal(t, results[0].Refreshed.RefreshToken, res.Refreshed.RefreshToken)
	}
}

func TestResolveSession_InvalidCredentials(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name  string
		creds session.Credentials
	}{
		{"bad access token without refresh", session.Credentials{AccessToken: "garbage"}},
		{"bad refresh token", session.Credentials{RefreshToken: "garbage"}},
		{"access token presented as refresh", func() session.Credentials {
			tok, _, _ := svc.jwt.GenerateAccessToken("ghost", "ghost@example.com")
			return session.Credentials{RefreshToken: tok}
		}()},
		{"refresh token of deleted user", func() session.Credentials {
			tok, _, _ := svc.jwt.GenerateRefreshToken("ghost", "ghost@example.com")
			return session.Credentials{RefreshToken: tok}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.ResolveSession(context.Background(), tt.creds, true)
			require.NoError(t, err)
			assert.Nil(t, res.User)
			assert.True(t, res.Invalid)
		})
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, tokens, err := svc.SignUp(ctx, "frank@example.com", "secret1", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, tokens.Credentials()))

	res, err := svc.ResolveSession(ctx, tokens.Credentials(), true)
	require.NoError(t, err)
	assert.Nil(t, res.User)
	assert.True(t, res.Invalid)

	// Garbage credentials are ignored.
	assert.NoError(t, svc.SignOut(ctx, session.Credentials{AccessToken: "x", RefreshToken: "y"}))
}

func TestOAuthURL(t *testing.T) {
	svc := newTestService(t)

	consent, state, err := svc.OAuthURL(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.Contains(t, consent, url.QueryEscape(state))

	_, err = svc.jwt.ValidateStateToken(state)
	assert.NoError(t, err)
}

func TestOAuthDisabled(t *testing.T) {
	svc := newTestService(t)
	svc.AuthService.oauth = nil

	_, _, err := svc.OAuthURL(context.Background())
	assert.ErrorIs(t, err, ErrOAuthDisabled)

	_, _, err = svc.ExchangeCode(context.Background(), "code", "state")
	assert.ErrorIs(t, err, ErrOAuthDisabled)
}

func TestExchangeCode(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects forged state", func(t *testing.T) {
		svc := newTestService(t)
		_, _, err := svc.ExchangeCode(ctx, "code", "forged")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("provider failure", func(t *testing.T) {
		svc := newTestService(t)
		svc.oauth.exchangeFunc = func(context.Context, string) (*ExternalIdentity, error) {
			return nil, errors.New("invalid_grant")
		}
		_, state, _ := svc.OAuthURL(ctx)
		_, _, err := svc.ExchangeCode(ctx, "expired", state)
		assert.ErrorIs(t, err, apperr.ErrProvider)
	})

	t.Run("creates then finds by subject", func(t *testing.T) {
		svc := newTestService(t)
		svc.oauth.exchangeFunc = func(_ context.Context, code string) (*ExternalIdentity, error) {
			return &ExternalIdentity{Subject: "g-1", Email: "Grace@Example.com", EmailVerified: true}, nil
		}
		_, state, _ := svc.OAuthURL(ctx)

		first, tokens, err := svc.ExchangeCode(ctx, "code-1", state)
		require.NoError(t, err)
		assert.Equal(t, "grace@example.com", first.Email)
		assert.False(t, first.HasPassword())
		assert.NotEmpty(t, tokens.AccessToken)

		second, _, err := svc.ExchangeCode(ctx, "code-2", state)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		// Google-only accounts cannot sign in with an empty password.
		_, _, err = svc.SignIn(ctx, "grace@example.com", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("links verified email to existing account", func(t *testing.T) {
		svc := newTestService(t)
		existing, _, err := svc.SignUp(ctx, "heidi@example.com", "secret1", "secret1")
		require.NoError(t, err)

		svc.oauth.exchangeFunc = func(context.Context, string) (*ExternalIdentity, error) {
			return &ExternalIdentity{Subject: "g-2", Email: "heidi@example.com", EmailVerified: true}, nil
		}
		_, state, _ := svc.OAuthURL(ctx)

		linked, _, err := svc.ExchangeCode(ctx, "code", state)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, linked.ID)

		stored, err := svc.repo.FindByGoogleSubject(ctx, "g-2")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, stored.ID)
	})

	t.Run("unverified email does not take over account", func(t *testing.T) {
		svc := newTestService(t)
		_, _, err := svc.SignUp(ctx, "ivan@example.com", "secret1", "secret1")
		require.NoError(t, err)

		svc.oauth.exchangeFunc = func(context.Context, string) (*ExternalIdentity, error) {
			return &ExternalIdentity{Subject: "g-3", Email: "ivan@example.com"}, nil
		}
		_, state, _ := svc.OAuthURL(ctx)

		_, _, err = svc.ExchangeCode(ctx, "code", state)
		assert.ErrorIs(t, err, ErrUserExists)
	})
}

func TestPasswordReset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.SignUp(ctx, "judy@example.com", "secret1", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, "nobody@example.com"))
	assert.Empty(t, svc.mailer.sent)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "nope"), apperr.ErrValidation)

	require.NoError(t, svc.ResetPassword(ctx, "judy@example.com"))
	link := svc.mailer.sent["judy@example.com"]
	require.True(t, strings.HasPrefix(link, "http://localhost:3000/auth/update-password?token="), link)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	token := parsed.Query().Get("token")

	err = svc.UpdatePassword(ctx, token, "newsecret", "different")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	require.NoError(t, svc.UpdatePassword(ctx, token, "newsecret", "newsecret"))

	_, _, err = svc.SignIn(ctx, "judy@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.SignIn(ctx, "judy@example.com", "newsecret")
	assert.NoError(t, err)

	// Reset links are single use.
	err = svc.UpdatePassword(ctx, token, "another1", "another1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestPasswordReset_MailerFailure(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.SignUp(ctx, "ken@example.com", "secret1", "secret1")
	require.NoError(t, err)

	svc.mailer.fails = true
	assert.ErrorIs(t, svc.ResetPassword(ctx, "ken@example.com"), apperr.ErrProvider)
}

func mustClaims(t *testing.T, m *JWTManager, token string) *JWTClaims {
	t.Helper()
	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	return claims
}
