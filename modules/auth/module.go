package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the settings of the auth module.
type Config struct {
	DBPath         string
	DBDebug        bool
	PublicURL      string
	SigningKey     string
	GoogleClientID string
	GoogleSecret   string
	RedisAddr      string
	RedisPassword  string
}

// AuthModule is the identity provider: accounts, sessions and sign-in.
type AuthModule struct {
	config  Config
	logger  types.Logger
	db      *gorm.DB
	redis   *redis.Client
	service *AuthService
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(config Config, logger types.Logger) *AuthModule {
	return &AuthModule{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Service returns the underlying service once the module has started.
func (m *AuthModule) Service() *AuthService {
	return m.service
}

// OpenDatabase opens the identity database and migrates the user schema.
func OpenDatabase(path string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Start initializes the auth module.
func (m *AuthModule) Start(ctx context.Context) error {
	if m.config.SigningKey == "" || m.config.PublicURL == "" {
		return apperr.Configuration("auth module requires a public URL and a signing key")
	}

	db, err := OpenDatabase(m.config.DBPath, m.config.DBDebug)
	if err != nil {
		return err
	}
	m.db = db

	var revocations RevocationStore = NewMemoryRevocationStore()
	if m.config.RedisAddr != "" {
		m.redis = redis.NewClient(&redis.Options{
			Addr:     m.config.RedisAddr,
			Password: m.config.RedisPassword,
		})
		store := NewRedisRevocationStore(m.redis)
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", m.config.RedisAddr, err)
		}
		revocations = store
	}

	var oauth OAuthProvider
	if m.config.GoogleClientID != "" && m.config.GoogleSecret != "" {
		oauth = NewGoogleProvider(m.config.GoogleClientID, m.config.GoogleSecret, m.config.PublicURL)
	}

	m.service = NewAuthService(Dependencies{
		Repo:        NewUserRepository(db),
		Hasher:      NewPasswordHasher(),
		JWT:         NewJWTManager(DefaultJWTConfig(m.config.SigningKey, m.config.PublicURL)),
		Revocations: revocations,
		OAuth:       oauth,
		Mailer:      NewLogMailer(m.logger),
		PublicURL:   m.config.PublicURL,
	})

	m.logger.Info("Auth module started",
		"database", m.config.DBPath,
		"google", oauth != nil,
		"shared_revocations", m.redis != nil)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.logger.Warn("Failed to close redis client", "error", err)
		}
	}
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	if m.redis != nil {
		if err := m.redis.Ping(ctx).Err(); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
			}
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.config.DBPath,
			"google":   m.service.OAuthEnabled(),
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSignUp, json.Unmarshal, json.Marshal, m.handleSignUp,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSignUp, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSignIn, json.Unmarshal, json.Marshal, m.handleSignIn,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSignIn, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceOAuthURL, json.Unmarshal, json.Marshal, m.handleOAuthURL,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceOAuthURL, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceExchangeCode, json.Unmarshal, json.Marshal, m.handleExchangeCode,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceExchangeCode, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSignOut, json.Unmarshal, json.Marshal, m.handleSignOut,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSignOut, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceResolveSession, json.Unmarshal, json.Marshal, m.handleResolveSession,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceResolveSession, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceResetPassword, json.Unmarshal, json.Marshal, m.handleResetPassword,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceResetPassword, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdatePassword, json.Unmarshal, json.Marshal, m.handleUpdatePassword,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdatePassword, err)
	}

	m.logger.Info("Registered auth services",
		"services", []string{
			ServiceSignUp, ServiceSignIn, ServiceOAuthURL, ServiceExchangeCode,
			ServiceSignOut, ServiceResolveSession, ServiceResetPassword, ServiceUpdatePassword,
		})
	return nil
}

// Failures are returned inside the response so their kind survives the
// service boundary; the handler error is reserved for transport problems.

func (m *AuthModule) handleSignUp(ctx context.Context, req SignUpRequest, _ *mono.Msg) (SessionResponse, error) {
	user, tokens, err := m.service.SignUp(ctx, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		return SessionResponse{Failure: m.failure("sign-up", err)}, nil
	}
	return SessionResponse{User: user.Identity(), Tokens: tokens}, nil
}

func (m *AuthModule) handleSignIn(ctx context.Context, req SignInRequest, _ *mono.Msg) (SessionResponse, error) {
	user, tokens, err := m.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return SessionResponse{Failure: m.failure("sign-in", err)}, nil
	}
	return SessionResponse{User: user.Identity(), Tokens: tokens}, nil
}

func (m *AuthModule) handleOAuthURL(ctx context.Context, _ OAuthURLRequest, _ *mono.Msg) (OAuthURLResponse, error) {
	url, state, err := m.service.OAuthURL(ctx)
	if err != nil {
		return OAuthURLResponse{Failure: m.failure("oauth-url", err)}, nil
	}
	return OAuthURLResponse{URL: url, State: state}, nil
}

func (m *AuthModule) handleExchangeCode(ctx context.Context, req ExchangeCodeRequest, _ *mono.Msg) (SessionResponse, error) {
	user, tokens, err := m.service.ExchangeCode(ctx, req.Code, req.State)
	if err != nil {
		return SessionResponse{Failure: m.failure("exchange-code", err)}, nil
	}
	return SessionResponse{User: user.Identity(), Tokens: tokens}, nil
}

func (m *AuthModule) handleSignOut(ctx context.Context, req SignOutRequest, _ *mono.Msg) (AckResponse, error) {
	return AckResponse{Failure: m.failure("sign-out", m.service.SignOut(ctx, req.Credentials))}, nil
}

func (m *AuthModule) handleResolveSession(ctx context.Context, req ResolveSessionRequest, _ *mono.Msg) (ResolveSessionResponse, error) {
	res, err := m.service.ResolveSession(ctx, req.Credentials, req.AllowRefresh)
	if err != nil {
		return ResolveSessionResponse{Failure: m.failure("resolve-session", err)}, nil
	}
	return ResolveSessionResponse{
		User:      res.User,
		Refreshed: res.Refreshed,
		Invalid:   res.Invalid,
	}, nil
}

func (m *AuthModule) handleResetPassword(ctx context.Context, req ResetPasswordRequest, _ *mono.Msg) (AckResponse, error) {
	return AckResponse{Failure: m.failure("reset-password", m.service.ResetPassword(ctx, req.Email))}, nil
}

func (m *AuthModule) handleUpdatePassword(ctx context.Context, req UpdatePasswordRequest, _ *mono.Msg) (AckResponse, error) {
	err := m.service.UpdatePassword(ctx, req.Token, req.Password, req.ConfirmPassword)
	return AckResponse{Failure: m.failure("update-password", err)}, nil
}

// failure converts err for the response and logs unexpected causes.
func (m *AuthModule) failure(op string, err error) *apperr.Payload {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		m.logger.Warn("Auth operation failed", "operation", op, "error", err)
	}
	return apperr.ToPayload(err, apperr.KindProvider)
}
