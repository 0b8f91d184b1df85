package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/tasks"
	"github.com/example/task-tracker/modules/web"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "task-tracker",
		Short:   "Personal task tracker with email and Google sign-in",
		Version: Version,
		// main reports the error once.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(createUserCmd())

	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an email/password account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			return createUser(cmd.Context(), email, password)
		},
	}

	cmd.Flags().StringP("email", "e", "", "Account email")
	cmd.Flags().StringP("password", "p", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := mono.LogLevelInfo
	if cfg.LogLevel == "error" {
		level = mono.LogLevelError
	}
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(level),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	logger := app.Logger()

	authModule := auth.NewModule(auth.Config{
		DBPath:         cfg.AuthDBPath,
		DBDebug:        cfg.DBDebug,
		PublicURL:      cfg.PublicURL,
		SigningKey:     cfg.SigningKey,
		GoogleClientID: cfg.GoogleClientID,
		GoogleSecret:   cfg.GoogleSecret,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
	}, logger)

	tasksModule := tasks.NewModule(tasks.Config{
		DBPath:          cfg.TasksDBPath,
		DatabaseURL:     cfg.TasksDatabaseURL,
		DBDebug:         cfg.DBDebug,
		StoreTimeout:    cfg.StoreTimeout,
		ProviderTimeout: cfg.ProviderTimeout,
	}, logger)

	webModule := web.NewModule(web.Config{
		Addr:               cfg.HTTPAddr,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CookieSecure:       cfg.CookieSecure,
		GoogleEnabled:      cfg.GoogleEnabled(),
		Location:           cfg.Location,
		AuthRateLimit:      cfg.AuthRateLimit,
		RedisAddr:          cfg.RedisAddr,
		RedisPassword:      cfg.RedisPassword,
		ProviderTimeout:    cfg.ProviderTimeout,
		StoreTimeout:       cfg.StoreTimeout,
	}, logger, authModule, tasksModule)

	// Order: independent modules first, then dependent modules
	for _, module := range []mono.Module{authModule, tasksModule, webModule} {
		if err := app.Register(module); err != nil {
			return fmt.Errorf("failed to register %s module: %w", module.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
	return nil
}

// createUser provisions an account without going through the HTTP surface.
func createUser(ctx context.Context, email, password string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	level := mono.LogLevelInfo
	if cfg.LogLevel == "error" {
		level = mono.LogLevelError
	}
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(level),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Revocations are not needed to create an account.
	module := auth.NewModule(auth.Config{
		DBPath:     cfg.AuthDBPath,
		DBDebug:    cfg.DBDebug,
		PublicURL:  cfg.PublicURL,
		SigningKey: cfg.SigningKey,
	}, app.Logger())
	if err := module.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = module.Stop(ctx)
	}()

	user, _, err := module.Service().SignUp(ctx, email, password, password)
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	return nil
}

func printStartupInfo(cfg *config.Config) {
	log.Println("")
	log.Println("Task Tracker started successfully!")
	log.Println("")
	log.Printf("Listening on %s (public URL %s)", cfg.HTTPAddr, cfg.PublicURL)
	log.Printf("Google sign-in enabled: %t", cfg.GoogleEnabled())
	log.Println("")
	log.Println("  Pages:")
	log.Println("  GET    /                      - Landing page")
	log.Println("  GET    /auth/login            - Sign in")
	log.Println("  GET    /auth/register         - Create an account")
	log.Println("  GET    /auth/callback         - OAuth callback")
	log.Println("  GET    /dashboard             - Task dashboard (signed in)")
	log.Println("")
	log.Println("  Task API (signed in):")
	log.Println("  GET    /dashboard/tasks       - List tasks")
	log.Println("  POST   /dashboard/tasks       - Create task")
	log.Println("  PATCH  /dashboard/tasks/:id   - Update task")
	log.Println("  DELETE /dashboard/tasks/:id   - Delete task")
	log.Println("  POST   /dashboard/tasks/:id/toggle - Toggle completion")
	log.Println("  GET    /health                - Health check")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
