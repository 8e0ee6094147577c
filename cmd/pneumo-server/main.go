package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pneumo/pneumo/internal/config"
	"github.com/pneumo/pneumo/internal/domain/admin"
	"github.com/pneumo/pneumo/internal/domain/classify"
	"github.com/pneumo/pneumo/internal/domain/screening"
	"github.com/pneumo/pneumo/internal/domain/user"
	"github.com/pneumo/pneumo/internal/platform/auth"
	"github.com/pneumo/pneumo/internal/platform/db"
	"github.com/pneumo/pneumo/internal/platform/imaging"
	"github.com/pneumo/pneumo/internal/platform/middleware"
	"github.com/pneumo/pneumo/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pneumo-server",
		Short: "Pneumonia screening case API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the screening API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := user.NewService(user.NewUserRepoPG(pool))
			u, err := svc.Create(ctx, user.CreateUserInput{
				Username: username,
				Password: password,
				Role:     auth.Role(role),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (id=%d, role=%s)\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("role", string(auth.RoleAdmin), "Account role (worker, clinician, admin)")
	cmd.AddCommand(createCmd)

	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// smtpConfigSource resolves relay settings from the admin service on each
// send, so settings changes apply without a restart.
func smtpConfigSource(adminSvc *admin.Service) notification.ConfigSource {
	return func(ctx context.Context) (notification.SMTPConfig, error) {
		s, err := adminSvc.GetSettings(ctx)
		if err != nil {
			return notification.SMTPConfig{}, err
		}
		return notification.SMTPConfig{
			Host:     s.SMTPHost,
			Port:     s.SMTPPort,
			Username: s.SMTPUsername,
			Password: s.SMTPPassword,
			From:     s.FromAddress,
		}, nil
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(cfg.JWTSecret))
	}

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", db.HealthHandler(pool))

	// Admin settings
	adminSvc := admin.NewService(admin.NewSettingsRepoPG(pool))
	adminHandler := admin.NewHandler(adminSvc)
	adminHandler.RegisterRoutes(apiV1)

	// Accounts and authentication
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	userSvc := user.NewService(user.NewUserRepoPG(pool))
	userHandler := user.NewHandler(userSvc, tokens)
	userHandler.RegisterRoutes(apiV1, apiV1)

	// Image storage
	images, err := imaging.NewDiskStore(cfg.ImagesDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.ImagesDir).Msg("failed to open image store")
	}

	// Screening cases
	screeningSvc := screening.NewService(screening.NewCaseRepoPG(pool), images)
	screeningHandler := screening.NewHandler(screeningSvc)
	screeningHandler.RegisterRoutes(apiV1)

	// Automated triage
	if cfg.ClassifierURL != "" {
		classifier := classify.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout)
		screeningSvc.SetTriager(classify.NewAdapter(classifier, screeningSvc))
		logger.Info().Str("url", cfg.ClassifierURL).Msg("classifier enabled")
	} else {
		logger.Warn().Msg("CLASSIFIER_URL not set; automated triage is disabled")
	}

	// Patient follow-up email
	var sender notification.EmailSender
	if cfg.IsDev() {
		sender = notification.NewLogSender(logger)
	} else {
		sender = notification.NewSMTPSender(smtpConfigSource(adminSvc))
	}
	notifyManager := notification.NewManager(sender, notification.NewTemplateEngine())
	notifyEnabled := func(ctx context.Context) bool {
		s, err := adminSvc.GetSettings(ctx)
		return err == nil && s.NotifyOnConfirm
	}
	screeningSvc.SetNotifier(notification.NewCaseNotifier(notifyManager, logger, notifyEnabled))

	// Serve with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
