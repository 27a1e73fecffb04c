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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/internal/service/revalidate"
	"github.com/jwalitptl/clinic-api/internal/service/session"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "clinic-api",
		Short: "Clinic scheduling API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(tokenCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return cfg, log, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, log)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("clinic_api", registry)

	// Repositories
	clinicRepo := postgres.NewClinicRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)

	// Cross-instance revalidation
	var broker messaging.Broker
	if cfg.Redis.Enabled {
		rb, err := redisbroker.NewRedisBroker(ctx, redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rb.Close()
		broker = rb
	}

	views := revalidate.NewService(revalidate.Config{
		TTL:             cfg.Cache.ListingTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Channel:         cfg.Redis.Channel,
	}, broker, m, log)
	if err := views.Listen(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to revalidations: %w", err)
	}

	notifier := notification.NewNoop()
	if cfg.Email.Enabled {
		notifier = notification.NewService(email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}), loc, m, log)
	}

	// Services
	sessions := session.NewService(session.Config{
		Secret:        cfg.JWT.Secret,
		Issuer:        cfg.JWT.Issuer,
		MembershipTTL: cfg.Cache.MembershipTTL,
		CleanupPeriod: cfg.Cache.CleanupInterval,
	}, clinicRepo, log)
	appointmentSvc := appointmentService.NewService(appointmentRepo, patientRepo, doctorRepo, views, notifier,
		appointmentService.Config{Location: loc, RejectDoubleBooking: cfg.Scheduling.RejectDoubleBooking}, m, log)
	patientSvc := patientService.NewService(patientRepo, views, m, log)
	doctorSvc := doctorService.NewService(doctorRepo, views, doctorService.SlotConfig{
		Start: cfg.Scheduling.SlotStart,
		End:   cfg.Scheduling.SlotEnd,
		Step:  cfg.Scheduling.SlotStep,
	}, log)

	// Router
	gin.SetMode(cfg.Server.Mode)
	origins := cfg.CORS.AllowedOrigins
	corsConfig := middleware.DefaultCORSConfig()
	if len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	}
	r := router.NewRouter(
		middleware.NewAuthMiddleware(sessions),
		appointmentHandler.NewHandler(appointmentSvc),
		patientHandler.NewHandler(patientSvc),
		doctorHandler.NewHandler(doctorSvc),
		handler.NewHandler(db, registry),
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       corsConfig,
			Timeout:          cfg.Server.WriteTimeout,
			MaxBodySize:      1 << 20,
			MetricsPrefix:    "clinic_api_http",
			Registerer:       registry,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}

func openDB(configPath string) (*sqlx.DB, *config.Config, zerolog.Logger, error) {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, log, err
	}
	db, err := postgres.NewDB(context.Background(), cfg.Database)
	if err != nil {
		return nil, nil, log, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, cfg, log, nil
}

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, _, err := openDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			count, err := postgres.NewMigrator(db).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, _, err := openDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := postgres.NewMigrator(db).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state, at := "pending", ""
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						at = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-30s %-10s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

// tokenCmd signs a bearer token for an existing user; handy for local
// development against an instance without a sign-in front end.
func tokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			db, cfg, log, err := openDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := postgres.NewUserRepository(db).Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to load user: %w", err)
			}

			clinicRepo := postgres.NewClinicRepository(db)
			clinic, err := clinicRepo.GetByUserID(cmd.Context(), id)
			if err != nil {
				log.Warn().Err(err).Str("user_id", id.String()).Msg("user has no clinic; requests will fail with Clinic not found")
			} else {
				fmt.Fprintf(os.Stderr, "clinic: %s (%s)\n", clinic.Name, clinic.ID)
			}

			sessions := session.NewService(session.Config{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, clinicRepo, log)
			token, err := sessions.Issue(model.SessionUser{ID: user.ID, Name: user.Name, Email: user.Email}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
