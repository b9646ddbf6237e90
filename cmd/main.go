// cmd/main.go is the application entry point.
// It wires together all layers and runs the selected command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/config"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/database"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/handler"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/repository"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/seed"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/service"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/tracing"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

type flags struct {
	LogLevel  string
	LogFormat string
	Config    *config.Config
}

func main() {
	if err := setupLogger("info", "console"); err != nil {
		panic(err)
	}

	f := &flags{}

	app := &cli.Command{
		Name:    "activities",
		Usage:   "Mergington High School extracurricular activities API",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("APP_LOG_LEVEL"),
				Value:       "info",
				Destination: &f.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log output format (console, json)",
				Sources:     cli.EnvVars("APP_LOG_FORMAT"),
				Value:       "console",
				Destination: &f.LogFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(f.LogLevel, f.LogFormat); err != nil {
				return ctx, err
			}
			cfg, err := config.Load()
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			f.Config = cfg
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: func(ctx context.Context, _ *cli.Command) error { return serve(ctx, f.Config) },
			},
			{
				Name:   "migrate",
				Usage:  "Apply schema migrations and exit",
				Action: func(ctx context.Context, _ *cli.Command) error { return migrateOnly(ctx, f.Config) },
			},
			{
				Name:   "seed",
				Usage:  "Seed the activity catalog and exit",
				Action: func(ctx context.Context, _ *cli.Command) error { return seedOnly(ctx, f.Config) },
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("unknown command %q. Run 'activities --help' for usage", c.Args().First())
			}
			return serve(ctx, f.Config)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func setupLogger(level, format string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer
	switch format {
	case "json":
		output = os.Stderr
	case "console", "":
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger().Level(parsedLevel)
	return nil
}

// openStore connects to the configured database, applies migrations and
// returns the store with a function that releases the handle.
func openStore(ctx context.Context, cfg *config.Config) (service.Store, func(), error) {
	logger := log.With().Str("component", "database").Logger()

	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.MigratePostgres(pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		logger.Info().Str("host", cfg.Postgres.Host).Str("db", cfg.Postgres.DBName).Msg("connected to PostgreSQL")
		return repository.NewPostgresStore(pool), pool.Close, nil

	default:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.MigrateSQLite(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite")
		return repository.NewSQLiteStore(db), func() { _ = db.Close() }, nil
	}
}

func seedData(cfg *config.Config) ([]model.ActivitySeed, error) {
	if cfg.SeedFile == "" {
		return seed.Default(), nil
	}
	return seed.Load(cfg.SeedFile)
}

func serve(ctx context.Context, cfg *config.Config) error {
	tp, err := tracing.Setup(cfg.TracingExporter, nil)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog := service.NewCatalog(store, cfg.CatalogCacheTTL, log.Logger)

	if cfg.SeedOnStart {
		seeds, err := seedData(cfg)
		if err != nil {
			return err
		}
		if _, err := catalog.Seed(ctx, seeds); err != nil {
			return err
		}
	}

	var opts []service.Option
	if cfg.RequireValidEmail {
		opts = append(opts, service.WithEmailValidation())
	}
	svc := service.NewRegistrationService(store, catalog, log.Logger, opts...)
	h := handler.NewActivityHandler(svc, log.Logger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler.NewRouter(h, cfg.StaticDir, log.With().Str("component", "access").Logger()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func migrateOnly(ctx context.Context, cfg *config.Config) error {
	_, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	closeStore()
	log.Info().Msg("migrations applied")
	return nil
}

func seedOnly(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	seeds, err := seedData(cfg)
	if err != nil {
		return err
	}
	res, err := service.NewCatalog(store, 0, log.Logger).Seed(ctx, seeds)
	if err != nil {
		return err
	}
	fmt.Printf("created %d activities (%d already present), %d new participants\n",
		res.ActivitiesCreated, res.ActivitiesSkipped, res.ParticipantsCreated)
	return nil
}
