package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"table-ordering-service/internal/api"
	"table-ordering-service/internal/cache"
	"table-ordering-service/internal/config"
	"table-ordering-service/internal/database"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/events"
	"table-ordering-service/internal/repository"
	"table-ordering-service/internal/repository/memory"
	"table-ordering-service/internal/service"
	"table-ordering-service/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func main() {
	cliApp := &cli.App{
		Name:  "tableorder",
		Usage: "restaurant table ordering backend",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the periodic cart cleanup",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the database schema",
				Action: migrate,
			},
			{
				Name:  "cleanup",
				Usage: "delete stale cart orders once",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "run even if the last run is recent"},
				},
				Action: cleanupOnce,
			},
			{
				Name:   "sweep",
				Usage:  "cancel idle sessions that have nothing to pay for",
				Action: sweepOnce,
			},
			{
				Name:  "staff",
				Usage: "manage staff accounts",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create a staff account",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringFlag{Name: "role", Value: string(entity.RoleWaiter)},
							&cli.StringFlag{Name: "password", EnvVars: []string{"STAFF_PASSWORD"}, Required: true},
						},
						Action: createStaff,
					},
				},
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

// app holds the process-wide resources a command needs.
type app struct {
	cfg      *config.Config
	services service.Services
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("shutdown")
		}
	}
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.ApplyLogLevel()
	a := &app{cfg: cfg}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	c, err := a.openCache(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	pub, err := a.openPublisher()
	if err != nil {
		a.close()
		return nil, err
	}

	a.services = service.NewServices(
		service.Deps{Store: store, Publisher: pub, Cache: c},
		service.Options{
			JWTSecret:         cfg.JWTSecret,
			JWTTTL:            cfg.JWTTTL,
			BaseURL:           cfg.AppBaseURL,
			CartTTL:           cfg.CartTTL,
			CleanupInterval:   cfg.CleanupInterval,
			StaleSweepEnabled: cfg.StaleSweepEnabled,
			StaleAfter:        cfg.StaleSessionAfter,
		})
	return a, nil
}

func (a *app) openStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.DBDriver == config.DriverMemory {
		logger.Warn().Msg("using the in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	db, err := database.Open(ctx, a.cfg.DBDriver, a.cfg.DatabaseURL, a.cfg.DBConnectRetries)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := migrations.AutoMigrate(ctx, db, 3); err != nil {
		return nil, err
	}
	return repository.NewSQLStore(db), nil
}

// openCache returns nil without Redis; the services then keep state in process.
func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.RedisAddr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, idempotency keys and cleanup runs are kept in memory")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	logger.Info().Str("addr", a.cfg.RedisAddr).Msg("connected to redis")
	return cache.NewRedisCache(rdb), nil
}

func (a *app) openPublisher() (events.Publisher, error) {
	var pub events.Publisher
	switch a.cfg.EventsBroker {
	case config.BrokerKafka:
		pub = events.NewKafkaPublisher(events.NewKafkaWriter(strings.Join(a.cfg.KafkaBrokers, ","), a.cfg.KafkaTopic))
	case config.BrokerRabbitMQ:
		rp, err := events.DialRabbit(a.cfg.RabbitMQURL)
		if err != nil {
			return nil, err
		}
		pub = rp
	default:
		pub = events.NoopPublisher{}
	}
	a.closers = append(a.closers, pub.Close)
	logger.Info().Str("broker", a.cfg.EventsBroker).Msg("event publisher ready")
	return pub, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.cfg.RequireJWT(); err != nil {
		return err
	}

	e := api.NewRouter(api.RouterConfig{
		JWTSecret:     a.cfg.JWTSecret,
		CleanupAPIKey: a.cfg.CleanupAPIKey,
		CronSecret:    a.cfg.CronSecret,
		RateLimit:     a.cfg.RateLimit,
		RateBurst:     a.cfg.RateBurst,
		RequestLog:    true,
	}, a.services)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server starting")
		if err := e.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.services.Cleanup.RunPeriodically(gctx)
	})
	return g.Wait()
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DBDriver == config.DriverMemory {
		return errors.New("nothing to migrate for DB_DRIVER=memory")
	}
	db, err := database.Open(c.Context, cfg.DBDriver, cfg.DatabaseURL, cfg.DBConnectRetries)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.AutoMigrate(c.Context, db, 3); err != nil {
		return err
	}
	logger.Info().Str("driver", cfg.DBDriver).Msg("schema is up to date")
	return nil
}

func cleanupOnce(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.close()
	res, err := a.services.Cleanup.CleanupCarts(c.Context, c.Bool("force"))
	if err != nil {
		return err
	}
	logger.Info().Bool("ran", res.Ran).Int64("deleted", res.Deleted).Strs("warnings", res.Warnings).Msg("cleanup done")
	return nil
}

func sweepOnce(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.close()
	res, err := a.services.Cleanup.SweepStaleSessions(c.Context)
	if err != nil {
		return err
	}
	logger.Info().Bool("enabled", res.Enabled).Strs("cancelled", res.Cancelled).Strs("skipped", res.Skipped).Msg("sweep done")
	return nil
}

func createStaff(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.close()
	member, err := a.services.Staff.Create(c.Context, service.CreateStaffRequest{
		Email:    c.String("email"),
		Name:     c.String("name"),
		Role:     entity.StaffRole(c.String("role")),
		Password: c.String("password"),
	})
	if err != nil {
		return err
	}
	logger.Info().Str("id", member.ID).Str("email", member.Email).Str("role", string(member.Role)).Msg("staff member created")
	return nil
}
