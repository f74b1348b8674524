package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/application/reset"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/infrastructure/email"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/logger"
	http_handlers "github.com/baechuer/real-time-ressys/services/reset-service/internal/transport/http/handlers"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/transport/http/response"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB   func(dsn string) (*sql.DB, error)
	Migrate func(ctx context.Context, db *sql.DB) error

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url, exchange string) (Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

// Publisher is the broker-backed dispatcher.
type Publisher interface {
	reset.Dispatcher
	Close() error
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	lg := logger.Logger

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 1) db (optional in dev)
	var db *sql.DB
	if cfg.DBAddr != "" {
		db, err = deps.NewDB(cfg.DBAddr)
		if err != nil {
			return fail(fmt.Errorf("db connect: %w", err))
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		if cfg.DBAutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := deps.Migrate(ctx, db)
			cancel()
			if err != nil {
				return fail(fmt.Errorf("db migrate: %w", err))
			}
			lg.Info().Msg("migrations applied")
		}
	}

	// 2) redis (best-effort unless it backs the record store)
	var redisCli *redis.Client
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(context.Background()); err != nil {
			_ = c.Close()
			if cfg.RecordStore == config.RecordStoreRedis {
				return fail(domain.ErrRedisUnavailable(err))
			}
			lg.Warn().Err(err).Msg("redis unavailable; using in-process rate limiting")
		} else {
			lg.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) account finders, primary users first
	var finders []reset.AccountFinder
	if db != nil {
		finders = []reset.AccountFinder{postgres.NewUserRepo(db), postgres.NewOwnerRepo(db)}
	} else {
		users := memory.NewAccountRepo(domain.KindPrimaryUser)
		owners := memory.NewAccountRepo(domain.KindOrganizationOwner)
		if cfg.IsDev() {
			if err := memory.SeedDev(users, owners); err != nil {
				return fail(err)
			}
			lg.Warn().Msg("no database configured; using seeded in-memory accounts")
		}
		finders = []reset.AccountFinder{users, owners}
	}

	// 4) record store
	var records reset.RecordStore
	switch cfg.RecordStore {
	case config.RecordStorePostgres:
		if db == nil {
			return fail(fmt.Errorf("record store %q needs a database", cfg.RecordStore))
		}
		records = postgres.NewResetRecordRepo(db)
	case config.RecordStoreRedis:
		if redisCli == nil {
			return fail(fmt.Errorf("record store %q needs redis", cfg.RecordStore))
		}
		records = redis.NewResetRecordStore(redisCli)
	default:
		records = memory.NewResetRecordStore()
	}

	// 5) dispatcher
	dispatcher, closeDispatcher, err := buildDispatcher(cfg, deps, lg)
	if err != nil {
		return fail(err)
	}
	if closeDispatcher != nil {
		cleanupFns = append(cleanupFns, closeDispatcher)
	}

	// 6) security
	codes := security.NewCodeGenerator(cfg.ResetCodeLength)
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	signer := security.NewCorrelationSigner(cfg.ResetTokenSecret, cfg.ResetTokenIssuer, cfg.ResetTokenTTL)

	// 7) service
	resetSvc := reset.NewService(reset.Deps{
		Resolver:   reset.NewResolver(finders...),
		Codes:      codes,
		Hasher:     hasher,
		Records:    records,
		Signer:     signer,
		Dispatcher: dispatcher,
	}, reset.Config{
		DispatchTimeout: cfg.DispatchTimeout,
	}).WithAudit(auditLogger(lg))

	// runs before the dispatcher is closed (cleanup is LIFO)
	cleanupFns = append(cleanupFns, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DispatchTimeout+time.Second)
		defer cancel()
		if err := resetSvc.Drain(ctx); err != nil {
			lg.Warn().Err(err).Msg("pending reset emails not drained")
		}
	})

	// 8) handlers + middleware
	resetH := http_handlers.NewResetHandler(resetSvc, http_handlers.ResetHandlerConfig{
		AllowedHosts:        cfg.AllowedHosts,
		AllowedProtocols:    cfg.AllowedProtocols,
		ConcealUnknownEmail: cfg.ConcealUnknown,
	})

	var healthH *http_handlers.HealthHandler
	if db != nil {
		healthH = http_handlers.NewHealthHandler(db)
	} else {
		healthH = http_handlers.NewHealthHandler(nil)
	}

	// RL_RESET_LIMIT=0 disables limiting
	var rlReset func(http.Handler) http.Handler
	if cfg.RLResetLimit > 0 {
		if redisCli != nil {
			rlReset = middleware.RateLimitFixedWindow(
				redis.NewFixedWindowLimiter(redisCli),
				middleware.FixedWindowConfig{
					RouteKey: "reset.request",
					Limit:    cfg.RLResetLimit,
					Window:   cfg.RLResetWindow,
				},
				response.WriteError,
			)
		} else {
			rlReset = httprate.LimitByIP(cfg.RLResetLimit, cfg.RLResetWindow)
		}
	}

	// 9) router
	mux, err := deps.NewRouter(router.Deps{
		RequestIDMW: middleware.RequestID,
		MetricsMW:   middleware.Metrics,
		Health:      healthH,
		Reset:       resetH,
		Metrics:     promhttp.Handler(),
		RLReset:     rlReset,
	})
	if err != nil {
		return fail(err)
	}

	// 10) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return srv, func() { runCleanup(cleanupFns) }, nil
}

// buildDispatcher returns the configured dispatcher and an optional closer.
// In dev an unreachable broker degrades to the log dispatcher.
func buildDispatcher(cfg *config.Config, deps Deps, lg zerolog.Logger) (reset.Dispatcher, func(), error) {
	switch cfg.Dispatcher {
	case config.DispatcherRabbit:
		pub, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			if cfg.IsDev() {
				lg.Warn().Err(err).Msg("rabbitmq unavailable; using log dispatcher")
				return memory.NewLogDispatcher(lg), nil, nil
			}
			return nil, nil, err
		}
		return pub, func() { _ = pub.Close() }, nil

	case config.DispatcherSMTP:
		d, err := email.NewSMTPDispatcher(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.DispatchTimeout,
			Insecure: cfg.SMTPInsecure,
		}, lg)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil

	default:
		return memory.NewLogDispatcher(lg), nil, nil
	}
}

func auditLogger(lg zerolog.Logger) func(action string, fields map[string]string) {
	return func(action string, fields map[string]string) {
		evt := lg.Info()
		if action == "password_reset.dispatch_failed" ||
			action == "password_reset.storage_failed" ||
			action == "password_reset.cleanup_failed" {
			evt = lg.Warn()
		}
		evt = evt.Bool("audit", true).Str("action", action)
		for k, v := range fields {
			evt = evt.Str(k, v)
		}
		evt.Msg("audit")
	}
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB: func(dsn string) (*sql.DB, error) {
			return postgres.NewDB(dsn, logger.Logger)
		},
		Migrate: postgres.Migrate,
		NewRedis: func(addr, password string, db int) *redis.Client {
			return redis.New(addr, password, db)
		},
		NewPublisher: func(url, exchange string) (Publisher, error) {
			return rabbitmq.NewPublisher(url, exchange)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
