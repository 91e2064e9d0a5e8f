// Command recipectl runs recipe-sharing operations against the configured store.
//
//	recipectl [global flags] <command> [command flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/importer"
	"github.com/pageza/recipeshare/backend/internal/logging"
	"github.com/pageza/recipeshare/backend/internal/metrics"
	"github.com/pageza/recipeshare/backend/internal/ratelimit"
	"github.com/pageza/recipeshare/backend/internal/security"
	"github.com/pageza/recipeshare/backend/internal/service"
	"github.com/redis/go-redis/v9"
)

// app holds everything a command needs.
type app struct {
	cfg      *config.Config
	svc      *service.Services
	importer *importer.Importer
	limiter  *ratelimit.Limiter
	s3       *importer.S3Source
	out      io.Writer
	closers  []func()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("recipectl", flag.ContinueOnError)
	global.SetOutput(stderr)
	migrate := global.Bool("migrate", true, "apply schema migrations before running the command")
	metricsFile := global.String("metrics-file", os.Getenv("METRICS_TEXTFILE"), "write Prometheus metrics here on exit")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		usage(stderr)
		return exitUsage
	}

	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return exitUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitInternal
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithCorrelationID(ctx, logging.NewCorrelationID())

	a, err := bootstrap(ctx, cfg, *migrate, stdout)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("startup failed")
		return exitInternal
	}
	defer a.close()
	if *metricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(*metricsFile); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("path", *metricsFile).Msg("failed to write metrics")
			}
		}()
	}

	result, err := cmd.run(ctx, a, rest)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		code := exitCode(err)
		logging.Ctx(ctx).Debug().Err(err).Str("command", name).Int("exit_code", code).Msg("command failed")
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return code
	}
	if result != nil {
		if err := a.print(result); err != nil {
			fmt.Fprintf(stderr, "output: %v\n", err)
			return exitInternal
		}
	}
	return exitOK
}

// bootstrap opens the store and the optional Redis, NATS and S3 backends.
func bootstrap(ctx context.Context, cfg *config.Config, migrate bool, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, out: out}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	if err := database.HealthCheck(ctx, db); err != nil {
		a.close()
		return nil, fmt.Errorf("database is not reachable: %w", err)
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			a.close()
			return nil, err
		}
	}
	runner := database.NewRunner(db, cfg.Database.TxTimeout, cfg.Database.MaxRetries)

	var pub events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNatsPublisher(cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, np.Close)
		pub = np
	}

	var locker importer.Locker
	if cfg.Redis.URL != "" {
		client, err := database.NewRedisClient(cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		locker = importer.NewRedisLocker(client, cfg.Import.LockTTL)
		a.limiter = newLimiter(client, cfg.RateLimit)
	}

	svc, err := service.New(runner, cfg.Security, pub)
	if err != nil {
		a.close()
		return nil, err
	}
	a.svc = svc

	hasher, err := security.NewPasswordHasher(cfg.Security.PasswordHasher)
	if err != nil {
		a.close()
		return nil, err
	}
	a.importer = importer.New(runner, cfg.Import, hasher, locker, pub)

	if cfg.Storage.S3Bucket != "" {
		s3cfg, err := config.NewS3Config(ctx, cfg.Storage)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to configure S3: %w", err)
		}
		a.s3 = importer.NewS3Source(s3cfg)
	}
	return a, nil
}

// newLimiter returns nil when rate limiting is switched off.
func newLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *ratelimit.Limiter {
	if cfg.Requests <= 0 {
		return nil
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return ratelimit.New(client, ratelimit.Config{Window: window, Limit: cfg.Requests, KeyPrefix: "recipeshare:ratelimit"})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// throttle charges one mutating operation to userID.
func (a *app) throttle(ctx context.Context, userID int64) error {
	if a.limiter == nil {
		return nil
	}
	d, err := a.limiter.Allow(ctx, fmt.Sprintf("user:%d", userID))
	if err != nil {
		// Redis trouble never blocks writes.
		logging.Ctx(ctx).Warn().Err(err).Msg("rate limit check failed")
		return nil
	}
	if !d.Allowed {
		metrics.RecordRateLimited()
		return &rateLimitedError{userID: userID, resetAt: d.ResetAt}
	}
	return nil
}

type rateLimitedError struct {
	userID  int64
	resetAt time.Time
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for user %d, retry after %s", e.userID, e.resetAt.Format(time.RFC3339))
}

const (
	exitOK = iota
	exitInternal
	exitUsage
	exitNotFound
	exitDenied
	exitConflict
	exitImport
	exitRateLimited
)

func exitCode(err error) int {
	var limited *rateLimitedError
	if errors.As(err, &limited) {
		return exitRateLimited
	}
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return exitUsage
	case apperror.KindNotFound:
		return exitNotFound
	case apperror.KindAuthentication, apperror.KindAuthorization:
		return exitDenied
	case apperror.KindConflict:
		return exitConflict
	case apperror.KindImport:
		return exitImport
	default:
		if isUsage(err) {
			return exitUsage
		}
		return exitInternal
	}
}
