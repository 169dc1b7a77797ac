package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/jaego/internal/api"
	"github.com/erazemk/jaego/internal/auth"
	"github.com/erazemk/jaego/internal/blob"
	"github.com/erazemk/jaego/internal/config"
	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/nara"
	"github.com/erazemk/jaego/internal/ratelimit"
	"github.com/erazemk/jaego/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

type flags struct {
	configPath string
	addr       string
	driver     string
	dsn        string
	adminUser  string
	logPath    string
}

func parseFlags(args []string) (*flags, error) {
	fs := flag.NewFlagSet("jaego", flag.ContinueOnError)
	f := &flags{}

	fs.StringVar(&f.configPath, "config", "jaego.yaml", "")
	fs.StringVar(&f.configPath, "c", "jaego.yaml", "")
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.driver, "db-driver", "", "")
	fs.StringVar(&f.dsn, "dsn", "", "")
	fs.StringVar(&f.dsn, "d", "", "")
	fs.StringVar(&f.adminUser, "user", "", "")
	fs.StringVar(&f.adminUser, "u", "", "")
	fs.StringVar(&f.logPath, "log", "", "")
	fs.StringVar(&f.logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: jaego [flags]

Flags:
  -c, -config <path>      YAML config file (default: jaego.yaml, optional)
  -a, -addr <host:port>   listen address (default: :8080)
      -db-driver <name>   database driver: sqlite or postgres (default: sqlite)
  -d, -dsn <dsn>          database path or connection string (default: jaego.sqlite3)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every setting can also be given as a JAEGO_* environment variable or in .env.
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return f, nil
}

// apply overrides cfg with the flags that were set.
func (f *flags) apply(cfg *config.Config) {
	for dst, v := range map[*string]string{
		&cfg.Server.Addr:     f.addr,
		&cfg.Database.Driver: f.driver,
		&cfg.Database.DSN:    f.dsn,
		&cfg.Auth.AdminUser:  f.adminUser,
		&cfg.Log.File:        f.logPath,
	} {
		if v != "" {
			*dst = v
		}
	}
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "driver", cfg.Database.Driver)

	if err := ensureAdmin(ctx, database, cfg.Auth.AdminUser); err != nil {
		return err
	}

	// Prefer the configured secret; otherwise use the one generated on first run.
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = store.GetJWTSecret(ctx, database); err != nil {
			return fmt.Errorf("getting JWT secret: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		slog.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	blobs, err := blob.New(ctx, cfg.Storage, database)
	if err != nil {
		return fmt.Errorf("setting up image storage: %w", err)
	}

	trusted, err := cfg.Server.TrustedPrefixes()
	if err != nil {
		return err
	}
	limiter, loginLimiter := newLimiters(cfg.RateLimit, rdb)
	monitor := newMonitor(cfg, database, rdb)

	handler := api.LoggingMiddleware(api.NewRouter(api.Deps{
		DB:           database,
		JWTSecret:    jwtSecret,
		TokenTTL:     cfg.Auth.TokenTTL,
		Blobs:        blobs,
		Monitor:      monitor,
		Limiter:      limiter,
		LoginLimiter: loginLimiter,

		TrustedProxies: trusted,
	}))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.Nara.Autostart {
		monCfg, err := nara.LoadConfig(ctx, database)
		if err != nil {
			return err
		}
		if err := monitor.Start(ctx, monCfg); err != nil {
			slog.Error("bid monitoring not started", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		monitor.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("server stopped, closing database")
	return err
}

// ensureAdmin creates the administrator account when none exists and prints
// its generated password once.
func ensureAdmin(ctx context.Context, database *sqlx.DB, username string) error {
	n, err := store.CountAdmins(ctx, database)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := store.CreateUser(ctx, database, model.UserInput{
		Username: username,
		Name:     "Administrator",
		Level:    model.LevelAdmin,
	}, hash); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	printInitResult(username, password)
	return nil
}

// printInitResult prints the generated admin credentials to stdout.
func printInitResult(username, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password. It cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// newLimiters returns the general and login limiters, shared through Redis
// when it is configured.
func newLimiters(cfg config.RateLimitConfig, rdb *redis.Client) (ratelimit.Limiter, ratelimit.Limiter) {
	if !cfg.Enabled {
		return nil, nil
	}
	if rdb != nil {
		return ratelimit.NewRedis(rdb, "jaego:rl:api:", cfg.Requests, cfg.Window),
			ratelimit.NewRedis(rdb, "jaego:rl:login:", cfg.LoginAttempts, cfg.LoginWindow)
	}
	return ratelimit.NewMemory(cfg.Requests, cfg.Window),
		ratelimit.NewMemory(cfg.LoginAttempts, cfg.LoginWindow)
}

func newMonitor(cfg *config.Config, database *sqlx.DB, rdb *redis.Client) *nara.Monitor {
	client := &http.Client{Timeout: 60 * time.Second}
	searchers := []nara.Searcher{
		nara.NewNaraMarket(cfg.Nara.APIURL, cfg.Nara.ServiceKey, client),
		nara.NewKorail(cfg.Nara.KorailURL),
	}
	notifier := nara.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.BotToken, client)

	var locker nara.Locker
	if rdb != nil {
		locker = nara.NewRedisLocker(rdb)
	}
	return nara.NewMonitor(database, searchers, notifier, locker)
}
