// Command markov-chatter is a self-learning Twitch chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the brain store (JSON file, Postgres kv row, or Redis key).
//   - Joins the configured channel, learns word transitions from accepted
//     messages and posts a generated sentence every GENERATE_EVERY messages.
//   - Keeps the bot's stored Twitch token fresh when client credentials exist.
//   - Exposes /healthz, /readyz, /status, /metrics and brain admin endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/markov-chatter/bot"
	"github.com/onnwee/markov-chatter/brain"
	"github.com/onnwee/markov-chatter/chat"
	"github.com/onnwee/markov-chatter/config"
	"github.com/onnwee/markov-chatter/db"
	"github.com/onnwee/markov-chatter/markov"
	"github.com/onnwee/markov-chatter/oauth"
	"github.com/onnwee/markov-chatter/server"
	"github.com/onnwee/markov-chatter/telemetry"
	"github.com/onnwee/markov-chatter/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	shutdown, err := telemetry.InitTracing("markov-chatter", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []server.Check

	var database *sql.DB
	if cfg.UsesDatabase() {
		database = openDatabase(ctx, cfg.DBDsn)
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		checks = append(checks, server.Check{Name: "database", Fn: database.PingContext})
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close redis", slog.Any("err", err))
			}
		}()
		checks = append(checks, server.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}

	var store brain.Store
	switch cfg.BrainBackend {
	case config.BackendPostgres:
		store = brain.NewPostgresStore(database, brain.DefaultKVKey)
	case config.BackendRedis:
		store = brain.NewRedisStoreFromClient(rdb)
	default:
		store = brain.NewFileStore(cfg.BrainPath)
	}
	mgr := brain.NewManager(store, func() *markov.Table {
		return markov.NewTable(markov.WithMaxSuccessors(cfg.BrainMaxSuccessors))
	})
	slog.Info("brain store configured", slog.String("backend", store.Name()), slog.String("path", cfg.BrainPath), slog.Int("max_successors", cfg.BrainMaxSuccessors))

	tokenFn := func(ctx context.Context) (string, error) {
		return chat.ResolveToken(ctx, cfg.TwitchOAuthToken, database)
	}
	identity := &twitchapi.Identity{
		Client:     &twitchapi.Client{},
		Token:      tokenFn,
		Fallback:   cfg.TwitchBotUsername,
		RetryAfter: 5 * time.Minute,
	}

	b := bot.New(
		markov.NewFilter(cfg.KnownBots, cfg.MinASCIIRatio),
		mgr,
		identity,
		nil,
		bot.WithGenerateEvery(cfg.GenerateEvery),
		bot.WithMaxWords(cfg.MaxWords),
	)

	var bridge *chat.Bridge
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Info("chat bridge disabled", slog.Any("reason", err))
	} else if tok, err := tokenFn(ctx); err != nil {
		slog.Warn("chat bridge disabled: no usable token", slog.Any("err", err))
	} else {
		bridge = chat.NewBridge(cfg.TwitchBotUsername, tok, cfg.TwitchChannel, b)
		b.SetPoster(bridge)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				slog.Error("chat bridge exited with error", slog.Any("err", err))
			}
		}()
	}

	if database != nil && cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		client := &twitchapi.Client{}
		r := &oauth.Refresher{
			DB:       database,
			Provider: chat.TokenProvider,
			Interval: 5 * time.Minute,
			Window:   15 * time.Minute,
			Refresh: func(rctx context.Context, refreshToken string) (db.OAuthToken, error) {
				res, err := client.RefreshToken(rctx, cfg.TwitchClientID, cfg.TwitchClientSecret, refreshToken)
				if err != nil {
					return db.OAuthToken{}, err
				}
				return db.OAuthToken{
					AccessToken:  res.AccessToken,
					RefreshToken: res.RefreshToken,
					ExpiresAt:    twitchapi.ComputeExpiry(res.ExpiresIn),
					Scope:        strings.Join(res.Scope, " "),
				}, nil
			},
		}
		if bridge != nil && cfg.TwitchOAuthToken == "" {
			r.OnRefresh = bridge.SetToken
		}
		r.Start(ctx)
	}

	go func() {
		deps := server.Deps{Brain: b, Checks: checks, Redis: rdb}
		if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if b.Stats().Loaded {
		if err := b.Save(saveCtx); err != nil {
			slog.Error("final brain save failed", slog.Any("err", err))
		}
	}
}

// setupLogging configures level and format. Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

// openDatabase connects and migrates, exiting on failure. Versioned
// migrations run first; the embedded SQL is the fallback for databases that
// predate schema_migrations.
func openDatabase(ctx context.Context, dsn string) *sql.DB {
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL", slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}
	return database
}
