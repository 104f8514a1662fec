package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/mastermind/internal/board"
	"example.com/mastermind/internal/config"
	"example.com/mastermind/internal/game"
	"example.com/mastermind/internal/httpapi"
	"example.com/mastermind/internal/migrate"
	"example.com/mastermind/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db     *pgxpool.Pool
	rdb    *redis.Client
	sqlite *store.SQLiteEventLog

	events    game.EventLog
	boards    board.Store
	projector *board.Projector
	games     *game.Service

	srv *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	if err := a.connect(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	// --- Event log ---
	switch cfg.Storage.EventLog {
	case "postgres":
		a.events = store.NewPostgresEventLog(a.db)
	case "sqlite":
		a.events = a.sqlite
	default:
		a.events = game.NewInMemoryEventLog()
	}

	// --- Read model ---
	switch cfg.Storage.ReadModel {
	case "postgres":
		a.boards = store.NewPostgresBoardStore(a.db)
	case "redis":
		a.boards = board.NewRedisStore(a.rdb, cfg.Redis.BoardTTL)
	default:
		a.boards = board.NewInMemoryStore()
	}

	// --- Projection ---
	feed := board.NewFeed(cfg.Projection.FeedBuffer)
	a.projector = board.NewProjector(board.ProjectorConfig{
		Workers:        cfg.Projection.Workers,
		QueueSize:      cfg.Projection.QueueSize,
		MaxRetries:     cfg.Projection.MaxRetries,
		RetryBase:      cfg.Projection.RetryBase,
		RepairInterval: cfg.Projection.RepairInterval,
		DrainTimeout:   cfg.HTTP.ShutdownTimeout,
	}, a.boards, a.events, feed, log.With("component", "projector"))

	// --- Game ---
	a.games = game.NewService(game.Config{
		CodeLength:     cfg.Game.CodeLength,
		DefaultMoves:   cfg.Game.DefaultMoves,
		CommandTimeout: cfg.Game.CommandTimeout,
	}, a.events, a.projector, game.RandomCodeMaker{}, log.With("component", "game"))

	api := httpapi.NewServer(a.games, board.NewQuery(a.boards), feed, httpapi.Options{
		Auth: httpapi.AuthConfig{
			Secret:   []byte(cfg.Auth.Secret),
			TokenTTL: cfg.Auth.TokenTTL,
			Required: cfg.Auth.Required,
		},
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Log:            log.With("component", "http"),
	})

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

// connect opens only the backends the config selects.
func (a *App) connect(ctx context.Context) error {
	cfg := a.cfg

	// Quick connectivity checks (fail fast).
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.UsesPostgres() {
		if cfg.Postgres.RunMigrations {
			if err := migrate.Up(pingCtx, cfg.Postgres.URL, a.log); err != nil {
				return err
			}
		}
		db, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("pgxpool: %w", err)
		}
		a.db = db
		if err := db.Ping(pingCtx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
	}

	if cfg.Storage.ReadModel == "redis" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
		}
	}

	if cfg.Storage.EventLog == "sqlite" {
		events, err := store.OpenSQLite(pingCtx, cfg.SQLite.Path, a.log)
		if err != nil {
			return err
		}
		a.sqlite = events
	}
	return nil
}

func (a *App) Handler() http.Handler { return a.srv.Handler }

// Rebuild refolds one game's board from its event log.
func (a *App) Rebuild(ctx context.Context, id game.ID) (board.DecodingBoard, error) {
	b, err := board.Rebuild(ctx, a.events, a.boards, id)
	if err != nil {
		return board.DecodingBoard{}, err
	}
	a.log.Info("board rebuilt", "game_id", id, "version", b.Version, "moves", len(b.Moves))
	return b, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting",
		"addr", a.cfg.HTTP.Addr,
		"event_log", a.cfg.Storage.EventLog,
		"read_model", a.cfg.Storage.ReadModel,
	)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// the projector outlives the HTTP server, so records dispatched by the
	// last requests are still projected (Run drains its queues on stop)
	projCtx, stopProjector := context.WithCancel(context.WithoutCancel(ctx))
	defer stopProjector()
	g.Go(func() error {
		return a.projector.Run(projCtx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		stopProjector()
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	// best-effort
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.sqlite != nil {
		_ = a.sqlite.Close()
	}
	return nil
}
