package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"example.com/mastermind/internal/board"
	"example.com/mastermind/internal/game"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Commands is the write side the handlers drive; *game.Service implements it.
type Commands interface {
	StartGame(ctx context.Context, moves int) (game.ID, error)
	MakeGuess(ctx context.Context, id game.ID, guess game.Code, commandID string) (game.Feedback, error)
}

// Boards is the read side; *board.Query implements it.
type Boards interface {
	FindDecodingBoard(ctx context.Context, id game.ID) (board.DecodingBoard, bool, error)
}

type AuthConfig struct {
	Secret   []byte
	TokenTTL time.Duration
	Required bool // guesses must carry the player token of their game
}

type Server struct {
	games          Commands
	boards         Boards
	feed           *board.Feed
	auth           AuthConfig
	requestTimeout time.Duration
	log            *slog.Logger
}

type Options struct {
	Auth           AuthConfig
	RequestTimeout time.Duration // 0 => no per-request deadline
	Log            *slog.Logger
}

func NewServer(games Commands, boards Boards, feed *board.Feed, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if feed == nil {
		feed = board.NewFeed(1)
	}
	return &Server{
		games:          games,
		boards:         boards,
		feed:           feed,
		auth:           opts.Auth,
		requestTimeout: opts.RequestTimeout,
		log:            log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/games", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.requestTimeout > 0 {
				r.Use(middleware.Timeout(s.requestTimeout))
			}
			r.Post("/", s.handleStartGame)
			r.Post("/{gameID}", s.handleGuess)
			r.Get("/{gameID}", s.handleBoard)
		})
		// long lived, no request deadline
		r.Get("/{gameID}/ws", s.handleWS)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path)
	})
	return r
}
