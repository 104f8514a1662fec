package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	CodeLength     int
	DefaultMoves   int
	CommandTimeout time.Duration // 0 => no deadline
}

func DefaultConfig() Config {
	return Config{
		CodeLength:     4,
		DefaultMoves:   12,
		CommandTimeout: 5 * time.Second,
	}
}

// Dispatcher hands freshly appended records to the read side. It owns
// redelivery: an error is logged and the command still succeeds, so a
// dispatcher must remember what it failed to deliver (board.Projector marks
// the game stale and catches it up from the event log).
type Dispatcher interface {
	Dispatch(ctx context.Context, records []Record) error
}

type DispatcherFunc func(ctx context.Context, records []Record) error

func (f DispatcherFunc) Dispatch(ctx context.Context, records []Record) error { return f(ctx, records) }

// Service runs commands against game streams:
// - one command at a time per game (keyed lock)
// - rebuild the aggregate from the log, decide, append
// - hand the new record to the dispatcher
type Service struct {
	cfg      Config
	events   EventLog
	dispatch Dispatcher
	maker    CodeMaker
	locks    *keyedLocks
	log      *slog.Logger
}

func NewService(cfg Config, events EventLog, dispatcher Dispatcher, maker CodeMaker, log *slog.Logger) *Service {
	if maker == nil {
		maker = RandomCodeMaker{}
	}
	if dispatcher == nil {
		dispatcher = DispatcherFunc(func(context.Context, []Record) error { return nil })
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		events:   events,
		dispatch: dispatcher,
		maker:    maker,
		locks:    newKeyedLocks(),
		log:      log,
	}
}

// StartGame creates a new game with a random secret. moves <= 0 selects the
// configured default.
func (s *Service) StartGame(ctx context.Context, moves int) (ID, error) {
	if moves <= 0 {
		moves = s.cfg.DefaultMoves
	}
	id := NewID()
	secret := s.maker.MakeCode(s.cfg.CodeLength)

	_, err := s.execute(ctx, id, "", func(g *Game) (Event, error) {
		return g.Start(secret, moves)
	})
	if err != nil {
		return "", err
	}
	s.log.Info("game started", "game_id", id, "moves", moves)
	return id, nil
}

// MakeGuess plays one move. A non-empty commandID makes the call safe to
// retry: if a guess with the same id is already in the stream its feedback is
// returned and nothing is appended.
func (s *Service) MakeGuess(ctx context.Context, id ID, guess Code, commandID string) (Feedback, error) {
	evt, err := s.execute(ctx, id, commandID, func(g *Game) (Event, error) {
		return g.Guess(guess)
	})
	if err != nil {
		if IsValidation(err) {
			s.log.Debug("guess rejected", "game_id", id, "err", err)
		}
		return Feedback{}, err
	}
	made, ok := evt.(GuessMade)
	if !ok {
		return Feedback{}, fmt.Errorf("command %q on game %s was not a guess", commandID, id)
	}
	s.log.Debug("guess accepted", "game_id", id, "outcome", made.Feedback.Outcome)
	return made.Feedback, nil
}

// Load returns the current aggregate state, mostly for tooling and tests.
func (s *Service) Load(ctx context.Context, id ID) (*Game, error) {
	records, err := s.events.ReadAll(ctx, id)
	if err != nil {
		return nil, s.failure("read stream", err)
	}
	if len(records) == 0 {
		return nil, ErrGameNotFound
	}
	return Load(id, records)
}

func (s *Service) execute(ctx context.Context, id ID, commandID string, decide func(*Game) (Event, error)) (Event, error) {
	if s.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()
	}

	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, s.failure("wait for game", err)
	}
	defer unlock()

	records, err := s.events.ReadAll(ctx, id)
	if err != nil {
		return nil, s.failure("read stream", err)
	}
	if commandID != "" {
		for _, r := range records {
			if r.CommandID == commandID {
				return r.Event()
			}
		}
	}

	g, err := Load(id, records)
	if err != nil {
		return nil, s.failure("replay stream", err)
	}
	evt, err := decide(g)
	if err != nil {
		return nil, err
	}

	rec, err := NewRecord(id, evt, commandID)
	if err != nil {
		return nil, err
	}
	appended, err := s.events.Append(ctx, id, g.Version(), []Record{rec})
	if err != nil {
		return nil, s.failure("append", err)
	}

	// The event is durable from here on; a failed dispatch does not fail the command.
	if err := s.dispatch.Dispatch(ctx, appended); err != nil {
		s.log.Warn("dispatch failed, read side will catch up", "game_id", id, "seq", appended[0].Seq, "err", err)
	}
	return evt, nil
}

func (s *Service) failure(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s: %w", ErrCanceled, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
