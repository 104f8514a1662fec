package game

import "fmt"

type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseWon        Phase = "won"
	PhaseLost       Phase = "lost"
)

// Game is the event-sourced aggregate for one game. It is rebuilt from the
// stream for every command and thrown away afterwards; only events are stored.
type Game struct {
	id ID

	started  bool
	secret   Code
	maxMoves int
	guesses  []Code
	outcome  Outcome

	version uint64 // seq of the last record loaded from the stream
}

func New(id ID) *Game {
	return &Game{id: id}
}

// Load folds a stream into a fresh aggregate. Records must be contiguous
// starting at seq 1.
func Load(id ID, records []Record) (*Game, error) {
	g := New(id)
	for _, r := range records {
		if r.Seq != g.version+1 {
			return nil, fmt.Errorf("stream %s: expected seq %d, got %d", id, g.version+1, r.Seq)
		}
		evt, err := r.Event()
		if err != nil {
			return nil, err
		}
		g.Apply(evt)
		g.version = r.Seq
	}
	return g, nil
}

// Apply moves the state forward. It never validates: events are facts.
func (g *Game) Apply(evt Event) {
	switch e := evt.(type) {
	case GameStarted:
		g.started = true
		g.secret = NewCode(e.Secret...)
		g.maxMoves = e.MaxMoves
		g.outcome = InProgress
	case GuessMade:
		g.guesses = append(g.guesses, NewCode(e.Guess...))
		g.outcome = e.Feedback.Outcome
	}
}

func (g *Game) Start(secret Code, maxMoves int) (GameStarted, error) {
	if g.started {
		return GameStarted{}, ErrGameAlreadyStarted
	}
	if maxMoves < 1 {
		return GameStarted{}, ErrInvalidMoves
	}
	if len(secret) == 0 {
		return GameStarted{}, fmt.Errorf("%w: empty secret", ErrInvalidCode)
	}

	evt := GameStarted{Secret: NewCode(secret...), MaxMoves: maxMoves}
	g.Apply(evt)
	return evt, nil
}

func (g *Game) Guess(guess Code) (GuessMade, error) {
	if !g.started {
		return GuessMade{}, ErrGameNotFound
	}
	if g.outcome.Finished() {
		return GuessMade{}, ErrGameFinished
	}
	if len(guess) != len(g.secret) {
		return GuessMade{}, &IncompleteCodeError{Expected: len(g.secret), Actual: len(guess)}
	}

	lastMove := len(g.guesses) == g.maxMoves-1
	evt := GuessMade{
		Guess:    NewCode(guess...),
		Feedback: Evaluate(g.secret, guess, lastMove),
	}
	g.Apply(evt)
	return evt, nil
}

func (g *Game) ID() ID           { return g.id }
func (g *Game) Version() uint64  { return g.version }
func (g *Game) MaxMoves() int    { return g.maxMoves }
func (g *Game) Outcome() Outcome { return g.outcome }
func (g *Game) Finished() bool   { return g.outcome.Finished() }
func (g *Game) Secret() Code     { return NewCode(g.secret...) }

func (g *Game) Guesses() []Code {
	out := make([]Code, len(g.guesses))
	for i, c := range g.guesses {
		out[i] = NewCode(c...)
	}
	return out
}

func (g *Game) Phase() Phase {
	switch {
	case !g.started:
		return PhaseNotStarted
	case g.outcome == Won:
		return PhaseWon
	case g.outcome == Lost:
		return PhaseLost
	default:
		return PhaseInProgress
	}
}
