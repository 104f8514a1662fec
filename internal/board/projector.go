package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"example.com/mastermind/internal/game"
	"github.com/cespare/xxhash/v2"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type ProjectorConfig struct {
	Workers        int // 0 => project inline on the dispatching goroutine
	QueueSize      int
	MaxRetries     uint64 // retries of a failed Get/Put before the game is marked stale
	RetryBase      time.Duration
	RepairInterval time.Duration // how often Run catches stale games up from the event log
	DrainTimeout   time.Duration // budget for queued records once Run is stopped
}

func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		Workers:        4,
		QueueSize:      256,
		MaxRetries:     5,
		RetryBase:      10 * time.Millisecond,
		RepairInterval: time.Second,
		DrainTimeout:   5 * time.Second,
	}
}

// Projector keeps decoding boards in step with the event log.
//
// Records are sharded over workers by game id, so one game's events are
// always merged in order by the same worker while other games proceed in
// parallel.
//
// Delivery is at least once. A record that cannot be projected marks its game
// stale; Run catches stale games up from the event log, and a later record
// that finds a gap does the same before it is merged. Without an event log a
// gap is reported as *OutOfSequenceError and the board is left alone.
type Projector struct {
	cfg    ProjectorConfig
	store  Store
	events game.EventLog
	feed   *Feed
	log    *slog.Logger
	queues []chan game.Record

	mu    sync.Mutex
	stale map[game.ID]struct{}
}

func NewProjector(cfg ProjectorConfig, store Store, events game.EventLog, feed *Feed, log *slog.Logger) *Projector {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 10 * time.Millisecond
	}
	if cfg.RepairInterval <= 0 {
		cfg.RepairInterval = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if feed == nil {
		feed = NewFeed(1)
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Projector{
		cfg:    cfg,
		store:  store,
		events: events,
		feed:   feed,
		log:    log,
		stale:  make(map[game.ID]struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.queues = append(p.queues, make(chan game.Record, cfg.QueueSize))
	}
	return p
}

// Dispatch implements game.Dispatcher. With workers it only enqueues; the
// boards catch up once Run picks the records up. A record that cannot be
// enqueued before ctx ends marks its game stale.
func (p *Projector) Dispatch(ctx context.Context, records []game.Record) error {
	if len(p.queues) == 0 {
		for _, rec := range records {
			if err := p.Project(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}

	for i, rec := range records {
		select {
		case p.queues[p.shard(rec.GameID)] <- rec:
		case <-ctx.Done():
			for _, missed := range records[i:] {
				p.markStale(missed.GameID)
			}
			return ctx.Err()
		}
	}
	return nil
}

func (p *Projector) shard(id game.ID) int {
	return int(xxhash.Sum64String(string(id)) % uint64(len(p.queues)))
}

// Run drives the workers and the repair loop until ctx is cancelled. Records
// still queued at that point are projected before Run returns.
func (p *Projector) Run(ctx context.Context) error {
	if len(p.queues) == 0 && p.events == nil {
		<-ctx.Done()
		return nil
	}

	// a record taken off a queue is projected to the end even if ctx ends meanwhile
	work := context.WithoutCancel(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range p.queues {
		g.Go(func() error {
			p.log.Debug("projection worker started", "shard", i)
			for {
				select {
				case <-gctx.Done():
					p.drain(work, q)
					return nil
				case rec := <-q:
					_ = p.Project(work, rec) // logged, and marked stale on failure
				}
			}
		})
	}
	if p.events != nil {
		g.Go(func() error {
			ticker := time.NewTicker(p.cfg.RepairInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					p.Repair(gctx)
				}
			}
		})
	}
	return g.Wait()
}

func (p *Projector) drain(ctx context.Context, q chan game.Record) {
	dctx, cancel := context.WithTimeout(ctx, p.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-q:
			_ = p.Project(dctx, rec)
		default:
			return
		}
	}
}

// Project merges one record into its board, retrying failed reads and writes.
// A gap in front of the record is filled from the event log when there is one.
func (p *Projector) Project(ctx context.Context, rec game.Record) error {
	result, applied, err := p.project(ctx, rec)
	if errors.Is(err, ErrOutOfSequence) && p.events != nil {
		p.log.Warn("projection: missed events, catching up from the event log", "game_id", rec.GameID, "seq", rec.Seq, "err", err)
		result, applied, err = p.catchUp(ctx, rec.GameID)
	}

	if err != nil {
		if errors.Is(err, ErrOutOfSequence) {
			p.log.Error("projection: out of sequence, board needs a rebuild", "game_id", rec.GameID, "seq", rec.Seq, "err", err)
		} else {
			p.log.Error("projection failed", "game_id", rec.GameID, "seq", rec.Seq, "err", err)
			p.markStale(rec.GameID)
		}
		return fmt.Errorf("project %s #%d: %w", rec.GameID, rec.Seq, err)
	}
	if !applied {
		p.log.Debug("projection: redelivered event dropped", "game_id", rec.GameID, "seq", rec.Seq)
		return nil
	}
	p.feed.Publish(result)
	return nil
}

func (p *Projector) project(ctx context.Context, rec game.Record) (DecodingBoard, bool, error) {
	data, err := CurrentDataFor(rec)
	if err != nil {
		return DecodingBoard{}, false, err
	}

	var (
		result  DecodingBoard
		applied bool
	)
	err = retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		prev, prevVersion, err := p.current(ctx, rec.GameID)
		if err != nil {
			return err
		}

		merged, ok, err := Merge(prev, prevVersion, data, rec.Seq)
		if err != nil || !ok {
			applied = false
			return err
		}
		if err := p.put(ctx, merged, prevVersion); err != nil {
			return err
		}
		result, applied = merged, true
		return nil
	})
	return result, applied, err
}

// catchUp folds every record the stored board has not seen yet.
func (p *Projector) catchUp(ctx context.Context, id game.ID) (DecodingBoard, bool, error) {
	var (
		result  DecodingBoard
		applied bool
	)
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		prev, prevVersion, err := p.current(ctx, id)
		if err != nil {
			return err
		}
		records, err := p.events.ReadAll(ctx, id)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read stream: %w", err))
		}

		next, version := prev, prevVersion
		applied = false
		for _, rec := range records {
			if rec.Seq <= prevVersion {
				continue
			}
			data, err := CurrentDataFor(rec)
			if err != nil {
				return err
			}
			merged, ok, err := Merge(next, version, data, rec.Seq)
			if err != nil {
				return err
			}
			if ok {
				next, version, applied = &merged, merged.Version, true
			}
		}
		if !applied {
			return nil
		}
		if err := p.put(ctx, *next, prevVersion); err != nil {
			return err
		}
		result = *next
		return nil
	})
	return result, applied, err
}

// Repair catches up every game marked stale. Games that still fail stay marked.
func (p *Projector) Repair(ctx context.Context) {
	if p.events == nil {
		return
	}
	for _, id := range p.takeStale() {
		b, applied, err := p.catchUp(ctx, id)
		if err != nil {
			p.log.Warn("projection: repair failed", "game_id", id, "err", err)
			if !errors.Is(err, ErrOutOfSequence) {
				p.markStale(id)
			}
			continue
		}
		if applied {
			p.log.Info("projection: board caught up", "game_id", id, "version", b.Version)
			p.feed.Publish(b)
		}
	}
}

// Stale lists the games whose board is known to be behind the event log.
func (p *Projector) Stale() []game.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]game.ID, 0, len(p.stale))
	for id := range p.stale {
		out = append(out, id)
	}
	return out
}

func (p *Projector) markStale(id game.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stale[id] = struct{}{}
}

func (p *Projector) takeStale() []game.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]game.ID, 0, len(p.stale))
	for id := range p.stale {
		out = append(out, id)
		delete(p.stale, id)
	}
	return out
}

func (p *Projector) backoff() retry.Backoff {
	return retry.WithMaxRetries(p.cfg.MaxRetries, retry.NewExponential(p.cfg.RetryBase))
}

// current reads the stored board; nil means there is none yet.
func (p *Projector) current(ctx context.Context, id game.ID) (*DecodingBoard, uint64, error) {
	b, err := p.store.Get(ctx, id)
	switch {
	case err == nil:
		return &b, b.Version, nil
	case errors.Is(err, ErrNotFound):
		return nil, 0, nil
	default:
		return nil, 0, retry.RetryableError(fmt.Errorf("read board: %w", err))
	}
}

func (p *Projector) put(ctx context.Context, b DecodingBoard, expected uint64) error {
	err := p.store.Put(ctx, b, expected)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrVersionConflict):
		p.log.Warn("projection: version conflict, retrying", "game_id", b.GameID, "version", b.Version, "expected", expected)
		return retry.RetryableError(err)
	default:
		return retry.RetryableError(fmt.Errorf("write board: %w", err))
	}
}
