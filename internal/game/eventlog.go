package game

import (
	"context"
	"sync"
	"time"
)

// EventLog is the append-only store of game streams.
//
// Append writes records after expectedSeq (the seq of the last record the
// caller has seen, 0 for a new stream) and returns them with Seq and
// RecordedAt filled in. If the stream has moved on it returns
// ErrConcurrencyConflict and writes nothing.
type EventLog interface {
	Append(ctx context.Context, id ID, expectedSeq uint64, records []Record) ([]Record, error)
	ReadAll(ctx context.Context, id ID) ([]Record, error)
}

// StampRecords assigns stream position and time to records about to be appended.
func StampRecords(id ID, expectedSeq uint64, records []Record, now time.Time) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.GameID = id
		r.Seq = expectedSeq + uint64(i) + 1
		r.RecordedAt = now.UTC().Truncate(time.Millisecond)
		out[i] = r
	}
	return out
}

type InMemoryEventLog struct {
	mu      sync.Mutex
	streams map[ID][]Record
	now     func() time.Time
}

func NewInMemoryEventLog() *InMemoryEventLog {
	return &InMemoryEventLog{
		streams: make(map[ID][]Record),
		now:     time.Now,
	}
}

func (l *InMemoryEventLog) Append(ctx context.Context, id ID, expectedSeq uint64, records []Record) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[id]
	if uint64(len(stream)) != expectedSeq {
		return nil, ErrConcurrencyConflict
	}
	stamped := StampRecords(id, expectedSeq, records, l.now())
	l.streams[id] = append(stream, stamped...)
	return append([]Record(nil), stamped...), nil
}

func (l *InMemoryEventLog) ReadAll(ctx context.Context, id ID) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.streams[id]...), nil
}
