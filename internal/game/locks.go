package game

import (
	"context"
	"sync"
)

// keyedLocks serializes commands per game. Waiting for a busy game respects
// ctx, so a stuck command turns into a timeout for the ones queued behind it.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[ID]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: make(map[ID]*lockSlot)}
}

func (l *keyedLocks) lock(ctx context.Context, id ID) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[id]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			l.release(id, slot)
		}, nil
	case <-ctx.Done():
		l.release(id, slot)
		return nil, ctx.Err()
	}
}

func (l *keyedLocks) release(id ID, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, id)
	}
}

func (l *keyedLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
