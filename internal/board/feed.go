package board

import (
	"sync"

	"example.com/mastermind/internal/game"
)

// Feed fans board updates out to live subscribers of a game. Every message is
// the whole board: when a subscriber's buffer is full the oldest queued board
// is dropped, so the latest one is always delivered.
type Feed struct {
	mu     sync.Mutex
	buffer int
	subs   map[game.ID]map[chan DecodingBoard]struct{}
}

func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{
		buffer: buffer,
		subs:   make(map[game.ID]map[chan DecodingBoard]struct{}),
	}
}

// Subscribe returns a channel of updates for id and a cancel func that closes it.
func (f *Feed) Subscribe(id game.ID) (<-chan DecodingBoard, func()) {
	ch := make(chan DecodingBoard, f.buffer)

	f.mu.Lock()
	if f.subs[id] == nil {
		f.subs[id] = make(map[chan DecodingBoard]struct{})
	}
	f.subs[id][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[id], ch)
			if len(f.subs[id]) == 0 {
				delete(f.subs, id)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (f *Feed) Publish(b DecodingBoard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[b.GameID] {
		select {
		case ch <- b.Clone():
			continue
		default:
		}
		// only Publish sends, and it holds mu, so one receive makes room
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- b.Clone():
		default:
		}
	}
}

func (f *Feed) Subscribers(id game.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[id])
}
