package web

import (
	"sync"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
)

// Broadcaster fans receiver snapshots out to websocket listeners. It keeps
// the most recent value so new subscribers get an immediate sample. Slow
// subscribers miss updates rather than block the publisher.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan gnss.Snapshot
	nextID   int
	last     gnss.Snapshot
	haveLast bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan gnss.Snapshot)}
}

func (b *Broadcaster) Subscribe(buffer int) (int, <-chan gnss.Snapshot) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan gnss.Snapshot, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last, have := b.last, b.haveLast
	b.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Publish(s gnss.Snapshot) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
