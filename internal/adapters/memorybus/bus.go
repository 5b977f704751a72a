package memorybus

import (
	"sync"
	"sync/atomic"

	"github.com/insomniacdoll/animeloader/internal/ports"
)

const subscriberBuffer = 64

// Bus diffuse les événements task.* et item.downloaded aux abonnés (SSE,
// DownloadCompletionUpdater). Un abonné trop lent perd des événements plutôt
// que de bloquer le worker qui publie.
type Bus struct {
	mu      sync.Mutex
	subs    map[chan ports.Event]struct{}
	closed  bool
	dropped atomic.Uint64
}

func New() *Bus {
	return &Bus{subs: make(map[chan ports.Event]struct{})}
}

func (b *Bus) Publish(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	evt := ports.Event{Topic: topic, Payload: payload}
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Close ferme tous les abonnements ; les flux SSE ouverts se terminent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Dropped compte les événements perdus par des abonnés saturés.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
