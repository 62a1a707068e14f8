package services

import (
	"sync"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

// statusBroadcaster fans the engine's sync status out to subscribers.
// Notifications are best-effort: a subscriber that stops draining its channel
// misses intermediate transitions but can always query the current value.
type statusBroadcaster struct {
	mu      sync.Mutex
	current models.SyncStatus
	subs    map[int]chan models.SyncStatus
	nextID  int
}

func newStatusBroadcaster() *statusBroadcaster {
	return &statusBroadcaster{
		current: models.StatusIdle,
		subs:    make(map[int]chan models.SyncStatus),
	}
}

func (b *statusBroadcaster) Current() models.SyncStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *statusBroadcaster) set(status models.SyncStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == status {
		return
	}
	b.current = status
	for _, ch := range b.subs {
		select {
		case ch <- status:
		default:
		}
	}
}

// Subscribe returns a buffered status channel and a cancel function that
// releases the subscription and closes the channel.
func (b *statusBroadcaster) Subscribe() (<-chan models.SyncStatus, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.SyncStatus, 8)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
