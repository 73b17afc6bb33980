package feed

import (
	"sync"

	"go.uber.org/zap"

	"cryptofolio/internal/models"
)

const DefaultBuffer = 64

// Broker fans change events out to subscribers. A subscriber that lets its
// buffer fill up is dropped and its channel closed; it should resubscribe
// and rebuild its view from the store.
type Broker struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	buffer int
	logger *zap.Logger
}

type subscription struct {
	userID string // empty receives every user's events
	ch     chan models.ChangeEvent
}

func NewBroker(buffer int, logger *zap.Logger) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[uint64]*subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a channel of events for userID, or for all users when
// userID is empty, and a func that cancels the subscription.
func (b *Broker) Subscribe(userID string) (<-chan models.ChangeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscription{userID: userID, ch: make(chan models.ChangeEvent, b.buffer)}
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { b.remove(id) })
	}
}

// Publish never blocks.
func (b *Broker) Publish(ev models.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		if sub.userID != "" && sub.userID != ev.UserID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("Dropping slow change feed subscriber",
				zap.Uint64("subscription", id),
				zap.String("user_id", sub.userID))
			delete(b.subs, id)
			close(sub.ch)
		}
	}
}

func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}
