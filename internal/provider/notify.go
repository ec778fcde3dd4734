package provider

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// NotificationType tells subscribers what changed.
type NotificationType string

const (
	Added           NotificationType = "Added"
	Removed         NotificationType = "Removed"
	Update          NotificationType = "Update"
	EndpointAdded   NotificationType = "EndpointAdded"
	EndpointRemoved NotificationType = "EndpointRemoved"
	Reset           NotificationType = "Reset"
)

// Notification is one change broadcast to subscribers. Document never
// carries content.
type Notification struct {
	Channel  string           `json:"channel"`
	Type     NotificationType `json:"type"`
	Endpoint string           `json:"endpoint,omitempty"`
	Document *models.Document `json:"document,omitempty"`
	Time     time.Time        `json:"time"`
}

// broadcaster fans notifications out without blocking the sender; a
// subscriber whose buffer is full misses the message.
type broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Notification
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan Notification)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Notification, func()) {
	ch := make(chan Notification, max(buffer, 1))

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// publish returns the number of subscribers that missed n.
func (b *broadcaster) publish(n Notification) int {
	if n.Channel == "" {
		n.Channel = common.NotificationChannel
	}
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
