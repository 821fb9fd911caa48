package chatstore

import (
	"sync"

	"workbridge/internal/model"
)

const subscriberBuffer = 16

/*
 * Hub is the in-process fan-out for newly appended messages. Subscriptions
 * are keyed by the unordered participant pair; each appended message is
 * delivered once to every live subscriber of that pair. Delivery is
 * best-effort: a subscriber that stopped draining its channel is skipped,
 * never blocked on, since the UI re-reads the conversation on load anyway.
 */
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan *model.ChatMessage
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan *model.ChatMessage)}
}

// Subscribe registers a live-update hook for the pair. The returned cancel
// function must be called on teardown; dropping it leaks the subscription.
func (hub *Hub) Subscribe(key string) (<-chan *model.ChatMessage, func()) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.nextID++
	id := hub.nextID
	if hub.subs[key] == nil {
		hub.subs[key] = make(map[int]chan *model.ChatMessage)
	}
	events := make(chan *model.ChatMessage, subscriberBuffer)
	hub.subs[key][id] = events
	cancel := func() {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		if subscribers, ok := hub.subs[key]; ok {
			if events, ok := subscribers[id]; ok {
				delete(subscribers, id)
				close(events)
			}
			if len(subscribers) == 0 {
				delete(hub.subs, key)
			}
		}
	}
	return events, cancel
}

func (hub *Hub) Publish(key string, message *model.ChatMessage) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, events := range hub.subs[key] {
		select {
		case events <- message:
		default:
			// subscriber is not draining, skip it
		}
	}
}

func (hub *Hub) SubscriberCount(key string) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs[key])
}
