package server

import (
	"encoding/json"
	"sync"
)

// SSEEvent is the payload published to campaign subscribers.
type SSEEvent struct {
	Type          string `json:"type"`
	QuestID       string `json:"questId,omitempty"`
	QuestIndex    int    `json:"questIndex,omitempty"`
	Accepted      bool   `json:"accepted,omitempty"`
	RejectionKind string `json:"rejectionKind,omitempty"`
}

// Broker is an in-process pub/sub for SSE events, keyed by campaign ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded SSE events for the
// given campaign.
func (b *Broker) Subscribe(campaignID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[campaignID] == nil {
		b.subs[campaignID] = make(map[chan []byte]struct{})
	}
	b.subs[campaignID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the campaign's subscribers.
func (b *Broker) Unsubscribe(campaignID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[campaignID], ch)
	if len(b.subs[campaignID]) == 0 {
		delete(b.subs, campaignID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given campaign.
func (b *Broker) Publish(campaignID string, event SSEEvent) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[campaignID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
