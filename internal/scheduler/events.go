package scheduler

import (
	"sync"

	"github.com/whatsmanager/campaign-gateway/pkg/logger"
)

type EventType string

const (
	EventCampaignStarted   EventType = "campaign_started"
	EventCampaignCancelled EventType = "campaign_cancelled"
	EventMessageSent       EventType = "message_sent"
	EventMessageFailed     EventType = "message_failed"
)

// Event is one observable step of a campaign's delivery. MessageID is zero
// for campaign-level events.
type Event struct {
	Type       EventType `json:"type"`
	CampaignID int64     `json:"campaign_id"`
	MessageID  int64     `json:"message_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

const eventBuffer = 64

// eventHub fans campaign events out to subscribers. Delivery is best
// effort: a subscriber that stops reading loses events instead of stalling
// the result drain.
type eventHub struct {
	mu     sync.Mutex
	subs   map[int64][]chan Event
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int64][]chan Event)}
}

func (h *eventHub) subscribe(campaignID int64) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, eventBuffer)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[campaignID] = append(h.subs[campaignID], ch)
	return ch
}

func (h *eventHub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs[e.CampaignID] {
		select {
		case ch <- e:
		default:
			logger.Warn("event subscriber is not keeping up, dropping event",
				"campaign_id", e.CampaignID, "type", e.Type)
		}
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, chans := range h.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	h.subs = nil
}
