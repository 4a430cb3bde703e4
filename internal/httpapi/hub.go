package httpapi

import (
	"sync"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/highlight"
	"github.com/MimeLyc/contextual-doc-translator/internal/session"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

const (
	EventHighlight           = "highlight_ranges"
	EventTranslationComplete = "translation_complete"
	EventTranslationFailed   = "translation_failed"
	EventTranslationStored   = "translation_stored"
	EventBatchItemComplete   = "batch_item_complete"
	EventBatchItemFailed     = "batch_item_failed"
)

// Event is one session notification as sent to stream clients.
type Event struct {
	Type   string                  `json:"type"`
	Ref    string                  `json:"ref,omitempty"`
	Text   string                  `json:"text,omitempty"`
	Ranges []highlight.ChangeRange `json:"ranges,omitempty"`
	Error  string                  `json:"error,omitempty"`
	Kind   string                  `json:"kind,omitempty"`
	Advice string                  `json:"advice,omitempty"`
}

const subscriberBuffer = 64

// Hub fans session events out to stream subscribers. A subscriber that falls
// behind loses events rather than blocking the session.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

var _ session.Events = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a func that ends the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Warn("Event subscriber %d is full, dropped %s", id, ev.Type)
		}
	}
}

func errorEvent(typ, ref string, err error) Event {
	return Event{
		Type:   typ,
		Ref:    ref,
		Error:  err.Error(),
		Kind:   errs.TypeOf(err).String(),
		Advice: errs.Advice(err),
	}
}

func (h *Hub) OnHighlightRanges(ranges []highlight.ChangeRange) {
	h.publish(Event{Type: EventHighlight, Ranges: append([]highlight.ChangeRange{}, ranges...)})
}

func (h *Hub) OnTranslationComplete(text string) {
	h.publish(Event{Type: EventTranslationComplete, Text: text})
}

func (h *Hub) OnTranslationFailed(err error) {
	h.publish(errorEvent(EventTranslationFailed, "", err))
}

func (h *Hub) OnTranslationStored(ref string) {
	h.publish(Event{Type: EventTranslationStored, Ref: ref})
}

func (h *Hub) OnBatchItemComplete(ref, text string) {
	h.publish(Event{Type: EventBatchItemComplete, Ref: ref, Text: text})
}

func (h *Hub) OnBatchItemFailed(ref string, err error) {
	h.publish(errorEvent(EventBatchItemFailed, ref, err))
}
