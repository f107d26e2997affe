package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, check the origin properly!
	},
}

// LabStatusEvent is pushed to dashboard subscribers whenever a lab's
// busy bit flips.
type LabStatusEvent struct {
	Lab    string    `json:"lab"`
	Status bool      `json:"status"`
	At     time.Time `json:"at"`
}

// StatusFeed fans lab status changes out to connected dashboards. A
// slow or dead subscriber is dropped rather than blocking the rest.
type StatusFeed struct {
	config *config.Config

	mu          sync.Mutex
	subscribers map[chan LabStatusEvent]struct{}
}

// NewStatusFeed creates a new StatusFeed
func NewStatusFeed(cfg *config.Config) *StatusFeed {
	return &StatusFeed{
		config:      cfg,
		subscribers: make(map[chan LabStatusEvent]struct{}),
	}
}

// Publish delivers an event to every subscriber without blocking.
func (f *StatusFeed) Publish(lab string, status bool) {
	event := LabStatusEvent{Lab: lab, Status: status, At: time.Now()}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up, drop it
			delete(f.subscribers, ch)
			close(ch)
		}
	}
}

func (f *StatusFeed) subscribe() chan LabStatusEvent {
	ch := make(chan LabStatusEvent, 16)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *StatusFeed) unsubscribe(ch chan LabStatusEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[ch]; ok {
		delete(f.subscribers, ch)
		close(ch)
	}
}

// ServeWebsocket upgrades the connection and streams lab status events
// until the client goes away.
func (f *StatusFeed) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Err(err)
		return
	}
	defer ws.Close()

	events := f.subscribe()
	defer f.unsubscribe(events)

	// Reader goroutine only watches for the client closing
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				logger.Err("write:", err)
				return
			}
		case <-done:
			return
		}
	}
}
