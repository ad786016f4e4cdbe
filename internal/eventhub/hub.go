// Package eventhub fans complaint events out to live subscribers. Events are
// published to Redis by whichever instance committed the change; every
// instance listens and forwards them to its own connected clients.
package eventhub

import (
	"context"
	"log"

	"complaints/backend/internal/metrics"
	"complaints/backend/internal/models"
)

// Hub tracks connected clients and dispatches events to them.
type Hub struct {
	clients map[Client]bool

	RegisterCh   chan Client
	UnregisterCh chan Client
	EventsCh     chan models.ComplaintEvent

	Metrics *metrics.Metrics

	done chan struct{}
}

// NewHub creates an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[Client]bool),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventsCh:     make(chan models.ComplaintEvent, 64),
		done:         make(chan struct{}),
	}
}

// Run owns the client set until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	log.Println("INFO: Event hub started.")
	defer func() {
		close(h.done)
		for c := range h.clients {
			c.Close()
			delete(h.clients, c)
		}
		log.Println("INFO: Event hub stopped.")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.RegisterCh:
			h.clients[c] = true
			log.Printf("INFO: Live client registered: user_id=%s", c.GetUserID())

		case c := <-h.UnregisterCh:
			h.remove(c)

		case event := <-h.EventsCh:
			h.dispatch(event)
		}
	}
}

func (h *Hub) remove(c Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.Close()
	log.Printf("INFO: Live client unregistered: user_id=%s", c.GetUserID())
}

// dispatch hands the event to every interested client. A client whose buffer
// is full is dropped rather than allowed to stall the hub.
func (h *Hub) dispatch(event models.ComplaintEvent) {
	for c := range h.clients {
		if !c.Wants(event) {
			continue
		}
		select {
		case c.GetSendChannel() <- event:
		default:
			log.Printf("WARN: Live client %s is too slow, dropping it.", c.GetUserID())
			h.remove(c)
		}
	}
}

// Register adds c to a running hub and reports whether it was accepted.
func (h *Hub) Register(c Client) bool {
	select {
	case h.RegisterCh <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c from a running hub. It does not block once the hub
// has stopped.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Publish queues an event for dispatch. It gives up when ctx is done.
func (h *Hub) Publish(ctx context.Context, event models.ComplaintEvent) {
	select {
	case h.EventsCh <- event:
	case <-ctx.Done():
	case <-h.done:
	}
}
