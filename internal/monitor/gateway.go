package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"submission-relay/internal/auth"
	"submission-relay/internal/bus"
	"submission-relay/internal/models"
)

// Subscriber is the bus surface the gateways need.
type Subscriber interface {
	Subscribe(ctx context.Context) (*bus.Subscription, error)
}

// Gateway streams submission events to observers over server-sent events.
// Each connection runs Connecting -> Authenticating -> Streaming -> Closed
// and owns exactly one bus subscription, released on every exit path.
type Gateway struct {
	bus  Subscriber
	keys auth.KeyPolicy
}

// NewGateway creates the SSE gateway.
func NewGateway(b Subscriber, keys auth.KeyPolicy) *Gateway {
	return &Gateway{bus: b, keys: keys}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Authenticating: same policy as the producer, key from query parameter.
	if err := g.keys.Check(r.URL.Query().Get("secretKey")); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid or missing secret key"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Streaming: acquire the subscription before announcing readiness so
	// nothing published after the connected frame can be missed.
	sub, err := g.bus.Subscribe(r.Context())
	if err != nil {
		log.Printf("[MONITOR] Bus subscription failed: %v", err)
		writeFrame(w, flusher, &models.StreamFrame{Type: models.TypeError, Message: "Bus connection failed"})
		return
	}
	defer sub.Close()

	if err := writeFrame(w, flusher, &models.StreamFrame{Type: models.TypeConnected, Message: "Monitor connected"}); err != nil {
		return
	}

	log.Print("[MONITOR] Observer connected")
	defer log.Print("[MONITOR] Observer disconnected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Closed: client went away or the server is shutting down.
			return
		case event, open := <-sub.Events():
			if !open {
				writeFrame(w, flusher, &models.StreamFrame{Type: models.TypeError, Message: "Bus connection lost"})
				return
			}
			if err := writeFrame(w, flusher, event); err != nil {
				// Push failure; the deferred Close releases the subscription.
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
