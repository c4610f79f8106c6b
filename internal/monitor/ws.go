package monitor

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"submission-relay/internal/auth"
	"submission-relay/internal/models"
)

// WSGateway streams the same submission feed over a WebSocket, for
// dashboards that prefer a socket to server-sent events. Lifecycle and auth
// match the SSE gateway: one bus subscription per connection, released on
// every exit path.
type WSGateway struct {
	bus      Subscriber
	keys     auth.KeyPolicy
	upgrader websocket.Upgrader
}

// NewWSGateway creates the WebSocket gateway.
func NewWSGateway(b Subscriber, keys auth.KeyPolicy) *WSGateway {
	return &WSGateway{
		bus:  b,
		keys: keys,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := g.keys.Check(r.URL.Query().Get("secretKey")); err != nil {
		http.Error(w, "Invalid or missing secret key", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WEBSOCKET] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub, err := g.bus.Subscribe(r.Context())
	if err != nil {
		log.Printf("[WEBSOCKET] Bus subscription failed: %v", err)
		_ = conn.WriteJSON(&models.StreamFrame{Type: models.TypeError, Message: "Bus connection failed"})
		return
	}
	defer sub.Close()

	if err := conn.WriteJSON(&models.StreamFrame{Type: models.TypeConnected, Message: "Monitor connected"}); err != nil {
		return
	}

	log.Print("[WEBSOCKET] Observer connected")
	defer log.Print("[WEBSOCKET] Observer disconnected")

	// Drain reads so client close frames are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case event, open := <-sub.Events():
			if !open {
				_ = conn.WriteJSON(&models.StreamFrame{Type: models.TypeError, Message: "Bus connection lost"})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
