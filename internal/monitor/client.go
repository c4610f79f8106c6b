package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"submission-relay/internal/models"
)

// HistorySize bounds the client's most-recent-first display buffer.
const HistorySize = 50

// DefaultReconnectDelay is the fixed backoff between reconnection attempts.
const DefaultReconnectDelay = 3 * time.Second

// ClientState is the observer client's connection state.
type ClientState int

const (
	StateIdle ClientState = iota
	StateConnected
	StateReconnecting
	StateDisconnecting
)

func (s ClientState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Client maintains a single streaming connection to the monitor gateway,
// keeps a bounded history of received events, and reconnects with a fixed
// delay when an established connection drops. A session context owns all
// reconnection attempts, so a manual Disconnect cancels any pending retry
// and attempts can never stack.
type Client struct {
	url            string
	httpc          *http.Client
	reconnectDelay time.Duration

	// OnStatus and OnEvent, when set, are invoked from the session
	// goroutine; they must not block.
	OnStatus func(status string)
	OnEvent  func(event *models.SubmissionEvent)

	mu      sync.Mutex
	state   ClientState
	cancel  context.CancelFunc
	done    chan struct{}
	history []*models.SubmissionEvent
}

// NewClient creates a client for the given monitor URL (secret key included
// as a query parameter by the caller).
func NewClient(url string) *Client {
	return &Client{
		url:            url,
		httpc:          &http.Client{},
		reconnectDelay: DefaultReconnectDelay,
	}
}

// State returns the current connection state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns a snapshot of the display buffer, most recent first.
func (c *Client) Events() []*models.SubmissionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.SubmissionEvent, len(c.history))
	copy(out, c.history)
	return out
}

// Connect starts the streaming session. It returns an error if a session is
// already active.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("monitor client already %s", c.state)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateReconnecting

	go c.run(ctx)
	return nil
}

// Disconnect tears down the active connection, cancels any pending
// reconnection attempt and clears the display buffer. Safe to call when
// already idle.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnecting
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.state = StateIdle
	c.history = nil
	c.mu.Unlock()
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	// Sticky per session: once any connection reached Streaming, the client
	// keeps retrying through outages until a manual disconnect.
	everEstablished := false

	for {
		established, err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if established {
			everEstablished = true
		}

		if !everEstablished {
			// The session never reached Streaming: surface the failure and
			// stop rather than hammering a dead endpoint.
			log.Printf("[OBSERVER] Failed to connect to monitor: %v", err)
			c.setState(StateIdle)
			c.status("Failed to connect to monitor")
			return
		}

		// Exactly one pending reconnection attempt; Disconnect cancels it
		// through the session context.
		c.setState(StateReconnecting)
		c.status("Connection lost. Attempting to reconnect...")

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

// stream runs one connection until it drops. It reports whether the stream
// was ever established (the connected frame arrived).
func (c *Client) stream(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("monitor returned %s", resp.Status)
	}

	established := false
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var dataBuf strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			// Blank line = frame boundary
			if dataBuf.Len() > 0 {
				c.handleFrame(dataBuf.String(), &established)
				dataBuf.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(chunk)
		}
	}
	return established, sc.Err()
}

func (c *Client) handleFrame(payload string, established *bool) {
	var frame struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		log.Printf("[OBSERVER] Undecodable frame: %v", err)
		return
	}

	switch frame.Type {
	case models.TypeConnected:
		// Control frame; never enters the display buffer.
		*established = true
		c.setState(StateConnected)
		c.status("Connected to monitor")
	case models.TypeError:
		// Control frame; surfaced as status only.
		c.status(frame.Message)
	case models.TypeSubmission:
		var event models.SubmissionEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("[OBSERVER] Undecodable submission event: %v", err)
			return
		}
		c.record(&event)
		if c.OnEvent != nil {
			c.OnEvent(&event)
		}
	}
}

// record prepends the event to the display buffer, evicting the oldest
// entry beyond HistorySize.
func (c *Client) record(event *models.SubmissionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, nil)
	copy(c.history[1:], c.history)
	c.history[0] = event
	if len(c.history) > HistorySize {
		c.history = c.history[:HistorySize]
	}
}

func (c *Client) setState(s ClientState) {
	c.mu.Lock()
	// Disconnecting is owned by Disconnect; the session goroutine must not
	// overwrite it.
	if c.state != StateDisconnecting {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *Client) status(msg string) {
	if c.OnStatus != nil {
		c.OnStatus(msg)
	}
}
