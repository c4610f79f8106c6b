package models

import "time"

// Task is the unit of pending work handed to external workers. It is the
// wire contract on the task queue list; workers must tolerate extra fields.
type Task struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Teamname string `json:"teamname"`
	CodeURL  string `json:"code_url"`
}

// SubmissionEvent is the live notification broadcast when a Task is created.
// It is never persisted; it exists only on the bus and in observer buffers.
type SubmissionEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Teamname  string    `json:"teamname"`
	Filename  string    `json:"filename"`
	CodeURL   string    `json:"code_url"`
	Source    string    `json:"source"`
}

// StreamFrame is a control message on a monitor stream. Submission events
// share the wire with these via the type discriminator.
type StreamFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// SubmitReceipt echoes what was accepted back to the uploader.
type SubmitReceipt struct {
	Success  bool   `json:"success"`
	Teamname string `json:"teamname"`
	File     string `json:"file"`
	CodeURL  string `json:"code_url"`
}

// Quote is one entry of the worker-facing quote list in the config store.
type Quote struct {
	Author string `json:"author"`
	Quote  string `json:"quote"`
}

// Stream frame types
const (
	TypeConnected  = "connected"
	TypeError      = "error"
	TypeSubmission = "submission"
)

// Ingestion source tags
const (
	SourceDirect = "direct"
	SourceToken  = "token"
)
