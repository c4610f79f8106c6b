package producer

import (
	"context"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"submission-relay/internal/apperr"
	"submission-relay/internal/auth"
	"submission-relay/internal/models"
	"submission-relay/internal/storage"
)

// Enqueuer appends tasks to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *models.Task) error
}

// Publisher broadcasts submission events to live observers.
type Publisher interface {
	Publish(ctx context.Context, event *models.SubmissionEvent) error
}

// SubmitRequest carries one inbound artifact through the pipeline.
type SubmitRequest struct {
	Filename  string
	Data      []byte
	Teamname  string
	SecretKey string
	Source    string
}

// Producer validates submissions, hands the artifact to storage, enqueues
// the task and broadcasts the event, in that order.
type Producer struct {
	keys       auth.KeyPolicy
	store      storage.ArtifactStore
	queue      Enqueuer
	bus        Publisher
	maxBytes   int64
	allowAll   bool
	extensions map[string]bool
}

// New creates a Producer. Extensions are matched case-insensitively and must
// include the leading dot.
func New(keys auth.KeyPolicy, store storage.ArtifactStore, queue Enqueuer, bus Publisher, maxBytes int64, allowAll bool, extensions []string) *Producer {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Producer{
		keys:       keys,
		store:      store,
		queue:      queue,
		bus:        bus,
		maxBytes:   maxBytes,
		allowAll:   allowAll,
		extensions: allowed,
	}
}

// Submit runs the full pipeline, starting with the secret-key check.
func (p *Producer) Submit(ctx context.Context, req SubmitRequest) (*models.SubmitReceipt, error) {
	if err := p.keys.Check(req.SecretKey); err != nil {
		return nil, err
	}
	return p.process(ctx, req)
}

// SubmitVerified runs the pipeline for a caller whose identity was already
// verified on the token path; the secret-key check is skipped.
func (p *Producer) SubmitVerified(ctx context.Context, req SubmitRequest) (*models.SubmitReceipt, error) {
	return p.process(ctx, req)
}

func (p *Producer) process(ctx context.Context, req SubmitRequest) (*models.SubmitReceipt, error) {
	teamname := req.Teamname
	if teamname == "" {
		teamname = "anonymous"
	}

	if err := p.validate(req); err != nil {
		return nil, err
	}

	log.Printf("[SUBMIT] Uploading file %s from team %s", req.Filename, teamname)

	name := storage.ObjectName(teamname, req.Filename, time.Now())
	codeURL, err := p.store.Upload(ctx, name, req.Data)
	if err != nil {
		// The task must never be enqueued without a valid artifact reference.
		return nil, err
	}

	task := &models.Task{
		ID:       uuid.NewString(),
		Filename: req.Filename,
		Teamname: teamname,
		CodeURL:  codeURL,
	}
	if err := p.queue.Enqueue(ctx, task); err != nil {
		// The artifact stays uploaded but orphaned; accepted trade-off.
		return nil, err
	}

	event := &models.SubmissionEvent{
		Type:      models.TypeSubmission,
		ID:        task.ID,
		Timestamp: time.Now().UTC(),
		Teamname:  teamname,
		Filename:  req.Filename,
		CodeURL:   codeURL,
		Source:    req.Source,
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		// The task is already durably queued; a lost notification never
		// fails the submission.
		log.Printf("[BUS] Failed to publish event for TaskID=%s: %v", task.ID, err)
	}

	return &models.SubmitReceipt{
		Success:  true,
		Teamname: teamname,
		File:     req.Filename,
		CodeURL:  codeURL,
	}, nil
}

func (p *Producer) validate(req SubmitRequest) error {
	if len(req.Data) == 0 {
		return apperr.New(apperr.ErrValidation, "no file uploaded")
	}
	if int64(len(req.Data)) > p.maxBytes {
		return apperr.WithStatus(apperr.ErrValidation, http.StatusRequestEntityTooLarge, "file too large")
	}
	if p.allowAll {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if ext == "" || !p.extensions[ext] {
		return apperr.WithStatus(apperr.ErrValidation, http.StatusUnsupportedMediaType, "file type not allowed")
	}
	return nil
}
