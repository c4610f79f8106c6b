package producer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission-relay/internal/apperr"
	"submission-relay/internal/auth"
	"submission-relay/internal/config"
	"submission-relay/internal/models"
)

// pipeline records the order of side effects across the fakes.
type pipeline struct {
	calls []string
}

type fakeStore struct {
	p   *pipeline
	err error
	url string
}

func (f *fakeStore) Upload(_ context.Context, name string, _ []byte) (string, error) {
	f.p.calls = append(f.p.calls, "upload")
	if f.err != nil {
		return "", f.err
	}
	return f.url + "/" + name, nil
}

type fakeQueue struct {
	p     *pipeline
	err   error
	tasks []*models.Task
}

func (f *fakeQueue) Enqueue(_ context.Context, task *models.Task) error {
	f.p.calls = append(f.p.calls, "enqueue")
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeBus struct {
	p      *pipeline
	err    error
	events []*models.SubmissionEvent
}

func (f *fakeBus) Publish(_ context.Context, event *models.SubmissionEvent) error {
	f.p.calls = append(f.p.calls, "publish")
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	pipeline *pipeline
	store    *fakeStore
	queue    *fakeQueue
	bus      *fakeBus
	producer *Producer
}

func newFixture(keys auth.KeyPolicy, maxBytes int64, allowAll bool) *fixture {
	p := &pipeline{}
	f := &fixture{
		pipeline: p,
		store:    &fakeStore{p: p, url: "https://files.test"},
		queue:    &fakeQueue{p: p},
		bus:      &fakeBus{p: p},
	}
	f.producer = New(keys, f.store, f.queue, f.bus, maxBytes, allowAll, config.DefaultExtensions)
	return f
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		Filename: "solution.cpp",
		Data:     make([]byte, 10*1024),
		Teamname: "Alpha",
		Source:   models.SourceDirect,
	}
}

func TestSubmitEnqueuesOneTaskThenPublishesOneEvent(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)

	receipt, err := f.producer.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, receipt.Success)
	assert.Equal(t, "Alpha", receipt.Teamname)
	assert.Equal(t, "solution.cpp", receipt.File)
	assert.NotEmpty(t, receipt.CodeURL)

	// Enqueue happens-before publish.
	assert.Equal(t, []string{"upload", "enqueue", "publish"}, f.pipeline.calls)

	require.Len(t, f.queue.tasks, 1)
	require.Len(t, f.bus.events, 1)

	task := f.queue.tasks[0]
	event := f.bus.events[0]
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, task.ID, event.ID)
	assert.Equal(t, "solution.cpp", task.Filename)
	assert.Equal(t, "Alpha", task.Teamname)
	assert.Equal(t, task.CodeURL, event.CodeURL)
	assert.Equal(t, models.TypeSubmission, event.Type)
	assert.Equal(t, models.SourceDirect, event.Source)
	assert.False(t, event.Timestamp.IsZero())
}

func TestSubmitRejectsMissingFile(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)

	req := validRequest()
	req.Data = nil

	_, err := f.producer.Submit(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.pipeline.calls)
}

func TestSubmitSizeCheckPrecedesUpload(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)

	req := validRequest()
	req.Data = make([]byte, 5*1024*1024)

	_, err := f.producer.Submit(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.pipeline.calls, "oversized submission must cause no side effects")
}

func TestSubmitRejectsDisallowedExtension(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)

	req := validRequest()
	req.Filename = "payload.exe"

	_, err := f.producer.Submit(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.pipeline.calls)
}

func TestSubmitAllowAllSkipsExtensionCheck(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, true)

	req := validRequest()
	req.Filename = "payload.exe"

	_, err := f.producer.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, f.queue.tasks, 1)
}

func TestSubmitEnforcesSecretKeyInProduction(t *testing.T) {
	keys := auth.KeyPolicy{Production: true, SecretKey: "s3cret"}
	f := newFixture(keys, 2*1024*1024, false)

	req := validRequest()
	req.SecretKey = "wrong"

	_, err := f.producer.Submit(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.Empty(t, f.pipeline.calls)

	req.SecretKey = "s3cret"
	_, err = f.producer.Submit(context.Background(), req)
	assert.NoError(t, err)
}

func TestSubmitBypassesSecretKeyOutsideProduction(t *testing.T) {
	keys := auth.KeyPolicy{Production: false, SecretKey: "s3cret"}
	f := newFixture(keys, 2*1024*1024, false)

	_, err := f.producer.Submit(context.Background(), validRequest())
	assert.NoError(t, err)
}

func TestSubmitAbortsWhenUploadFails(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)
	f.store.err = apperr.Wrap(apperr.ErrUpstream, errors.New("boom"), "artifact upload failed")

	_, err := f.producer.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, []string{"upload"}, f.pipeline.calls, "no task may be enqueued without an artifact reference")
}

func TestSubmitAbortsWhenEnqueueFails(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)
	f.queue.err = apperr.Wrap(apperr.ErrQueue, errors.New("down"), "failed to enqueue task")

	_, err := f.producer.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, apperr.ErrQueue)
	assert.Equal(t, []string{"upload", "enqueue"}, f.pipeline.calls, "publish must not happen after a failed enqueue")
}

func TestSubmitSwallowsPublishFailure(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)
	f.bus.err = apperr.Wrap(apperr.ErrBus, errors.New("gone"), "failed to publish event")

	receipt, err := f.producer.Submit(context.Background(), validRequest())
	require.NoError(t, err, "a lost notification never fails a queued submission")
	assert.True(t, receipt.Success)
	require.Len(t, f.queue.tasks, 1)
}

func TestSubmitDefaultsTeamnameToAnonymous(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)

	req := validRequest()
	req.Teamname = ""

	receipt, err := f.producer.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", receipt.Teamname)
	assert.Equal(t, "anonymous", f.queue.tasks[0].Teamname)
}

func TestSubmitExtensionCheckIsCaseInsensitive(t *testing.T) {
	f := newFixture(auth.KeyPolicy{}, 2*1024*1024, false)

	req := validRequest()
	req.Filename = "Main.CPP"

	_, err := f.producer.Submit(context.Background(), req)
	assert.NoError(t, err)
}
