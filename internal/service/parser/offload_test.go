package parser

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
	"github.com/feichai0017/attachment-extractor/pkg/queue"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Store(ctx context.Context, reader io.Reader, objectID string) (string, error) {
	if m.failPut {
		return "", errors.New("storage unavailable")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectID] = data
	return objectID, nil
}

func (m *memStore) Get(ctx context.Context, objectID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectID]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectID)
	return nil
}

func (m *memStore) CleanupBefore(ctx context.Context, threshold time.Time) error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// answeringQueue publishes a canned result for every enqueued task,
// simulating a worker completing the round-trip.
type answeringQueue struct {
	mu      sync.Mutex
	results map[string]*models.ParsedContent
	answer  *models.ParsedContent
	silent  bool
}

func newAnsweringQueue(answer *models.ParsedContent) *answeringQueue {
	return &answeringQueue{results: make(map[string]*models.ParsedContent), answer: answer}
}

func (q *answeringQueue) Enqueue(ctx context.Context, task *queue.DecodeTask) error {
	if q.silent {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results[task.ID] = q.answer
	return nil
}

func (q *answeringQueue) GetResult(ctx context.Context, taskID string) (*models.ParsedContent, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	result, ok := q.results[taskID]
	return result, ok, nil
}

func (q *answeringQueue) SaveResult(ctx context.Context, taskID string, result *models.ParsedContent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results[taskID] = result
	return nil
}

func (q *answeringQueue) Close() error { return nil }

func TestWorkerDispatcherRoundTrip(t *testing.T) {
	store := newMemStore()
	q := newAnsweringQueue(&models.ParsedContent{Text: "worker output", Success: true})
	d := NewWorkerDispatcher(store, q, logger.NewTestLogger(), 5*time.Second)
	d.pollInterval = 10 * time.Millisecond

	result, err := d.Decode(context.Background(), []byte("payload"), models.TypePDF, "https://example.com/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "worker output", result.Text)
}

func TestWorkerDispatcherTimeout(t *testing.T) {
	store := newMemStore()
	q := newAnsweringQueue(nil)
	q.silent = true
	d := NewWorkerDispatcher(store, q, logger.NewTestLogger(), 100*time.Millisecond)
	d.pollInterval = 10 * time.Millisecond

	_, err := d.Decode(context.Background(), []byte("payload"), models.TypePDF, "https://example.com/a.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 0, store.count(), "abandoned payload is cleaned up")
}

func TestWorkerDispatcherStorageFailure(t *testing.T) {
	store := newMemStore()
	store.failPut = true
	q := newAnsweringQueue(nil)
	d := NewWorkerDispatcher(store, q, logger.NewTestLogger(), time.Second)

	_, err := d.Decode(context.Background(), []byte("payload"), models.TypePDF, "https://example.com/a.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage payload")
}
