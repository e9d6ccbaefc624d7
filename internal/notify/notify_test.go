package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	mu       sync.Mutex
	payloads []map[string]string
	status   int
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.payloads = append(f.payloads, body)
	status := f.status
	f.mu.Unlock()
	w.WriteHeader(status)
}

func (f *fakeRelay) setStatus(code int) {
	f.mu.Lock()
	f.status = code
	f.mu.Unlock()
}

func queue(t *testing.T, store *memstore.Store, n domain.Notification, at time.Time) {
	t.Helper()
	n.Status = domain.NotificationPending
	n.NextAttemptAt = at
	n.CreatedAt = at
	_, err := store.EnqueueNotification(context.Background(), n)
	require.NoError(t, err)
}

func TestRelayPayloads(t *testing.T) {
	relay := &fakeRelay{status: http.StatusOK}
	srv := httptest.NewServer(relay)
	defer srv.Close()

	client := NewRelay(srv.URL, "key-1", srv.Client())
	require.NoError(t, client.Send(context.Background(), domain.Notification{
		Kind: domain.NotificationText, Number: "9000000000", Message: "hi",
	}))
	require.NoError(t, client.Send(context.Background(), domain.Notification{
		Kind: domain.NotificationImage, Number: "9000000000", ImageURL: "https://img/x.png", Caption: "rx",
	}))

	require.Len(t, relay.payloads, 2)
	assert.Equal(t, map[string]string{"apikey": "key-1", "number": "9000000000", "message": "hi"}, relay.payloads[0])
	assert.Equal(t, "https://img/x.png", relay.payloads[1]["imageUrl"])
	assert.Equal(t, "rx", relay.payloads[1]["caption"])
}

func TestWorkerRetriesThenSends(t *testing.T) {
	relay := &fakeRelay{status: http.StatusBadGateway}
	srv := httptest.NewServer(relay)
	defer srv.Close()

	store := memstore.New()
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	queue(t, store, domain.Notification{ID: "n1", Kind: domain.NotificationText, Number: "9000000000", Message: "hello"}, start)

	w := NewWorker(store, NewRelay(srv.URL, "k", srv.Client()), Config{MaxAttempts: 3, InitialBackoff: time.Minute}, nil, nil)
	now := start
	w.now = func() time.Time { return now }

	handled, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	list, err := store.ListNotifications(context.Background(), domain.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationPending, list[0].Status)
	assert.Equal(t, 1, list[0].Attempts)
	assert.Equal(t, start.Add(time.Minute), list[0].NextAttemptAt)
	assert.Contains(t, list[0].LastError, "502")

	handled, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled, "not due before the backoff elapses")

	relay.setStatus(http.StatusOK)
	now = start.Add(2 * time.Minute)
	handled, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	list, err = store.ListNotifications(context.Background(), domain.NotificationFilter{Status: domain.NotificationSent})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Attempts)
	require.NotNil(t, list[0].SentAt)
}

func TestWorkerGivesUp(t *testing.T) {
	relay := &fakeRelay{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(relay)
	defer srv.Close()

	store := memstore.New()
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	queue(t, store, domain.Notification{ID: "n1", Kind: domain.NotificationText, Number: "9000000000", Message: "hello"}, start)
	queue(t, store, domain.Notification{ID: "n2", Kind: domain.NotificationText, Number: "9000000001", Message: "hello"}, start)

	w := NewWorker(store, NewRelay(srv.URL, "k", srv.Client()), Config{MaxAttempts: 2, InitialBackoff: time.Second}, nil, nil)
	now := start
	w.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		now = now.Add(time.Hour)
	}

	failed, err := store.ListNotifications(context.Background(), domain.NotificationFilter{Status: domain.NotificationFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)
	for _, n := range failed {
		assert.Equal(t, 2, n.Attempts)
	}
}

func TestWorkerFailsFastOnClientError(t *testing.T) {
	relay := &fakeRelay{status: http.StatusBadRequest}
	srv := httptest.NewServer(relay)
	defer srv.Close()

	store := memstore.New()
	start := time.Now().UTC()
	queue(t, store, domain.Notification{ID: "n1", Kind: domain.NotificationText, Number: "9000000000", Message: "hello"}, start.Add(-time.Second))

	w := NewWorker(store, NewRelay(srv.URL, "k", srv.Client()), Config{MaxAttempts: 5}, nil, nil)
	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	failed, err := store.ListNotifications(context.Background(), domain.NotificationFilter{Status: domain.NotificationFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Attempts)
}

func TestBackoffDelays(t *testing.T) {
	w := NewWorker(memstore.New(), nil, Config{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}, nil, nil)
	assert.Equal(t, time.Second, w.delay(1))
	assert.Equal(t, 2*time.Second, w.delay(2))
	assert.Equal(t, 4*time.Second, w.delay(3))
	assert.Equal(t, 5*time.Second, w.delay(4))
}

func TestRunStopsOnCancel(t *testing.T) {
	w := NewWorker(memstore.New(), nil, Config{PollInterval: 10 * time.Millisecond}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
