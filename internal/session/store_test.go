package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamjony/skittobot/internal/messenger"
)

type stubFetcher struct {
	mu       sync.Mutex
	profiles map[string]messenger.Profile
	err      error
	calls    atomic.Int64
}

func (f *stubFetcher) FetchProfile(_ context.Context, userID string) (messenger.Profile, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return messenger.Profile{}, f.err
	}
	return f.profiles[userID], nil
}

func newTestStore(fetcher ProfileFetcher) *Store {
	return NewStore(fetcher, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(&stubFetcher{})

	first := store.EnsureSession("user-1")
	second := store.EnsureSession("user-1")

	assert.Equal(t, first, second)
	_, err := uuid.Parse(first)
	assert.NoError(t, err)
}

func TestEnsureSessionSeparatesUsers(t *testing.T) {
	t.Parallel()

	store := newTestStore(&stubFetcher{})

	assert.NotEqual(t, store.EnsureSession("user-1"), store.EnsureSession("user-2"))
}

func TestEnsureSessionConcurrent(t *testing.T) {
	t.Parallel()

	store := newTestStore(&stubFetcher{})

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = store.EnsureSession("user-1")
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestEnsureProfileCachesFetchedProfile(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{profiles: map[string]messenger.Profile{
		"user-1": {FirstName: "Alice", LastName: "Rahman"},
	}}
	store := newTestStore(fetcher)

	store.EnsureProfile(context.Background(), "user-1")

	require.Eventually(t, func() bool {
		p, ok := store.Profile("user-1")
		return ok && p.FirstName == "Alice"
	}, 2*time.Second, 2*time.Millisecond)
}

func TestEnsureProfileSkipsCachedUsers(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{profiles: map[string]messenger.Profile{
		"user-1": {FirstName: "Alice"},
	}}
	store := newTestStore(fetcher)

	store.EnsureProfile(context.Background(), "user-1")
	require.Eventually(t, func() bool {
		_, ok := store.Profile("user-1")
		return ok
	}, 2*time.Second, 2*time.Millisecond)

	store.EnsureProfile(context.Background(), "user-1")
	store.EnsureProfile(context.Background(), "user-1")

	assert.Equal(t, int64(1), fetcher.calls.Load())
}

func TestEnsureProfileDropsFetchErrors(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: errors.New("graph api unavailable")}
	store := newTestStore(fetcher)

	store.EnsureProfile(context.Background(), "user-1")

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 1
	}, 2*time.Second, 2*time.Millisecond)

	_, ok := store.Profile("user-1")
	assert.False(t, ok)

	// A failed fetch leaves nothing cached, so a later call retries.
	store.EnsureProfile(context.Background(), "user-1")
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 2
	}, 2*time.Second, 2*time.Millisecond)
}

func TestEnsureProfileRejectsEmptyFirstName(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{profiles: map[string]messenger.Profile{
		"user-1": {LastName: "Rahman"},
	}}
	store := newTestStore(fetcher)

	store.EnsureProfile(context.Background(), "user-1")

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 1
	}, 2*time.Second, 2*time.Millisecond)

	_, ok := store.Profile("user-1")
	assert.False(t, ok)
}

func TestProfileAbsentWithoutFetch(t *testing.T) {
	t.Parallel()

	store := newTestStore(&stubFetcher{})

	p, ok := store.Profile("user-1")
	assert.False(t, ok)
	assert.Empty(t, p.FirstName)
}
