// Package session tracks per-user conversation sessions and cached user
// profiles for the lifetime of the process. Entries are upsert-only and are
// never evicted.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kamjony/skittobot/internal/messenger"
)

// ProfileFetcher looks up a user's display profile from the platform.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (messenger.Profile, error)
}

// Store maps user IDs to stable session tokens and cached profiles.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]string
	profiles map[string]messenger.Profile

	fetcher ProfileFetcher
	log     *slog.Logger
}

// NewStore creates a session store backed by the given profile fetcher.
func NewStore(fetcher ProfileFetcher, log *slog.Logger) *Store {
	return &Store{
		sessions: make(map[string]string),
		profiles: make(map[string]messenger.Profile),
		fetcher:  fetcher,
		log:      log.With("component", "session_store"),
	}
}

// EnsureSession returns the session token for userID, creating one if none
// exists yet. The token is stable for the process lifetime. Idempotent.
func (s *Store) EnsureSession(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.sessions[userID]; ok {
		return id
	}

	id := uuid.NewString()
	s.sessions[userID] = id
	s.log.Debug("Created session", "user_id", userID, "session_id", id)
	return id
}

// EnsureProfile asynchronously fetches and caches the user's profile if it
// is not cached yet. Fire-and-forget: fetch failures and unusable profiles
// (empty first name) are logged and dropped so a later call can retry.
func (s *Store) EnsureProfile(ctx context.Context, userID string) {
	s.mu.Lock()
	_, cached := s.profiles[userID]
	s.mu.Unlock()
	if cached {
		return
	}

	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		profile, err := s.fetcher.FetchProfile(fetchCtx, userID)
		if err != nil {
			s.log.Warn("Profile fetch failed", "user_id", userID, "error", err)
			return
		}
		if profile.FirstName == "" {
			s.log.Warn("Profile has no first name, not caching", "user_id", userID)
			return
		}

		s.mu.Lock()
		s.profiles[userID] = profile
		s.mu.Unlock()
		s.log.Debug("Cached profile", "user_id", userID, "first_name", profile.FirstName)
	}()
}

// Profile returns the cached profile for userID if present. A fetch started
// by EnsureProfile may still be in flight, so absence is a valid state.
func (s *Store) Profile(userID string) (messenger.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	return p, ok
}
