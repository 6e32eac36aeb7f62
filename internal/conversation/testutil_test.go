package conversation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/kamjony/skittobot/internal/config"
	"github.com/kamjony/skittobot/internal/database"
	"github.com/kamjony/skittobot/internal/dialogflow"
	"github.com/kamjony/skittobot/internal/messenger"
	"github.com/kamjony/skittobot/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMessages() config.MessagesConfig {
	return config.MessagesConfig{
		Fallback:        "I'm not sure what you want. Can you be more specific?",
		Welcome:         "Hi, %s. Welcome to Skitto.",
		WelcomeNoName:   "Hi. Welcome to Skitto.",
		Greeting:        "Hello %s! I am the virtual assistant.",
		GreetingNoName:  "Hello! I am the virtual assistant.",
		Handoff:         "Transferring to Human Agent. Please Wait!",
		AttachmentReply: "Attachment received. Thank you.",
		AuthSuccess:     "Authentication successful",
		LocalFarewell:   "Sorry to see you go.",
	}
}

// sentItem is one recorded transport call with the fake-clock time at which
// it was issued.
type sentItem struct {
	at        time.Time
	kind      string // "text", "image", "quick_replies", "carousel", "action"
	recipient string
	text      string
	imageURL  string
	title     string
	replies   []messenger.QuickReply
	elements  []messenger.Element
	action    messenger.SenderAction
}

// fakeSender records every delivery with its scheduling time.
type fakeSender struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items []sentItem
}

func newFakeSender(clock clockwork.Clock) *fakeSender {
	return &fakeSender{clock: clock}
}

func (f *fakeSender) record(item sentItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.at = f.clock.Now()
	f.items = append(f.items, item)
}

func (f *fakeSender) SendText(_ context.Context, recipientID, text string) error {
	f.record(sentItem{kind: "text", recipient: recipientID, text: text})
	return nil
}

func (f *fakeSender) SendImage(_ context.Context, recipientID, imageURL string) error {
	f.record(sentItem{kind: "image", recipient: recipientID, imageURL: imageURL})
	return nil
}

func (f *fakeSender) SendQuickReplies(_ context.Context, recipientID, title string, replies []messenger.QuickReply) error {
	f.record(sentItem{kind: "quick_replies", recipient: recipientID, title: title, replies: replies})
	return nil
}

func (f *fakeSender) SendCarousel(_ context.Context, recipientID string, elements []messenger.Element) error {
	f.record(sentItem{kind: "carousel", recipient: recipientID, elements: elements})
	return nil
}

func (f *fakeSender) SendAction(_ context.Context, recipientID string, action messenger.SenderAction) error {
	f.record(sentItem{kind: "action", recipient: recipientID, action: action})
	return nil
}

func (f *fakeSender) snapshot() []sentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentItem(nil), f.items...)
}

// sent returns recorded items of the given kind, in order.
func (f *fakeSender) sent(kind string) []sentItem {
	var out []sentItem
	for _, item := range f.snapshot() {
		if item.kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// waitForItems blocks until the sender has recorded at least n items of the
// given kind. Scheduled units fire on goroutines, so assertions poll.
func (f *fakeSender) waitForItems(t *testing.T, kind string, n int) []sentItem {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.sent(kind)) >= n
	}, 2*time.Second, 2*time.Millisecond, "expected at least %d %q sends", n, kind)
	return f.sent(kind)
}

// nluCall is one recorded detect call.
type nluCall struct {
	kind      string // "text" or "event"
	sessionID string
	text      string
	eventName string
	params    map[string]any
}

// fakeNLU returns canned results keyed by text or event name.
type fakeNLU struct {
	mu           sync.Mutex
	calls        []nluCall
	textResults  map[string]*dialogflow.Result
	eventResults map[string]*dialogflow.Result
}

func newFakeNLU() *fakeNLU {
	return &fakeNLU{
		textResults:  make(map[string]*dialogflow.Result),
		eventResults: make(map[string]*dialogflow.Result),
	}
}

func (f *fakeNLU) DetectText(_ context.Context, sessionID, text string) (*dialogflow.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, nluCall{kind: "text", sessionID: sessionID, text: text})
	if res, ok := f.textResults[text]; ok {
		return res, nil
	}
	return &dialogflow.Result{FulfillmentText: "ok"}, nil
}

func (f *fakeNLU) DetectEvent(_ context.Context, sessionID, eventName string, params map[string]any) (*dialogflow.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, nluCall{kind: "event", sessionID: sessionID, eventName: eventName, params: params})
	if res, ok := f.eventResults[eventName]; ok {
		return res, nil
	}
	return &dialogflow.Result{FulfillmentText: "ok"}, nil
}

func (f *fakeNLU) callLog() []nluCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]nluCall(nil), f.calls...)
}

func (f *fakeNLU) waitForCalls(t *testing.T, n int) []nluCall {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.callLog()) >= n
	}, 2*time.Second, 2*time.Millisecond, "expected at least %d NLU calls", n)
	return f.callLog()
}

// fakeHandoff records thread-control transfers.
type fakeHandoff struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeHandoff) PassThreadControl(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return nil
}

func (f *fakeHandoff) transfers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

// fakeStore is an in-memory transcript store.
type fakeStore struct {
	mu      sync.Mutex
	entries []database.Entry
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) SaveEntry(_ context.Context, entry *database.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeStore) RecentEntries(_ context.Context, userID string, limit int) ([]database.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.Entry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeStore) PruneEntriesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []database.Entry
	var removed int64
	for _, e := range f.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *fakeStore) RunMaintenance(context.Context) error { return nil }

func (f *fakeStore) saved() []database.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.Entry(nil), f.entries...)
}

// fakeProfiles is a profile fetcher with canned profiles.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]messenger.Profile
}

func (f *fakeProfiles) FetchProfile(_ context.Context, userID string) (messenger.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return messenger.Profile{}, context.DeadlineExceeded
}

// engine bundles a fully wired conversation stack on a fake clock.
type engine struct {
	clock      *clockwork.FakeClock
	sender     *fakeSender
	nlu        *fakeNLU
	handoff    *fakeHandoff
	store      *fakeStore
	sessions   *session.Store
	renderer   *Renderer
	dispatcher *Dispatcher
	controller *Controller
}

func newEngine(t *testing.T, profiles map[string]messenger.Profile) *engine {
	t.Helper()

	clock := clockwork.NewFakeClock()
	log := testLogger()
	sender := newFakeSender(clock)
	nlu := newFakeNLU()
	handoff := &fakeHandoff{}
	store := &fakeStore{}
	sessions := session.NewStore(&fakeProfiles{profiles: profiles}, log)

	// Pre-warm the profile cache so tests control exactly what is cached.
	for userID, p := range profiles {
		sessions.EnsureProfile(context.Background(), userID)
		require.Eventually(t, func() bool {
			got, ok := sessions.Profile(userID)
			return ok && got == p
		}, 2*time.Second, 2*time.Millisecond)
	}

	renderer := NewRenderer(sender, clock, 1100*time.Millisecond, log)
	dispatcher := NewDispatcher(sender, renderer, nlu, sessions, handoff, clock, 3*time.Second, testMessages(), log)
	controller := NewController(sessions, nlu, sender, dispatcher, store, clock, 2*time.Second, testMessages(), log)

	return &engine{
		clock:      clock,
		sender:     sender,
		nlu:        nlu,
		handoff:    handoff,
		store:      store,
		sessions:   sessions,
		renderer:   renderer,
		dispatcher: dispatcher,
		controller: controller,
	}
}
