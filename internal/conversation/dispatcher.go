package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kamjony/skittobot/internal/config"
	"github.com/kamjony/skittobot/internal/dialogflow"
	"github.com/kamjony/skittobot/internal/messenger"
	"github.com/kamjony/skittobot/internal/session"
)

// Action tags with dedicated handlers.
const (
	actionWelcome      = "input.welcome"
	actionHumanHandoff = "talk.human"
)

// followUpEvents maps each two-phase action tag to the event raised in its
// second phase. Phase 1 renders the result's messages right away; Phase 2
// fires after the configured delay, shows typing, and feeds the follow-up
// event's result back through the dispatcher.
var followUpEvents = map[string]string{
	"rate.action":         "PRICE_SECOND_EVENT",
	"where.action":        "WHERE_SECOND_EVENT",
	"ongoingdeals.action": "ONGOING_SECOND_EVENT",
	"data.packs.action":   "DATA_SECOND_EVENT",
	"others.action":       "OTHERS_SECOND_EVENT",
	"start.again.action":  "AGAIN_SECOND_EVENT",
	"reload.action":       "RELOAD_SECOND_EVENT",
}

// Handoff transfers a conversation thread to a human agent.
type Handoff interface {
	PassThreadControl(ctx context.Context, userID string) error
}

// Dispatcher interprets NLU results and drives the per-invocation action
// state machine. It is stateless across invocations: each result spawns a
// fresh instance, and overlapping instances for the same user are allowed
// and never serialized.
type Dispatcher struct {
	sender   Sender
	renderer *Renderer
	nlu      dialogflow.Client
	sessions *session.Store
	handoff  Handoff
	clock    clockwork.Clock

	followUpDelay time.Duration
	messages      config.MessagesConfig
	log           *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	sender Sender,
	renderer *Renderer,
	nlu dialogflow.Client,
	sessions *session.Store,
	handoff Handoff,
	clock clockwork.Clock,
	followUpDelay time.Duration,
	messages config.MessagesConfig,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sender:        sender,
		renderer:      renderer,
		nlu:           nlu,
		sessions:      sessions,
		handoff:       handoff,
		clock:         clock,
		followUpDelay: followUpDelay,
		messages:      messages,
		log:           log.With("component", "dispatcher"),
	}
}

// Handle interprets one NLU result for the given user. Resolution order:
// a defined action wins; otherwise non-empty messages render directly;
// otherwise an empty fulfillment text resolves to the fixed fallback;
// otherwise the fulfillment text goes out as a single message.
func (d *Dispatcher) Handle(ctx context.Context, userID string, res *dialogflow.Result) {
	// The platform shows a typing indicator while the NLU call is in
	// flight; clear it now that a result arrived.
	d.sendAction(ctx, userID, messenger.TypingOff)

	switch {
	case res.Action != "":
		d.handleAction(ctx, userID, res)
	case len(res.Messages) > 0:
		d.renderer.Render(ctx, userID, res.Messages)
	case res.FulfillmentText == "":
		d.sendText(ctx, userID, d.messages.Fallback)
	default:
		d.sendText(ctx, userID, res.FulfillmentText)
	}
}

func (d *Dispatcher) handleAction(ctx context.Context, userID string, res *dialogflow.Result) {
	if followUpEvent, ok := followUpEvents[res.Action]; ok {
		d.runTwoPhase(ctx, userID, followUpEvent, res.Messages)
		return
	}

	switch res.Action {
	case actionWelcome:
		d.sendAction(ctx, userID, messenger.TypingOn)
		d.sendText(ctx, userID, d.welcomeText(userID))
		d.renderer.Render(ctx, userID, res.Messages)

	case actionHumanHandoff:
		if err := d.handoff.PassThreadControl(ctx, userID); err != nil {
			d.log.ErrorContext(ctx, "Thread handoff failed", "user_id", userID, "error", err)
		}
		d.sendText(ctx, userID, d.messages.Handoff)

	default:
		// Unrecognized tags fall back to rendering the messages as given.
		d.renderer.Render(ctx, userID, res.Messages)
	}
}

// runTwoPhase executes the two-phase action sequence: render now, then
// after the delay raise the follow-up event and recurse. The Phase 2 timer
// is armed as soon as Phase 1 has been issued and always fires; there is no
// cancellation.
func (d *Dispatcher) runTwoPhase(ctx context.Context, userID, followUpEvent string, messages []dialogflow.Message) {
	d.sendAction(ctx, userID, messenger.TypingOn)
	d.renderer.Render(ctx, userID, messages)

	bg := context.WithoutCancel(ctx)
	d.clock.AfterFunc(d.followUpDelay, func() {
		d.sendAction(bg, userID, messenger.TypingOn)

		sessionID := d.sessions.EnsureSession(userID)
		res, err := d.nlu.DetectEvent(bg, sessionID, followUpEvent, nil)
		if err != nil {
			d.log.Error("Follow-up event detection failed",
				"user_id", userID, "event", followUpEvent, "error", err)
			return
		}
		d.Handle(bg, userID, res)
	})
}

func (d *Dispatcher) welcomeText(userID string) string {
	if profile, ok := d.sessions.Profile(userID); ok {
		return fmt.Sprintf(d.messages.Welcome, profile.FirstName)
	}
	return d.messages.WelcomeNoName
}

func (d *Dispatcher) sendText(ctx context.Context, userID, text string) {
	if err := d.sender.SendText(ctx, userID, text); err != nil {
		d.log.ErrorContext(ctx, "Failed to send text", "user_id", userID, "error", err)
	}
}

func (d *Dispatcher) sendAction(ctx context.Context, userID string, action messenger.SenderAction) {
	if err := d.sender.SendAction(ctx, userID, action); err != nil {
		d.log.ErrorContext(ctx, "Failed to send sender action",
			"user_id", userID, "action", action, "error", err)
	}
}
