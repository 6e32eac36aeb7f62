// Package conversation implements the conversation orchestration engine:
// the paced message renderer, the action-dispatch state machine, and the
// controller that routes inbound webhook events through the NLU backend.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kamjony/skittobot/internal/dialogflow"
	"github.com/kamjony/skittobot/internal/messenger"
)

// Sender delivers messages and sender actions to a platform user. It is the
// subset of the Messenger client the conversation engine needs.
type Sender interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendImage(ctx context.Context, recipientID, imageURL string) error
	SendQuickReplies(ctx context.Context, recipientID, title string, replies []messenger.QuickReply) error
	SendCarousel(ctx context.Context, recipientID string, elements []messenger.Element) error
	SendAction(ctx context.Context, recipientID string, action messenger.SenderAction) error
}

// Renderer converts an ordered sequence of fulfillment messages into platform
// sends, staggering delivery so replies arrive roughly one per interval and
// merging consecutive cards into a single carousel.
type Renderer struct {
	sender   Sender
	clock    clockwork.Clock
	interval time.Duration
	log      *slog.Logger
}

// NewRenderer creates a renderer that paces sends by interval on the given
// clock.
func NewRenderer(sender Sender, clock clockwork.Clock, interval time.Duration, log *slog.Logger) *Renderer {
	return &Renderer{
		sender:   sender,
		clock:    clock,
		interval: interval,
		log:      log.With("component", "renderer"),
	}
}

// renderUnit is one scheduled delivery: either a single message descriptor
// or a carousel built from a run of consecutive cards.
type renderUnit struct {
	delay   time.Duration
	message dialogflow.Message
	cards   []dialogflow.Card
}

// planUnits walks the descriptor sequence maintaining a pending run of
// consecutive cards. A non-card descriptor flushes the run as one carousel
// unit and then becomes its own unit; a card ending the sequence flushes
// immediately. A unit's delay is index*interval; the carousel reuses the
// slot of the last card in the run, i.e. (triggerIndex-1)*interval, clamped
// at zero for a run starting the sequence.
func planUnits(messages []dialogflow.Message, interval time.Duration) []renderUnit {
	var units []renderUnit
	var run []dialogflow.Card

	flush := func(trigger int) {
		if len(run) == 0 {
			return
		}
		slot := trigger - 1
		if slot < 0 {
			slot = 0
		}
		units = append(units, renderUnit{
			delay: time.Duration(slot) * interval,
			cards: run,
		})
		run = nil
	}

	for i, m := range messages {
		if m.IsCard() {
			run = append(run, *m.Card)
			if i == len(messages)-1 {
				flush(i)
			}
			continue
		}

		flush(i)
		units = append(units, renderUnit{
			delay:   time.Duration(i) * interval,
			message: m,
		})
	}

	return units
}

// Render schedules delivery of the message sequence to the recipient. Each
// unit fires independently after its delay; units are never cancelled, and
// delivery failures are logged and dropped.
func (r *Renderer) Render(ctx context.Context, recipientID string, messages []dialogflow.Message) {
	units := planUnits(messages, r.interval)
	if len(units) == 0 {
		return
	}

	// Units outlive the inbound webhook request.
	sendCtx := context.WithoutCancel(ctx)

	for _, unit := range units {
		r.clock.AfterFunc(unit.delay, func() {
			r.deliver(sendCtx, recipientID, unit)
		})
	}
}

func (r *Renderer) deliver(ctx context.Context, recipientID string, unit renderUnit) {
	if len(unit.cards) > 0 {
		elements := make([]messenger.Element, 0, len(unit.cards))
		for _, card := range unit.cards {
			elements = append(elements, elementFromCard(card))
		}
		if err := r.sender.SendCarousel(ctx, recipientID, elements); err != nil {
			r.log.ErrorContext(ctx, "Failed to send carousel",
				"recipient_id", recipientID, "elements", len(elements), "error", err)
		}
		return
	}

	m := unit.message
	switch {
	case m.Text != nil:
		// Pre-segmented lines go out back-to-back within the same slot.
		for _, line := range m.Text.Text {
			if line == "" {
				continue
			}
			if err := r.sender.SendText(ctx, recipientID, line); err != nil {
				r.log.ErrorContext(ctx, "Failed to send text", "recipient_id", recipientID, "error", err)
			}
		}

	case m.QuickReplies != nil:
		replies := make([]messenger.QuickReply, 0, len(m.QuickReplies.QuickReplies))
		for _, option := range m.QuickReplies.QuickReplies {
			replies = append(replies, messenger.QuickReply{
				ContentType: "text",
				Title:       option,
				Payload:     option,
			})
		}
		if err := r.sender.SendQuickReplies(ctx, recipientID, m.QuickReplies.Title, replies); err != nil {
			r.log.ErrorContext(ctx, "Failed to send quick replies", "recipient_id", recipientID, "error", err)
		}

	case m.Image != nil:
		if err := r.sender.SendImage(ctx, recipientID, m.Image.ImageURI); err != nil {
			r.log.ErrorContext(ctx, "Failed to send image", "recipient_id", recipientID, "error", err)
		}

	default:
		r.log.DebugContext(ctx, "Skipping message with no known variant", "recipient_id", recipientID)
	}
}

func elementFromCard(card dialogflow.Card) messenger.Element {
	buttons := make([]messenger.Button, 0, len(card.Buttons))
	for _, b := range card.Buttons {
		buttons = append(buttons, buttonFromCardButton(b))
	}
	return messenger.Element{
		Title:    card.Title,
		Subtitle: card.Subtitle,
		ImageURL: card.ImageURI,
		Buttons:  buttons,
	}
}

// buttonFromCardButton classifies a card button as a link or a postback.
// The agent does not distinguish them structurally, so the boundary rule is
// the fixed "http" prefix on the postback value.
func buttonFromCardButton(b dialogflow.CardButton) messenger.Button {
	if strings.HasPrefix(b.Postback, "http") {
		return messenger.Button{Type: "web_url", Title: b.Text, URL: b.Postback}
	}
	return messenger.Button{Type: "postback", Title: b.Text, Payload: b.Postback}
}
