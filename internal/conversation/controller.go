package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kamjony/skittobot/internal/config"
	"github.com/kamjony/skittobot/internal/database"
	"github.com/kamjony/skittobot/internal/dialogflow"
	"github.com/kamjony/skittobot/internal/messenger"
	"github.com/kamjony/skittobot/internal/session"
)

// Postback payloads with dedicated handling outside the event table.
const (
	payloadGetStarted      = "GET_STARTED"
	payloadNoPayloadBangla = "NO_PAYLOAD_BANGLA"
)

// postbackEvents maps structured-button payloads to the NLU event they
// raise. Payloads absent from this map and from the dedicated cases above
// resolve to the fixed fallback text.
var postbackEvents = map[string]string{
	"ABOUT":                     "ABOUT_EVENT",
	"PRICE":                     "PRICE_EVENT",
	"WHERE_TO_GET":              "WHERE_EVENT",
	"ONGOING_DEALS":             "ONGOING_DEALS_EVENT",
	"DATA_PACKS":                "DATA_PACKS_EVENT",
	"OTHERS":                    "OTHERS_EVENT",
	"CHAT_WITH_AGENT":           "CHAT_WITH_AGENT_EVENT",
	"RELOAD":                    "RELOAD_EVENT",
	"START_AGAIN":               "START_AGAIN_EVENT",
	"BUY_SIM_BANGLA":            "BANGLA_BUY_EVENT",
	"ABOUT_BANGLA":              "BANGLA_ABOUT_EVENT",
	"BANGLA_SIM_BUYING_OPTIONS": "BANGLA_BUYOPTIONS_EVENT",
	"BANGLA_SIM_RATES":          "BANGLA_SIMRATES_EVENT",
}

// postbackParams holds structured parameters attached to specific postback
// events.
var postbackParams = map[string]map[string]any{
	"BANGLA_ABOUT_EVENT": {"bangla_about_what": "স্কিটটো"},
}

// Controller routes one inbound messaging event through session resolution,
// the NLU backend, and the dispatcher. Events are independent: a second
// event for the same user is processed concurrently with the first.
type Controller struct {
	sessions   *session.Store
	nlu        dialogflow.Client
	sender     Sender
	dispatcher *Dispatcher
	store      database.Store
	clock      clockwork.Clock

	profileRetryDelay time.Duration
	messages          config.MessagesConfig
	log               *slog.Logger
}

// NewController creates a controller.
func NewController(
	sessions *session.Store,
	nlu dialogflow.Client,
	sender Sender,
	dispatcher *Dispatcher,
	store database.Store,
	clock clockwork.Clock,
	profileRetryDelay time.Duration,
	messages config.MessagesConfig,
	log *slog.Logger,
) *Controller {
	return &Controller{
		sessions:          sessions,
		nlu:               nlu,
		sender:            sender,
		dispatcher:        dispatcher,
		store:             store,
		clock:             clock,
		profileRetryDelay: profileRetryDelay,
		messages:          messages,
		log:               log.With("component", "controller"),
	}
}

// HandleEvent processes one webhook messaging event.
func (c *Controller) HandleEvent(ctx context.Context, ev messenger.MessagingEvent) {
	switch {
	case ev.Optin != nil:
		c.handleOptin(ctx, ev)
	case ev.Message != nil:
		c.handleMessage(ctx, ev)
	case ev.Delivery != nil:
		c.log.DebugContext(ctx, "Received delivery confirmation",
			"user_id", ev.Sender.ID, "watermark", ev.Delivery.Watermark, "mids", len(ev.Delivery.MIDs))
	case ev.Postback != nil:
		c.handlePostback(ctx, ev)
	case ev.Read != nil:
		c.log.DebugContext(ctx, "Received message read event",
			"user_id", ev.Sender.ID, "watermark", ev.Read.Watermark)
	case ev.AccountLinking != nil:
		c.log.InfoContext(ctx, "Received account linking event",
			"user_id", ev.Sender.ID, "status", ev.AccountLinking.Status)
	default:
		c.log.WarnContext(ctx, "Received unknown messaging event", "user_id", ev.Sender.ID)
	}
}

func (c *Controller) handleMessage(ctx context.Context, ev messenger.MessagingEvent) {
	userID := ev.Sender.ID
	msg := ev.Message

	c.ensureSessionAndProfile(ctx, userID)

	if msg.IsEcho {
		c.log.DebugContext(ctx, "Received message echo",
			"message_id", msg.MID, "app_id", msg.AppID, "metadata", msg.Metadata)
		return
	}

	switch {
	case msg.QuickReply != nil:
		c.log.DebugContext(ctx, "Received quick reply",
			"user_id", userID, "message_id", msg.MID, "payload", msg.QuickReply.Payload)
		c.recordInbound(ctx, ev, database.KindQuickReply, msg.QuickReply.Payload)
		// Quick-reply payloads are resent as if the user typed them.
		c.detectText(ctx, userID, msg.QuickReply.Payload)

	case msg.Text != "":
		c.recordInbound(ctx, ev, database.KindText, msg.Text)
		c.detectText(ctx, userID, msg.Text)

	case len(msg.Attachments) > 0:
		c.recordInbound(ctx, ev, database.KindAttachment, msg.Attachments[0].Type)
		c.sendText(ctx, userID, c.messages.AttachmentReply)
	}
}

func (c *Controller) handlePostback(ctx context.Context, ev messenger.MessagingEvent) {
	userID := ev.Sender.ID
	payload := ev.Postback.Payload

	c.ensureSessionAndProfile(ctx, userID)
	c.recordInbound(ctx, ev, database.KindPostback, payload)
	c.log.InfoContext(ctx, "Received postback", "user_id", userID, "payload", payload)

	if eventName, ok := postbackEvents[payload]; ok {
		c.detectEvent(ctx, userID, eventName, postbackParams[eventName])
		return
	}

	switch payload {
	case payloadGetStarted:
		c.greet(ctx, userID)
	case payloadNoPayloadBangla:
		c.sendText(ctx, userID, c.messages.LocalFarewell)
	default:
		c.sendText(ctx, userID, c.messages.Fallback)
	}
}

func (c *Controller) handleOptin(ctx context.Context, ev messenger.MessagingEvent) {
	userID := ev.Sender.ID
	c.log.InfoContext(ctx, "Received authentication optin", "user_id", userID, "ref", ev.Optin.Ref)
	c.recordInbound(ctx, ev, database.KindOptin, ev.Optin.Ref)
	c.sendText(ctx, userID, c.messages.AuthSuccess)
}

// greet sends the GET_STARTED greeting, personalized when the profile cache
// has the user's first name. A fetch may still be in flight on first
// contact, so an absent profile gets one retry after a short wait before
// degrading to the name-less variant. No NLU call is involved.
func (c *Controller) greet(ctx context.Context, userID string) {
	profile, ok := c.sessions.Profile(userID)
	if !ok {
		c.clock.Sleep(c.profileRetryDelay)
		profile, ok = c.sessions.Profile(userID)
	}

	if ok {
		c.sendText(ctx, userID, fmt.Sprintf(c.messages.Greeting, profile.FirstName))
		return
	}
	c.sendText(ctx, userID, c.messages.GreetingNoName)
}

func (c *Controller) detectText(ctx context.Context, userID, text string) {
	if err := c.sender.SendAction(ctx, userID, messenger.TypingOn); err != nil {
		c.log.ErrorContext(ctx, "Failed to send typing indicator", "user_id", userID, "error", err)
	}

	sessionID := c.sessions.EnsureSession(userID)
	res, err := c.nlu.DetectText(ctx, sessionID, text)
	if err != nil {
		c.log.ErrorContext(ctx, "Text intent detection failed", "user_id", userID, "error", err)
		return
	}
	c.dispatcher.Handle(ctx, userID, res)
}

func (c *Controller) detectEvent(ctx context.Context, userID, eventName string, params map[string]any) {
	sessionID := c.sessions.EnsureSession(userID)
	res, err := c.nlu.DetectEvent(ctx, sessionID, eventName, params)
	if err != nil {
		c.log.ErrorContext(ctx, "Event intent detection failed",
			"user_id", userID, "event", eventName, "error", err)
		return
	}
	c.dispatcher.Handle(ctx, userID, res)
}

func (c *Controller) ensureSessionAndProfile(ctx context.Context, userID string) {
	c.sessions.EnsureSession(userID)
	c.sessions.EnsureProfile(ctx, userID)
}

// recordInbound appends the event to the transcript. Storage failures never
// block conversation handling.
func (c *Controller) recordInbound(ctx context.Context, ev messenger.MessagingEvent, kind, content string) {
	entry := &database.Entry{
		UserID:    ev.Sender.ID,
		Direction: database.DirectionInbound,
		Kind:      kind,
		Content:   content,
		Timestamp: time.UnixMilli(ev.Timestamp).UTC(),
	}
	if err := c.store.SaveEntry(ctx, entry); err != nil {
		c.log.ErrorContext(ctx, "Failed to record transcript entry",
			"user_id", ev.Sender.ID, "kind", kind, "error", err)
	}
}

func (c *Controller) sendText(ctx context.Context, userID, text string) {
	if err := c.sender.SendText(ctx, userID, text); err != nil {
		c.log.ErrorContext(ctx, "Failed to send text", "user_id", userID, "error", err)
	}
}
