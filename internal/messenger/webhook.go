package messenger

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// WebhookPayload is the body of one webhook POST. Entries may be batched.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one page entry containing a batch of messaging events.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is a single inbound event. Exactly one of the variant
// fields is populated.
type MessagingEvent struct {
	Sender    ID    `json:"sender"`
	Recipient ID    `json:"recipient"`
	Timestamp int64 `json:"timestamp"`

	Message        *InboundMessage `json:"message,omitempty"`
	Postback       *Postback       `json:"postback,omitempty"`
	Delivery       *Delivery       `json:"delivery,omitempty"`
	Read           *Read           `json:"read,omitempty"`
	Optin          *Optin          `json:"optin,omitempty"`
	AccountLinking *AccountLinking `json:"account_linking,omitempty"`
}

// InboundMessage is a user (or echoed bot) message.
type InboundMessage struct {
	MID         string              `json:"mid"`
	IsEcho      bool                `json:"is_echo,omitempty"`
	AppID       int64               `json:"app_id,omitempty"`
	Metadata    string              `json:"metadata,omitempty"`
	Text        string              `json:"text,omitempty"`
	QuickReply  *InboundQuickReply  `json:"quick_reply,omitempty"`
	Attachments []InboundAttachment `json:"attachments,omitempty"`
}

// InboundQuickReply carries the payload of a tapped quick reply.
type InboundQuickReply struct {
	Payload string `json:"payload"`
}

// InboundAttachment is a received attachment; only its type matters here.
type InboundAttachment struct {
	Type string `json:"type"`
}

// Postback carries the payload of a tapped structured button.
type Postback struct {
	Payload string `json:"payload"`
}

// Delivery confirms delivery of previously sent messages.
type Delivery struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
	Seq       int64    `json:"seq"`
}

// Read confirms the user has read messages up to the watermark.
type Read struct {
	Watermark int64 `json:"watermark"`
	Seq       int64 `json:"seq"`
}

// Optin is the authentication event raised by the Send-to-Messenger plugin.
type Optin struct {
	Ref string `json:"ref"`
}

// AccountLinking reports a link or unlink action.
type AccountLinking struct {
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
}

// VerifySignature checks the X-Hub-Signature header value against the
// HMAC-SHA1 of the raw request body keyed with the app secret. The header
// has the form "sha1=<hex digest>".
func VerifySignature(appSecret string, body []byte, header string) bool {
	method, digest, found := strings.Cut(header, "=")
	if !found || method != "sha1" {
		return false
	}

	mac := hmac.New(sha1.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(digest), []byte(expected))
}
