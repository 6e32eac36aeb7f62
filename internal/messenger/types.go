package messenger

// SenderAction is a non-message signal shown in the conversation UI.
type SenderAction string

const (
	TypingOn  SenderAction = "typing_on"
	TypingOff SenderAction = "typing_off"
	MarkSeen  SenderAction = "mark_seen"
)

// ID wraps a Messenger-scoped identifier as the Graph API expects it.
type ID struct {
	ID string `json:"id"`
}

// sendRequest is the body of one Send API call. Exactly one of Message or
// SenderAction is set.
type sendRequest struct {
	Recipient    ID               `json:"recipient"`
	Message      *OutboundMessage `json:"message,omitempty"`
	SenderAction SenderAction     `json:"sender_action,omitempty"`
}

// OutboundMessage is the message body of a Send API call: text, an
// attachment, or text with quick replies.
type OutboundMessage struct {
	Text         string       `json:"text,omitempty"`
	Attachment   *Attachment  `json:"attachment,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

// Attachment carries an image or a structured template.
type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload is the union payload for image and template attachments.
type AttachmentPayload struct {
	URL          string    `json:"url,omitempty"`
	TemplateType string    `json:"template_type,omitempty"`
	Text         string    `json:"text,omitempty"`
	Buttons      []Button  `json:"buttons,omitempty"`
	Elements     []Element `json:"elements,omitempty"`
}

// Element is one card of a generic (carousel) template.
type Element struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Button is either a web_url button (URL set) or a postback button
// (Payload set).
type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// QuickReply is a suggested-response button attached to a message.
type QuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// Profile is the subset of the Graph user profile the bot uses for
// personalized greetings.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
