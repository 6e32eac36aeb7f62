package dialogflow

import "encoding/json"

// Result is the interpreted outcome of one detectIntent call. It carries the
// fulfillment content produced by the agent; interpretation (action vs.
// messages vs. bare text) is left to the conversation dispatcher.
type Result struct {
	FulfillmentText string
	Action          string
	Messages        []Message
	OutputContexts  []json.RawMessage
	Parameters      map[string]any
}

// Message is one fulfillment message descriptor. Exactly one of the variant
// fields is populated, mirroring the fulfillmentMessages wire shape.
type Message struct {
	Text         *Text         `json:"text,omitempty"`
	QuickReplies *QuickReplies `json:"quickReplies,omitempty"`
	Image        *Image        `json:"image,omitempty"`
	Card         *Card         `json:"card,omitempty"`
}

// IsCard reports whether the descriptor is a card variant. The renderer
// merges consecutive cards into a single carousel.
func (m Message) IsCard() bool { return m.Card != nil }

// Text holds pre-segmented text lines; each non-empty line is delivered as
// its own platform message.
type Text struct {
	Text []string `json:"text"`
}

// QuickReplies holds a title and the suggested-response options.
type QuickReplies struct {
	Title        string   `json:"title"`
	QuickReplies []string `json:"quickReplies"`
}

// Image holds a single image attachment.
type Image struct {
	ImageURI string `json:"imageUri"`
}

// Card holds one carousel element. Buttons carry an opaque postback value;
// whether it is a link or a payload is decided at the rendering boundary.
type Card struct {
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle"`
	ImageURI string       `json:"imageUri"`
	Buttons  []CardButton `json:"buttons"`
}

// CardButton is a card button as the agent returns it: a label and a
// postback value that may be a URL or an arbitrary payload string.
type CardButton struct {
	Text     string `json:"text"`
	Postback string `json:"postback"`
}
