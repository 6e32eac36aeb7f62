package database

import "time"

// Entry directions. Outbound entries exist for operator inspection only;
// delivery itself is fire-and-forget.
const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// Entry kinds, matching the inbound event variants the controller handles.
const (
	KindText       = "text"
	KindQuickReply = "quick_reply"
	KindPostback   = "postback"
	KindAttachment = "attachment"
	KindOptin      = "optin"
)

// Entry is one transcript record: something a user sent to the bot, or a
// reply the bot issued. Sessions and profiles deliberately stay in memory;
// only the conversation transcript is persisted.
type Entry struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	UserID    string    `db:"user_id"`
	Direction string    `db:"direction"`
	Kind      string    `db:"kind"`
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
}
