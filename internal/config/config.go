// Package config manages application configuration from config.yaml,
// BOT_-prefixed environment variables, and default values.
package config

import (
	"time"
)

// Config defines the application configuration for all components of the
// bot: logging, HTTP server, Messenger transport, Dialogflow NLU,
// conversation pacing, database, and scheduled tasks.
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Server       ServerConfig       `mapstructure:"server"`
	Messenger    MessengerConfig    `mapstructure:"messenger"`
	Dialogflow   DialogflowConfig   `mapstructure:"dialogflow"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ServerConfig controls the webhook HTTP server.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"      validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// MessengerConfig holds the Facebook Messenger platform credentials and
// Graph API settings. PageToken authenticates outbound Send API calls,
// VerifyToken answers the webhook subscribe handshake, and AppSecret
// verifies inbound payload signatures.
type MessengerConfig struct {
	PageToken      string        `mapstructure:"page_token"        validate:"required"`
	VerifyToken    string        `mapstructure:"verify_token"      validate:"required"`
	AppSecret      string        `mapstructure:"app_secret"        validate:"required"`
	PageInboxAppID string        `mapstructure:"page_inbox_app_id"`
	GraphBaseURL   string        `mapstructure:"graph_base_url"    validate:"required,url"`
	Timeout        time.Duration `mapstructure:"timeout"           validate:"min=1s,max=1m"`
}

// DialogflowConfig holds the Dialogflow v2 agent settings.
type DialogflowConfig struct {
	ProjectID    string        `mapstructure:"project_id"    validate:"required"`
	Token        string        `mapstructure:"token"         validate:"required"`
	LanguageCode string        `mapstructure:"language_code" validate:"required"`
	BaseURL      string        `mapstructure:"base_url"      validate:"required,url"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"min=1s,max=1m"`
}

// ConversationConfig controls message pacing and the user-facing texts the
// conversation engine emits on its own (outside of NLU fulfillment content).
type ConversationConfig struct {
	// MessageInterval is the slot width used when staggering rendered messages.
	MessageInterval time.Duration `mapstructure:"message_interval" validate:"min=1ms"`
	// FollowUpDelay is the pause before a two-phase action raises its follow-up event.
	FollowUpDelay time.Duration `mapstructure:"follow_up_delay" validate:"min=1ms"`
	// ProfileRetryDelay is how long the greeting waits for an in-flight profile fetch.
	ProfileRetryDelay time.Duration `mapstructure:"profile_retry_delay" validate:"min=1ms"`

	Messages MessagesConfig `mapstructure:"messages"`
}

// MessagesConfig holds the fixed reply texts.
type MessagesConfig struct {
	Fallback        string `mapstructure:"fallback"         validate:"required"`
	Welcome         string `mapstructure:"welcome"          validate:"required"`
	WelcomeNoName   string `mapstructure:"welcome_no_name"  validate:"required"`
	Greeting        string `mapstructure:"greeting"         validate:"required"`
	GreetingNoName  string `mapstructure:"greeting_no_name" validate:"required"`
	Handoff         string `mapstructure:"handoff"          validate:"required"`
	AttachmentReply string `mapstructure:"attachment_reply" validate:"required"`
	AuthSuccess     string `mapstructure:"auth_success"     validate:"required"`
	LocalFarewell   string `mapstructure:"local_farewell"   validate:"required"`
}

// DatabaseConfig controls the transcript database.
type DatabaseConfig struct {
	Path          string `mapstructure:"path"           validate:"required"`
	RetentionDays int    `mapstructure:"retention_days" validate:"min=1"`
}

// SchedulerConfig holds scheduled task definitions keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a registered task and sets its cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}
