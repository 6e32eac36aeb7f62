package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads and validates configuration from, in order of precedence:
// BOT_* environment variables, the config file at path (optional), and
// built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine, env and defaults still apply.
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.listen_addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Secrets default to empty so BOT_* env values are picked up during
	// unmarshal; validation rejects them when they stay empty.
	v.SetDefault("messenger.page_token", "")
	v.SetDefault("messenger.verify_token", "")
	v.SetDefault("messenger.app_secret", "")
	v.SetDefault("messenger.page_inbox_app_id", "")
	v.SetDefault("messenger.graph_base_url", "https://graph.facebook.com/v3.2")
	v.SetDefault("messenger.timeout", "10s")

	v.SetDefault("dialogflow.project_id", "")
	v.SetDefault("dialogflow.token", "")
	v.SetDefault("dialogflow.language_code", "en-US")
	v.SetDefault("dialogflow.base_url", "https://dialogflow.googleapis.com/v2")
	v.SetDefault("dialogflow.timeout", "15s")

	v.SetDefault("conversation.message_interval", "1100ms")
	v.SetDefault("conversation.follow_up_delay", "3s")
	v.SetDefault("conversation.profile_retry_delay", "2s")

	v.SetDefault("conversation.messages.fallback", "I'm not sure what you want. Can you be more specific?")
	v.SetDefault("conversation.messages.welcome", "Hi, %s. Welcome to Skitto.")
	v.SetDefault("conversation.messages.welcome_no_name", "Hi. Welcome to Skitto.")
	v.SetDefault("conversation.messages.greeting",
		"হ্যালো %[1]s! আমি স্কিটোর ভার্চুয়াল সহকারী। বাংলায় কথা বলতে 'হ্যালো' লিখুন। \nHello %[1]s! I am the virtual assistant of Skitto. To start the conversation in English, type 'Hello'.")
	v.SetDefault("conversation.messages.greeting_no_name",
		"হ্যালো! আমি স্কিটোর ভার্চুয়াল সহকারী। বাংলায় কথা বলতে 'হ্যালো' লিখুন। \nHello! I am the virtual assistant of Skitto. To start the conversation in English, type 'Hello'.")
	v.SetDefault("conversation.messages.handoff", "Transferring to Human Agent. Please Wait!")
	v.SetDefault("conversation.messages.attachment_reply", "Attachment received. Thank you.")
	v.SetDefault("conversation.messages.auth_success", "Authentication successful")
	v.SetDefault("conversation.messages.local_farewell",
		"আপনাকে যেতে দেখে দুঃখিত :(। আপনার প্রশ্নের সন্ধান না হলে দয়া করে লাইভ এজেন্টের সাথে সংযোগ করতে 'চ্যাট উইথ এজেন্ট' টাইপ করুন। স্কিটোর সাথে থাকার জন্য আপনাকে আবার ধন্যবাদ।")

	v.SetDefault("database.path", "transcript.db")
	v.SetDefault("database.retention_days", 90)

	v.SetDefault("scheduler.tasks.transcript_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.transcript_maintenance.schedule", "0 0 4 * * *")
}
