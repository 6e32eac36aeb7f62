// Package messenger implements the Facebook Messenger platform transport:
// webhook event types, Send API calls, user profile lookup, and thread
// handoff to the page inbox.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/kamjony/skittobot/internal/config"
)

// Client sends messages and sender actions to a Messenger user. Every call
// is one Send API round-trip; callers treat delivery as fire-and-forget and
// only log failures.
type Client interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendImage(ctx context.Context, recipientID, imageURL string) error
	SendQuickReplies(ctx context.Context, recipientID, title string, replies []QuickReply) error
	SendCarousel(ctx context.Context, recipientID string, elements []Element) error
	SendAction(ctx context.Context, recipientID string, action SenderAction) error

	// FetchProfile looks up the user's display name via the Graph API. An
	// empty first name is treated as a failure by the caller.
	FetchProfile(ctx context.Context, userID string) (Profile, error)

	// PassThreadControl hands the conversation over to the page inbox so a
	// human agent can take it from there.
	PassThreadControl(ctx context.Context, userID string) error
}

type graphClient struct {
	httpClient     *http.Client
	log            *slog.Logger
	baseURL        string
	pageToken      string
	pageInboxAppID string
}

// NewClient creates a Graph API client from configuration.
func NewClient(cfg config.MessengerConfig, log *slog.Logger) (Client, error) {
	if cfg.PageToken == "" {
		return nil, fmt.Errorf("messenger page token is required")
	}

	return &graphClient{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		log:            log.With("component", "messenger_client"),
		baseURL:        cfg.GraphBaseURL,
		pageToken:      cfg.PageToken,
		pageInboxAppID: cfg.PageInboxAppID,
	}, nil
}

func (c *graphClient) SendText(ctx context.Context, recipientID, text string) error {
	return c.send(ctx, sendRequest{
		Recipient: ID{ID: recipientID},
		Message:   &OutboundMessage{Text: text},
	})
}

func (c *graphClient) SendImage(ctx context.Context, recipientID, imageURL string) error {
	return c.send(ctx, sendRequest{
		Recipient: ID{ID: recipientID},
		Message: &OutboundMessage{
			Attachment: &Attachment{
				Type:    "image",
				Payload: AttachmentPayload{URL: imageURL},
			},
		},
	})
}

func (c *graphClient) SendQuickReplies(ctx context.Context, recipientID, title string, replies []QuickReply) error {
	return c.send(ctx, sendRequest{
		Recipient: ID{ID: recipientID},
		Message: &OutboundMessage{
			Text:         title,
			QuickReplies: replies,
		},
	})
}

func (c *graphClient) SendCarousel(ctx context.Context, recipientID string, elements []Element) error {
	return c.send(ctx, sendRequest{
		Recipient: ID{ID: recipientID},
		Message: &OutboundMessage{
			Attachment: &Attachment{
				Type: "template",
				Payload: AttachmentPayload{
					TemplateType: "generic",
					Elements:     elements,
				},
			},
		},
	})
}

func (c *graphClient) SendAction(ctx context.Context, recipientID string, action SenderAction) error {
	return c.send(ctx, sendRequest{
		Recipient:    ID{ID: recipientID},
		SenderAction: action,
	})
}

func (c *graphClient) send(ctx context.Context, body sendRequest) error {
	resp, err := c.post(ctx, "/me/messages", body)
	if err != nil {
		return err
	}

	var result struct {
		RecipientID string `json:"recipient_id"`
		MessageID   string `json:"message_id"`
	}
	if err := json.Unmarshal(resp, &result); err == nil && result.MessageID != "" {
		c.log.DebugContext(ctx, "Message sent",
			"recipient_id", result.RecipientID, "message_id", result.MessageID)
	}
	return nil
}

func (c *graphClient) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	reqURL := fmt.Sprintf("%s/%s?access_token=%s", c.baseURL, url.PathEscape(userID), url.QueryEscape(c.pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to build profile request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("profile lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("profile lookup returned status %d: %s", resp.StatusCode, body)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to decode profile response: %w", err)
	}
	return profile, nil
}

func (c *graphClient) PassThreadControl(ctx context.Context, userID string) error {
	c.log.InfoContext(ctx, "Passing thread control to page inbox", "user_id", userID)

	payload := struct {
		Recipient   ID     `json:"recipient"`
		TargetAppID string `json:"target_app_id"`
	}{
		Recipient:   ID{ID: userID},
		TargetAppID: c.pageInboxAppID,
	}
	_, err := c.post(ctx, "/me/pass_thread_control", payload)
	return err
}

func (c *graphClient) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?access_token=%s", c.baseURL, path, url.QueryEscape(c.pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read send API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("send API returned status %d: %s", resp.StatusCode, respBody)
	}
	return respBody, nil
}
