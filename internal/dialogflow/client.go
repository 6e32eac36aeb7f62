// Package dialogflow implements the Dialogflow v2 detectIntent gateway used
// as the bot's natural-language-understanding backend.
package dialogflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kamjony/skittobot/internal/config"
)

// Client defines the NLU operations used by the conversation engine. Both
// calls are single synchronous round-trips; the caller decides what to do
// with a failure (the conversation engine logs and drops it).
type Client interface {
	// DetectText sends a raw user utterance. Quick-reply payloads are resent
	// through this path as if the user had typed them.
	DetectText(ctx context.Context, sessionID, text string) (*Result, error)

	// DetectEvent sends a named event with an optional parameter map, used
	// for programmatic follow-ups such as second-phase action events.
	DetectEvent(ctx context.Context, sessionID, eventName string, parameters map[string]any) (*Result, error)
}

type restClient struct {
	httpClient   *http.Client
	log          *slog.Logger
	baseURL      string
	projectID    string
	token        string
	languageCode string
}

// NewClient creates a Dialogflow REST client from configuration.
func NewClient(cfg config.DialogflowConfig, log *slog.Logger) (Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("dialogflow project id is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("dialogflow access token is required")
	}

	return &restClient{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		log:          log.With("component", "dialogflow_client"),
		baseURL:      cfg.BaseURL,
		projectID:    cfg.ProjectID,
		token:        cfg.Token,
		languageCode: cfg.LanguageCode,
	}, nil
}

type textInput struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type eventInput struct {
	Name         string         `json:"name"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	LanguageCode string         `json:"languageCode"`
}

type queryInput struct {
	Text  *textInput  `json:"text,omitempty"`
	Event *eventInput `json:"event,omitempty"`
}

type detectIntentRequest struct {
	QueryInput queryInput `json:"queryInput"`
}

type queryResult struct {
	FulfillmentText     string            `json:"fulfillmentText"`
	FulfillmentMessages []Message         `json:"fulfillmentMessages"`
	Action              string            `json:"action"`
	OutputContexts      []json.RawMessage `json:"outputContexts"`
	Parameters          map[string]any    `json:"parameters"`
}

type detectIntentResponse struct {
	ResponseID  string      `json:"responseId"`
	QueryResult queryResult `json:"queryResult"`
}

func (c *restClient) DetectText(ctx context.Context, sessionID, text string) (*Result, error) {
	c.log.DebugContext(ctx, "Detecting intent from text", "session_id", sessionID)

	return c.detectIntent(ctx, sessionID, detectIntentRequest{
		QueryInput: queryInput{
			Text: &textInput{Text: text, LanguageCode: c.languageCode},
		},
	})
}

func (c *restClient) DetectEvent(ctx context.Context, sessionID, eventName string, parameters map[string]any) (*Result, error) {
	c.log.DebugContext(ctx, "Detecting intent from event", "session_id", sessionID, "event", eventName)

	return c.detectIntent(ctx, sessionID, detectIntentRequest{
		QueryInput: queryInput{
			Event: &eventInput{Name: eventName, Parameters: parameters, LanguageCode: c.languageCode},
		},
	})
}

func (c *restClient) detectIntent(ctx context.Context, sessionID string, reqBody detectIntentRequest) (*Result, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode detectIntent request: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/agent/sessions/%s:detectIntent", c.baseURL, c.projectID, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build detectIntent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detectIntent call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read detectIntent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detectIntent returned status %d: %s", resp.StatusCode, body)
	}

	var decoded detectIntentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode detectIntent response: %w", err)
	}

	qr := decoded.QueryResult
	c.log.DebugContext(ctx, "Intent detected",
		"session_id", sessionID,
		"action", qr.Action,
		"message_count", len(qr.FulfillmentMessages))

	return &Result{
		FulfillmentText: qr.FulfillmentText,
		Action:          qr.Action,
		Messages:        qr.FulfillmentMessages,
		OutputContexts:  qr.OutputContexts,
		Parameters:      qr.Parameters,
	}, nil
}
