package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicegate/internal/application"
)

// Connector posts replies back to the conversation through the platform's
// connector service.
type Connector struct {
	tokens     application.TokenProvider
	httpClient *http.Client
}

func NewConnector(tokens application.TokenProvider) *Connector {
	return &Connector{
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Connector) Reply(ctx context.Context, inbound *Activity, text string) error {
	if inbound.ServiceURL == "" || inbound.Conversation == nil || inbound.Conversation.ID == "" {
		return fmt.Errorf("activity has no conversation address")
	}

	token, err := c.tokens.AcquireToken(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connector token: %w", err)
	}

	reply := Activity{
		Type:         "message",
		Text:         text,
		Conversation: inbound.Conversation,
		From:         inbound.Recipient,
		Recipient:    inbound.From,
		ReplyToID:    inbound.ID,
	}

	bodyBytes, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimSuffix(inbound.ServiceURL, "/"),
		url.PathEscape(inbound.Conversation.ID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("connector error: %s", resp.Status)
	}

	return nil
}
