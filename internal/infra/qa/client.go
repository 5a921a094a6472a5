package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxAnswerBody = 1 << 20

// Client calls the downstream question-answering service. The backend's
// response shape has drifted over time, so several known shapes are accepted.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type request struct {
	Question string `json:"question"`
}

func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	bodyBytes, err := json.Marshal(request{Question: question})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBody))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("qa service error %d: %s", resp.StatusCode, snippet(respBody))
	}

	answer, ok := extractAnswer(respBody)
	if !ok {
		// An unknown-but-valid payload is surfaced as a labeled answer
		// rather than silently dropped.
		return fmt.Sprintf("Unrecognized answer payload: %s", snippet(respBody)), nil
	}
	return answer, nil
}

// extractAnswer accepts the shapes the backend is known to produce: a raw
// string, {text}, {answer}, {result}, the first element of an array, or
// nested {data:{text|answer}}.
func extractAnswer(body []byte) (string, bool) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		text := strings.TrimSpace(string(body))
		return text, text != ""
	}
	return answerFromValue(v)
}

func answerFromValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, strings.TrimSpace(t) != ""
	case []any:
		if len(t) > 0 {
			return answerFromValue(t[0])
		}
	case map[string]any:
		for _, key := range []string{"text", "answer", "result"} {
			if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
		if data, ok := t["data"].(map[string]any); ok {
			for _, key := range []string{"text", "answer"} {
				if s, ok := data[key].(string); ok && strings.TrimSpace(s) != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
