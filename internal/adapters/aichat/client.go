// Package aichat streams completions from an OpenAI-compatible chat API.
package aichat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Upstream failure sentinels. Callers map these to response codes.
var (
	ErrRateLimited = errors.New("ai chat: rate limited")
	ErrUpstream    = errors.New("ai chat: upstream failure")
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Event is one element of a completion stream. Exactly one terminal event is
// delivered before the channel closes: Done on success, Err on failure.
type Event struct {
	Content string
	Done    bool
	Err     error
}

// Config holds client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	ConnectTimeout time.Duration
}

// Client streams chat completions.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates a streaming chat client. The HTTP client carries no overall
// timeout; streams live until the upstream finishes or the context is
// cancelled.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = connectTimeout

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Transport: transport,
		},
	}
}

// Stream starts a completion and returns a channel of content fragments.
// A setup failure (bad request, upstream rejection) is returned directly;
// failures after streaming begins arrive as a terminal Err event. Cancelling
// the context closes the upstream connection.
func (c *Client) Stream(ctx context.Context, messages []Message) (<-chan Event, error) {
	body, err := json.Marshal(map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUpstream)
	}

	events := make(chan Event)
	go c.read(ctx, resp, events)
	return events, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) read(ctx context.Context, resp *http.Response, events chan<- Event) {
	defer close(events)
	defer resp.Body.Close()

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			emit(Event{Done: true})
			return
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !emit(Event{Content: choice.Delta.Content}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		emit(Event{Err: fmt.Errorf("read stream: %w: %v", ErrUpstream, err)})
		return
	}
	// Upstream closed without a [DONE] marker; treat the stream as complete.
	emit(Event{Done: true})
}
