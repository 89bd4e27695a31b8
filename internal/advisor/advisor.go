// Package advisor talks to the hosted financial-advisor function. The
// advisor's answers are produced remotely; this package only carries the
// conversation there and back.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	maxReplyBytes = 1 << 20
)

var (
	ErrEmptyConversation = errors.New("conversation has no messages")
	ErrEmptyReply        = errors.New("advisor returned an empty reply")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Advisor answers the last user message given the whole history.
type Advisor interface {
	SendMessage(ctx context.Context, history []Message) (string, error)
}

type request struct {
	Messages []Message `json:"messages"`
}

type response struct {
	Reply   string `json:"reply"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type Client struct {
	url  string
	http *http.Client
}

var _ Advisor = (*Client)(nil)

// NewClient returns a client posting to url. When token is set every request
// carries it as a bearer token.
func NewClient(url, token string) *Client {
	base := &http.Client{Timeout: 60 * time.Second}
	hc := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
		hc.Timeout = base.Timeout
	}
	return &Client{url: url, http: hc}
}

func (c *Client) SendMessage(ctx context.Context, history []Message) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyConversation
	}
	body, err := json.Marshal(request{Messages: history})
	if err != nil {
		return "", fmt.Errorf("encode advisor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build advisor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call advisor: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("read advisor reply: %w", err)
	}

	var out response
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("advisor returned status %d: %s", resp.StatusCode, msg)
	}

	reply := out.Reply
	if reply == "" {
		reply = out.Message
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}

	slog.DebugContext(ctx, "Advisor replied",
		"messages", len(history),
		"duration_ms", time.Since(start).Milliseconds())
	return reply, nil
}
