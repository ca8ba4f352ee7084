// Package history fetches conversation history over the REST API.
package history

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/chat"
)

const (
	DefaultLimit   = 50
	MaxLimit       = 100
	DefaultTimeout = 15 * time.Second
)

// Page is one page of conversation history.
type Page struct {
	Messages     []chat.Message
	Participants chat.Roster
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.Code)
}

// Client talks to the chat REST API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
	logger  *zap.Logger
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "pulse",
			MaxResponseBodySize: 8 << 20,
		},
		logger: logger,
	}
}

// Fetch returns up to limit messages of the conversation starting at offset.
// limit is clamped to [1, MaxLimit]; zero means DefaultLimit.
func (c *Client) Fetch(ctx context.Context, conversationID string, limit, offset int) (*Page, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	offset = max(offset, 0)

	body, err := c.get(ctx, "/api/chat/conversations/"+url.PathEscape(conversationID)+"/messages", map[string]int{
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	page, err := DecodePage(body)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	for i := range page.Messages {
		if page.Messages[i].ConversationID == "" {
			page.Messages[i].ConversationID = conversationID
		}
	}
	c.logger.Debug("history fetched", zap.String("conversation_id", conversationID), zap.Int("messages", len(page.Messages)))
	return page, nil
}

// Conversations lists the conversations the token's user belongs to.
func (c *Client) Conversations(ctx context.Context, limit, offset int) ([]chat.Conversation, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	body, err := c.get(ctx, "/api/chat/conversations", map[string]int{
		"limit":  min(limit, MaxLimit),
		"offset": max(offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("list conversations: invalid json")
	}
	var out []chat.Conversation
	gjson.ParseBytes(body).ForEach(func(_, v gjson.Result) bool {
		if conv := chat.NormalizeConversation(v); conv.ID != "" {
			out = append(out, conv)
		}
		return true
	})
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	args := req.URI().QueryArgs()
	for k, v := range query {
		args.SetUint(k, v)
	}
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, err
	}
	body := append([]byte(nil), resp.Body()...)
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &StatusError{Code: code, Detail: detail(body)}
	}
	return body, nil
}

// DecodePage accepts either a bare list of messages or an object with
// "participants" and "messages".
func DecodePage(body []byte) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json")
	}
	root := gjson.ParseBytes(body)
	page := &Page{Participants: chat.Roster{}}

	var list gjson.Result
	switch {
	case root.IsArray():
		list = root
	case root.IsObject():
		list = root.Get("messages")
		page.Participants = chat.ParseParticipants(root.Get("participants"))
	default:
		return nil, fmt.Errorf("unexpected history payload")
	}

	list.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		m := chat.NormalizeMessage(v)
		if m.Key() == "" && m.Content == "" {
			return true
		}
		page.Messages = append(page.Messages, page.Participants.Resolve(m))
		return true
	})
	return page, nil
}

func detail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	d := gjson.GetBytes(body, "detail")
	if d.Type == gjson.String {
		return d.Str
	}
	if d.IsArray() {
		return d.Get("0.msg").String()
	}
	return ""
}
