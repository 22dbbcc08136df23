package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the quickchat backend REST API: message history,
// durable writes, read receipts and the user roster.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a REST client for the given base URL
// (e.g. http://localhost:5000/api).
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// FetchHistory returns the full ordered message history between two
// identities, oldest first.
func (c *Client) FetchHistory(ctx context.Context, localID, remoteID string) ([]WireMessage, error) {
	q := url.Values{}
	q.Set("userId", localID)
	q.Set("targetUserId", remoteID)

	var msgs []WireMessage
	if err := c.get(ctx, "/messages?"+q.Encode(), &msgs); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return msgs, nil
}

// PersistMessage durably writes a message and returns the persisted
// copy with server-assigned id and timestamp.
func (c *Client) PersistMessage(ctx context.Context, senderID, receiverID, text string) (WireMessage, error) {
	body := map[string]string{
		"senderId":    senderID,
		"receiverId":  receiverID,
		"messageText": text,
	}
	var persisted WireMessage
	if err := c.post(ctx, "/messages", body, &persisted); err != nil {
		return WireMessage{}, fmt.Errorf("persist message: %w", err)
	}
	return persisted, nil
}

// MarkRead reports a message as read to the backend.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/messages/"+url.PathEscape(messageID)+"/read", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mark read: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ListUsers returns every registered user except the current one.
func (c *Client) ListUsers(ctx context.Context, email, currentUserID string) ([]WireUser, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("currentUserId", currentUserID)

	var users []WireUser
	if err := c.get(ctx, "/users?"+q.Encode(), &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	// The backend may still include the caller; drop it by id so a
	// search for someone else's exact email is never filtered away.
	out := users[:0]
	for _, u := range users {
		if u.ID != currentUserID {
			out = append(out, u)
		}
	}
	return out, nil
}

// LastMessage returns the most recent message between two identities,
// used for roster previews. A conversation with no messages yields
// (zero, false, nil).
func (c *Client) LastMessage(ctx context.Context, senderID, receiverID string) (WireMessage, bool, error) {
	q := url.Values{}
	q.Set("senderId", senderID)
	q.Set("receiverId", receiverID)

	var msg WireMessage
	err := c.get(ctx, "/messages/lastMessage?"+q.Encode(), &msg)
	if err != nil {
		if errStatus(err) == http.StatusNotFound {
			return WireMessage{}, false, nil
		}
		return WireMessage{}, false, fmt.Errorf("last message: %w", err)
	}
	return msg, msg.ID != "", nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.Warn("api request failed",
			zap.String("url", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return &statusError{Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func errStatus(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
