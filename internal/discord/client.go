package discord

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
)

const (
	requestTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discord api: status %d", e.Status)
	}
	return fmt.Sprintf("discord api: status %d: %s (code %d)", e.Status, e.Message, e.Code)
}

func IsNotFound(err error) bool  { return hasStatus(err, http.StatusNotFound) }
func IsForbidden(err error) bool { return hasStatus(err, http.StatusForbidden) }

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to the REST API as a user account.
type Client struct {
	http    *http.Client
	baseURL string
	token   string

	// OnError receives failures of background work (delayed deletes).
	OnError func(error)
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	// user tokens go out without the "Bot " prefix
	req.Header.Set("Authorization", c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/users/@me", nil, &u)
	return u, err
}

func (c *Client) Channel(ctx context.Context, channelID string) (Channel, error) {
	var ch Channel
	err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID), nil, &ch)
	return ch, err
}

func (c *Client) Guild(ctx context.Context, guildID string) (Guild, error) {
	var g Guild
	err := c.do(ctx, http.MethodGet, "/guilds/"+url.PathEscape(guildID), nil, &g)
	return g, err
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (Message, error) {
	var m Message
	err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages",
		map[string]string{"content": content}, &m)
	return m, err
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete,
		"/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), nil, nil)
}

// SendTransient sends content and deletes it after ttl. The delete runs on
// a timer; its failure goes to OnError.
func (c *Client) SendTransient(ctx context.Context, channelID, content string, ttl time.Duration) (Message, error) {
	m, err := c.SendMessage(ctx, channelID, content)
	if err != nil {
		return m, err
	}
	time.AfterFunc(ttl, func() {
		dctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := c.DeleteMessage(dctx, channelID, m.ID); err != nil && c.OnError != nil {
			c.OnError(fmt.Errorf("delete transient message %s: %w", m.ID, err))
		}
	})
	return m, nil
}
