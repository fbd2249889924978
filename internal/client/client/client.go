// Package client contains the thin REST client of the sentinel core and the
// local cache bootstrap. The server is an untrusted relay: everything the
// client sends through here is either public (keys, usernames) or ciphertext.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sentinel-chat/sentinel/internal/client/models"
)

// Client is the REST collaborator surface consumed by the core:
// registration, login, identity fetch, conversation listing, history fetch,
// and contact search.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a Client for the given base URL (e.g. "http://host:8000/api").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token, empty if not authenticated.
func (c *Client) Token() string { return c.token }

// RegisterRequest carries everything the server needs to create an account.
// The private key is already password-wrapped; the raw key never leaves
// the device.
type RegisterRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	PublicKey     string `json:"public_key"`
	EncPrivateKey string `json:"enc_private_key"`
	Salt          string `json:"salt"`
}

// Register creates a new account and returns the issued identity.
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*models.Identity, error) {
	var identity models.Identity
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", req, &identity); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &identity, nil
}

type loginResponse struct {
	AccessToken string           `json:"access_token"`
	User        *models.Identity `json:"user"`
}

// Login authenticates with username/password (form-encoded, as the server
// expects) and installs the returned bearer token. The identity carries the
// wrapped private key and salt needed to unlock the session.
func (c *Client) Login(ctx context.Context, username, password string) (*models.Identity, error) {
	form := url.Values{}
	form.Set("username", strings.TrimSpace(username))
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("login: failed to decode response: %w", err)
	}
	c.token = lr.AccessToken

	if lr.User != nil {
		return lr.User, nil
	}
	return c.CurrentUser(ctx)
}

// CurrentUser fetches the authenticated identity.
func (c *Client) CurrentUser(ctx context.Context) (*models.Identity, error) {
	var identity models.Identity
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, &identity); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &identity, nil
}

// wireParticipant mirrors the server's conversation participant record.
type wireParticipant struct {
	User        models.Contact `json:"user"`
	UnreadCount int            `json:"unread_count"`
}

type wireConversation struct {
	ID           int64             `json:"id"`
	Type         string            `json:"type"`
	Participants []wireParticipant `json:"participants"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Conversations lists the conversations the user participates in.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var wire []wireConversation
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &wire); err != nil {
		return nil, fmt.Errorf("conversations: %w", err)
	}

	result := make([]models.Conversation, 0, len(wire))
	for _, wc := range wire {
		conv := models.Conversation{
			ID:        wc.ID,
			Type:      models.ConversationType(wc.Type),
			UpdatedAt: wc.UpdatedAt,
		}
		for _, p := range wc.Participants {
			conv.Participants = append(conv.Participants, models.Participant{
				User:        p.User,
				UnreadCount: p.UnreadCount,
			})
		}
		result = append(result, conv)
	}
	return result, nil
}

// HistoryRecord is one stored message as the server returns it: both
// ciphertext fields, plus routing metadata. Which field to decrypt depends
// on whether the local user authored the message.
type HistoryRecord struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderFP       string    `json:"sender_fp"`
	RecipientID    int64     `json:"recipient_id"`
	ContentSelf    string    `json:"content_self"`
	ContentEncoded string    `json:"content_encoded"`
	CreatedAt      time.Time `json:"created_at"`
}

// History fetches the full stored history of one conversation.
func (c *Client) History(ctx context.Context, conversationID int64) ([]HistoryRecord, error) {
	var records []HistoryRecord
	path := fmt.Sprintf("/conversations/%d", conversationID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return records, nil
}

// SearchUsers looks contacts up by (partial) username.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.Contact, error) {
	var contacts []models.Contact
	path := "/users?search=" + url.QueryEscape(strings.TrimSpace(query))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &contacts); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return contacts, nil
}

// doJSON performs one authenticated JSON request. A locally expired token
// short-circuits with ErrAuthExpired before any network traffic.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if c.token != "" && TokenExpired(c.token) {
		return ErrAuthExpired
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthExpired
	case resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(detail))
	}
}
