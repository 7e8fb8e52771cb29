// Package briar is a client for the Briar headless REST API running on
// localhost. It implements the notify.Notifier capability consumed by the
// scheduler and dead man's switch controller.
package briar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vigil-switch/vigil/internal/server/notify"
)

const (
	// DefaultBaseURL is where briar-headless listens when started with its
	// default port.
	DefaultBaseURL = "http://localhost:7000"

	requestTimeout = 10 * time.Second
)

// Client talks to a single briar-headless instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the briar-headless API at baseURL, authenticating
// with the given bearer token. An empty baseURL uses DefaultBaseURL.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// contact mirrors the briar-headless contact document. The display name lives
// under author.name; alias is an optional local override.
type contact struct {
	ContactID int    `json:"contactId"`
	Alias     string `json:"alias"`
	Author    struct {
		Name string `json:"name"`
	} `json:"author"`
	Connected bool `json:"connected"`
}

// ResolveContacts lists the known contacts.
func (c *Client) ResolveContacts(ctx context.Context) ([]notify.Contact, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/contacts", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	var raw []contact
	err = json.Unmarshal(body, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}

	contacts := make([]notify.Contact, 0, len(raw))
	for _, ct := range raw {
		name := ct.Author.Name
		if ct.Alias != "" {
			name = ct.Alias
		}
		contacts = append(contacts, notify.Contact{
			ID:   fmt.Sprintf("%d", ct.ContactID),
			Name: name,
		})
	}

	return contacts, nil
}

// SendToContact delivers text to a single contact id.
func (c *Client) SendToContact(ctx context.Context, contactID, text string) error {
	payload := struct {
		Text string `json:"text"`
	}{
		Text: text,
	}

	_, err := c.do(ctx, http.MethodPost, "/v1/messages/"+contactID, payload)
	if err != nil {
		return fmt.Errorf("failed to send message to contact %s: %w", contactID, err)
	}

	return nil
}

// Broadcast fans text out to every known contact and reports per-contact
// outcomes. A contact that fails does not block the rest.
func (c *Client) Broadcast(ctx context.Context, text string) (notify.BroadcastResult, error) {
	contacts, err := c.ResolveContacts(ctx)
	if err != nil {
		return notify.BroadcastResult{}, err
	}

	result := notify.BroadcastResult{}
	for _, ct := range contacts {
		err := c.SendToContact(ctx, ct.ID, text)
		if err != nil {
			result.Failed = append(result.Failed, ct.ID)
			continue
		}
		result.Delivered = append(result.Delivered, ct.ID)
	}

	return result, nil
}

// Ping verifies the briar-headless API is reachable and the token is valid.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/v1/contacts", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, path)
	}

	return body, nil
}
