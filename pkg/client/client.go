// Package client provides a Go SDK for the wallet trust service HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TrustRelationship mirrors the API's trust relationship representation.
type TrustRelationship struct {
	ID                 string    `json:"id"`
	ActorWalletID      string    `json:"actor_wallet_id"`
	TargetWalletID     string    `json:"target_wallet_id"`
	OriginatorWalletID string    `json:"originator_wallet_id"`
	RequestType        string    `json:"request_type"`
	State              string    `json:"state"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Wallet mirrors the API's wallet representation.
type Wallet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LogoURL   string    `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions filter and page a trust relationship listing.
type ListOptions struct {
	State       string
	RequestType string
	Offset      int
	Limit       int
	// All spans the wallet's full controlled hierarchy (no paging applies).
	All bool
}

// APIError is returned for non-2xx responses that carry an error body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client calls the wallet trust service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken sets the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges wallet credentials for a session token and stores it on
// the client.
func (c *Client) Login(ctx context.Context, walletName, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"wallet": walletName, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth", body, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

// CreateTrustRelationship requests a new trust relationship.
func (c *Client) CreateTrustRelationship(ctx context.Context, requestType, requesteeWallet, requesterWallet string) (*TrustRelationship, error) {
	body := map[string]string{
		"trust_request_type": requestType,
		"requestee_wallet":   requesteeWallet,
	}
	if requesterWallet != "" {
		body["requester_wallet"] = requesterWallet
	}
	var tr TrustRelationship
	if err := c.do(ctx, http.MethodPost, "/trust_relationships", body, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// GetTrustRelationship fetches a single relationship by id.
func (c *Client) GetTrustRelationship(ctx context.Context, id string) (*TrustRelationship, error) {
	var tr TrustRelationship
	if err := c.do(ctx, http.MethodGet, "/trust_relationships/"+url.PathEscape(id), nil, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// ListTrustRelationships lists relationships for the logged-in wallet.
func (c *Client) ListTrustRelationships(ctx context.Context, opts ListOptions) ([]TrustRelationship, error) {
	q := url.Values{}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.RequestType != "" {
		q.Set("request_type", opts.RequestType)
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.All {
		q.Set("all", "true")
	}
	path := "/trust_relationships"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		TrustRelationships []TrustRelationship `json:"trust_relationships"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.TrustRelationships, nil
}

// AcceptTrustRelationship accepts a pending request addressed to the
// logged-in wallet.
func (c *Client) AcceptTrustRelationship(ctx context.Context, id string) (*TrustRelationship, error) {
	return c.transition(ctx, id, "accept")
}

// DeclineTrustRelationship declines a pending request addressed to the
// logged-in wallet.
func (c *Client) DeclineTrustRelationship(ctx context.Context, id string) (*TrustRelationship, error) {
	return c.transition(ctx, id, "decline")
}

// CancelTrustRelationship withdraws a pending request the logged-in
// wallet originated.
func (c *Client) CancelTrustRelationship(ctx context.Context, id string) (*TrustRelationship, error) {
	return c.transition(ctx, id, "cancel")
}

func (c *Client) transition(ctx context.Context, id, action string) (*TrustRelationship, error) {
	var tr TrustRelationship
	path := "/trust_relationships/" + url.PathEscape(id) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// ListWallets lists the logged-in wallet's hierarchy with an optional
// name filter.
func (c *Client) ListWallets(ctx context.Context, nameFilter string, offset, limit int) ([]Wallet, error) {
	q := url.Values{}
	if nameFilter != "" {
		q.Set("name", nameFilter)
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/wallets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Wallets []Wallet `json:"wallets"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// do executes one JSON request/response round trip. Non-2xx responses are
// decoded into an APIError using the service's {"error": "..."} envelope.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
