// Package client provides a Go SDK for talking to a communitas-core node's
// HTTP surface, mirroring the teacher's client.Client: one base URL, one
// *http.Client, typed wrappers over the raw HTTP calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to ONE node. It does not implement replication, placement,
// or any DHT logic itself — that lives entirely on the server side.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Client. timeout protects every call from hanging
// forever; zero falls back to a sane default.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StoreResponse mirrors storage.StorageResponse's wire shape.
type StoreResponse struct {
	Address         string `json:"address"`
	ChunksStored    int    `json:"chunks_stored"`
	TotalSize       int64  `json:"total_size"`
	EncryptedSize   int64  `json:"encrypted_size"`
	OperationTimeMS int64  `json:"operation_time_ms"`
	Location        string `json:"location"`
}

// RetrieveResponse mirrors storage.RetrievalResponse's wire shape.
type RetrieveResponse struct {
	Content         string `json:"content"`
	ContentType     string `json:"content_type"`
	Size            int64  `json:"size"`
	Source          string `json:"source"`
	OperationTimeMS int64  `json:"operation_time_ms"`
}

// StoreOptions carries the optional fields a store call may set.
type StoreOptions struct {
	ContentType string
	Namespace   string
	GroupID     string
	Author      string
	Tags        []string
}

// Store uploads content under the named policy (private_max, private_scoped,
// group_scoped, public_markdown).
func (c *Client) Store(ctx context.Context, policy, userID, content string, opts StoreOptions) (*StoreResponse, error) {
	body, _ := json.Marshal(map[string]any{
		"content":      content,
		"content_type": opts.ContentType,
		"namespace":    opts.Namespace,
		"group_id":     opts.GroupID,
		"author":       opts.Author,
		"tags":         opts.Tags,
		"user_id":      userID,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/storage/%s", c.baseURL, policy), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out StoreResponse
	return &out, json.NewDecoder(resp.Body).Decode(&out)
}

// Retrieve fetches content at address. namespace is required only for
// private_scoped addresses.
func (c *Client) Retrieve(ctx context.Context, address, userID, namespace string) (*RetrieveResponse, error) {
	url := fmt.Sprintf("%s/storage/%s?user_id=%s&namespace=%s", c.baseURL, address, userID, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieve request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out RetrieveResponse
	return &out, json.NewDecoder(resp.Body).Decode(&out)
}

// Delete removes address. Server deletion of DHT/group copies is
// best-effort; the caller only learns whether the request succeeded, not
// whether the server held local state for address.
func (c *Client) Delete(ctx context.Context, address, userID string) error {
	url := fmt.Sprintf("%s/storage/%s?user_id=%s", c.baseURL, address, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// TransitionPolicy re-stores address's content under newPolicy and returns
// the new address.
func (c *Client) TransitionPolicy(ctx context.Context, address, newPolicy, userID, namespace, groupID string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"new_policy": newPolicy,
		"namespace":  namespace,
		"group_id":   groupID,
		"user_id":    userID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/storage/%s/transition", c.baseURL, address), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	var out struct {
		Address string `json:"address"`
	}
	return out.Address, json.NewDecoder(resp.Body).Decode(&out)
}

// RegisterGroup seeds the server's membership for groupID.
func (c *Client) RegisterGroup(ctx context.Context, groupID string, members []string) error {
	body, _ := json.Marshal(map[string]any{"members": members})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/group/%s/register", c.baseURL, groupID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// ─── Errors ───────────────────────────────────────────────────────────────────

// ErrNotFound is returned when an address does not resolve to any content.
var ErrNotFound = fmt.Errorf("address not found")

// APIError carries the HTTP status and the error message from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
