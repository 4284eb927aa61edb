package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// httpEndpoint implements Endpoint over plain HTTP POST, matching
// the teacher's client.Client: one *http.Client per peer, a base URL, and
// no connection reuse logic beyond what net/http already gives us.
type httpEndpoint struct {
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	inbox  [][]byte
}

// DialHTTP builds an Endpoint that POSTs each Send to addr's /frame
// endpoint and queues any response body for Receive. It opens no
// connection up front. cmd/nodeserver does not use it; its Kademlia core
// runs on kademlia.NoopRPC.
func DialHTTP(ctx context.Context, addr string) (Endpoint, error) {
	_, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()
	return &httpEndpoint{
		baseURL: addr,
		client:  &http.Client{Timeout: DefaultDialTimeout},
	}, nil
}

// Send POSTs frame to baseURL/frame.
func (e *httpEndpoint) Send(ctx context.Context, frame []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/frame", e.baseURL), bytes.NewReader(frame))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err == nil && len(body) > 0 {
			e.mu.Lock()
			e.inbox = append(e.inbox, body)
			e.mu.Unlock()
		}
		return nil
	}
	return fmt.Errorf("transport: send: unexpected status %d", resp.StatusCode)
}

// Receive pops the next queued response frame, if any arrived piggybacked
// on a prior Send (HTTP has no independent push channel).
func (e *httpEndpoint) Receive(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.inbox) == 0 {
		return nil, fmt.Errorf("transport: no frame queued")
	}
	frame := e.inbox[0]
	e.inbox = e.inbox[1:]
	return frame, nil
}

func (e *httpEndpoint) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
