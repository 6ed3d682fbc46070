package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway sends messages through a provider's JSON-over-HTTP API
// (POST {to, body} with a bearer token, JSON {id} back). Any provider with
// that shape plugs in via BaseURL.
type HTTPGateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
}

// NewHTTPGateway builds a gateway against baseURL. timeout bounds each
// delivery attempt; zero falls back to 10s.
func NewHTTPGateway(baseURL, apiKey, from string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
	}
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send implements Gateway. Network failures and provider 5xx responses come
// back as *TransientError; 4xx responses are terminal, with 400/404/422
// mapped to ErrInvalidRecipient.
func (g *HTTPGateway) Send(ctx context.Context, toE164, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{To: toE164, From: g.from, Body: body})
	if err != nil {
		return "", fmt.Errorf("sms: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", &TransientError{Err: fmt.Errorf("provider status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: provider status %d", ErrInvalidRecipient, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &TransientError{Err: fmt.Errorf("provider status %d", resp.StatusCode)}
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("sms: provider status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("sms: decode response: %w", err)
	}
	return out.ID, nil
}
