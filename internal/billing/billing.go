// Package billing creates customer portal sessions against the payments
// provider. The server never stores card data; it only brokers a short-lived
// redirect URL for the signed-in user.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

var (
	// ErrUnavailable means the provider rejected or failed the request; the
	// API maps it to 502.
	ErrUnavailable = errors.New("billing provider unavailable")

	// ErrNotConfigured means no portal URL was set; the API maps it to 503.
	ErrNotConfigured = errors.New("billing is not configured")
)

// PortalClient creates a portal session and returns the redirect URL.
type PortalClient interface {
	CreatePortalSession(ctx context.Context, userID, returnURL string) (string, error)
}

// Observer receives the outcome label of each session attempt.
type Observer func(outcome string)

// HTTPClient talks to the provider's portal-session endpoint.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	observe  Observer
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.client = c }
}

func WithObserver(obs Observer) Option {
	return func(h *HTTPClient) { h.observe = obs }
}

// NewHTTPClient returns a client for the given provider endpoint. An empty
// endpoint yields a client whose calls fail with ErrNotConfigured, so the
// caller does not need a separate disabled path.
func NewHTTPClient(endpoint, apiKey string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type sessionRequest struct {
	UserID    string `json:"user_id"`
	ReturnURL string `json:"return_url,omitempty"`
}

type sessionResponse struct {
	URL string `json:"url"`
}

// CreatePortalSession posts to the provider and returns the session URL.
func (h *HTTPClient) CreatePortalSession(ctx context.Context, userID, returnURL string) (sessionURL string, err error) {
	defer func() {
		if h.observe != nil {
			h.observe(outcomeLabel(err))
		}
	}()

	if h.endpoint == "" {
		return "", xerrors.WithStack(ErrNotConfigured)
	}
	if userID == "" {
		return "", xerrors.New("user id is required")
	}

	body, err := json.Marshal(sessionRequest{UserID: userID, ReturnURL: returnURL})
	if err != nil {
		return "", xerrors.Wrap(err, "encoding session request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.endpoint+"/portal-sessions", bytes.NewReader(body))
	if err != nil {
		return "", xerrors.Wrap(err, "building session request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", xerrors.Wrapf(ErrUnavailable, "posting session: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little for the error message, never the whole body
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", xerrors.Wrapf(ErrUnavailable, "provider status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var sr sessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&sr); err != nil {
		return "", xerrors.Wrapf(ErrUnavailable, "decoding session response: %v", err)
	}
	if sr.URL == "" {
		return "", xerrors.Wrapf(ErrUnavailable, "provider returned no session url")
	}
	return sr.URL, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "error"
	}
}
