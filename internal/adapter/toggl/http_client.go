package toggl

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"toggl-ingest/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.track.toggl.com"
	timeEntriesPath = "/api/v9/me/time_entries"
)

// Client implements ports.Source using the Toggl Track API v9.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	log      *slog.Logger
}

// NewClient returns a client authenticated with apiToken. A zero timeout
// leaves the request bounded only by the caller's context.
func NewClient(baseURL, apiToken string, timeout time.Duration, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// FetchTimeEntries returns the current user's time entries as raw records.
// Toggl v9: GET /api/v9/me/time_entries
//
// An empty slice is a successful result. Failures are *domain.FetchError
// wrapping domain.ErrAuth for 401/403 and domain.ErrTransport otherwise.
func (c *Client) FetchTimeEntries(ctx context.Context) ([]domain.RawRecord, error) {
	if c.apiToken == "" {
		return nil, &domain.FetchError{Kind: domain.ErrAuth, Err: errors.New("missing api token")}
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrTransport, Err: err}
	}
	u.Path = timeEntriesPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrTransport, Err: err}
	}
	// Basic auth: token:api_token
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.apiToken, "api_token")))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrTransport, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("toggl response",
		slog.String("path", u.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := domain.ErrTransport
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = domain.ErrAuth
		}
		return nil, &domain.FetchError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
		}
	}

	// Numbers stay json.Number so ids keep full int64 precision.
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var raw []domain.RawRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrTransport, Err: fmt.Errorf("decoding time entries: %w", err)}
	}
	if raw == nil {
		raw = []domain.RawRecord{}
	}
	return raw, nil
}
