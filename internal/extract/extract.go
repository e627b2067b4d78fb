// Package extract turns a job-posting link into plain job-description text
// through the external extraction service.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"agentcv-backend/internal/shared/httpx"
	"agentcv-backend/internal/shared/telemetry"
)

// DefaultPattern is the substring a job link must contain.
const DefaultPattern = "linkedin.com/jobs"

// MatchesJobLink reports whether link is an absolute http(s) URL containing
// pattern (case-insensitive).
func MatchesJobLink(link, pattern string) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	return strings.Contains(strings.ToLower(link), strings.ToLower(strings.TrimSpace(pattern)))
}

// Client calls the extraction service.
type Client struct {
	Endpoint string
	Pattern  string
	HTTP     httpx.Doer
}

// NewClient constructs a Client. An empty pattern falls back to DefaultPattern.
func NewClient(endpoint, pattern string, doer httpx.Doer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{Endpoint: strings.TrimSpace(endpoint), Pattern: pattern, HTTP: doer}
}

type extractRequest struct {
	JobLink string `json:"job_link"`
}

type extractResponse struct {
	JobDescription *string `json:"job_description"`
}

// JobDescription validates link, then asks the service for its text. The link
// is checked before any network call.
func (c *Client) JobDescription(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if !MatchesJobLink(link, c.Pattern) {
		return "", ErrInvalidJobLink
	}
	if c.Endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(extractRequest{JobLink: link})
	if err != nil {
		return "", fmt.Errorf("encode extraction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	raw, err := httpx.Do(c.HTTP, req)
	if err != nil {
		telemetry.Warn("extract.request_failed", map[string]any{
			"status": httpx.StatusCode(err),
			"error":  err,
		})
		return "", err
	}

	var resp extractResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.JobDescription == nil || strings.TrimSpace(*resp.JobDescription) == "" {
		return "", ErrExtractionEmpty
	}
	return strings.TrimSpace(*resp.JobDescription), nil
}
