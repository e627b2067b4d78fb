package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/oauth2/clientcredentials"

	"agentcv-backend/internal/shared/config"
)

const maxResponseBytes = 4 << 20

// ErrMalformedResponse marks a 2xx response whose body could not be understood.
var ErrMalformedResponse = errors.New("malformed response")

// Doer is the subset of *http.Client used by outbound callers.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFailedError reports a transport failure (StatusCode 0) or a non-2xx reply.
type RequestFailedError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestFailedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return fmt.Sprintf("request failed: status %d", e.StatusCode)
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// NewClient returns the client used for analysis and extraction calls. No timeout
// is applied; callers wait for the transport to resolve. When a token URL is
// configured, requests carry client-credentials bearer tokens.
func NewClient(ctx context.Context, cfg config.OAuthConfig) *http.Client {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return &http.Client{}
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return cc.Client(ctx)
}

// Do sends req once and returns the body of a 2xx response. Any other outcome
// is a *RequestFailedError.
func Do(client Doer, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &RequestFailedError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RequestFailedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestFailedError{StatusCode: resp.StatusCode, Body: truncate(string(body), 300)}
	}
	return body, nil
}

// StatusCode extracts the upstream status from err, or 0 when there is none.
func StatusCode(err error) int {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.StatusCode
	}
	return 0
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
