package extract

import (
	"errors"

	"agentcv-backend/internal/shared/httpx"
)

var (
	// ErrInvalidJobLink means the link is not a job-board posting URL.
	ErrInvalidJobLink = errors.New("invalid job link")
	// ErrExtractionEmpty means the service answered without any job text.
	ErrExtractionEmpty = errors.New("extraction returned no job description")
	// ErrNotConfigured means no extraction endpoint is configured.
	ErrNotConfigured = errors.New("job extraction endpoint not configured")

	ErrMalformedResponse = httpx.ErrMalformedResponse
)

// RequestFailedError is returned for transport failures and non-2xx replies.
type RequestFailedError = httpx.RequestFailedError
