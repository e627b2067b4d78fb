package submissions

import (
	"context"
	"errors"

	"agentcv-backend/internal/endpoints"
	"agentcv-backend/internal/extract"
	"agentcv-backend/internal/shared/httpx"
	"agentcv-backend/internal/usage"
)

var (
	ErrMissingResume         = errors.New("exactly one resume file or document link is required")
	ErrMissingJobDescription = errors.New("exactly one job description text or job link is required")
	ErrSubmissionInFlight    = errors.New("a submission is already in flight for this identity")

	ErrQuotaExceeded     = usage.ErrQuotaExceeded
	ErrStoreUnavailable  = usage.ErrStoreUnavailable
	ErrInvalidJobLink    = extract.ErrInvalidJobLink
	ErrMalformedResponse = httpx.ErrMalformedResponse
	ErrConfiguration     = endpoints.ErrConfiguration
)

// RequestFailedError is returned for transport failures and non-2xx replies.
type RequestFailedError = httpx.RequestFailedError

// Reason classifies err for metrics and API error codes.
func Reason(err error) string {
	var rf *RequestFailedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrQuotaExceeded):
		return "limit_reached"
	case errors.Is(err, ErrMissingResume):
		return "missing_resume"
	case errors.Is(err, ErrMissingJobDescription):
		return "missing_job_description"
	case errors.Is(err, ErrInvalidJobLink):
		return "invalid_job_link"
	case errors.Is(err, ErrSubmissionInFlight):
		return "submission_in_flight"
	case errors.Is(err, ErrConfiguration), errors.Is(err, extract.ErrNotConfigured):
		return "configuration_error"
	case errors.Is(err, extract.ErrExtractionEmpty):
		return "extraction_empty"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.As(err, &rf):
		return "upstream_failed"
	default:
		return "internal_error"
	}
}
