package extract

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentcv-backend/internal/shared/httpx"
	"agentcv-backend/internal/shared/metrics"
	"agentcv-backend/internal/shared/server/respond"
)

// Handler exposes the job-link extraction endpoint.
type Handler struct {
	Client *Client
}

// NewHandler constructs a Handler.
func NewHandler(client *Client) *Handler {
	return &Handler{Client: client}
}

// RegisterRoutes attaches extraction routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/job-links/extract", h.extract)
}

type extractBody struct {
	JobLink string `json:"jobLink"`
}

func (h *Handler) extract(c *gin.Context) {
	var body extractBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}

	text, err := h.Client.JobDescription(c.Request.Context(), body.JobLink)
	if err != nil {
		metrics.IncJobExtraction(outcome(err))
		writeError(c, err)
		return
	}
	metrics.IncJobExtraction("ok")
	respond.OK(c, gin.H{"jobDescription": text})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidJobLink):
		return "invalid_link"
	case errors.Is(err, ErrExtractionEmpty):
		return "empty"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "request_failed"
	}
}

func writeError(c *gin.Context, err error) {
	var rf *RequestFailedError
	switch {
	case errors.Is(err, ErrInvalidJobLink):
		respond.Error(c, http.StatusBadRequest, "validation_error", "job link is not a supported job posting", gin.H{"reason": "invalid_job_link"})
	case errors.Is(err, ErrExtractionEmpty):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_empty", "no job description could be extracted", nil)
	case errors.Is(err, ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "configuration_error", "job extraction is not configured", nil)
	case errors.Is(err, ErrMalformedResponse):
		respond.Error(c, http.StatusBadGateway, "malformed_response", "extraction service returned an unreadable response", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.As(err, &rf):
		respond.Error(c, http.StatusBadGateway, "upstream_failed", "extraction service request failed", gin.H{"upstreamStatus": httpx.StatusCode(err)})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to extract job description", nil)
	}
}
