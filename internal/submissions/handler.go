package submissions

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agentcv-backend/internal/endpoints"
	"agentcv-backend/internal/extract"
	"agentcv-backend/internal/progress"
	"agentcv-backend/internal/shared/httpx"
	"agentcv-backend/internal/shared/server/respond"
	"agentcv-backend/internal/usage"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler exposes the submission endpoint.
type Handler struct {
	Svc       *Service
	Extractor *extract.Client
}

// NewHandler constructs a Handler. extractor may be nil.
func NewHandler(svc *Service, extractor *extract.Client) *Handler {
	return &Handler{Svc: svc, Extractor: extractor}
}

// RegisterRoutes attaches submission routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/submissions", h.submit)
}

type submitBody struct {
	CVURL          string `json:"cvUrl" form:"cvUrl"`
	JobDescription string `json:"jobDescription" form:"jobDescription"`
	JobLink        string `json:"jobLink" form:"jobLink"`
	Language       string `json:"language" form:"language"`
	ExtractJob     bool   `json:"extractJob" form:"extractJob"`
}

func (h *Handler) submit(c *gin.Context) {
	id := usage.IdentityFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	req, extractJob, ok := h.bind(c)
	if !ok {
		return
	}
	if extractJob && strings.TrimSpace(req.JobLink) != "" && strings.TrimSpace(req.JobText) == "" {
		if err := h.Svc.CheckQuota(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		if h.Extractor == nil {
			writeError(c, extract.ErrNotConfigured)
			return
		}
		text, err := h.Extractor.JobDescription(c.Request.Context(), req.JobLink)
		if err != nil {
			writeError(c, err)
			return
		}
		req.JobText = text
		req.JobExtracted = true
	}

	if wantsStream(c) {
		h.stream(c, id, req)
		return
	}

	out, err := h.Svc.Submit(c.Request.Context(), id, req, Hooks{})
	c.Set("submissionId", out.ID)
	c.Set("submissionState", string(out.State))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, outcomeBody(id, out))
}

func (h *Handler) bind(c *gin.Context) (Request, bool, bool) {
	var body submitBody
	var req Request

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&body); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid form body", nil)
			return req, false, false
		}
		fh, err := c.FormFile("cvFile")
		if err != nil {
			fh, err = c.FormFile("cv_file")
		}
		if err == nil {
			f, err := fh.Open()
			if err != nil {
				respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
				return req, false, false
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
				return req, false, false
			}
			req.ResumeFile = &ResumeFile{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			}
		}
	} else if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return req, false, false
	}

	locale, err := endpoints.ParseLocale(body.Language)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), []map[string]string{
			{"field": "language", "issue": "unsupported"},
		})
		return req, false, false
	}
	req.DocumentURL = strings.TrimSpace(body.CVURL)
	req.JobText = strings.TrimSpace(body.JobDescription)
	req.JobLink = strings.TrimSpace(body.JobLink)
	req.Locale = locale
	return req, body.ExtractJob, true
}

// stream runs the submission while sending state and progress as server-sent
// events, then one result or error event.
func (h *Handler) stream(c *gin.Context, id usage.Identity, req Request) {
	emit := respond.Stream(c)
	out, err := h.Svc.Submit(c.Request.Context(), id, req, Hooks{
		OnState: func(st State) {
			emit("state", gin.H{"state": st})
		},
		OnProgress: func(snap progress.Snapshot) {
			emit("progress", snap)
		},
	})
	c.Set("submissionId", out.ID)
	c.Set("submissionState", string(out.State))
	if err != nil {
		status, code, msg, details := describe(err)
		emit("error", gin.H{"status": status, "code": code, "message": msg, "details": details})
		return
	}
	emit("result", outcomeBody(id, out))
}

func wantsStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

func outcomeBody(id usage.Identity, out Outcome) gin.H {
	return gin.H{
		"submissionId": out.ID,
		"state":        out.State,
		"result":       out.Result,
		"usage": gin.H{
			"used":          out.Usage.Used,
			"limit":         out.Usage.Limit,
			"remaining":     out.Usage.Remaining(),
			"lastResetDate": out.Usage.LastResetDate,
			"identityClass": id.Class(),
		},
	}
}

func writeError(c *gin.Context, err error) {
	status, code, msg, details := describe(err)
	respond.Error(c, status, code, msg, details)
}

func describe(err error) (int, string, string, any) {
	reason := Reason(err)
	switch reason {
	case "limit_reached":
		return http.StatusTooManyRequests, "limit_reached", "You've reached today's submission limit.", []map[string]string{
			{"field": "usage", "issue": "limit_reached"},
		}
	case "missing_resume", "missing_job_description", "invalid_job_link":
		return http.StatusBadRequest, "validation_error", err.Error(), []map[string]string{
			{"field": fieldFor(reason), "issue": reason},
		}
	case "submission_in_flight":
		return http.StatusConflict, reason, err.Error(), nil
	case "extraction_empty":
		return http.StatusUnprocessableEntity, reason, "no job description could be extracted", nil
	case "upstream_failed":
		return http.StatusBadGateway, reason, "analysis request failed", gin.H{"upstreamStatus": httpx.StatusCode(err)}
	case "malformed_response":
		return http.StatusBadGateway, reason, "analysis service returned an unreadable response", nil
	case "configuration_error", "store_unavailable":
		return http.StatusServiceUnavailable, reason, "submissions are temporarily unavailable", nil
	case "canceled":
		return http.StatusRequestTimeout, "timeout", "request canceled", nil
	default:
		return http.StatusInternalServerError, "internal_error", "failed to process submission", nil
	}
}

func fieldFor(reason string) string {
	switch reason {
	case "missing_resume":
		return "resume"
	case "invalid_job_link":
		return "jobLink"
	default:
		return "jobDescription"
	}
}
