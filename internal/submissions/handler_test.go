package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcv-backend/internal/extract"
	"agentcv-backend/internal/shared/server/middleware"
)

func submissionRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetIdentity(c, "", c.GetHeader("X-Guest-Id"))
		c.Next()
	})
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postJSON(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "device-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

const docLinkBody = `{"cvUrl":"https://docs.example.com/cv","jobDescription":"Go backend","language":"en"}`

func TestHandlerSubmitsJSON(t *testing.T) {
	srv := newAnalysisServer(t, okBody)
	r := submissionRouter(NewHandler(newTestService(t, newLedger(), srv.URL), nil))

	resp := postJSON(r, docLinkBody, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		SubmissionID string `json:"submissionId"`
		State        string `json:"state"`
		Result       Result `json:"result"`
		Usage        struct {
			Used          int    `json:"used"`
			Limit         int    `json:"limit"`
			Remaining     int    `json:"remaining"`
			IdentityClass string `json:"identityClass"`
		} `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotEmpty(t, body.SubmissionID)
	assert.Equal(t, "succeeded", body.State)
	assert.Equal(t, "Good", body.Result.OverallFeedback)
	assert.Equal(t, 1, body.Usage.Used)
	assert.Equal(t, 3, body.Usage.Limit)
	assert.Equal(t, 2, body.Usage.Remaining)
	assert.Equal(t, "anonymous", body.Usage.IdentityClass)
}

func TestHandlerSubmitsMultipartFile(t *testing.T) {
	var gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f, _, err := r.FormFile("cv_file"); err == nil {
			data, _ := io.ReadAll(f)
			gotFile = string(data)
		}
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()
	r := submissionRouter(NewHandler(newTestService(t, newLedger(), srv.URL), nil))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("cvFile", "cv.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.7"))
	require.NoError(t, w.WriteField("jobDescription", "Go backend"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Guest-Id", "device-1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "%PDF-1.7", gotFile)
}

func TestHandlerMapsErrors(t *testing.T) {
	srv := newAnalysisServer(t, okBody)
	ledger := newLedger()
	r := submissionRouter(NewHandler(newTestService(t, ledger, srv.URL), nil))

	resp := postJSON(r, `{"cvUrl":"https://docs.example.com/cv"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "missing_job_description")

	resp = postJSON(r, `{"cvUrl":"https://docs.example.com/cv","jobDescription":"x","language":"fr"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = postJSON(r, `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	for i := 0; i < 3; i++ {
		resp = postJSON(r, docLinkBody, nil)
		require.Equal(t, http.StatusOK, resp.Code)
	}
	resp = postJSON(r, docLinkBody, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"limit_reached"`)

	srv.status.Store(http.StatusServiceUnavailable)
	other := postJSON(submissionRouter(NewHandler(newTestService(t, newLedger(), srv.URL), nil)), docLinkBody, nil)
	assert.Equal(t, http.StatusBadGateway, other.Code)
	assert.Contains(t, other.Body.String(), `"upstreamStatus":503`)

	unconfigured := submissionRouter(NewHandler(&Service{Ledger: newLedger()}, nil))
	resp = postJSON(unconfigured, docLinkBody, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "configuration_error")
}

func TestHandlerExtractsJobBeforeSubmitting(t *testing.T) {
	var payload jsonPayload
	analysis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = io.WriteString(w, okBody)
	}))
	defer analysis.Close()
	extractor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"job_description":"Extracted role"}`)
	}))
	defer extractor.Close()

	h := NewHandler(newTestService(t, newLedger(), analysis.URL), extract.NewClient(extractor.URL, "", extractor.Client()))
	resp := postJSON(submissionRouter(h),
		`{"cvUrl":"https://docs.example.com/cv","jobLink":"https://www.linkedin.com/jobs/view/7","extractJob":true}`, nil)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, payload.JobDescription)
	assert.Equal(t, "Extracted role", *payload.JobDescription)
	assert.Equal(t, "text", payload.JobSource)
	require.NotNil(t, payload.JobLink)
}

func TestHandlerOverQuotaSkipsExtraction(t *testing.T) {
	srv := newAnalysisServer(t, okBody)
	var extractions atomic.Int32
	extractor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extractions.Add(1)
		_, _ = io.WriteString(w, `{"job_description":"Extracted role"}`)
	}))
	defer extractor.Close()

	ledger := newLedger()
	for i := 0; i < 3; i++ {
		_, err := ledger.RecordSubmission(context.Background(), guest)
		require.NoError(t, err)
	}

	h := NewHandler(newTestService(t, ledger, srv.URL), extract.NewClient(extractor.URL, "", extractor.Client()))
	resp := postJSON(submissionRouter(h),
		`{"cvUrl":"https://docs.example.com/cv","jobLink":"https://www.linkedin.com/jobs/view/1","extractJob":true}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "limit_reached")
	assert.Equal(t, int32(0), extractions.Load())
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestHandlerExtractionWithoutExtractor(t *testing.T) {
	srv := newAnalysisServer(t, okBody)
	r := submissionRouter(NewHandler(newTestService(t, newLedger(), srv.URL), nil))

	resp := postJSON(r, `{"cvUrl":"https://docs.example.com/cv","jobLink":"https://www.linkedin.com/jobs/view/7","extractJob":true}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestHandlerStreamsProgress(t *testing.T) {
	srv := newAnalysisServer(t, okBody)
	r := submissionRouter(NewHandler(newTestService(t, newLedger(), srv.URL), nil))

	resp := postJSON(r, docLinkBody, map[string]string{"Accept": "text/event-stream"})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))
	out := resp.Body.String()
	assert.Contains(t, out, "event:state")
	assert.Contains(t, out, "event:progress")
	assert.Contains(t, out, "event:result")
	assert.Less(t, strings.Index(out, "event:progress"), strings.Index(out, "event:result"))
}

func TestHandlerStreamsError(t *testing.T) {
	srv := newAnalysisServer(t, `{}`)
	srv.status.Store(http.StatusInternalServerError)
	r := submissionRouter(NewHandler(newTestService(t, newLedger(), srv.URL), nil))

	resp := postJSON(r, docLinkBody, map[string]string{"Accept": "text/event-stream"})

	out := resp.Body.String()
	assert.Contains(t, out, "event:error")
	assert.Contains(t, out, "upstream_failed")
	assert.NotContains(t, out, "event:result")
}
