package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisBody = `{"overall_feedback":"Strong backend profile","suggestions":[{"original":"Did Go","suggested":"Built Go services"}],"compatibility_score":"82%","keywords":["go","postgres"]}`

func setupEnv(t *testing.T, analysisURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("USAGE_LOCAL_DIR", dir)
	t.Setenv("ANALYSIS_ENDPOINT_MODE", "single")
	t.Setenv("ANALYSIS_ENDPOINT_URL", analysisURL)
	t.Setenv("USAGE_ANON_DAILY_LIMIT", "3")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OUTBOUND_OAUTH_TOKEN_URL", "")
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func analysisServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, analysisBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitPrintsResultAndRemaining(t *testing.T) {
	srv := analysisServer(t)
	setupEnv(t, srv.URL)

	out, _, err := run(t, "submit", "--cv-url", "https://docs.example.com/cv", "--job", "Go backend", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Compatibility: 82%")
	assert.Contains(t, out, "Keywords:      go, postgres")
	assert.Contains(t, out, "Submissions remaining today: 2")

	out, _, err = run(t, "usage", "--format", "json")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, float64(1), body["used"])
	assert.Equal(t, "anonymous", body["identityClass"])
}

func TestSubmitUploadsFileWithProgress(t *testing.T) {
	srv := analysisServer(t)
	setupEnv(t, srv.URL)
	cv := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(cv, []byte("%PDF-1.7"), 0o600))

	out, errOut, err := run(t, "submit", "--cv", cv, "--job", "Go backend", "--language", "en", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, "[100%]")
	assert.Contains(t, out, `"state": "succeeded"`)
}

func TestSubmitStopsAtDailyLimit(t *testing.T) {
	srv := analysisServer(t)
	setupEnv(t, srv.URL)
	t.Setenv("USAGE_ANON_DAILY_LIMIT", "1")

	_, _, err := run(t, "submit", "--cv-url", "https://docs.example.com/cv", "--job", "Go", "--no-progress")
	require.NoError(t, err)

	_, errOut, err := run(t, "submit", "--cv-url", "https://docs.example.com/cv", "--job", "Go", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit_reached")
	assert.Contains(t, errOut, "Submissions remaining today: 0")
}

func TestSubmitOverLimitSkipsExtraction(t *testing.T) {
	srv := analysisServer(t)
	setupEnv(t, srv.URL)
	t.Setenv("USAGE_ANON_DAILY_LIMIT", "1")
	var extractions atomic.Int32
	extractor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extractions.Add(1)
		_, _ = io.WriteString(w, `{"job_description":"Senior Go engineer"}`)
	}))
	defer extractor.Close()
	t.Setenv("JOB_EXTRACTION_URL", extractor.URL)

	_, _, err := run(t, "submit", "--cv-url", "https://docs.example.com/cv", "--job", "Go", "--no-progress")
	require.NoError(t, err)

	_, _, err = run(t, "submit", "--cv-url", "https://docs.example.com/cv",
		"--job-link", "https://www.linkedin.com/jobs/view/42", "--extract", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit_reached")
	assert.Equal(t, int32(0), extractions.Load())
}

func TestSubmitRejectsMissingJob(t *testing.T) {
	srv := analysisServer(t)
	setupEnv(t, srv.URL)

	_, _, err := run(t, "submit", "--cv-url", "https://docs.example.com/cv", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_job_description")

	_, _, err = run(t, "submit", "--cv-url", "https://docs.example.com/cv", "--job", "Go", "--language", "de")
	require.Error(t, err)
}

func TestExtractJob(t *testing.T) {
	extractor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"job_description":"Senior Go engineer"}`)
	}))
	defer extractor.Close()
	setupEnv(t, "https://analysis.example.com")
	t.Setenv("JOB_EXTRACTION_URL", extractor.URL)

	out, _, err := run(t, "extract-job", "https://www.linkedin.com/jobs/view/42")
	require.NoError(t, err)
	assert.Equal(t, "Senior Go engineer", strings.TrimSpace(out))

	_, _, err = run(t, "extract-job", "https://example.com/careers/42")
	assert.Error(t, err)
}

func TestUsageResetIsHidden(t *testing.T) {
	srv := analysisServer(t)
	setupEnv(t, srv.URL)

	_, _, err := run(t, "submit", "--cv-url", "https://docs.example.com/cv", "--job", "Go", "--no-progress")
	require.NoError(t, err)

	out, _, err := run(t, "usage", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Submissions remaining today: 3")

	help, _, err := run(t, "usage", "--help")
	require.NoError(t, err)
	assert.NotContains(t, help, "--reset")
}
