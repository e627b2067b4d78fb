package submissions

import (
	"strings"

	"agentcv-backend/internal/endpoints"
	"agentcv-backend/internal/progress"
	"agentcv-backend/internal/usage"
)

// ResumeFile is an uploaded résumé.
type ResumeFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Request is one submission. Exactly one résumé representation and one job
// representation must be set. JobText and JobLink may both be set only when
// JobExtracted is true, i.e. the text was extracted from the link.
type Request struct {
	ResumeFile   *ResumeFile
	DocumentURL  string
	JobText      string
	JobLink      string
	JobExtracted bool
	Locale       endpoints.Locale
}

// ResumeSource derives the résumé source tag.
func (r Request) ResumeSource() (endpoints.ResumeSource, error) {
	hasFile := r.ResumeFile != nil && len(r.ResumeFile.Data) > 0
	hasURL := strings.TrimSpace(r.DocumentURL) != ""
	switch {
	case hasFile && !hasURL:
		return endpoints.ResumeFile, nil
	case hasURL && !hasFile:
		return endpoints.ResumeDocumentLink, nil
	default:
		return "", ErrMissingResume
	}
}

// JobSource derives the job source tag.
func (r Request) JobSource() (endpoints.JobSource, error) {
	hasText := strings.TrimSpace(r.JobText) != ""
	hasLink := strings.TrimSpace(r.JobLink) != ""
	switch {
	case hasText && (!hasLink || r.JobExtracted):
		return endpoints.JobText, nil
	case hasLink && !hasText:
		return endpoints.JobLink, nil
	default:
		return "", ErrMissingJobDescription
	}
}

func (r Request) locale() endpoints.Locale {
	if r.Locale == "" {
		return endpoints.DefaultLocale
	}
	return r.Locale
}

// Suggestion is one line-level rewrite.
type Suggestion struct {
	Original  string `json:"original"`
	Suggested string `json:"suggested"`
}

// Result is the normalized analysis. Keywords is never nil.
type Result struct {
	OverallFeedback    string       `json:"overallFeedback"`
	Suggestions        []Suggestion `json:"suggestions"`
	CompatibilityScore *float64     `json:"compatibilityScore,omitempty"`
	Keywords           []string     `json:"keywords"`
}

// State is a step of the submission lifecycle. A finished submission leaves
// nothing behind, so the next one starts from Idle again.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateInFlight   State = "in_flight"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Hooks observe a submission while it runs. Both are optional and are never
// called after Submit returns.
type Hooks struct {
	OnState    func(State)
	OnProgress func(progress.Snapshot)
}

// Outcome describes a finished submission.
type Outcome struct {
	ID     string
	State  State
	Result *Result
	// Usage is the counter after recording a successful submission.
	Usage usage.UsageRecord
	// UsageErr is set when the submission succeeded but could not be counted.
	UsageErr error
}
