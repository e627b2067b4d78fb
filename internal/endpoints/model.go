package endpoints

import (
	"fmt"
	"strings"
)

// Locale selects the language of the analysis.
type Locale string

const (
	LocaleES Locale = "es"
	LocaleEN Locale = "en"
)

// DefaultLocale is used when the caller does not pick one.
const DefaultLocale = LocaleES

// ResumeSource is how the résumé is provided.
type ResumeSource string

const (
	ResumeFile         ResumeSource = "file"
	ResumeDocumentLink ResumeSource = "document-link"
)

// JobSource is how the job description is provided.
type JobSource string

const (
	JobText JobSource = "text"
	JobLink JobSource = "job-link"
)

// PayloadShape is the body encoding expected by the analysis endpoint.
type PayloadShape string

const (
	ShapeMultipart PayloadShape = "multipart"
	ShapeJSON      PayloadShape = "json"
)

var (
	locales       = []Locale{LocaleES, LocaleEN}
	resumeSources = []ResumeSource{ResumeFile, ResumeDocumentLink}
)

// Locales lists the supported locales.
func Locales() []Locale { return append([]Locale(nil), locales...) }

// ResumeSources lists the supported résumé sources.
func ResumeSources() []ResumeSource { return append([]ResumeSource(nil), resumeSources...) }

// ParseLocale accepts "es" or "en" in any case; empty means DefaultLocale.
func ParseLocale(raw string) (Locale, error) {
	v := Locale(strings.ToLower(strings.TrimSpace(raw)))
	if v == "" {
		return DefaultLocale, nil
	}
	for _, l := range locales {
		if v == l {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported locale %q", raw)
}

func ParseResumeSource(raw string) (ResumeSource, error) {
	v := ResumeSource(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range resumeSources {
		if v == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported resume source %q", raw)
}

func ParseJobSource(raw string) (JobSource, error) {
	v := JobSource(strings.ToLower(strings.TrimSpace(raw)))
	switch v {
	case JobText, JobLink:
		return v, nil
	}
	return "", fmt.Errorf("unsupported job source %q", raw)
}

// ShapeFor returns the payload shape for a résumé source. Only the résumé
// source decides the shape.
func ShapeFor(src ResumeSource) (PayloadShape, bool) {
	switch src {
	case ResumeFile:
		return ShapeMultipart, true
	case ResumeDocumentLink:
		return ShapeJSON, true
	}
	return "", false
}
