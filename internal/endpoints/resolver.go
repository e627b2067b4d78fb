// Package endpoints maps a submission's locale and sources to the analysis
// endpoint and body encoding to use.
package endpoints

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"agentcv-backend/internal/shared/config"
)

// ErrConfiguration is returned when the endpoint table cannot serve a request.
var ErrConfiguration = errors.New("endpoint configuration error")

// Mode picks between one shared endpoint and a per-slot table.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// Slot is a routing key. The job source is never part of it.
type Slot struct {
	Locale Locale
	Resume ResumeSource
}

func (s Slot) String() string {
	return string(s.Locale) + "/" + string(s.Resume)
}

// Config describes the configured endpoints.
type Config struct {
	Mode      Mode
	SingleURL string
	Table     map[Slot]string
}

// Target is where and how to send one submission.
type Target struct {
	URL   string
	Shape PayloadShape
}

// Resolver is an immutable lookup table built once at startup.
type Resolver struct {
	mode    Mode
	targets map[Slot]Target
}

// New validates cfg and builds the lookup table. Every slot must resolve to an
// absolute http(s) URL.
func New(cfg Config) (*Resolver, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeSingle
	}
	r := &Resolver{mode: mode, targets: make(map[Slot]Target, len(locales)*len(resumeSources))}

	var errs []error
	for _, loc := range locales {
		for _, src := range resumeSources {
			slot := Slot{Locale: loc, Resume: src}
			var raw string
			switch mode {
			case ModeSingle:
				raw = cfg.SingleURL
			case ModeMulti:
				raw = cfg.Table[slot]
			default:
				return nil, fmt.Errorf("%w: unknown mode %q", ErrConfiguration, mode)
			}
			u, err := validateURL(raw)
			if err != nil {
				if mode == ModeSingle {
					return nil, fmt.Errorf("%w: analysis endpoint: %v", ErrConfiguration, err)
				}
				errs = append(errs, fmt.Errorf("slot %s: %v", slot, err))
				continue
			}
			shape, _ := ShapeFor(src)
			r.targets[slot] = Target{URL: u, Shape: shape}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}
	return r, nil
}

// FromConfig builds a Resolver from the process configuration.
func FromConfig(cfg config.EndpointsConfig) (*Resolver, error) {
	return New(Config{
		Mode:      Mode(strings.ToLower(strings.TrimSpace(cfg.Mode))),
		SingleURL: cfg.URL,
		Table: map[Slot]string{
			{Locale: LocaleES, Resume: ResumeFile}:         cfg.ESFile,
			{Locale: LocaleES, Resume: ResumeDocumentLink}: cfg.ESDocumentLink,
			{Locale: LocaleEN, Resume: ResumeFile}:         cfg.ENFile,
			{Locale: LocaleEN, Resume: ResumeDocumentLink}: cfg.ENDocumentLink,
		},
	})
}

// Mode reports the resolution mode.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve returns the target for a submission. job is validated but does not
// affect the result; it travels as a payload field.
func (r *Resolver) Resolve(locale Locale, resume ResumeSource, job JobSource) (Target, error) {
	if r == nil {
		return Target{}, fmt.Errorf("%w: resolver not configured", ErrConfiguration)
	}
	if job != JobText && job != JobLink {
		return Target{}, fmt.Errorf("%w: unsupported job source %q", ErrConfiguration, job)
	}
	t, ok := r.targets[Slot{Locale: locale, Resume: resume}]
	if !ok {
		return Target{}, fmt.Errorf("%w: no endpoint for %s/%s", ErrConfiguration, locale, resume)
	}
	return t, nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute http(s)", raw)
	}
	return raw, nil
}
