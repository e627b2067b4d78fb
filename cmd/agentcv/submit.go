package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"agentcv-backend/internal/bootstrap"
	"agentcv-backend/internal/endpoints"
	"agentcv-backend/internal/progress"
	"agentcv-backend/internal/submissions"
	"agentcv-backend/internal/usage"
)

type submitFlags struct {
	cvPath     string
	cvURL      string
	jobText    string
	jobFile    string
	jobLink    string
	extract    bool
	language   string
	format     string
	noProgress bool
}

func (c *cli) submitCmd() *cobra.Command {
	var f submitFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Analyze a resume against a job description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			eng, cfg, cleanup, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			id := c.identity(cfg)
			if f.extract && req.JobLink != "" && req.JobText == "" {
				if err := eng.Submissions.CheckQuota(cmd.Context(), id); err != nil {
					return c.submitFailed(cmd.Context(), eng, id, err)
				}
				text, err := eng.Extractor.JobDescription(cmd.Context(), req.JobLink)
				if err != nil {
					return fmt.Errorf("extracting job description: %w", err)
				}
				req.JobText = text
				req.JobExtracted = true
			}

			var hooks submissions.Hooks
			if !f.noProgress {
				hooks.OnProgress = progressPrinter(c.errOut)
			}
			out, err := eng.Submissions.Submit(cmd.Context(), id, req, hooks)
			if err != nil {
				return c.submitFailed(cmd.Context(), eng, id, err)
			}
			if out.UsageErr != nil {
				fmt.Fprintf(c.errOut, "warning: submission not counted: %v\n", out.UsageErr)
			}
			return printOutcome(c.out, out, f.format)
		},
	}

	cmd.Flags().StringVar(&f.cvPath, "cv", "", "resume file to upload")
	cmd.Flags().StringVar(&f.cvURL, "cv-url", "", "link to a shared resume document")
	cmd.Flags().StringVar(&f.jobText, "job", "", "job description text")
	cmd.Flags().StringVar(&f.jobFile, "job-file", "", "file holding the job description text")
	cmd.Flags().StringVar(&f.jobLink, "job-link", "", "link to the job posting")
	cmd.Flags().BoolVar(&f.extract, "extract", false, "extract the job description from --job-link before submitting")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "analysis language: es|en (default es)")
	cmd.Flags().StringVar(&f.format, "format", "pretty", "output format: pretty|json")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "do not print progress")
	cmd.MarkFlagsMutuallyExclusive("cv", "cv-url")
	cmd.MarkFlagsMutuallyExclusive("job", "job-file")
	return cmd
}

func (c *cli) submitFailed(ctx context.Context, eng *bootstrap.Engine, id usage.Identity, err error) error {
	if errors.Is(err, submissions.ErrQuotaExceeded) && !errors.Is(err, submissions.ErrStoreUnavailable) {
		fmt.Fprintln(c.errOut, "You've reached today's submission limit.")
		printRemaining(ctx, c.errOut, eng.Usage, id)
	}
	return fmt.Errorf("submission failed (%s): %w", submissions.Reason(err), err)
}

func (f submitFlags) request() (submissions.Request, error) {
	locale, err := endpoints.ParseLocale(f.language)
	if err != nil {
		return submissions.Request{}, err
	}
	req := submissions.Request{
		DocumentURL: strings.TrimSpace(f.cvURL),
		JobText:     strings.TrimSpace(f.jobText),
		JobLink:     strings.TrimSpace(f.jobLink),
		Locale:      locale,
	}
	if f.cvPath != "" {
		data, err := os.ReadFile(f.cvPath)
		if err != nil {
			return submissions.Request{}, fmt.Errorf("reading resume: %w", err)
		}
		req.ResumeFile = &submissions.ResumeFile{
			Name:        filepath.Base(f.cvPath),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(f.cvPath))),
			Data:        data,
		}
	}
	if f.jobFile != "" {
		data, err := os.ReadFile(f.jobFile)
		if err != nil {
			return submissions.Request{}, fmt.Errorf("reading job description: %w", err)
		}
		req.JobText = strings.TrimSpace(string(data))
	}
	return req, nil
}

// progressPrinter redraws one status line per snapshot.
func progressPrinter(w io.Writer) func(progress.Snapshot) {
	var mu sync.Mutex
	return func(s progress.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Label == "" {
			return
		}
		fmt.Fprintf(w, "\r[%3d%%] %-40s", s.Value, s.Label)
		if s.Done {
			fmt.Fprintln(w)
		}
	}
}

func printOutcome(w io.Writer, out submissions.Outcome, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"submissionId": out.ID,
			"state":        out.State,
			"result":       out.Result,
			"usage": map[string]any{
				"used":          out.Usage.Used,
				"limit":         out.Usage.Limit,
				"remaining":     out.Usage.Remaining(),
				"lastResetDate": out.Usage.LastResetDate,
			},
		})
	case "pretty", "":
		printPretty(w, out)
		return nil
	default:
		return fmt.Errorf("unsupported format %q (expected pretty|json)", format)
	}
}

func printPretty(w io.Writer, out submissions.Outcome) {
	res := out.Result
	if res.CompatibilityScore != nil {
		fmt.Fprintf(w, "Compatibility: %.0f%%\n", *res.CompatibilityScore)
	}
	if res.OverallFeedback != "" {
		fmt.Fprintf(w, "Feedback:      %s\n", res.OverallFeedback)
	}
	if len(res.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords:      %s\n", strings.Join(res.Keywords, ", "))
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Suggestions:")
		for _, s := range res.Suggestions {
			fmt.Fprintf(w, "- %s\n  -> %s\n", s.Original, s.Suggested)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Submissions remaining today: %d\n", out.Usage.Remaining())
}

func printRemaining(ctx context.Context, w io.Writer, ledger *usage.Service, id usage.Identity) {
	rec, err := ledger.GetUsage(ctx, id)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "Submissions remaining today: %d\n", rec.Remaining())
}
