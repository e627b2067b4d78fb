package submissions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"agentcv-backend/internal/endpoints"
	"agentcv-backend/internal/extract"
	"agentcv-backend/internal/progress"
	"agentcv-backend/internal/shared/httpx"
	"agentcv-backend/internal/shared/metrics"
	"agentcv-backend/internal/shared/telemetry"
	"agentcv-backend/internal/usage"
)

// QuotaLedger is the part of the usage ledger the orchestrator needs.
type QuotaLedger interface {
	CanSubmit(ctx context.Context, id usage.Identity) (bool, usage.UsageRecord, error)
	RecordSubmission(ctx context.Context, id usage.Identity) (usage.UsageRecord, error)
}

// Service drives one submission from validation to result. It never retries
// and never imposes its own timeout on the analysis call.
type Service struct {
	Ledger         QuotaLedger
	Resolver       *endpoints.Resolver
	Client         httpx.Doer
	JobLinkPattern string
	Progress       progress.Simulator

	inflight inflightSet
}

// Submit validates req for id, sends it to the resolved endpoint and counts it
// against the quota only when a result comes back.
func (s *Service) Submit(ctx context.Context, id usage.Identity, req Request, hooks Hooks) (Outcome, error) {
	out := Outcome{ID: uuid.NewString(), State: StateIdle}
	transition := func(st State) {
		out.State = st
		if hooks.OnState != nil {
			hooks.OnState(st)
		}
	}
	fail := func(err error) (Outcome, error) {
		transition(StateFailed)
		reason := Reason(err)
		metrics.IncSubmissionFailed(reason)
		telemetry.Warn("submission.failed", map[string]any{
			"submission_id": out.ID,
			"identity":      string(id.Class()),
			"reason":        reason,
			"status":        httpx.StatusCode(err),
			"error":         err,
		})
		return out, err
	}

	if s.Resolver == nil {
		return fail(fmt.Errorf("%w: no analysis endpoint configured", ErrConfiguration))
	}
	release, ok := s.inflight.acquire(id.Key())
	if !ok {
		return fail(ErrSubmissionInFlight)
	}
	defer release()

	transition(StateValidating)
	resumeSrc, jobSrc, err := s.validate(ctx, id, req)
	if err != nil {
		return fail(err)
	}
	locale := req.locale()
	target, err := s.Resolver.Resolve(locale, resumeSrc, jobSrc)
	if err != nil {
		return fail(err)
	}

	transition(StateInFlight)
	metrics.IncSubmissionStarted()
	finish, stop := s.startProgress(ctx, locale, hooks.OnProgress)
	defer stop()

	result, err := s.dispatch(ctx, target, req, resumeSrc, jobSrc)
	if err != nil {
		return fail(err)
	}

	rec, err := s.Ledger.RecordSubmission(context.WithoutCancel(ctx), id)
	if err != nil {
		out.UsageErr = err
		telemetry.Error("submission.record_failed", map[string]any{
			"submission_id": out.ID,
			"identity":      string(id.Class()),
			"error":         err,
		})
	}
	out.Usage = rec
	out.Result = &result
	finish()
	metrics.IncSubmissionCompleted()
	transition(StateSucceeded)
	return out, nil
}

// CheckQuota reports ErrQuotaExceeded when id has no submission left today.
// Callers that make network calls before Submit, such as job-link
// extraction, check it first.
func (s *Service) CheckQuota(ctx context.Context, id usage.Identity) error {
	if s.Ledger == nil {
		return fmt.Errorf("%w: no usage ledger configured", ErrConfiguration)
	}
	allowed, _, err := s.Ledger.CanSubmit(ctx, id)
	if err != nil {
		metrics.IncQuotaRejection(string(id.Class()))
		if errors.Is(err, ErrQuotaExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	}
	if !allowed {
		metrics.IncQuotaRejection(string(id.Class()))
		return ErrQuotaExceeded
	}
	return nil
}

func (s *Service) validate(ctx context.Context, id usage.Identity, req Request) (endpoints.ResumeSource, endpoints.JobSource, error) {
	if err := s.CheckQuota(ctx, id); err != nil {
		return "", "", err
	}

	resumeSrc, err := req.ResumeSource()
	if err != nil {
		return "", "", err
	}
	jobSrc, err := req.JobSource()
	if err != nil {
		return "", "", err
	}
	if jobSrc == endpoints.JobLink && !extract.MatchesJobLink(req.JobLink, s.JobLinkPattern) {
		return "", "", ErrInvalidJobLink
	}
	return resumeSrc, jobSrc, nil
}

func (s *Service) dispatch(ctx context.Context, target endpoints.Target, req Request, resumeSrc endpoints.ResumeSource, jobSrc endpoints.JobSource) (Result, error) {
	body, contentType, err := buildPayload(target.Shape, req, resumeSrc, jobSrc)
	if err != nil {
		return Result{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrConfiguration, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	raw, err := httpx.Do(client, httpReq)
	metrics.ObserveSubmissionDuration(time.Since(start))
	if err != nil {
		return Result{}, err
	}
	return Normalize(raw)
}

// startProgress runs the simulator for the in-flight window. stop must be
// deferred; after it returns onProgress is not called again. finish shows
// completion, then ends the run and delivers the idle snapshot without waiting
// out the reset delay, so Submit never returns before the display is idle.
func (s *Service) startProgress(ctx context.Context, locale endpoints.Locale, onProgress func(progress.Snapshot)) (finish, stop func()) {
	if onProgress == nil {
		return func() {}, func() {}
	}
	sim := s.Progress
	sim.Locale = locale
	run := sim.Start(ctx)

	forwarded := make(chan struct{})
	completed := make(chan struct{})
	idleSeen := false
	go func() {
		defer close(forwarded)
		done := false
		for snap := range run.Updates() {
			onProgress(snap)
			if snap.Done {
				done = true
				close(completed)
			} else if done && snap == (progress.Snapshot{}) {
				idleSeen = true
			}
		}
	}()

	stop = func() {
		run.Stop()
		<-forwarded
	}
	finish = func() {
		run.Finish()
		select {
		case <-completed:
		case <-forwarded:
		case <-ctx.Done():
		}
		stop()
		if !idleSeen && ctx.Err() == nil {
			onProgress(progress.Snapshot{})
		}
	}
	return finish, stop
}
