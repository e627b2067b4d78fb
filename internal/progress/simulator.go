// Package progress produces an estimated progress signal for display while a
// submission is in flight. It knows nothing about real completion.
package progress

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"agentcv-backend/internal/endpoints"
)

const (
	DefaultInterval   = 800 * time.Millisecond
	DefaultMaxStep    = 5
	DefaultCeiling    = 95
	DefaultResetDelay = time.Second
)

// Snapshot is one emitted progress state. The zero Snapshot is the idle state.
type Snapshot struct {
	Value int    `json:"value"`
	Label string `json:"label"`
	Done  bool   `json:"done,omitempty"`
}

// Simulator holds the parameters of a progress run. The zero value is usable.
type Simulator struct {
	Interval   time.Duration
	MaxStep    int
	Ceiling    int
	ResetDelay time.Duration
	Locale     endpoints.Locale

	// Rand returns a value in [0, n). Defaults to math/rand/v2.
	Rand func(n int) int
	// Tick returns a tick channel and its stop func. Defaults to time.NewTicker.
	Tick func(d time.Duration) (<-chan time.Time, func())
	// After defaults to time.After.
	After func(d time.Duration) <-chan time.Time
}

// Run is one started simulation.
type Run struct {
	updates chan Snapshot
	finish  chan struct{}
	stop    chan struct{}
	done    chan struct{}

	finishOnce sync.Once
	stopOnce   sync.Once
}

// Start launches the timer. The run ends on Finish, Stop or ctx cancellation;
// Updates is closed when it does.
func (s Simulator) Start(ctx context.Context) *Run {
	s = s.withDefaults()
	r := &Run{
		updates: make(chan Snapshot, 16),
		finish:  make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.loop(ctx, r)
	return r
}

// Updates delivers snapshots until the run ends.
func (r *Run) Updates() <-chan Snapshot {
	return r.updates
}

// Done is closed once the run has ended.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Finish jumps to 100 with the completion label, then to idle after the reset delay.
func (r *Run) Finish() {
	r.finishOnce.Do(func() { close(r.finish) })
}

// Stop halts the run with no further snapshots. It returns once the timer is
// torn down.
func (r *Run) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (s Simulator) withDefaults() Simulator {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.MaxStep <= 0 {
		s.MaxStep = DefaultMaxStep
	}
	if s.Ceiling <= 0 || s.Ceiling > 100 {
		s.Ceiling = DefaultCeiling
	}
	if s.ResetDelay <= 0 {
		s.ResetDelay = DefaultResetDelay
	}
	if s.Locale == "" {
		s.Locale = endpoints.DefaultLocale
	}
	if s.Rand == nil {
		s.Rand = rand.IntN
	}
	if s.Tick == nil {
		s.Tick = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	if s.After == nil {
		s.After = time.After
	}
	return s
}

// Advance returns the next value after value. Steps are uniform in
// [1, MaxStep] but shrink near the ceiling so the value never reaches it.
func (s Simulator) Advance(value int) int {
	s = s.withDefaults()
	step := 1 + s.Rand(s.MaxStep)
	remaining := s.Ceiling - value
	if step >= remaining {
		step = remaining / 2
	}
	if step < 0 {
		step = 0
	}
	return value + step
}

func (s Simulator) loop(ctx context.Context, r *Run) {
	defer close(r.done)
	defer close(r.updates)

	tick, stopTick := s.Tick(s.Interval)
	defer stopTick()

	value := 0
	r.offer(Snapshot{Value: value, Label: StageLabel(s.Locale, value)})

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-r.finish:
			stopTick()
			if !r.send(ctx, Snapshot{Value: 100, Label: CompletionLabel(s.Locale), Done: true}) {
				return
			}
			select {
			case <-s.After(s.ResetDelay):
				r.send(ctx, Snapshot{})
			case <-r.stop:
			case <-ctx.Done():
			}
			return
		case <-tick:
			value = s.Advance(value)
			r.offer(Snapshot{Value: value, Label: StageLabel(s.Locale, value)})
		}
	}
}

// offer drops the snapshot when the reader is behind.
func (r *Run) offer(snap Snapshot) {
	select {
	case r.updates <- snap:
	default:
	}
}

func (r *Run) send(ctx context.Context, snap Snapshot) bool {
	select {
	case r.updates <- snap:
		return true
	case <-r.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
