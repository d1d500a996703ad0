package scheduler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/pario-ai/drip/pkg/completion"
	"github.com/pario-ai/drip/pkg/httpx"
	"github.com/pario-ai/drip/pkg/interval"
	"github.com/pario-ai/drip/pkg/models"
	"github.com/pario-ai/drip/pkg/prompt"
)

// ErrPromptSource is returned by Run when a prompt fetch fails and the
// scheduler is configured to stop on prompt failures.
var ErrPromptSource = errors.New("prompt source failed")

// Completer issues one chat completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts *completion.Options) (*models.ChatCompletionResponse, error)
}

// Recorder persists request history. Failures are logged and never stop
// the scheduler.
type Recorder interface {
	StartCycle(ctx context.Context, c models.CycleRecord) error
	EndCycle(ctx context.Context, id string, requests int, suspendedAt, resumeAt time.Time) error
	Record(ctx context.Context, rec models.RequestRecord) error
}

// pruner is implemented by recorders that support retention.
type pruner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the scheduler's immutable settings.
type Config struct {
	Interval interval.Config
	QuotaMin int
	QuotaMax int
	// Model is only reported in logs and history.
	Model string
	// TelemetryPeriod is the spacing of runtime statistics logs. Zero
	// disables them.
	TelemetryPeriod time.Duration
	// ExitOnPromptFailure makes Run return ErrPromptSource on the first
	// failed prompt fetch. By default the request is skipped.
	ExitOnPromptFailure bool
	// Retention prunes history older than this at every suspend. Zero keeps
	// everything.
	Retention time.Duration
}

// Result is the outcome of one request cycle.
type Result struct {
	Seq      int
	Outcome  models.Outcome
	Prompt   string
	Response *models.ChatCompletionResponse
	Err      error
	Latency  time.Duration
}

// Scheduler runs day-cycles of randomly spaced requests.
type Scheduler struct {
	cfg       Config
	prompts   prompt.Source
	completer Completer
	recorder  Recorder
	clock     clock.Clock
	rand      io.Reader
	wait      interval.WaitFunc
	log       *zap.Logger
	intervals *interval.Generator

	mu       sync.Mutex
	state    State
	phase    Phase
	resumeAt time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for timestamps and timers.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithRand replaces crypto/rand.Reader for every random draw.
func WithRand(r io.Reader) Option {
	return func(s *Scheduler) { s.rand = r }
}

// WithWaiter replaces the wait used between ticks and before resuming.
func WithWaiter(w interval.WaitFunc) Option {
	return func(s *Scheduler) { s.wait = w }
}

// WithRecorder enables request history.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New builds a Scheduler. It fails on inverted bounds or an unreadable
// random source.
func New(cfg Config, prompts prompt.Source, completer Completer, opts ...Option) (*Scheduler, error) {
	if cfg.QuotaMin < 0 || cfg.QuotaMax < cfg.QuotaMin {
		return nil, fmt.Errorf("invalid quota range [%d, %d]", cfg.QuotaMin, cfg.QuotaMax)
	}
	if prompts == nil || completer == nil {
		return nil, errors.New("scheduler: prompt source and completer are required")
	}

	s := &Scheduler{
		cfg:       cfg,
		prompts:   prompts,
		completer: completer,
		clock:     clock.New(),
		rand:      rand.Reader,
		log:       zap.NewNop(),
		phase:     PhaseIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.wait == nil {
		s.wait = interval.Sleeper(s.clock)
	}

	gen, err := interval.New(cfg.Interval,
		interval.WithRand(s.rand),
		interval.WithWaiter(s.wait),
		interval.WithLogger(s.log),
	)
	if err != nil {
		return nil, err
	}
	s.intervals = gen
	return s, nil
}

// Snapshot returns the current state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Phase: s.phase, ResumeAt: s.resumeAt}
}

// Run drives day-cycles until ctx is done, which is a clean shutdown and
// returns nil. With ExitOnPromptFailure set it returns ErrPromptSource on
// the first failed prompt fetch.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.TelemetryPeriod > 0 {
		var wg sync.WaitGroup
		defer wg.Wait()
		tctx, cancel := context.WithCancel(ctx)
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.telemetryLoop(tctx)
		}()
	}

	for {
		err := s.runCycle(ctx)
		if err == nil {
			err = s.suspend(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("scheduler stopped")
				return nil
			}
			return err
		}
		s.log.Info("starting new scheduler for the day")
	}
}

// runCycle is Initialize followed by the tick chain. It returns nil once the
// quota is spent.
func (s *Scheduler) runCycle(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}

	// The first request of a cycle is not delayed.
	if err := s.tick(ctx); err != nil {
		if errors.Is(err, interval.ErrStop) {
			return nil
		}
		return err
	}
	return s.intervals.Schedule(ctx, s.tick)
}

func (s *Scheduler) initialize(ctx context.Context) error {
	limit, err := interval.IntBetween(s.rand, s.cfg.QuotaMin, s.cfg.QuotaMax)
	if err != nil {
		return fmt.Errorf("draw request limit: %w", err)
	}
	now := s.clock.Now()
	st := State{
		CycleID:      uuid.NewString(),
		RequestLimit: limit,
		StartTime:    now,
	}

	s.mu.Lock()
	s.state = st
	s.phase = PhaseRunning
	s.resumeAt = time.Time{}
	s.mu.Unlock()

	s.log.Info("starting scheduler",
		zap.Float64("min_interval", s.cfg.Interval.MinMinutes),
		zap.Float64("max_interval", s.cfg.Interval.MaxMinutes),
		zap.String("model", s.cfg.Model),
		zap.Int("request_limit", limit),
		zap.String("cycle_id", st.CycleID),
	)

	if s.recorder != nil {
		err := s.recorder.StartCycle(ctx, models.CycleRecord{ID: st.CycleID, StartedAt: now, RequestLimit: limit})
		if err != nil {
			s.log.Warn("history: start cycle failed", zap.Error(err))
		}
	}
	return nil
}

// tick performs one request cycle, or returns interval.ErrStop once the
// day's quota is spent.
func (s *Scheduler) tick(ctx context.Context) error {
	s.mu.Lock()
	if s.state.RequestCount >= s.state.RequestLimit {
		count, limit := s.state.RequestCount, s.state.RequestLimit
		s.mu.Unlock()
		s.log.Info("request limit reached, stopping scheduler",
			zap.Int("request_count", count),
			zap.Int("request_limit", limit),
		)
		return interval.ErrStop
	}
	s.state.RequestCount++
	seq, cycleID := s.state.RequestCount, s.state.CycleID
	s.mu.Unlock()

	s.log.Info("making scheduled request", zap.Int("seq", seq))

	res := s.request(ctx, seq)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.report(ctx, cycleID, res)

	if res.Outcome == models.OutcomePromptFailed && s.cfg.ExitOnPromptFailure {
		return fmt.Errorf("%w: %w", ErrPromptSource, res.Err)
	}
	return nil
}

func (s *Scheduler) request(ctx context.Context, seq int) Result {
	start := s.clock.Now()
	res := Result{Seq: seq}

	p, err := s.prompts.Fetch(ctx)
	if err != nil {
		res.Outcome = models.OutcomePromptFailed
		res.Err = err
		res.Latency = s.clock.Now().Sub(start)
		return res
	}
	res.Prompt = p

	resp, err := s.completer.Complete(ctx, p, nil)
	res.Latency = s.clock.Now().Sub(start)
	if err != nil {
		res.Outcome = models.OutcomeCompletionFailed
		res.Err = err
		return res
	}
	res.Outcome = models.OutcomeOK
	res.Response = resp
	return res
}

func (s *Scheduler) report(ctx context.Context, cycleID string, res Result) {
	rec := models.RequestRecord{
		CycleID:   cycleID,
		Seq:       res.Seq,
		Model:     s.cfg.Model,
		Prompt:    res.Prompt,
		Outcome:   res.Outcome,
		LatencyMs: res.Latency.Milliseconds(),
		CreatedAt: s.clock.Now(),
	}

	switch res.Outcome {
	case models.OutcomeOK:
		u := res.Response.TokenUsage()
		rec.PromptTokens = u.PromptTokens
		rec.CompletionTokens = u.CompletionTokens
		rec.TotalTokens = u.TotalTokens
		s.log.Info("request completed successfully",
			zap.Int("seq", res.Seq),
			zap.String("response_preview", res.Response.Content()),
			zap.Int("tokens_used", rec.TotalTokens),
		)
	case models.OutcomePromptFailed:
		rec.Error = res.Err.Error()
		s.log.Warn("prompt generation failed, skipping request",
			zap.Int("seq", res.Seq),
			zap.Error(res.Err),
		)
	case models.OutcomeCompletionFailed:
		rec.Error = res.Err.Error()
		fields := []zap.Field{zap.Int("seq", res.Seq), zap.Error(res.Err)}
		var se *httpx.StatusError
		if errors.As(res.Err, &se) {
			rec.StatusCode = se.StatusCode
			fields = append(fields, zap.Int("status", se.StatusCode))
		}
		s.log.Error("request failed", fields...)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, rec); err != nil {
			s.log.Warn("history: record request failed", zap.Error(err))
		}
	}
}

// suspend waits until a random instant of the next day.
func (s *Scheduler) suspend(ctx context.Context) error {
	now := s.clock.Now()
	r, err := interval.Fraction(s.rand)
	if err != nil {
		s.log.Warn("random source read failed, using midpoint", zap.Error(err))
		r = 0.5
	}
	resumeAt := NextStart(now, r)
	delay := resumeAt.Sub(now)

	s.mu.Lock()
	s.phase = PhaseSuspended
	s.resumeAt = resumeAt
	st := s.state
	s.mu.Unlock()

	s.log.Info("next run scheduled",
		zap.Int("delay_minutes", int(math.Floor(delay.Minutes()))),
		zap.Time("resume_at", resumeAt),
		zap.Int("requests_made", st.RequestCount),
	)

	if s.recorder != nil {
		if err := s.recorder.EndCycle(ctx, st.CycleID, st.RequestCount, now, resumeAt); err != nil {
			s.log.Warn("history: end cycle failed", zap.Error(err))
		}
		if p, ok := s.recorder.(pruner); ok && s.cfg.Retention > 0 {
			n, err := p.Cleanup(ctx, now.Add(-s.cfg.Retention))
			if err != nil {
				s.log.Warn("history: cleanup failed", zap.Error(err))
			} else if n > 0 {
				s.log.Info("history: pruned old requests", zap.Int64("deleted", n))
			}
		}
	}

	return s.wait(ctx, delay)
}

func (s *Scheduler) telemetryLoop(ctx context.Context) {
	for {
		timer := s.clock.NewTimer(s.cfg.TelemetryPeriod)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.logStats(s.clock.Now())
		}
	}
}

func (s *Scheduler) logStats(now time.Time) {
	snap := s.Snapshot()
	s.log.Info("runtime statistics",
		zap.Int("total_requests", snap.RequestCount),
		zap.Float64("runtime_minutes", round2(snap.Runtime(now).Minutes())),
		zap.Float64("avg_requests_per_hour", round2(snap.RequestsPerHour(now))),
		zap.Int("request_limit", snap.RequestLimit),
		zap.String("phase", string(snap.Phase)),
		zap.String("cycle_id", snap.CycleID),
	)
}

func round2(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return f
	}
	return math.Round(f*100) / 100
}
