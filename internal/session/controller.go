// Package session owns the lifetime of one ranking run over a chosen
// snippet subset: start, in-flight comparison handoff to the UI,
// completion, and restart. Every sort run carries a monotonically
// increasing generation; a resolution tagged with a superseded
// generation is discarded without touching the current run.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/seizurelab/eegrank/internal/domain"
	"github.com/seizurelab/eegrank/internal/ports"
	"github.com/seizurelab/eegrank/internal/ranking"
)

// State is the session lifecycle phase.
type State string

// Session states. Failed is terminal for the current run; a restart
// from any state returns to Loading with a fresh generation.
const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// DefaultSubsetSize caps how many snippets one session ranks.
const DefaultSubsetSize = 10

// persistTimeout bounds the fire-and-forget comparison log write.
const persistTimeout = 5 * time.Second

// PendingComparison is the comparison currently exposed to the rater,
// with the full payloads the rendering surface needs and the generation
// a resolution must echo back.
type PendingComparison struct {
	Generation uint64         `json:"generation"`
	Pair       domain.Pair    `json:"pair"`
	Left       domain.Snippet `json:"left"`
	Right      domain.Snippet `json:"right"`
}

// Progress is the controller's externally visible snapshot.
type Progress struct {
	SessionID      string         `json:"session_id"`
	State          State          `json:"state"`
	Generation     uint64         `json:"generation"`
	SubsetSize     int            `json:"subset_size"`
	Comparisons    int            `json:"comparisons"`
	EstimatedTotal int            `json:"estimated_total"`
	Percent        int            `json:"percent"`
	Pending        *domain.Pair   `json:"pending,omitempty"`
	Ranking        domain.Ranking `json:"ranking,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithSubsetSize overrides the subset cap (default 10).
func WithSubsetSize(n int) Option {
	return func(c *Controller) { c.subsetSize = n }
}

// WithRater sets the rater name attached to persisted comparisons.
func WithRater(name string) Option {
	return func(c *Controller) { c.rater = name }
}

// WithMetrics installs a metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger installs a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRand fixes the subset-selection source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// Controller owns zero or one active sort run plus the subset it
// operates over. All mutation happens under one mutex; the engine
// itself is never shared.
type Controller struct {
	store   ports.SnippetStore
	log     ports.ComparisonLog
	metrics ports.MetricsCollector
	logger  *slog.Logger
	tracer  trace.Tracer

	subsetSize int
	rater      string
	rng        *rand.Rand

	mu         sync.Mutex
	state      State
	generation uint64
	sessionID  string
	subset     []domain.Snippet
	run        *ranking.Run
	lastErr    error
}

// NewController creates an idle controller over the given snippet pool
// and comparison log.
func NewController(store ports.SnippetStore, log ports.ComparisonLog, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		log:        log,
		metrics:    ports.NopMetrics{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("session"),
		subsetSize: DefaultSubsetSize,
		rater:      "anonymous",
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a fresh session: it bumps the generation, discards any
// current sort run and its cache, selects a bounded random subset of
// the pool, fetches full snippet data, and constructs a new run. A
// pool or fetch failure is terminal for the session.
func (c *Controller) Start(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Session.Start")
	defer span.End()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state = StateLoading
	c.sessionID = uuid.NewString()
	c.run = nil
	c.subset = nil
	c.lastErr = nil
	c.mu.Unlock()

	span.SetAttributes(attribute.Int64("session.generation", int64(gen)))
	c.metrics.RecordCounter("sessions_started_total", 1, nil)

	subset, err := c.loadSubset(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subset load failed")
		c.fail(gen, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// A restart overtook this load; its snippets belong to a
		// superseded generation.
		return domain.ErrStaleResolution
	}
	run, err := ranking.NewRun(subset, ranking.NewCache())
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
		return err
	}
	c.subset = subset
	c.run = run
	c.state = StateActive
	if run.Done() {
		c.state = StateCompleted
	}
	c.logger.Info("session started",
		"session_id", c.sessionID,
		"generation", gen,
		"subset_size", len(subset))
	return nil
}

// Restart discards the current sort run and begins a new session over
// a freshly chosen subset. Allowed from any state.
func (c *Controller) Restart(ctx context.Context) error { return c.Start(ctx) }

// loadSubset selects up to subsetSize random snippets and fetches
// their full payloads concurrently.
func (c *Controller) loadSubset(ctx context.Context) ([]domain.Snippet, error) {
	summaries, err := c.store.ListSnippets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	if len(summaries) < 2 {
		return nil, fmt.Errorf("%w: pool has %d snippets", domain.ErrTooFewItems, len(summaries))
	}

	c.mu.Lock()
	c.rng.Shuffle(len(summaries), func(i, j int) {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	})
	size := c.subsetSize
	c.mu.Unlock()
	if size > len(summaries) {
		size = len(summaries)
	}
	picked := summaries[:size]

	subset := make([]domain.Snippet, len(picked))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range picked {
		g.Go(func() error {
			snip, err := c.store.GetSnippet(gctx, s.ID)
			if err != nil {
				return fmt.Errorf("fetch snippet %s: %w", s.ID, err)
			}
			subset[i] = snip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return subset, nil
}

// fail marks the session failed unless a restart has already moved on.
func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.state = StateFailed
	c.lastErr = err
	c.logger.Error("session failed", "generation", gen, "error", err)
}

// Pending returns the comparison awaiting a human decision, if any.
func (c *Controller) Pending() (PendingComparison, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil || c.state != StateActive {
		return PendingComparison{}, false
	}
	pair, ok := c.run.Pending()
	if !ok {
		return PendingComparison{}, false
	}
	pc := PendingComparison{Generation: c.generation, Pair: pair}
	for _, s := range c.subset {
		switch s.ID {
		case pair.Left:
			pc.Left = s
		case pair.Right:
			pc.Right = s
		}
	}
	return pc, true
}

// Resolve feeds a human verdict back into the engine. The generation
// must match the current run; a stale resolution is discarded without
// touching the current run's state and reported with
// domain.ErrStaleResolution so callers can acknowledge rather than
// retry. On success the comparison is forwarded to the durable log
// fire-and-forget.
func (c *Controller) Resolve(ctx context.Context, gen uint64, v domain.Verdict) error {
	_, span := c.tracer.Start(ctx, "Session.Resolve",
		trace.WithAttributes(attribute.Int64("session.generation", int64(gen))))
	defer span.End()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.metrics.RecordCounter("stale_resolutions_total", 1, nil)
		c.logger.Debug("discarding stale resolution",
			"resolution_generation", gen)
		span.AddEvent("resolution.stale")
		return domain.ErrStaleResolution
	}
	if c.run == nil || c.state != StateActive {
		c.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	pair, ok := c.run.Pending()
	if !ok {
		c.mu.Unlock()
		return domain.ErrNoPendingComparison
	}
	if err := c.run.Resolve(v); err != nil {
		c.mu.Unlock()
		span.RecordError(err)
		return err
	}
	made := c.run.Comparisons()
	done := c.run.Done()
	if done {
		c.state = StateCompleted
	}
	rater := c.rater
	c.mu.Unlock()

	c.metrics.RecordCounter("comparisons_resolved_total", 1, map[string]string{"verdict": v.String()})
	span.AddEvent("comparison.resolved", trace.WithAttributes(
		attribute.String("verdict", v.String()),
		attribute.Int("comparisons", made)))
	if done {
		c.metrics.RecordCounter("sessions_completed_total", 1, nil)
		span.AddEvent("session.completed")
	}

	// Fire-and-forget: a log failure must never block or desync the run.
	comparison := domain.NewComparison(pair, v, rater)
	go c.persist(comparison)

	return nil
}

func (c *Controller) persist(comparison domain.Comparison) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.log.RecordComparison(ctx, comparison); err != nil {
		c.metrics.RecordCounter("comparison_log_failures_total", 1, nil)
		c.logger.Error("comparison log write failed",
			"snippet_a", comparison.SnippetA,
			"snippet_b", comparison.SnippetB,
			"error", err)
	}
}

// RunWithOracle drives the session to completion using an automated
// comparator. The human handoff is bypassed: each pending pair is
// submitted to the oracle and its verdict resolved in turn, still one
// comparison at a time.
func (c *Controller) RunWithOracle(ctx context.Context, oracle ports.Oracle) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pc, ok := c.Pending()
		if !ok {
			c.mu.Lock()
			state, err := c.state, c.lastErr
			c.mu.Unlock()
			if state == StateCompleted {
				return nil
			}
			if err != nil {
				return err
			}
			return domain.ErrSessionNotActive
		}
		v, err := oracle.Compare(ctx, pc.Left, pc.Right)
		if err != nil {
			return fmt.Errorf("oracle comparison: %w", err)
		}
		if err := c.Resolve(ctx, pc.Generation, v); err != nil {
			return err
		}
	}
}

// Snapshot reports the controller's externally visible state: counts,
// estimate, clamped percent, the pending pair, and the ranking once
// complete.
func (c *Controller) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := Progress{
		SessionID:  c.sessionID,
		State:      c.state,
		Generation: c.generation,
		SubsetSize: len(c.subset),
	}
	if p.State == "" {
		p.State = StateIdle
	}
	if c.lastErr != nil {
		p.Error = c.lastErr.Error()
	}
	if c.run == nil {
		return p
	}

	p.Comparisons = c.run.Comparisons()
	p.EstimatedTotal = ranking.EstimatedTotal(len(c.subset))
	p.Percent = ranking.ProgressPercent(p.Comparisons, p.EstimatedTotal, c.run.Done())
	if pair, ok := c.run.Pending(); ok && c.state == StateActive {
		p.Pending = &pair
	}
	if result, ok := c.run.Result(); ok {
		p.Ranking = result
	}
	return p
}
