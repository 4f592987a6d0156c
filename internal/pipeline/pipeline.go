package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ois-incident-etl/internal/domain"
	"github.com/couchcryptid/ois-incident-etl/internal/observability"
)

// ErrNoRecords is returned when a run extracts nothing; loaders are skipped
// so the previous snapshot stays in place.
var ErrNoRecords = errors.New("source yielded no incident records")

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Fetcher reads the raw dataset.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Transformer converts a parsed record into its storage form.
type Transformer interface {
	Transform(ctx context.Context, rec domain.IncidentRecord) (domain.Incident, error)
}

// BatchLoader writes a full set of incidents to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, incidents []domain.Incident) error
}

// Report describes one completed run.
type Report struct {
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration_ns"`
	Summary   domain.ExtractSummary `json:"summary"`
	Loaded    int                   `json:"loaded"`
}

// Schedule controls when Run repeats. Zero values disable the respective trigger.
type Schedule struct {
	Interval time.Duration
	Trigger  <-chan struct{}
}

// Pipeline orchestrates fetch, extract, transform and load.
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	loaders     []BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	progress    func(done, total int)

	ready atomic.Bool
	mu    sync.RWMutex
	last  *Report
}

// New creates a Pipeline that writes every run to all loaders.
func New(f Fetcher, t Transformer, logger *slog.Logger, metrics *observability.Metrics, loaders ...BatchLoader) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
	}
}

// SetProgress registers a callback invoked after each record is transformed.
func (p *Pipeline) SetProgress(fn func(done, total int)) {
	p.progress = fn
}

// CheckReadiness returns nil once a run has loaded successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no incidents loaded yet")
	}
	return nil
}

// LastReport returns the most recent successful run.
func (p *Pipeline) LastReport() (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

// Run loads once, then again on every schedule tick or trigger until ctx is
// cancelled. Failed runs are retried with exponential backoff; a source with
// no records waits for the next tick or trigger instead.
func (p *Pipeline) Run(ctx context.Context, sched Schedule) error {
	p.logger.Info("pipeline started", "refresh_interval", sched.Interval, "watch", sched.Trigger != nil)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var tick <-chan time.Time
	if sched.Interval > 0 {
		ticker := time.NewTicker(sched.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	trigger := sched.Trigger

	backoff := initialBackoff
	for {
		_, err := p.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case errors.Is(err, ErrNoRecords):
			p.logger.Warn("source has no incident records, keeping previous load")
		case err != nil:
			p.logger.Error("load run failed", "error", err, "retry_in", backoff)
			if !retry.SleepWithContext(ctx, backoff) {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff

		if !waitForNext(ctx, tick, &trigger) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce performs a single fetch-extract-transform-load cycle.
func (p *Pipeline) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{StartedAt: start.UTC()}

	raw, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.metrics.FetchErrors.Inc()
		p.metrics.LoadRuns.WithLabelValues("error").Inc()
		return report, fmt.Errorf("fetch: %w", err)
	}

	records, summary := domain.Extract(raw)
	report.Summary = summary
	p.recordSummary(summary)

	if len(records) == 0 {
		p.metrics.LoadRuns.WithLabelValues("error").Inc()
		return report, ErrNoRecords
	}

	incidents, err := p.transformAll(ctx, records)
	if err != nil {
		p.metrics.LoadRuns.WithLabelValues("error").Inc()
		return report, err
	}

	if err := p.loadAll(ctx, incidents); err != nil {
		p.metrics.LoadRuns.WithLabelValues("error").Inc()
		return report, err
	}

	report.Loaded = len(incidents)
	report.Duration = time.Since(start)

	p.metrics.LoadRuns.WithLabelValues("success").Inc()
	p.metrics.LoadDuration.Observe(report.Duration.Seconds())
	p.metrics.IncidentsStored.Set(float64(report.Loaded))

	p.mu.Lock()
	p.last = &report
	p.mu.Unlock()
	p.ready.Store(true)

	p.logger.Info("load run complete",
		"seen", summary.Seen,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"duplicates", summary.Duplicates,
		"loaded", report.Loaded,
		"duration", report.Duration,
	)
	return report, nil
}

func (p *Pipeline) recordSummary(summary domain.ExtractSummary) {
	p.metrics.RecordsSeen.Add(float64(summary.Seen))
	p.metrics.RecordsAccepted.Add(float64(summary.Accepted))
	for reason, n := range summary.Reasons {
		p.metrics.RecordsRejected.WithLabelValues(string(reason)).Add(float64(n))
	}
	for _, rej := range summary.Rejections {
		p.logger.Debug("record rejected",
			"record", rej.Record,
			"case_number", rej.CaseNumber,
			"reason", rej.Reason,
			"detail", rej.Detail,
		)
	}
}

func (p *Pipeline) transformAll(ctx context.Context, records []domain.IncidentRecord) ([]domain.Incident, error) {
	incidents := make([]domain.Incident, 0, len(records))
	for i, rec := range records {
		inc, err := p.transformer.Transform(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("transform failed, skipping record", "case_number", rec.CaseNumber, "error", err)
			continue
		}
		incidents = append(incidents, inc)
		if p.progress != nil {
			p.progress(i+1, len(records))
		}
	}
	return incidents, nil
}

// loadAll writes to every loader concurrently; the first failure cancels the rest.
func (p *Pipeline) loadAll(ctx context.Context, incidents []domain.Incident) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range p.loaders {
		g.Go(func() error {
			return l.LoadBatch(gctx, incidents)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// waitForNext blocks until the next tick or trigger. A closed trigger is
// dropped. Returns false when ctx is done.
func waitForNext(ctx context.Context, tick <-chan time.Time, trigger *<-chan struct{}) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-tick:
			return true
		case _, ok := <-*trigger:
			if !ok {
				*trigger = nil
				continue
			}
			return true
		}
	}
}
