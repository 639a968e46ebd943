// Package scheduler drives ingestion cycles on a fixed cadence.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ekaracan/newspulse/app/ingest"
	"github.com/ekaracan/newspulse/app/sources"
)

const sourceTimeout = 5 * time.Minute

// Ingestor runs the pipeline for one source.
type Ingestor interface {
	IngestSource(ctx context.Context, source *sources.Source) (ingest.Result, error)
}

// SourceLoader supplies the current source descriptors. Reloading at
// the start of every cycle means descriptor edits take effect on the
// next tick without a restart.
type SourceLoader interface {
	LoadAll() ([]*sources.Source, error)
}

var _ SourceLoader = (*sources.Loader)(nil)

// Scheduler runs one ingestion cycle at a time. Within a cycle sources
// are processed sequentially with a pacing delay between them, bounding
// concurrent load on the AI dependency and the story store.
type Scheduler struct {
	ingestor    Ingestor
	loader      SourceLoader
	interval    time.Duration
	sourceDelay time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	trigger chan struct{}
}

func NewScheduler(ingestor Ingestor, loader SourceLoader, interval, sourceDelay time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		ingestor:    ingestor,
		loader:      loader,
		interval:    interval,
		sourceDelay: sourceDelay,
		ctx:         ctx,
		cancel:      cancel,
		trigger:     make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunCycle(s.ctx)

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.RunCycle(s.ctx)
			case <-s.trigger:
				s.RunCycle(s.ctx)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// TriggerNow requests one extra cycle. Non-blocking; a cycle already
// pending makes this a no-op.
func (s *Scheduler) TriggerNow() error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("ingestion cycle already pending")
	}
}

// RunCycle processes every active source serially. A single source's
// failure never stops the loop over the remaining sources.
func (s *Scheduler) RunCycle(ctx context.Context) ingest.Result {
	started := time.Now()
	var totals ingest.Result
	attempted := 0
	failed := 0

	srcs, err := s.loader.LoadAll()
	if err != nil {
		slog.Error("Failed to load source descriptors, skipping cycle", "error", err)
		return totals
	}

	for _, source := range srcs {
		select {
		case <-ctx.Done():
			slog.Debug("Ingestion cycle cancelled", "completed_sources", attempted)
			return totals
		default:
		}

		if !source.Enabled {
			slog.Debug("Source disabled, skipping", "source", source.ID)
			continue
		}
		if source.FeedURL == "" {
			slog.Debug("Source has no feed URL, skipping", "source", source.ID)
			continue
		}

		if attempted > 0 {
			// Pacing between sources keeps outbound requests from bursting.
			select {
			case <-ctx.Done():
				return totals
			case <-time.After(s.sourceDelay):
			}
		}
		attempted++

		sourceCtx, cancel := context.WithTimeout(ctx, sourceTimeout)
		result, err := s.ingestor.IngestSource(sourceCtx, source)
		cancel()

		if err != nil {
			failed++
			slog.Error("Source ingestion failed", "source", source.ID, "error", err)
			continue
		}

		totals.Add(result)
		slog.Debug("Source ingested", "source", source.ID,
			"processed", result.Processed, "duplicates", result.Duplicates, "filtered", result.Filtered)
	}

	slog.Info("Ingestion cycle completed",
		"duration", time.Since(started).Round(time.Millisecond),
		"sources", attempted,
		"failed", failed,
		"processed", totals.Processed,
		"duplicates", totals.Duplicates,
		"filtered", totals.Filtered)

	return totals
}
