package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"planner/internal/logging"
	"planner/internal/metrics"
	"planner/internal/series"
)

// passTimeout bounds the persistence calls of a background pass.
const passTimeout = 2 * time.Minute

// GenerationService runs generation passes against the database, either on
// demand or in the background.
type GenerationService struct {
	scheduler *series.Scheduler
	source    series.Source
	sink      series.Sink
	recorder  metrics.Recorder
	log       zerolog.Logger

	wg    sync.WaitGroup
	mu    sync.Mutex
	timer *time.Timer
}

func NewGenerationService(scheduler *series.Scheduler, source series.Source, sink series.Sink, recorder metrics.Recorder, log zerolog.Logger) *GenerationService {
	if recorder == nil {
		recorder = metrics.NewMemory()
	}
	return &GenerationService{
		scheduler: scheduler,
		source:    source,
		sink:      sink,
		recorder:  recorder,
		log:       log,
	}
}

// RunNow executes a pass synchronously. An overlapping call returns a report
// with Dropped set.
func (g *GenerationService) RunNow(ctx context.Context) (series.Report, error) {
	report, err := g.scheduler.Run(ctx, g.source, g.sink)
	if err != nil {
		g.log.Error().Err(err).Msg("generation pass failed")
		return report, err
	}

	if recErr := g.recorder.RecordPass(ctx, report); recErr != nil {
		g.log.Warn().Err(recErr).Msg("record generation metrics")
	}

	if report.Dropped {
		g.log.Debug().Msg("generation pass dropped, another one is running")
		return report, nil
	}
	g.log.Info().
		Int("series", report.SeriesTotal).
		Int("due", report.SeriesDue).
		Int("created", report.Created).
		Dur("took", report.Duration).
		Msg("generation pass finished")
	return report, nil
}

// Trigger starts a pass in the background.
func (g *GenerationService) Trigger() {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
		defer cancel()
		_, _ = g.RunNow(ctx)
	}()
}

// Start schedules the first pass after delay and then one every interval.
func (g *GenerationService) Start(cron *SchedulerService, interval, delay time.Duration) error {
	if interval <= 0 {
		return errors.New("generation interval must be positive")
	}
	if _, err := cron.ScheduleInterval(interval, g.Trigger); err != nil {
		return err
	}

	g.mu.Lock()
	g.timer = time.AfterFunc(delay, g.Trigger)
	g.mu.Unlock()

	g.log.Info().
		Dur("interval", interval).
		Dur("delay", delay).
		Msg("generation scheduled")
	return nil
}

// Stats returns the recorded pass statistics.
func (g *GenerationService) Stats(ctx context.Context) (metrics.Stats, error) {
	return g.recorder.Stats(ctx)
}

// State exposes the scheduler state for health checks.
func (g *GenerationService) State() (series.State, bool) {
	return g.scheduler.State(), g.scheduler.HasRun()
}

// Stop cancels the pending initial pass and waits for running ones.
func (g *GenerationService) Stop() {
	start := time.Now()
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
	}
	g.mu.Unlock()
	g.wg.Wait()
	g.log.Debug().Dur("waited", logging.Since(start)).Msg("generation stopped")
}
