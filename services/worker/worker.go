package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sjsage522/tenderscraper/helpers"
	"sjsage522/tenderscraper/internal/tenderboard"
	"sjsage522/tenderscraper/logger"
	scrapeerr "sjsage522/tenderscraper/pkg/errors"
	"sjsage522/tenderscraper/services/export"
	"sjsage522/tenderscraper/services/publisher"
)

// PageSource counts and fetches listing pages
type PageSource interface {
	CountPages(ctx context.Context, filter tenderboard.Filter) (int, error)
	FetchPage(ctx context.Context, page int, filter tenderboard.Filter) tenderboard.PageResult
}

// ProgressReporter is told how many pages a run will fetch
type ProgressReporter interface {
	Start(totalPages int)
	Stop()
}

// Options controls a scrape run
type Options struct {
	Filter    tenderboard.Filter
	PageLimit int
	Workers   int
	FailFast  bool
}

// Summary describes a finished run
type Summary struct {
	Pages       int
	Records     int
	EmptyPages  int
	FailedPages int
	Duration    time.Duration
}

// Worker handles the scraping, exporting and publishing process
type Worker struct {
	source    PageSource
	opts      Options
	exporters []export.Exporter
	publisher publisher.Publisher
	logger    helpers.LoggerInterface
	progress  ProgressReporter
}

// NewWorker creates a new worker. pub may be nil.
func NewWorker(
	source PageSource,
	opts Options,
	exporters []export.Exporter,
	pub publisher.Publisher,
	logger helpers.LoggerInterface,
) *Worker {
	return &Worker{
		source:    source,
		opts:      opts,
		exporters: exporters,
		publisher: pub,
		logger:    logger,
	}
}

// SetProgress attaches a progress display to subsequent runs
func (w *Worker) SetProgress(p ProgressReporter) {
	w.progress = p
}

// Start runs the scrape on a cron schedule until ctx is cancelled. A tick
// that arrives while a run is still going is skipped. An empty schedule runs
// once and returns the run's error.
func (w *Worker) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		_, err := w.Run(ctx)
		return err
	}

	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	_, err := c.AddFunc(schedule, func() {
		if _, err := w.Run(ctx); err != nil {
			w.logger.LogError("scheduler", err)
		}
	})
	if err != nil {
		return scrapeerr.NewConfiguration(fmt.Sprintf("invalid schedule %q", schedule), err)
	}

	c.Start()
	logger.ForWorker().Info().Str("schedule", schedule).Msg("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.ForWorker().Info().Msg("Scheduler stopped")
	return nil
}

// cronLogger routes the scheduler's own messages to the worker logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.ForWorker().Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.ForWorker().Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// Run performs one full scrape
func (w *Worker) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	log := logger.ForWorker()

	pages, err := w.pageCount(ctx)
	if err != nil {
		return Summary{}, err
	}
	log.Info().Int("pages", pages).Int("workers", w.opts.Workers).Msg("Starting scrape")

	results, err := w.fetchAll(ctx, pages)
	if err != nil {
		return Summary{Pages: pages, Duration: time.Since(start)}, err
	}

	summary := Summary{Pages: pages}
	var records []tenderboard.Record
	for _, r := range results {
		switch r.Status {
		case tenderboard.PageEmpty:
			summary.EmptyPages++
		case tenderboard.PageFailed:
			summary.FailedPages++
		}
		records = append(records, r.Records...)
	}
	summary.Records = len(records)

	if err := export.Run(ctx, w.exporters, records); err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}

	w.publish(ctx, records)

	summary.Duration = time.Since(start)
	w.logger.LogInfo("Scrape finished: %d pages, %d records, %d empty, %d failed in %s",
		summary.Pages, summary.Records, summary.EmptyPages, summary.FailedPages, summary.Duration)
	return summary, nil
}

func (w *Worker) pageCount(ctx context.Context) (int, error) {
	if w.opts.PageLimit > 0 {
		return w.opts.PageLimit, nil
	}
	return w.source.CountPages(ctx, w.opts.Filter)
}

// fetchAll fetches pages 1..pages in order. With FailFast, the first
// exhausted retry cancels the outstanding pages and is returned.
func (w *Worker) fetchAll(ctx context.Context, pages int) ([]tenderboard.PageResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.progress != nil {
		w.progress.Start(pages)
		defer w.progress.Stop()
	}

	var (
		once     sync.Once
		abortErr error
	)

	pool := NewPool[tenderboard.PageResult](w.opts.Workers)
	results, _, err := pool.Run(runCtx, pages, func(ctx context.Context, job int) tenderboard.PageResult {
		page := job + 1
		result := w.source.FetchPage(ctx, page, w.opts.Filter)
		if result.Status != tenderboard.PageFailed {
			return result
		}

		if ctx.Err() != nil && errors.Is(result.Err, ctx.Err()) {
			return result
		}
		w.logger.LogError(fmt.Sprintf("page %d", page), result.Err)
		if w.opts.FailFast && scrapeerr.IsTransient(result.Err) {
			once.Do(func() {
				abortErr = result.Err
				cancel()
			})
		}
		return result
	})

	if abortErr != nil {
		return nil, abortErr
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// publish sends every record to the publisher, if any, then trims its streams
func (w *Worker) publish(ctx context.Context, records []tenderboard.Record) {
	if w.publisher == nil || len(records) == 0 {
		return
	}

	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			w.logger.LogError("publisher", err)
			continue
		}
		if err := w.publisher.Publish(ctx, publisher.RecordKey, data); err != nil {
			w.logger.LogError("publisher", err)
			continue
		}
		if i == 0 {
			logger.ForPublisher().Debug().RawJSON("tender", data).Msg("Published first tender")
		}
	}

	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.logger.LogError("publisher", err)
	}
}
