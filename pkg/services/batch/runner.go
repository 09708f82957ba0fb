// Package batch analyzes directories of receipt images: one-shot runs, a
// directory watcher, output sinks and a clean-up tool for saved responses.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/models"
	"receipt-scan/pkg/services/extraction"
	"receipt-scan/pkg/services/receipts"
)

// Analyzer turns one image into an outcome
type Analyzer interface {
	Analyze(ctx context.Context, src receipts.Source) extraction.Outcome
}

// Report summarizes a run. Records are in input order.
type Report struct {
	Records   []models.ReceiptRecord
	Processed int
	Succeeded int
	Fallbacks int
	Elapsed   time.Duration
}

// Runner analyzes a list of images with a fixed pool of workers
type Runner struct {
	analyzer Analyzer
	workers  int
	log      logrus.FieldLogger
	onRecord func(path string, rec models.ReceiptRecord) error
}

// NewRunner creates a runner. workers < 1 is treated as 1.
func NewRunner(analyzer Analyzer, workers int, log logrus.FieldLogger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{analyzer: analyzer, workers: workers, log: log}
}

// OnRecord registers a sink called after each image, from the worker that
// analyzed it. Sink errors are logged and do not stop the run.
func (r *Runner) OnRecord(fn func(path string, rec models.ReceiptRecord) error) {
	r.onRecord = fn
}

type job struct {
	index int
	path  string
}

// Run analyzes paths, numbering receipts 1..N in input order. When ctx is
// cancelled, images not yet started are skipped and left out of the report.
func (r *Runner) Run(ctx context.Context, paths []string) Report {
	start := time.Now()
	total := len(paths)
	outcomes := make([]*extraction.Outcome, total)

	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					continue
				}
				out := r.process(ctx, j, total)
				outcomes[j.index] = &out
			}
		}()
	}

feed:
	for i, p := range paths {
		select {
		case jobs <- job{index: i, path: p}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report := Report{Records: make([]models.ReceiptRecord, 0, total)}
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		report.Records = append(report.Records, out.Record)
		report.Processed++
		if out.Degraded() {
			report.Fallbacks++
		} else {
			report.Succeeded++
		}
	}
	report.Elapsed = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"processed": report.Processed,
		"succeeded": report.Succeeded,
		"fallbacks": report.Fallbacks,
		"skipped":   total - report.Processed,
		"elapsed":   report.Elapsed.Round(time.Millisecond).String(),
	}).Info("batch complete")
	return report
}

func (r *Runner) process(ctx context.Context, j job, total int) extraction.Outcome {
	id := j.index + 1
	r.log.WithFields(logrus.Fields{"receipt_id": id, "image": j.path}).
		Infof("processing receipt %d/%d", id, total)

	out := r.analyzer.Analyze(ctx, receipts.FileSource(id, j.path))
	if r.onRecord != nil {
		if err := r.onRecord(j.path, out.Record); err != nil {
			r.log.WithField("image", j.path).WithError(err).Error("failed to write record")
		}
	}
	return out
}
