// Package receipts runs one receipt image through preparation, the vision
// model and the extraction pipeline.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/models"
	"receipt-scan/pkg/services/extraction"
	"receipt-scan/pkg/services/ocr"
	"receipt-scan/pkg/services/vlm"
)

// Source is one image to analyze
type Source struct {
	ID   int
	Path string
	Open func() (io.ReadCloser, error)
}

// FileSource reads the image from disk
func FileSource(id int, path string) Source {
	return Source{
		ID:   id,
		Path: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// ImageService prepares images and optionally reads their printed text
type ImageService interface {
	Prepare(r io.Reader) (vlm.Image, error)
	TextEnabled() bool
	ExtractText(ctx context.Context, img vlm.Image) ([]models.TextLine, error)
}

// Options tune an Analyzer
type Options struct {
	Prompt  string
	Timeout time.Duration
}

// Analyzer turns receipt images into records. It is safe for concurrent use
// as long as its caller is.
type Analyzer struct {
	images   ImageService
	caller   vlm.Caller
	pipeline *extraction.Pipeline
	opts     Options
	log      logrus.FieldLogger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(images ImageService, caller vlm.Caller, pipeline *extraction.Pipeline, opts Options, log logrus.FieldLogger) *Analyzer {
	if pipeline == nil {
		pipeline = extraction.NewPipeline(nil)
	}
	if opts.Prompt == "" {
		opts.Prompt = vlm.StandardPrompt
	}
	return &Analyzer{images: images, caller: caller, pipeline: pipeline, opts: opts, log: log}
}

// Analyze always returns a usable record; failures end in the fallback record.
func (a *Analyzer) Analyze(ctx context.Context, src Source) extraction.Outcome {
	meta := extraction.Meta{ReceiptID: src.ID, ImagePath: src.Path}
	log := a.log.WithFields(logrus.Fields{
		"receipt_id": src.ID,
		"image":      src.Path,
		"provider":   a.caller.Name(),
	})

	img, err := a.load(src)
	if err != nil {
		return a.fail(log, &extraction.Failure{Reason: extraction.ReasonDecode, Err: err}, meta)
	}

	prompt := a.opts.Prompt
	if a.images.TextEnabled() {
		lines, err := a.images.ExtractText(ctx, img)
		if err != nil {
			log.WithError(err).Warn("ocr hint unavailable")
		} else {
			prompt = vlm.WithHint(prompt, ocr.Lines(lines))
		}
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if a.opts.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
	}
	raw, err := a.caller.Describe(callCtx, img, prompt)
	cancel()
	if err != nil {
		reason := extraction.ReasonTransport
		if errors.Is(err, context.DeadlineExceeded) {
			reason = extraction.ReasonTimeout
		}
		return a.fail(log, &extraction.Failure{Reason: reason, Err: err}, meta)
	}

	out := a.pipeline.Process(raw, meta)
	if out.Degraded() {
		log.WithField("reason", out.Failure.Reason).Warn("could not extract receipt from model response")
		return out
	}
	log.WithField("items", out.Record.NumberOfItems).Info("receipt analyzed")
	return out
}

func (a *Analyzer) load(src Source) (vlm.Image, error) {
	if src.Open == nil {
		return vlm.Image{}, fmt.Errorf("no image for receipt %d", src.ID)
	}
	rc, err := src.Open()
	if err != nil {
		return vlm.Image{}, err
	}
	defer rc.Close()
	return a.images.Prepare(rc)
}

func (a *Analyzer) fail(log logrus.FieldLogger, f *extraction.Failure, meta extraction.Meta) extraction.Outcome {
	log.WithField("reason", f.Reason).WithError(f.Err).Warn("receipt analysis failed")
	return a.pipeline.Fail(f, meta)
}
