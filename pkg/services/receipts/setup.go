package receipts

import (
	"context"

	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/config"
	"receipt-scan/pkg/services/extraction"
	"receipt-scan/pkg/services/ocr"
	"receipt-scan/pkg/services/vlm"
)

// NewFromConfig wires an Analyzer from validated configuration
func NewFromConfig(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Analyzer, error) {
	caller, err := vlm.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	prompt, err := vlm.Prompt(cfg.Prompt)
	if err != nil {
		return nil, err
	}
	strategy, err := extraction.ParseStrategy(cfg.SanitizeStrategy)
	if err != nil {
		return nil, err
	}

	images := ocr.NewService(ocr.Options{
		Endpoint:     cfg.AzureOCREndpoint,
		APIKey:       cfg.AzureOCRKey,
		MaxDimension: cfg.MaxImageDimension,
		Enhance:      cfg.EnhanceImage,
	})
	pipeline := extraction.NewPipeline(extraction.NewSanitizer(strategy, cfg.RepairJSON))
	return NewAnalyzer(images, caller, pipeline, Options{Prompt: prompt, Timeout: cfg.RequestTimeout}, log), nil
}

// Provider names the model backend in use
func (a *Analyzer) Provider() string {
	return a.caller.Name()
}
