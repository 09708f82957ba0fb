package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"receipt-scan/pkg/models"
	"receipt-scan/pkg/services/vlm"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// Options configures image preparation and the optional OCR hint
type Options struct {
	Endpoint     string
	APIKey       string
	MaxDimension int
	Enhance      bool
}

// Service prepares receipt photos for the vision model and, when Azure
// credentials are configured, reads printed text from them.
type Service struct {
	client       *computervision.BaseClient
	maxDimension int
	enhance      bool
}

// NewService creates a new OCR service
func NewService(opts Options) *Service {
	s := &Service{maxDimension: opts.MaxDimension, enhance: opts.Enhance}
	if opts.Endpoint != "" && opts.APIKey != "" {
		client := computervision.New(opts.Endpoint)
		client.Authorizer = autorest.NewCognitiveServicesAuthorizer(opts.APIKey)
		s.client = &client
	}
	return s
}

// TextEnabled reports whether ExtractText can reach Azure
func (s *Service) TextEnabled() bool {
	return s.client != nil
}

// ExtractText performs OCR on a prepared image and returns the recognized lines
func (s *Service) ExtractText(ctx context.Context, img vlm.Image) ([]models.TextLine, error) {
	if s.client == nil {
		return nil, fmt.Errorf("ocr is not configured")
	}

	result, err := s.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(img.Data)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	return extractTextFromOCRResult(result), nil
}

// Lines returns the text of each line, in reading order
func Lines(lines []models.TextLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Text != "" {
			out = append(out, l.Text)
		}
	}
	return out
}

// extractTextFromOCRResult extracts text lines with position information from OCR result
func extractTextFromOCRResult(result computervision.OcrResult) []models.TextLine {
	var textLines []models.TextLine
	if result.Regions == nil {
		return textLines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			var lineText strings.Builder
			var boundingBox []int

			// "x,y,width,height"
			if line.BoundingBox != nil {
				for _, part := range strings.Split(*line.BoundingBox, ",") {
					val, _ := strconv.Atoi(strings.TrimSpace(part))
					boundingBox = append(boundingBox, val)
				}
			}

			if line.Words != nil {
				for _, word := range *line.Words {
					if word.Text == nil {
						continue
					}
					lineText.WriteString(*word.Text)
					lineText.WriteString(" ")
				}
			}

			if len(boundingBox) >= 4 {
				textLines = append(textLines, models.TextLine{
					Text:   strings.TrimSpace(lineText.String()),
					X:      boundingBox[0],
					Y:      boundingBox[1],
					Width:  boundingBox[2],
					Height: boundingBox[3],
				})
			}
		}
	}
	return textLines
}
