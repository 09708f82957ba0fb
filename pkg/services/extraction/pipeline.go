// Package extraction turns free-text vision model responses into receipt
// records, falling back to an all-sentinel record when nothing usable is found.
package extraction

import "receipt-scan/pkg/models"

// State is a step of the per-image extraction state machine
type State string

const (
	StateStart      State = "START"
	StateSanitized  State = "SANITIZED"
	StateParsed     State = "PARSED"
	StateNormalized State = "NORMALIZED"
	StateFailed     State = "FAILED"
	StateFallback   State = "FALLBACK"
)

// Meta identifies the image a record was extracted from
type Meta struct {
	ReceiptID int
	ImagePath string
}

// Outcome is the single result of one extraction. Record is always usable;
// Failure is set only on the fallback path. Path lists the states visited.
type Outcome struct {
	Record  models.ReceiptRecord
	State   State
	Failure *Failure
	Path    []State
}

// Degraded reports whether the record came from the fallback builder
func (o Outcome) Degraded() bool {
	return o.State == StateFallback
}

// Fallback builds the all-sentinel record kept when extraction fails. The raw
// response is stored untouched for manual review.
func Fallback(raw string, meta Meta) models.ReceiptRecord {
	na := models.NA()
	return models.ReceiptRecord{
		ReceiptID:           meta.ReceiptID,
		ImagePath:           meta.ImagePath,
		NameOfEstablishment: models.Sentinel,
		Currency:            models.Sentinel,
		Items:               []models.LineItem{},
		NumberOfItems:       0,
		Subtotal:            na,
		Tax:                 na,
		Tip:                 na,
		AdditionalCharges:   na,
		Total:               na,
		Success:             false,
		RawResponse:         raw,
	}
}

// Pipeline runs sanitize, parse, normalize and fallback over model responses.
// It holds no per-call state and is safe for concurrent use.
type Pipeline struct {
	sanitizer *Sanitizer
}

// NewPipeline creates a pipeline using the given sanitizer
func NewPipeline(s *Sanitizer) *Pipeline {
	if s == nil {
		s = NewSanitizer(StrategyAuto, false)
	}
	return &Pipeline{sanitizer: s}
}

// Process turns one raw model response into a record.
func (p *Pipeline) Process(raw string, meta Meta) Outcome {
	path := []State{StateStart}

	payload := p.sanitizer.Sanitize(raw)
	path = append(path, StateSanitized)

	parsed, err := Parse(payload, raw)
	if err != nil {
		return fallback(AsFailure(err, raw), meta, path)
	}
	path = append(path, StateParsed)

	obj, ok := parsed.Object()
	if !ok {
		return fallback(&Failure{Reason: ReasonSchemaMismatch, Raw: raw}, meta, path)
	}

	rec := Normalize(obj)
	rec.ReceiptID = meta.ReceiptID
	rec.ImagePath = meta.ImagePath
	return Outcome{Record: rec, State: StateNormalized, Path: append(path, StateNormalized)}
}

// Fail routes a failure to the fallback builder. Callers use it directly for
// failures that happen before a response exists (decode, transport, timeout).
func (p *Pipeline) Fail(f *Failure, meta Meta) Outcome {
	return fallback(f, meta, []State{StateStart})
}

func fallback(f *Failure, meta Meta, path []State) Outcome {
	return Outcome{
		Record:  Fallback(f.Raw, meta),
		State:   StateFallback,
		Failure: f,
		Path:    append(path, StateFailed, StateFallback),
	}
}
