package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Reason classifies why a response could not be turned into a record
type Reason string

const (
	ReasonNoPayload      Reason = "no_payload"
	ReasonEmpty          Reason = "empty"
	ReasonSyntax         Reason = "syntax"
	ReasonSchemaMismatch Reason = "schema_mismatch"
	ReasonTransport      Reason = "transport"
	ReasonTimeout        Reason = "timeout"
	ReasonDecode         Reason = "decode"
)

// Failure is the extraction failure condition. Raw holds the untouched model
// response (empty when no response was obtained).
type Failure struct {
	Reason Reason
	Raw    string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure returns err as a *Failure, wrapping foreign errors as transport failures.
func AsFailure(err error, raw string) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Reason: ReasonTransport, Raw: raw, Err: err}
}

// ParsedValue holds a strictly parsed JSON value. Numbers are json.Number.
type ParsedValue struct {
	v any
}

// Object returns the value as a JSON object, if it is one
func (p ParsedValue) Object() (map[string]any, bool) {
	m, ok := p.v.(map[string]any)
	return m, ok
}

// Kind names the JSON type of the value, for diagnostics
func (p ParsedValue) Kind() string {
	switch p.v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "null"
	}
	return "unknown"
}

// Parse strictly decodes a sanitized payload. raw is the untouched response,
// carried on failures for diagnostics. No repair is attempted here.
func Parse(p Payload, raw string) (ParsedValue, error) {
	if !p.Found {
		return ParsedValue{}, &Failure{Reason: ReasonNoPayload, Raw: raw}
	}
	if strings.TrimSpace(p.Text) == "" {
		return ParsedValue{}, &Failure{Reason: ReasonEmpty, Raw: raw}
	}

	dec := json.NewDecoder(strings.NewReader(p.Text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ParsedValue{}, &Failure{Reason: ReasonSyntax, Raw: raw, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return ParsedValue{}, &Failure{Reason: ReasonSyntax, Raw: raw, Err: errors.New("trailing data after JSON value")}
	}
	return ParsedValue{v: v}, nil
}
