package models

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel marks a value the model could not determine
const Sentinel = "NA"

var (
	decimalText = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
	jsonNumber  = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)
)

// Amount is a decimal value or the sentinel. The zero value is the sentinel.
type Amount struct {
	text string
}

// NA returns the sentinel amount
func NA() Amount {
	return Amount{}
}

// IsNA reports whether s is one of the "not available" markers ("na", "n/a"), ignoring case.
func IsNA(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "na", "n/a":
		return true
	}
	return false
}

// ParseAmount reads a decimal from text as a model might print it. A leading
// currency symbol and thousands separators are tolerated. Text that is
// already a valid JSON number is kept verbatim.
func ParseAmount(s string) (Amount, bool) {
	s = strings.TrimSpace(s)
	if jsonNumber.MatchString(s) {
		return Amount{text: s}, true
	}
	s = strings.TrimLeft(s, "$€£₹¥ ")
	s = strings.ReplaceAll(s, ",", "")
	if !decimalText.MatchString(s) {
		return NA(), false
	}
	if jsonNumber.MatchString(s) {
		return Amount{text: s}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return NA(), false
	}
	return AmountFromFloat(f), true
}

// AmountFromFloat formats f with the shortest representation that round-trips.
// Infinities and NaN have no JSON form and become the sentinel.
func AmountFromFloat(f float64) Amount {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return NA()
	}
	return Amount{text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Known reports whether the amount holds a decimal
func (a Amount) Known() bool {
	return a.text != ""
}

// Float64 returns the decimal value when known
func (a Amount) Float64() (float64, bool) {
	if !a.Known() {
		return 0, false
	}
	f, err := strconv.ParseFloat(a.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (a Amount) String() string {
	if !a.Known() {
		return Sentinel
	}
	return a.text
}

// Times multiplies two known amounts in decimal and rounds the product to
// cents, half away from zero. The result is the sentinel when either side is
// unknown or the product is outside the float64 range.
func (a Amount) Times(b Amount) Amount {
	x, ok := a.Float64()
	if !ok {
		return NA()
	}
	y, ok := b.Float64()
	if !ok {
		return NA()
	}
	p := x * y
	if math.IsInf(p, 0) || math.IsNaN(p) {
		return NA()
	}
	if math.Abs(p) < minProduct {
		return Amount{text: "0"}
	}

	dx, err := decimal.NewFromString(a.text)
	if err != nil {
		return NA()
	}
	dy, err := decimal.NewFromString(b.text)
	if err != nil {
		return NA()
	}
	return Amount{text: dx.Mul(dy).Round(2).String()}
}

// minProduct is far below half a cent; smaller products round to zero.
const minProduct = 1e-6

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Known() || !jsonNumber.MatchString(a.text) {
		return json.Marshal(Sentinel)
	}
	return []byte(a.text), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case json.Number:
		*a = Amount{text: t.String()}
	case string:
		*a, _ = ParseAmount(t)
	default:
		*a = NA()
	}
	return nil
}
