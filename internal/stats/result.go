package stats

import (
	"math"
	"strconv"
	"strings"
)

// Unavailable is the rendered form of a result with nothing to show.
const Unavailable = "N/A"

// ResultKind identifies which field of a Result is meaningful.
type ResultKind int

const (
	KindUnavailable ResultKind = iota
	KindInteger
	KindPercent
)

// Result is a resolved stat value.
type Result struct {
	Kind    ResultKind
	Int     int
	Percent float64
}

// NoResult returns the unavailable sentinel.
func NoResult() Result {
	return Result{Kind: KindUnavailable}
}

// IntResult wraps an integer result.
func IntResult(v int) Result {
	return Result{Kind: KindInteger, Int: v}
}

// PercentResult wraps a percentage result.
func PercentResult(v float64) Result {
	return Result{Kind: KindPercent, Percent: v}
}

// Available reports whether the result carries a value.
func (r Result) Available() bool {
	return r.Kind != KindUnavailable
}

// Float returns the numeric value, or false for the sentinel.
func (r Result) Float() (float64, bool) {
	switch r.Kind {
	case KindInteger:
		return float64(r.Int), true
	case KindPercent:
		return r.Percent, true
	default:
		return 0, false
	}
}

// String renders the result for display: "165", "13%", or "N/A".
func (r Result) String() string {
	switch r.Kind {
	case KindInteger:
		return strconv.Itoa(r.Int)
	case KindPercent:
		return formatNumber(r.Percent) + "%"
	default:
		return Unavailable
	}
}

// number is a parsed base value. An empty string is not zero.
type number struct {
	value float64
	valid bool
}

// parseBaseValue parses a character-side value such as "250" or "10%".
func parseBaseValue(raw string) number {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return number{}
	}
	return number{value: v, valid: true}
}

// truncate converts v to an int toward zero. It reports false when the
// result is outside the int range.
func truncate(v float64) (int, bool) {
	t := math.Trunc(v)
	if math.IsNaN(t) || t < float64(math.MinInt) || t >= -float64(math.MinInt) {
		return 0, false
	}
	return int(t), true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
