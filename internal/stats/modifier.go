package stats

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a malformed item modifier string.
type ParseError struct {
	Input   string
	Segment string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("modifier %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("modifier %q: segment %q: %s", e.Input, e.Segment, e.Reason)
}

// AdditiveModifier is the typed form of an additive stat's item modifier,
// e.g. "50+20+10%" is {Base: 50, Flat: 20, Percent: 0.10}.
type AdditiveModifier struct {
	Base       float64
	Flat       float64
	Percent    float64 // fraction, 0.10 for "10%"
	HasPercent bool
}

// Apply combines the modifier with a character base value. Flat contributions
// are summed first and the percentage multiplies the total; the result is
// truncated toward zero. It reports false when the result does not fit in an int.
func (m AdditiveModifier) Apply(base float64) (int, bool) {
	total := base + m.Base + m.Flat
	return truncate(total + total*m.Percent)
}

// ParseAdditiveModifier parses "+N", "N+M", "N+P%", "N+M+P%" and similar.
// Any segment with a % is the percentage bonus; otherwise segment 0 is the base
// bonus and segments 1 and 2 are the flat bonus (2 overwrites 1). Later
// non-percent segments are ignored. A string with no segment at all, such
// as "+", is a ParseError.
func ParseAdditiveModifier(s string) (AdditiveModifier, error) {
	var m AdditiveModifier
	found := false
	for i, part := range splitSegments(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found = true
		if strings.Contains(part, "%") {
			v, err := parseSegment(strings.ReplaceAll(part, "%", ""))
			if err != nil {
				return AdditiveModifier{}, &ParseError{Input: s, Segment: part, Reason: err.Error()}
			}
			m.Percent = v / 100
			m.HasPercent = true
			continue
		}
		if i > 2 {
			continue
		}
		v, err := parseSegment(part)
		if err != nil {
			return AdditiveModifier{}, &ParseError{Input: s, Segment: part, Reason: err.Error()}
		}
		if i == 0 {
			m.Base = v
		} else {
			m.Flat = v
		}
	}
	if !found {
		return AdditiveModifier{}, &ParseError{Input: s, Reason: "no value"}
	}
	return m, nil
}

// percentTermPattern matches the first number-percent pair in a term, e.g. "12.5%"
var percentTermPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// ParsePercentTerms parses a percentage stat's modifier such as "+5%-2%" into
// its signed terms [5, -2]. Terms without a number-percent pair are skipped.
func ParsePercentTerms(s string) ([]float64, error) {
	normalized := strings.ReplaceAll(s, "+-", "-")
	normalized = strings.TrimPrefix(normalized, "+")

	var values []float64
	for _, term := range splitPercentTerms(normalized) {
		if term == "" {
			continue
		}
		loc := percentTermPattern.FindStringSubmatchIndex(term)
		if loc == nil {
			continue
		}
		v, err := strconv.ParseFloat(term[loc[2]:loc[3]], 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, &ParseError{Input: s, Segment: term, Reason: "percentage out of range"}
		}
		if loc[0] > 0 && term[loc[0]-1] == '-' {
			v = -v
		}
		values = append(values, v)
	}
	return values, nil
}

// splitPercentTerms splits before every sign that directly follows a '%', so
// "5%-2%+1%" becomes ["5%", "-2%", "+1%"].
func splitPercentTerms(s string) []string {
	var terms []string
	start := 0
	for i := 1; i < len(s); i++ {
		if (s[i] == '+' || s[i] == '-') && s[i-1] == '%' {
			terms = append(terms, s[start:i])
			start = i
		}
	}
	return append(terms, s[start:])
}

// ParseDerivedSum sums the plain-number segments of a derived stat's modifier.
// Percent segments are not valid here, and neither is a string with no segment.
func ParseDerivedSum(s string) (float64, error) {
	var sum float64
	found := false
	for _, part := range splitSegments(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parseSegment(part)
		if err != nil {
			return 0, &ParseError{Input: s, Segment: part, Reason: err.Error()}
		}
		sum += v
		found = true
	}
	if !found {
		return 0, &ParseError{Input: s, Reason: "no value"}
	}
	return sum, nil
}

func splitSegments(s string) []string {
	return strings.Split(strings.TrimLeft(s, "+"), "+")
}

func parseSegment(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}
