package stats

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned by the standalone formulas for non-numeric input.
var ErrInvalidInput = errors.New("invalid input")

const (
	// NotApplicable is the damage difference when both damages are zero.
	NotApplicable = "N/A"
	// Infinite is the damage difference against a zero baseline.
	Infinite = "∞"
)

// critBaseMultiplier is the damage multiplier of a critical hit with no bonus.
const critBaseMultiplier = 1.5

// CriticalDamage returns base * (1.5 + bonus/100) with two decimals.
// Blank inputs count as zero.
func CriticalDamage(baseDamage, critBonus string) (string, error) {
	base, err := parseFormulaInput(baseDamage)
	if err != nil {
		return "", err
	}
	bonus, err := parseFormulaInput(critBonus)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(base*(critBaseMultiplier+bonus/100), 'f', 2, 64), nil
}

// DamageDifference returns how much larger damage1 is than damage2, as a
// percentage with two decimals ("20.00%").
func DamageDifference(damage1, damage2 string) (string, error) {
	d1, err := parseFormulaInput(damage1)
	if err != nil {
		return "", err
	}
	d2, err := parseFormulaInput(damage2)
	if err != nil {
		return "", err
	}
	if d2 == 0 {
		if d1 == 0 {
			return NotApplicable, nil
		}
		return Infinite, nil
	}
	return strconv.FormatFloat((d1-d2)/d2*100, 'f', 2, 64) + "%", nil
}

func parseFormulaInput(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidInput
	}
	return v, nil
}
