package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdditiveModifier(t *testing.T) {
	tests := []struct {
		input string
		want  AdditiveModifier
	}{
		{"50", AdditiveModifier{Base: 50}},
		{"+50+20", AdditiveModifier{Base: 50, Flat: 20}},
		{"50+10%", AdditiveModifier{Base: 50, Percent: 0.1, HasPercent: true}},
		{"50+10%+20", AdditiveModifier{Base: 50, Flat: 20, Percent: 0.1, HasPercent: true}},
		{"++50", AdditiveModifier{Base: 50}},
		{" 50 + 20 ", AdditiveModifier{Base: 50, Flat: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAdditiveModifier(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAdditiveModifierErrors(t *testing.T) {
	for _, input := range []string{"", "+", "++", " + ", "abc", "50+x", "50+x%", "NaN", "1e999"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAdditiveModifier(input)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, input, perr.Input)
		})
	}
}

func TestAdditiveModifierApply(t *testing.T) {
	m := AdditiveModifier{Base: 50, Flat: 20, Percent: 0.1, HasPercent: true}
	tests := []struct {
		base   float64
		want   int
		wantOK bool
	}{
		{0, 77, true},
		{100, 187, true},
		{-100, -33, true},
		{1e300, 0, false},
		{-1e300, 0, false},
	}

	for _, tt := range tests {
		got, ok := m.Apply(tt.base)
		assert.Equal(t, tt.wantOK, ok, "base %v", tt.base)
		assert.Equal(t, tt.want, got, "base %v", tt.base)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     float64
		want   int
		wantOK bool
	}{
		{99.9, 99, true},
		{-7.5, -7, true},
		{0, 0, true},
		{1e18, 1000000000000000000, true},
		{9.3e18, 0, false},
		{-9.3e18, 0, false},
		{math.Inf(1), 0, false},
		{math.NaN(), 0, false},
	}

	for _, tt := range tests {
		got, ok := truncate(tt.in)
		assert.Equal(t, tt.wantOK, ok, "truncate(%v)", tt.in)
		assert.Equal(t, tt.want, got, "truncate(%v)", tt.in)
	}
}

func TestParsePercentTerms(t *testing.T) {
	tests := []struct {
		input string
		want  []float64
	}{
		{"+5%-2%", []float64{5, -2}},
		{"5%+-2%", []float64{5, -2}},
		{"-3%", []float64{-3}},
		{"1.5%+2%", []float64{1.5, 2}},
		{"abc", nil},
		{"5%+3", []float64{5}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePercentTerms(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitPercentTerms(t *testing.T) {
	assert.Equal(t, []string{"5%", "-2%", "+1%"}, splitPercentTerms("5%-2%+1%"))
	assert.Equal(t, []string{"10-2%"}, splitPercentTerms("10-2%"))
	assert.Equal(t, []string{""}, splitPercentTerms(""))
}

func TestParseDerivedSum(t *testing.T) {
	sum, err := ParseDerivedSum("+100+50+ ")
	require.NoError(t, err)
	assert.Equal(t, 150.0, sum)

	_, err = ParseDerivedSum("100+10%")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "10%", perr.Segment)

	_, err = ParseDerivedSum("+")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "no value", perr.Reason)
}
