package negotiation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaturatingAdd(t *testing.T) {
	require.Equal(t, uint64(3), SaturatingAdd(1, 2))
	require.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64, 1))
	require.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64, math.MaxUint64))
	require.Equal(t, uint64(math.MaxUint64), SaturatingAdd(math.MaxUint64-1, 1))
}

func TestEvaluateSingle(t *testing.T) {
	tests := []struct {
		employer, candidate uint64
		want                Result
	}{
		{100, 100, ResultMatch},
		{100, 101, ResultNoMatch},
		{100, 0, ResultMatch},
		{0, 0, ResultMatch},
		{math.MaxUint64, math.MaxUint64, ResultMatch},
		{math.MaxUint64 - 1, math.MaxUint64, ResultNoMatch},
	}
	for _, tt := range tests {
		result, details := Evaluate(VariantSingle, Single(tt.employer), Single(tt.candidate))
		require.Equal(t, tt.want, result, "employer %d candidate %d", tt.employer, tt.candidate)
		require.Nil(t, details)
	}
}

func TestEvaluateBreakdownGatesOnTotal(t *testing.T) {
	employer := Compensation{Base: 100, Bonus: 20, Equity: 10}
	candidate := Compensation{Base: 90, Bonus: 25, Equity: 5}

	result, details := Evaluate(VariantBreakdown, employer, candidate)
	require.Equal(t, ResultMatch, result)
	require.Equal(t, &MatchDetails{
		BaseMatch:   true,
		BonusMatch:  false,
		EquityMatch: true,
		TotalMatch:  true,
	}, details)

	// A component win does not rescue a total miss.
	result, details = Evaluate(VariantBreakdown, Compensation{Base: 100}, Compensation{Base: 50, Bonus: 51})
	require.Equal(t, ResultNoMatch, result)
	require.True(t, details.BaseMatch)
	require.False(t, details.BonusMatch)
	require.False(t, details.TotalMatch)
}

func TestEvaluateBreakdownSaturates(t *testing.T) {
	top := Compensation{Base: math.MaxUint64, Bonus: math.MaxUint64, Equity: math.MaxUint64}
	require.Equal(t, uint64(math.MaxUint64), top.Total())

	// Both totals clamp, so the comparison is equal and matches.
	result, details := Evaluate(VariantBreakdown, top, Compensation{Base: math.MaxUint64, Bonus: 1})
	require.Equal(t, ResultMatch, result)
	require.True(t, details.TotalMatch)

	// Candidate clamps, employer does not.
	result, details = Evaluate(VariantBreakdown, Compensation{Base: 10}, top)
	require.Equal(t, ResultNoMatch, result)
	require.False(t, details.BaseMatch)
}
