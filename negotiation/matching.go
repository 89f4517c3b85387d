package negotiation

import (
	"math"
	"math/bits"
)

// SaturatingAdd returns a+b, or math.MaxUint64 if the sum overflows.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// Evaluate compares the employer's offer against the candidate's requirement.
//
// For VariantSingle only Base is compared and no details are returned. For
// VariantBreakdown the result is Match iff the candidate's total does not
// exceed the employer's total; the component booleans are reported alongside
// but do not affect the result.
func Evaluate(variant Variant, employer, candidate Compensation) (Result, *MatchDetails) {
	if variant == VariantSingle {
		return resultOf(candidate.Base <= employer.Base), nil
	}

	details := &MatchDetails{
		BaseMatch:   candidate.Base <= employer.Base,
		BonusMatch:  candidate.Bonus <= employer.Bonus,
		EquityMatch: candidate.Equity <= employer.Equity,
		TotalMatch:  candidate.Total() <= employer.Total(),
	}
	return resultOf(details.TotalMatch), details
}

func resultOf(match bool) Result {
	if match {
		return ResultMatch
	}
	return ResultNoMatch
}
