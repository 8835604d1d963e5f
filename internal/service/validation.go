package service

import (
	"github.com/shopspring/decimal"

	"splitpay/internal/domain"
)

// MaxSplitParts is the largest number of parts one split payment may have.
const MaxSplitParts = 10

var (
	percentageCap    = decimal.NewFromInt(100)
	percentageSumMin = decimal.RequireFromString("99.99")
	percentageSumMax = decimal.RequireFromString("100.01")
)

// ValidateParts checks a proposed split configuration and returns the first
// violation found.
func ValidateParts(parts []domain.SplitPart) error {
	if len(parts) == 0 {
		return invalid(ErrNoParts, "got 0 parts")
	}

	if len(parts) > MaxSplitParts {
		return invalid(ErrTooManyParts, "got %d parts, maximum is %d", len(parts), MaxSplitParts)
	}

	sum := decimal.Zero
	for i, p := range parts {
		if !p.Percentage.IsPositive() || p.Percentage.GreaterThan(percentageCap) {
			return invalid(ErrInvalidPercentage, "part %d has percentage %s, must be greater than 0 and at most 100", i+1, p.Percentage.String())
		}
		if !p.Method.Valid() {
			return invalid(ErrInvalidPaymentMethod, "part %d has payment method %q", i+1, p.Method)
		}
		sum = sum.Add(p.Percentage)
	}

	if sum.LessThan(percentageSumMin) || sum.GreaterThan(percentageSumMax) {
		return invalid(ErrPercentageSum, "percentages sum to %s, expected 100", sum.String())
	}

	return nil
}
