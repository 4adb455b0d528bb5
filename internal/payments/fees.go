package payments

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
)

// FeeSplit divides a payment into the platform's cut and the provider's
// escrow share. EscrowCents + FeeCents always equals the original amount;
// the fee carries any rounding remainder.
type FeeSplit struct {
	FeeCents    int64
	EscrowCents int64
}

var oneHundred = decimal.NewFromInt(100)

// ComputeFeeSplit calculates the platform fee at the given percentage,
// rounding half up to the nearest cent.
func ComputeFeeSplit(amountCents int64, feePercent decimal.Decimal) (FeeSplit, error) {
	if amountCents <= 0 {
		return FeeSplit{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(oneHundred) {
		return FeeSplit{}, pkgerrors.New(pkgerrors.CodeValidation, "fee percent out of range")
	}

	fee := decimal.NewFromInt(amountCents).
		Mul(feePercent).
		Div(oneHundred).
		Round(0)

	feeCents := fee.IntPart()
	return FeeSplit{
		FeeCents:    feeCents,
		EscrowCents: amountCents - feeCents,
	}, nil
}
