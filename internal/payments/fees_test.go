package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/fundi-app/fundi-backend/pkg/errors"
)

func TestComputeFeeSplit(t *testing.T) {
	tenPercent := decimal.NewFromInt(10)

	cases := []struct {
		name        string
		amountCents int64
		feePercent  decimal.Decimal
		wantFee     int64
		wantEscrow  int64
	}{
		{"even split", 10000, tenPercent, 1000, 9000},
		{"rounds half up", 10005, tenPercent, 1001, 9004},
		{"rounds down below half", 10004, tenPercent, 1000, 9004},
		{"one cent booking", 1, tenPercent, 0, 1},
		{"fractional percent", 33333, decimal.RequireFromString("12.5"), 4167, 29166},
		{"zero percent", 5000, decimal.Zero, 0, 5000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split, err := ComputeFeeSplit(tc.amountCents, tc.feePercent)
			require.NoError(t, err)
			assert.Equal(t, tc.wantFee, split.FeeCents)
			assert.Equal(t, tc.wantEscrow, split.EscrowCents)
			assert.Equal(t, tc.amountCents, split.FeeCents+split.EscrowCents)
		})
	}
}

func TestComputeFeeSplitRejectsBadInput(t *testing.T) {
	_, err := ComputeFeeSplit(0, decimal.NewFromInt(10))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = ComputeFeeSplit(1000, decimal.NewFromInt(101))
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = ComputeFeeSplit(1000, decimal.NewFromInt(-1))
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
