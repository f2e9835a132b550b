package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
)

func TestSplitViewDefaultPolicy(t *testing.T) {
	split := DefaultSplitPolicy().SplitView(10)

	assert.True(t, split.Gross.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, split.OwnerShare.Equal(decimal.RequireFromString("4.00")))
	assert.True(t, split.ViewerCashback.Equal(decimal.RequireFromString("3.50")))
	assert.True(t, split.PlatformShare.Equal(decimal.RequireFromString("2.50")))
}

func TestSplitViewResidueGoesToPlatform(t *testing.T) {
	policy := DefaultSplitPolicy()
	policy.StarUnitValue = decimal.RequireFromString("0.03")

	split := policy.SplitView(1)

	// 0.03 * 0.40 = 0.012 and 0.03 * 0.35 = 0.0105 both truncate to 0.01.
	assert.True(t, split.OwnerShare.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, split.ViewerCashback.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, split.PlatformShare.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, split.OwnerShare.Add(split.ViewerCashback).Add(split.PlatformShare).Equal(split.Gross))
}

func TestSplitGroupFee(t *testing.T) {
	split := DefaultSplitPolicy().SplitGroupFee(25)

	assert.True(t, split.OwnerShare.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, split.PlatformShare.Equal(decimal.RequireFromString("5.00")))
}

func TestSplitPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultSplitPolicy().Validate())

	tooGenerous := DefaultSplitPolicy()
	tooGenerous.ViewerCashback = decimal.RequireFromString("0.70")
	require.ErrorIs(t, tooGenerous.Validate(), domainerrors.ErrInvalidPolicy)

	worthless := DefaultSplitPolicy()
	worthless.StarUnitValue = decimal.Zero
	require.ErrorIs(t, worthless.Validate(), domainerrors.ErrInvalidPolicy)
}
