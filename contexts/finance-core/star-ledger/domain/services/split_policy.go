package services

import (
	"github.com/shopspring/decimal"

	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
)

// SplitPolicy holds the revenue split applied to paid views and group entry
// fees. Shares are fractions of the gross currency value of the stars moved.
type SplitPolicy struct {
	OwnerShare      decimal.Decimal
	ViewerCashback  decimal.Decimal
	GroupOwnerShare decimal.Decimal
	StarUnitValue   decimal.Decimal
}

// ViewSplit is the wallet distribution for one charged view. PlatformShare is
// always the remainder, so the three parts sum exactly to Gross.
type ViewSplit struct {
	Gross          decimal.Decimal
	OwnerShare     decimal.Decimal
	ViewerCashback decimal.Decimal
	PlatformShare  decimal.Decimal
}

type FeeSplit struct {
	Gross         decimal.Decimal
	OwnerShare    decimal.Decimal
	PlatformShare decimal.Decimal
}

func DefaultSplitPolicy() SplitPolicy {
	return SplitPolicy{
		OwnerShare:      decimal.RequireFromString("0.40"),
		ViewerCashback:  decimal.RequireFromString("0.35"),
		GroupOwnerShare: decimal.RequireFromString("0.80"),
		StarUnitValue:   decimal.RequireFromString("1.00"),
	}
}

func (p SplitPolicy) Validate() error {
	one := decimal.NewFromInt(1)
	for _, share := range []decimal.Decimal{p.OwnerShare, p.ViewerCashback, p.GroupOwnerShare} {
		if share.IsNegative() || share.GreaterThan(one) {
			return domainerrors.ErrInvalidPolicy
		}
	}
	if p.OwnerShare.Add(p.ViewerCashback).GreaterThan(one) {
		return domainerrors.ErrInvalidPolicy
	}
	if !p.StarUnitValue.IsPositive() {
		return domainerrors.ErrInvalidPolicy
	}
	return nil
}

// PlatformShare is the fraction of a view kept by the platform.
func (p SplitPolicy) PlatformShare() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(p.OwnerShare).Sub(p.ViewerCashback)
}

func (p SplitPolicy) Gross(stars int64) decimal.Decimal {
	return p.StarUnitValue.Mul(decimal.NewFromInt(stars)).Round(entities.WalletScale)
}

// SplitView truncates the owner and viewer parts to wallet precision and
// leaves the rounding residue with the platform.
func (p SplitPolicy) SplitView(stars int64) ViewSplit {
	gross := p.Gross(stars)
	owner := gross.Mul(p.OwnerShare).Truncate(entities.WalletScale)
	cashback := gross.Mul(p.ViewerCashback).Truncate(entities.WalletScale)
	return ViewSplit{
		Gross:          gross,
		OwnerShare:     owner,
		ViewerCashback: cashback,
		PlatformShare:  gross.Sub(owner).Sub(cashback),
	}
}

func (p SplitPolicy) SplitGroupFee(stars int64) FeeSplit {
	gross := p.Gross(stars)
	owner := gross.Mul(p.GroupOwnerShare).Truncate(entities.WalletScale)
	return FeeSplit{
		Gross:         gross,
		OwnerShare:    owner,
		PlatformShare: gross.Sub(owner),
	}
}
