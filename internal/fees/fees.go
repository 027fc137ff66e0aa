// Package fees turns a base amount and a company's fee list into the
// principal subtotal a loan is originated with.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-servicing/internal/domain"
	"github.com/segyhp/loan-servicing/pkg/utils"
)

var (
	ErrNegativeBase = errors.New("base amount must not be negative")
	ErrInvalidFee   = errors.New("invalid fee")
	hundred         = decimal.NewFromInt(100)
)

// Resolution is the outcome of applying company fees to a base amount
type Resolution struct {
	Base     decimal.Decimal
	Fees     decimal.Decimal
	Subtotal decimal.Decimal
}

// Amount returns the dollar value of fee for base
func Amount(fee domain.Fee, base decimal.Decimal) (decimal.Decimal, error) {
	if fee.Value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s has a negative value", ErrInvalidFee, fee.Name)
	}

	switch fee.Type {
	case domain.FeeTypeFlat:
		return fee.Value, nil
	case domain.FeeTypePercentage:
		return base.Mul(fee.Value).Div(hundred), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s has unknown type %q", ErrInvalidFee, fee.Name, fee.Type)
	}
}

// Resolve applies every fee to base. The fee total is rounded to cents.
func Resolve(base decimal.Decimal, companyFees []domain.Fee) (Resolution, error) {
	if base.IsNegative() {
		return Resolution{}, ErrNegativeBase
	}

	total := decimal.Zero
	for _, fee := range companyFees {
		amount, err := Amount(fee, base)
		if err != nil {
			return Resolution{}, err
		}
		total = total.Add(amount)
	}
	total = utils.RoundCurrency(total)

	return Resolution{
		Base:     base,
		Fees:     total,
		Subtotal: base.Add(total),
	}, nil
}
