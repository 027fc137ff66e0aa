// Package amortization computes interest accrual, dynamic term escalation and
// remaining balance for a loan snapshot. Every function here is pure: it reads
// only its arguments and keeps no state between calls.
package amortization

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-servicing/pkg/utils"
)

type InterestType string

const (
	InterestFlat     InterestType = "flat"
	InterestCompound InterestType = "compound"
)

func (t InterestType) Valid() bool {
	return t == InterestFlat || t == InterestCompound
}

const (
	daysPerMonth   = 30
	flatStepMonths = 6
)

var (
	hundred            = decimal.NewFromInt(100)
	milestoneSurcharge = decimal.NewFromInt(200)
	milestoneMonths    = map[int]struct{}{18: {}, 30: {}}
)

// LoanSnapshot is the engine input, rebuilt from persisted records per call.
type LoanSnapshot struct {
	ID                 uuid.UUID
	ParentLoanID       *uuid.UUID
	IssueDate          time.Time
	OriginalTermMonths int
	InterestType       InterestType
	MonthlyRatePercent decimal.Decimal
	PrincipalSubtotal  decimal.Decimal
	PaidAmount         decimal.Decimal
}

// Options tune a single calculation.
type Options struct {
	// AsOf defaults to the current UTC date.
	AsOf time.Time
	// AllowedTerms falls back to DefaultTermOptions when empty.
	AllowedTerms CompanyTermOptions
	// MergedCohort holds loans whose issue date can stop a merged loan's clock.
	MergedCohort []LoanSnapshot
	// ForcedTerm previews the loan at a given term. Zero means none.
	ForcedTerm int
}

// Result is the financial breakdown of one loan.
type Result struct {
	Subtotal         decimal.Decimal        `json:"subtotal"`
	InterestAccrued  decimal.Decimal        `json:"interest_accrued"`
	TotalOwed        decimal.Decimal        `json:"total_owed"`
	RemainingBalance decimal.Decimal        `json:"remaining_balance"`
	MonthsElapsed    int                    `json:"months_elapsed"`
	DynamicTerm      int                    `json:"dynamic_term"`
	Warnings         []ConfigurationWarning `json:"warnings,omitempty"`
}

// Calculate returns the breakdown of loan as of opts.AsOf.
func Calculate(loan LoanSnapshot, opts Options) (Result, error) {
	if err := validate(loan, opts); err != nil {
		return Result{}, err
	}

	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	terms, warnings := effectiveTerms(opts.AllowedTerms)

	elapsed := MonthsElapsed(loan.IssueDate, clockEnd(loan, asOf, opts.MergedCohort))

	original := loan.OriginalTermMonths
	if original == 0 {
		original = terms.Smallest()
	}

	var dynamicTerm int
	switch {
	case opts.ForcedTerm > 0:
		dynamicTerm = opts.ForcedTerm
		if !terms.Contains(opts.ForcedTerm) {
			warnings = append(warnings, unsanctioned(opts.ForcedTerm))
		}
	case terms.Contains(original):
		dynamicTerm = resolveDynamicTerm(original, elapsed, terms)
	default:
		dynamicTerm = original
		warnings = append(warnings, unsanctioned(original))
	}

	interest := accrueInterest(loan.InterestType, loan.PrincipalSubtotal, loan.MonthlyRatePercent, dynamicTerm)
	interest = utils.RoundCurrency(interest)
	total := loan.PrincipalSubtotal.Add(interest)

	return Result{
		Subtotal:         loan.PrincipalSubtotal,
		InterestAccrued:  interest,
		TotalOwed:        total,
		RemainingBalance: utils.ClampZero(total.Sub(loan.PaidAmount)),
		MonthsElapsed:    elapsed,
		DynamicTerm:      dynamicTerm,
		Warnings:         warnings,
	}, nil
}

// CalculateBatchForTerms previews loan once per candidate term, in order.
func CalculateBatchForTerms(loan LoanSnapshot, terms CompanyTermOptions, opts Options) ([]Result, error) {
	if opts.AsOf.IsZero() {
		// pin the clock so every preview sees the same date
		opts.AsOf = time.Now().UTC()
	}

	results := make([]Result, 0, len(terms))
	for _, term := range terms {
		if term <= 0 {
			return nil, invalid("term", "candidate terms must be positive")
		}

		termOpts := opts
		termOpts.ForcedTerm = term
		result, err := Calculate(loan, termOpts)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// MonthsElapsed is floor(days/30) with a floor of 1, so a loan in its first
// 30-day window already counts as one month in.
func MonthsElapsed(issueDate, asOf time.Time) int {
	months := utils.DaysBetween(issueDate, asOf) / daysPerMonth
	if months < 1 {
		return 1
	}
	return months
}

// clockEnd stops a merged loan's clock at its successor's issue date.
func clockEnd(loan LoanSnapshot, asOf time.Time, cohort []LoanSnapshot) time.Time {
	if loan.ParentLoanID == nil {
		return asOf
	}
	for _, other := range cohort {
		if other.ID == *loan.ParentLoanID && !other.IssueDate.IsZero() {
			return other.IssueDate
		}
	}
	return asOf
}

func accrueInterest(kind InterestType, principal, ratePercent decimal.Decimal, term int) decimal.Decimal {
	if ratePercent.IsZero() {
		return decimal.Zero
	}

	rate := ratePercent.Div(hundred)
	running := principal

	switch kind {
	case InterestFlat:
		step := principal.Mul(rate).Mul(decimal.NewFromInt(flatStepMonths))
		for i := flatStepMonths; i <= term; i += flatStepMonths {
			running = running.Add(step)
			running = addMilestone(running, i)
		}
	case InterestCompound:
		factor := decimal.NewFromInt(1).Add(rate)
		for i := 1; i <= term; i++ {
			running = running.Mul(factor)
			running = addMilestone(running, i)
		}
	}

	return running.Sub(principal)
}

func addMilestone(running decimal.Decimal, month int) decimal.Decimal {
	if _, ok := milestoneMonths[month]; ok {
		return running.Add(milestoneSurcharge)
	}
	return running
}

func validate(loan LoanSnapshot, opts Options) error {
	if loan.IssueDate.IsZero() {
		return invalid("issue_date", "is required")
	}
	if !loan.InterestType.Valid() {
		return invalid("interest_type", "must be flat or compound")
	}
	if loan.MonthlyRatePercent.IsNegative() {
		return invalid("monthly_rate_percent", "must not be negative")
	}
	if loan.PrincipalSubtotal.IsNegative() {
		return invalid("principal_subtotal", "must not be negative")
	}
	if loan.PaidAmount.IsNegative() {
		return invalid("paid_amount", "must not be negative")
	}
	if loan.OriginalTermMonths < 0 {
		return invalid("original_term_months", "must not be negative")
	}
	if opts.ForcedTerm < 0 {
		return invalid("forced_term", "must not be negative")
	}
	return nil
}
