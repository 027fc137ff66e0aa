package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-servicing/internal/amortization"
)

const (
	LoanStatusActive = "active"
	LoanStatusPaid   = "paid"
	LoanStatusMerged = "merged"
)

// Loan represents a loan entity
type Loan struct {
	ID                 uuid.UUID                 `json:"id" db:"id"`
	CompanyID          uuid.UUID                 `json:"company_id" db:"company_id"`
	CustomerID         uuid.UUID                 `json:"customer_id" db:"customer_id"`
	BaseAmount         decimal.Decimal           `json:"base_amount" db:"base_amount"`
	FeesTotal          decimal.Decimal           `json:"fees_total" db:"fees_total"`
	PrincipalSubtotal  decimal.Decimal           `json:"principal_subtotal" db:"principal_subtotal"`
	IssueDate          time.Time                 `json:"issue_date" db:"issue_date"`
	TermMonths         int                       `json:"term_months" db:"term_months"`
	InterestType       amortization.InterestType `json:"interest_type" db:"interest_type"`
	MonthlyRatePercent decimal.Decimal           `json:"monthly_rate_percent" db:"monthly_rate_percent"`
	ParentLoanID       *uuid.UUID                `json:"parent_loan_id,omitempty" db:"parent_loan_id"`
	Status             string                    `json:"status" db:"status"`
	CreatedAt          time.Time                 `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at" db:"updated_at"`
}

// Snapshot builds the engine input for this loan given what has been paid.
func (l *Loan) Snapshot(paid decimal.Decimal) amortization.LoanSnapshot {
	return amortization.LoanSnapshot{
		ID:                 l.ID,
		ParentLoanID:       l.ParentLoanID,
		IssueDate:          l.IssueDate,
		OriginalTermMonths: l.TermMonths,
		InterestType:       l.InterestType,
		MonthlyRatePercent: l.MonthlyRatePercent,
		PrincipalSubtotal:  l.PrincipalSubtotal,
		PaidAmount:         paid,
	}
}

func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	CompanyID          uuid.UUID       `json:"company_id" validate:"required"`
	CustomerID         uuid.UUID       `json:"customer_id" validate:"required"`
	BaseAmount         decimal.Decimal `json:"base_amount" validate:"decimal_gt=0,decimal_scale=2"`
	IssueDate          string          `json:"issue_date" validate:"required"`
	TermMonths         int             `json:"term_months" validate:"gte=0"`
	InterestType       string          `json:"interest_type" validate:"required,oneof=flat compound"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent" validate:"decimal_gte=0,decimal_scale=4"`
}

type MergeLoansRequest struct {
	CompanyID          uuid.UUID       `json:"company_id" validate:"required"`
	CustomerID         uuid.UUID       `json:"customer_id" validate:"required"`
	LoanIDs            []uuid.UUID     `json:"loan_ids" validate:"required,min=1,dive,required"`
	AdditionalAmount   decimal.Decimal `json:"additional_amount" validate:"decimal_gte=0,decimal_scale=2"`
	IssueDate          string          `json:"issue_date" validate:"required"`
	TermMonths         int             `json:"term_months" validate:"gte=0"`
	InterestType       string          `json:"interest_type" validate:"required,oneof=flat compound"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent" validate:"decimal_gte=0,decimal_scale=4"`
}

type MergeLoansResponse struct {
	Loan        *Loan            `json:"loan"`
	MergedLoans []MergedLoanPart `json:"merged_loans"`
}

// MergedLoanPart records how much of a previous loan was folded into the new one.
type MergedLoanPart struct {
	LoanID           uuid.UUID       `json:"loan_id"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	MonthsElapsed    int             `json:"months_elapsed"`
}

type BalanceResponse struct {
	LoanID     uuid.UUID           `json:"loan_id"`
	AsOf       time.Time           `json:"as_of"`
	Status     string              `json:"status"`
	PaidAmount decimal.Decimal     `json:"paid_amount"`
	Breakdown  amortization.Result `json:"breakdown"`
}

type TermPreview struct {
	TermMonths int                 `json:"term_months"`
	Breakdown  amortization.Result `json:"breakdown"`
}

type TermPreviewResponse struct {
	LoanID   uuid.UUID     `json:"loan_id"`
	AsOf     time.Time     `json:"as_of"`
	Previews []TermPreview `json:"previews"`
}

// LoanDetails is a loan with its payment history and the loans merged into it
type LoanDetails struct {
	Loan       *Loan      `json:"loan"`
	Payments   []*Payment `json:"payments"`
	MergedFrom []*Loan    `json:"merged_from"`
}
