package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DashboardSummary aggregates a company's loan book as of a date
type DashboardSummary struct {
	CompanyID        uuid.UUID       `json:"company_id"`
	AsOf             time.Time       `json:"as_of"`
	ActiveLoans      int             `json:"active_loans"`
	PaidLoans        int             `json:"paid_loans"`
	MergedLoans      int             `json:"merged_loans"`
	OverdueLoans     int             `json:"overdue_loans"`
	TotalPrincipal   decimal.Decimal `json:"total_principal"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	TotalOwed        decimal.Decimal `json:"total_owed"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

// StatusRefreshReport is what the nightly job did
type StatusRefreshReport struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Overdue int `json:"overdue"`
	Failed  int `json:"failed"`
}
