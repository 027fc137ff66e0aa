package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	LoanID    uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	PaidAt    time.Time       `json:"paid_at" db:"paid_at"`
	Note      string          `json:"note,omitempty" db:"note"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type MakePaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt=0,decimal_scale=2"`
	PaidAt string          `json:"paid_at"`
	Note   string          `json:"note" validate:"max=255"`
}

type MakePaymentResponse struct {
	Payment          *Payment        `json:"payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	LoanStatus       string          `json:"loan_status"`
}
