package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	FeeTypeFlat       = "flat"
	FeeTypePercentage = "percentage"
)

// Company holds the fee and term configuration loans are originated with
type Company struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	AllowedTerms []int     `json:"allowed_terms" db:"-"`
	Fees         []Fee     `json:"fees" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Fee is either a flat dollar amount or a percentage of the base amount
type Fee struct {
	Name  string          `json:"name" db:"name" validate:"required,max=100"`
	Type  string          `json:"type" db:"fee_type" validate:"required,oneof=flat percentage"`
	Value decimal.Decimal `json:"value" db:"value" validate:"decimal_gte=0,decimal_scale=4"`
}

type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CompanyID uuid.UUID `json:"company_id" db:"company_id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CreateCompanyRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	AllowedTerms []int  `json:"allowed_terms" validate:"dive,gt=0"`
	Fees         []Fee  `json:"fees" validate:"dive"`
}

type CreateCustomerRequest struct {
	CompanyID uuid.UUID `json:"company_id" validate:"required"`
	FullName  string    `json:"full_name" validate:"required,max=200"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Phone     string    `json:"phone" validate:"omitempty,max=32"`
}
