package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-servicing/internal/domain"
)

// ErrStaleLoans is returned when a merge finds one of its loans no longer active
var ErrStaleLoans = errors.New("one or more loans are no longer active")

// CompanyRepository defines the interface for company configuration
type CompanyRepository interface {
	// Create stores a company together with its fees
	Create(ctx context.Context, company *domain.Company) error

	// GetByID retrieves a company with its fees and allowed terms
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)

	// List returns every company ordered by name
	List(ctx context.Context) ([]*domain.Company, error)
}

// CustomerRepository defines the interface for customer records
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Customer, error)
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByIDs retrieves several loans; missing IDs are simply absent
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Loan, error)

	// ListByCompany returns all loans of a company, oldest first
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Loan, error)

	// ListByCustomer returns all loans of a customer, oldest first
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error)

	// ListActive returns every active loan
	ListActive(ctx context.Context) ([]*domain.Loan, error)

	// ListChildren returns loans that were merged into parentID
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Loan, error)

	// UpdateStatus changes the status of a loan
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	// CreateMerged stores loan and re-parents mergedIDs onto it in one transaction
	CreateMerged(ctx context.Context, loan *domain.Loan, mergedIDs []uuid.UUID) error
}

// PaymentCheck inspects a loan locked for a payment together with the total
// already paid on it. It reports whether the payment settles the loan.
type PaymentCheck func(loan *domain.Loan, paid decimal.Decimal) (settled bool, err error)

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Record locks the payment's loan and runs check against it and the total
	// paid up to until. The payment is stored, and the loan settled when check
	// says so, in the same transaction. A check error stores nothing.
	Record(ctx context.Context, payment *domain.Payment, until time.Time, check PaymentCheck) error

	// GetByLoanID retrieves all payments for a loan
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// GetTotalPaid sums payments made on or before until
	GetTotalPaid(ctx context.Context, loanID uuid.UUID, until time.Time) (decimal.Decimal, error)

	// GetTotalsByLoanIDs sums payments per loan made on or before until
	GetTotalsByLoanIDs(ctx context.Context, loanIDs []uuid.UUID, until time.Time) (map[uuid.UUID]decimal.Decimal, error)
}
