package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/loan-servicing/internal/domain"
)

const loanColumns = `id, company_id, customer_id, base_amount, fees_total, principal_subtotal, issue_date,
	term_months, interest_type, monthly_rate_percent, parent_loan_id, status, created_at, updated_at`

const insertLoanQuery = `
	INSERT INTO loans (` + loanColumns + `)
	VALUES (:id, :company_id, :customer_id, :base_amount, :fees_total, :principal_subtotal, :issue_date,
		:term_months, :interest_type, :monthly_rate_percent, :parent_loan_id, :status, :created_at, :updated_at)
`

const updateLoanStatusQuery = `
	UPDATE loans
	SET status = $2, updated_at = $3
	WHERE id = $1
`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	_, err := r.db.NamedExecContext(ctx, insertLoanQuery, loan)
	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	var loan domain.Loan
	err := r.db.GetContext(ctx, &loan, query, id)
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = ANY($1::uuid[]) ORDER BY issue_date, id`

	return r.selectLoans(ctx, query, uuidArray(ids))
}

func (r *loanRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE company_id = $1 ORDER BY issue_date, id`

	return r.selectLoans(ctx, query, companyID)
}

func (r *loanRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE customer_id = $1 ORDER BY issue_date, id`

	return r.selectLoans(ctx, query, customerID)
}

func (r *loanRepository) ListActive(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY issue_date, id`

	return r.selectLoans(ctx, query, domain.LoanStatusActive)
}

func (r *loanRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE parent_loan_id = $1 ORDER BY issue_date, id`

	return r.selectLoans(ctx, query, parentID)
}

func (r *loanRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx, updateLoanStatusQuery, id, status, time.Now().UTC())
	return err
}

func (r *loanRepository) CreateMerged(ctx context.Context, loan *domain.Loan, mergedIDs []uuid.UUID) error {
	reparent := `
		UPDATE loans
		SET parent_loan_id = $1, status = $2, updated_at = $3
		WHERE id = ANY($4::uuid[]) AND status = $5
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, insertLoanQuery, loan); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, reparent,
		loan.ID,
		domain.LoanStatusMerged,
		loan.CreatedAt,
		uuidArray(mergedIDs),
		domain.LoanStatusActive,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(mergedIDs)) {
		return ErrStaleLoans
	}

	return tx.Commit()
}

func (r *loanRepository) selectLoans(ctx context.Context, query string, args ...interface{}) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	err := r.db.SelectContext(ctx, &loans, query, args...)
	if err != nil {
		return nil, err
	}

	return loans, nil
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
