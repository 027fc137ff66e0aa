package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-servicing/internal/domain"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const totalPaidQuery = `
	SELECT COALESCE(SUM(amount), 0)
	FROM payments
	WHERE loan_id = $1 AND paid_at <= $2
`

func (r *paymentRepository) Record(ctx context.Context, payment *domain.Payment, until time.Time, check PaymentCheck) error {
	insert := `
		INSERT INTO payments (id, loan_id, amount, paid_at, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// concurrent payments on the same loan queue up behind this lock
	var loan domain.Loan
	lock := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &loan, lock, payment.LoanID); err != nil {
		return err
	}

	var paid decimal.Decimal
	if err = tx.GetContext(ctx, &paid, totalPaidQuery, payment.LoanID, until); err != nil {
		return err
	}

	settled, err := check(&loan, paid)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, insert,
		payment.ID,
		payment.LoanID,
		payment.Amount,
		payment.PaidAt,
		payment.Note,
		payment.CreatedAt,
	)
	if err != nil {
		return err
	}

	if settled {
		if _, err = tx.ExecContext(ctx, updateLoanStatusQuery, loan.ID, domain.LoanStatusPaid, payment.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT id, loan_id, amount, paid_at, note, created_at
		FROM payments
		WHERE loan_id = $1
		ORDER BY paid_at, created_at
	`

	var payments []*domain.Payment
	err := r.db.SelectContext(ctx, &payments, query, loanID)
	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) GetTotalPaid(ctx context.Context, loanID uuid.UUID, until time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, totalPaidQuery, loanID, until)
	if err != nil {
		return decimal.Zero, err
	}

	return total, nil
}

type loanTotal struct {
	LoanID uuid.UUID       `db:"loan_id"`
	Total  decimal.Decimal `db:"total"`
}

func (r *paymentRepository) GetTotalsByLoanIDs(ctx context.Context, loanIDs []uuid.UUID, until time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	totals := make(map[uuid.UUID]decimal.Decimal, len(loanIDs))
	if len(loanIDs) == 0 {
		return totals, nil
	}

	query := `
		SELECT loan_id, SUM(amount) AS total
		FROM payments
		WHERE loan_id = ANY($1::uuid[]) AND paid_at <= $2
		GROUP BY loan_id
	`

	var rows []loanTotal
	if err := r.db.SelectContext(ctx, &rows, query, uuidArray(loanIDs), until); err != nil {
		return nil, err
	}

	for _, row := range rows {
		totals[row.LoanID] = row.Total
	}

	return totals, nil
}
