package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-servicing/internal/domain"
)

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, company_id, full_name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		customer.ID,
		customer.CompanyID,
		customer.FullName,
		customer.Email,
		customer.Phone,
		customer.CreatedAt,
	)

	return err
}

func (r *customerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	query := `
		SELECT id, company_id, full_name, email, phone, created_at
		FROM customers
		WHERE id = $1
	`

	var customer domain.Customer
	if err := r.db.GetContext(ctx, &customer, query, id); err != nil {
		return nil, err
	}

	return &customer, nil
}

func (r *customerRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Customer, error) {
	query := `
		SELECT id, company_id, full_name, email, phone, created_at
		FROM customers
		WHERE company_id = $1
		ORDER BY full_name, id
	`

	var customers []*domain.Customer
	if err := r.db.SelectContext(ctx, &customers, query, companyID); err != nil {
		return nil, err
	}

	return customers, nil
}
