package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/loan-servicing/internal/domain"
)

type companyRow struct {
	domain.Company
	AllowedTerms pq.Int64Array `db:"allowed_terms"`
}

func (row companyRow) toDomain(fees []domain.Fee) *domain.Company {
	company := row.Company
	company.AllowedTerms = make([]int, len(row.AllowedTerms))
	for i, term := range row.AllowedTerms {
		company.AllowedTerms[i] = int(term)
	}
	company.Fees = fees
	if company.Fees == nil {
		company.Fees = []domain.Fee{}
	}
	return &company
}

type feeRow struct {
	CompanyID uuid.UUID `db:"company_id"`
	domain.Fee
}

type companyRepository struct {
	db *sqlx.DB
}

func NewCompanyRepository(db *sqlx.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	insertCompany := `
		INSERT INTO companies (id, name, allowed_terms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	insertFee := `
		INSERT INTO company_fees (company_id, position, name, fee_type, value)
		VALUES ($1, $2, $3, $4, $5)
	`

	terms := make(pq.Int64Array, len(company.AllowedTerms))
	for i, term := range company.AllowedTerms {
		terms[i] = int64(term)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertCompany,
		company.ID,
		company.Name,
		terms,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for i, fee := range company.Fees {
		if _, err = tx.ExecContext(ctx, insertFee, company.ID, i, fee.Name, fee.Type, fee.Value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	query := `
		SELECT id, name, allowed_terms, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	var row companyRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}

	fees, err := r.feesFor(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}

	return row.toDomain(fees[id]), nil
}

func (r *companyRepository) List(ctx context.Context) ([]*domain.Company, error) {
	query := `
		SELECT id, name, allowed_terms, created_at, updated_at
		FROM companies
		ORDER BY name
	`

	var rows []companyRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	fees, err := r.feesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	companies := make([]*domain.Company, len(rows))
	for i, row := range rows {
		companies[i] = row.toDomain(fees[row.ID])
	}

	return companies, nil
}

func (r *companyRepository) feesFor(ctx context.Context, companyIDs []uuid.UUID) (map[uuid.UUID][]domain.Fee, error) {
	byCompany := make(map[uuid.UUID][]domain.Fee, len(companyIDs))
	if len(companyIDs) == 0 {
		return byCompany, nil
	}

	query := `
		SELECT company_id, name, fee_type, value
		FROM company_fees
		WHERE company_id = ANY($1::uuid[])
		ORDER BY company_id, position
	`

	var rows []feeRow
	if err := r.db.SelectContext(ctx, &rows, query, uuidArray(companyIDs)); err != nil {
		return nil, err
	}

	for _, row := range rows {
		byCompany[row.CompanyID] = append(byCompany[row.CompanyID], row.Fee)
	}

	return byCompany, nil
}
