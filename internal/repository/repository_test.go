package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-servicing/internal/amortization"
	"github.com/segyhp/loan-servicing/internal/domain"
)

// These tests run against a disposable Postgres database named by
// TEST_DATABASE_URL and are skipped when it is unset.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	schema, err := os.ReadFile("../../scripts/init.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	cleanupTestData(db)
	t.Cleanup(func() {
		cleanupTestData(db)
		db.Close()
	})

	return db
}

func cleanupTestData(db *sqlx.DB) {
	db.Exec("DELETE FROM payments")
	db.Exec("UPDATE loans SET parent_loan_id = NULL")
	db.Exec("DELETE FROM loans")
	db.Exec("DELETE FROM customers")
	db.Exec("DELETE FROM company_fees")
	db.Exec("DELETE FROM companies")
}

type fixture struct {
	company  *domain.Company
	customer *domain.Customer
}

func seed(t *testing.T, db *sqlx.DB) fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	company := &domain.Company{
		ID:           uuid.New(),
		Name:         "Acme Lending",
		AllowedTerms: []int{6, 12, 18},
		Fees: []domain.Fee{
			{Name: "processing", Type: domain.FeeTypeFlat, Value: decimal.NewFromInt(50)},
			{Name: "origination", Type: domain.FeeTypePercentage, Value: decimal.RequireFromString("2.5")},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewCompanyRepository(db).Create(ctx, company))

	customer := &domain.Customer{
		ID:        uuid.New(),
		CompanyID: company.ID,
		FullName:  "Jane Borrower",
		Email:     "jane@example.com",
		CreatedAt: now,
	}
	require.NoError(t, NewCustomerRepository(db).Create(ctx, customer))

	return fixture{company: company, customer: customer}
}

func newLoan(f fixture, issue time.Time) *domain.Loan {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Loan{
		ID:                 uuid.New(),
		CompanyID:          f.company.ID,
		CustomerID:         f.customer.ID,
		BaseAmount:         decimal.NewFromInt(1000),
		FeesTotal:          decimal.NewFromInt(75),
		PrincipalSubtotal:  decimal.NewFromInt(1075),
		IssueDate:          issue,
		TermMonths:         12,
		InterestType:       amortization.InterestFlat,
		MonthlyRatePercent: decimal.RequireFromString("1.5"),
		Status:             domain.LoanStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestCompanyRepository_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewCompanyRepository(db)

	company, err := repo.GetByID(context.Background(), f.company.ID)
	require.NoError(t, err)

	assert.Equal(t, "Acme Lending", company.Name)
	assert.Equal(t, []int{6, 12, 18}, company.AllowedTerms)
	require.Len(t, company.Fees, 2)
	assert.Equal(t, domain.FeeTypePercentage, company.Fees[1].Type)
	assert.True(t, company.Fees[1].Value.Equal(decimal.RequireFromString("2.5")))

	companies, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}

func TestCustomerRepository_ListByCompany(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)

	customers, err := NewCustomerRepository(db).ListByCompany(context.Background(), f.company.ID)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, f.customer.ID, customers[0].ID)
}

func TestLoanRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loan := newLoan(f, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, loan))

	stored, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, amortization.InterestFlat, stored.InterestType)
	assert.True(t, stored.PrincipalSubtotal.Equal(decimal.NewFromInt(1075)))
	assert.Nil(t, stored.ParentLoanID)

	require.NoError(t, repo.UpdateStatus(ctx, loan.ID, domain.LoanStatusPaid))
	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestLoanRepository_CreateMerged(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	first := newLoan(f, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	second := newLoan(f, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	successor := newLoan(f, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.CreateMerged(ctx, successor, []uuid.UUID{first.ID, second.ID}))

	children, err := repo.ListChildren(ctx, successor.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		assert.Equal(t, domain.LoanStatusMerged, child.Status)
		require.NotNil(t, child.ParentLoanID)
		assert.Equal(t, successor.ID, *child.ParentLoanID)
	}

	t.Run("stale loans roll back", func(t *testing.T) {
		again := newLoan(f, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
		err := repo.CreateMerged(ctx, again, []uuid.UUID{first.ID})
		assert.ErrorIs(t, err, ErrStaleLoans)

		loans, err := repo.GetByIDs(ctx, []uuid.UUID{again.ID})
		require.NoError(t, err)
		assert.Empty(t, loans)
	})
}

func acceptPayment(*domain.Loan, decimal.Decimal) (bool, error) {
	return false, nil
}

func newPayment(loanID uuid.UUID, amount int64) *domain.Payment {
	return &domain.Payment{
		ID:        uuid.New(),
		LoanID:    loanID,
		Amount:    decimal.NewFromInt(amount),
		PaidAt:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Now().UTC(),
	}
}

func TestPaymentRepository_Record(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	loans := NewLoanRepository(db)
	payments := NewPaymentRepository(db)
	ctx := context.Background()

	t.Run("rejected check stores nothing", func(t *testing.T) {
		loan := newLoan(f, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, loans.Create(ctx, loan))

		rejected := errors.New("over the balance")
		err := payments.Record(ctx, newPayment(loan.ID, 10), time.Now(), func(*domain.Loan, decimal.Decimal) (bool, error) {
			return false, rejected
		})
		assert.ErrorIs(t, err, rejected)

		list, err := payments.GetByLoanID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("settling payment marks the loan paid", func(t *testing.T) {
		loan := newLoan(f, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, loans.Create(ctx, loan))

		err := payments.Record(ctx, newPayment(loan.ID, 1075), time.Now(), func(locked *domain.Loan, paid decimal.Decimal) (bool, error) {
			assert.Equal(t, loan.ID, locked.ID)
			assert.True(t, paid.IsZero())
			return true, nil
		})
		require.NoError(t, err)

		stored, err := loans.GetByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusPaid, stored.Status)
	})

	t.Run("concurrent payments see each other", func(t *testing.T) {
		loan := newLoan(f, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, loans.Create(ctx, loan))

		owed := decimal.NewFromInt(1000)
		amount := decimal.NewFromInt(600)
		overpaid := errors.New("exceeds balance")

		var wg sync.WaitGroup
		results := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- payments.Record(ctx, newPayment(loan.ID, 600), time.Now(), func(_ *domain.Loan, paid decimal.Decimal) (bool, error) {
					if paid.Add(amount).GreaterThan(owed) {
						return false, overpaid
					}
					return false, nil
				})
			}()
		}
		wg.Wait()
		close(results)

		var failures int
		for err := range results {
			if err != nil {
				assert.ErrorIs(t, err, overpaid)
				failures++
			}
		}
		assert.Equal(t, 1, failures)

		total, err := payments.GetTotalPaid(ctx, loan.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, total.Equal(amount), total.String())
	})
}

func TestPaymentRepository_Totals(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	loans := NewLoanRepository(db)
	payments := NewPaymentRepository(db)
	ctx := context.Background()

	loan := newLoan(f, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	other := newLoan(f, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, loans.Create(ctx, loan))
	require.NoError(t, loans.Create(ctx, other))

	for i, amount := range []string{"100.25", "200", "50"} {
		require.NoError(t, payments.Record(ctx, &domain.Payment{
			ID:        uuid.New(),
			LoanID:    loan.ID,
			Amount:    decimal.RequireFromString(amount),
			PaidAt:    time.Date(2024, time.Month(2+i), 1, 0, 0, 0, 0, time.UTC),
			CreatedAt: time.Now().UTC(),
		}, time.Now(), acceptPayment))
	}

	total, err := payments.GetTotalPaid(ctx, loan.ID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("300.25")), total.String())

	none, err := payments.GetTotalPaid(ctx, other.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, none.IsZero())

	totals, err := payments.GetTotalsByLoanIDs(ctx, []uuid.UUID{loan.ID, other.ID}, time.Now())
	require.NoError(t, err)
	assert.True(t, totals[loan.ID].Equal(decimal.RequireFromString("350.25")))
	_, ok := totals[other.ID]
	assert.False(t, ok)

	list, err := payments.GetByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
