package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/loan-servicing/internal/amortization"
	"github.com/segyhp/loan-servicing/internal/cache"
	"github.com/segyhp/loan-servicing/internal/config"
	"github.com/segyhp/loan-servicing/internal/domain"
	"github.com/segyhp/loan-servicing/internal/repository"
	customError "github.com/segyhp/loan-servicing/pkg/errors"
	"github.com/segyhp/loan-servicing/pkg/logger"
	"github.com/segyhp/loan-servicing/pkg/utils"
)

// LoanService fetches loan, payment and company records, runs them through
// the amortization engine and persists the outcome. It holds no calculation
// state of its own.
type LoanService struct {
	CompanyRepo  repository.CompanyRepository
	CustomerRepo repository.CustomerRepository
	LoanRepo     repository.LoanRepository
	PaymentRepo  repository.PaymentRepository
	companyCache cache.CompanyCache
	defaultTerms amortization.CompanyTermOptions
	now          func() time.Time
}

func NewLoanService(
	companyRepo repository.CompanyRepository,
	customerRepo repository.CustomerRepository,
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	companyCache cache.CompanyCache,
	cfg *config.Config,
) *LoanService {
	defaultTerms := amortization.DefaultTermOptions
	if cfg != nil {
		defaultTerms = cfg.GetDefaultTerms()
	}

	return &LoanService{
		CompanyRepo:  companyRepo,
		CustomerRepo: customerRepo,
		LoanRepo:     loanRepo,
		PaymentRepo:  paymentRepo,
		companyCache: companyCache,
		defaultTerms: defaultTerms,
		now:          time.Now,
	}
}

// WithClock replaces the clock used when no as-of date is given
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	s.now = now
	return s
}

func (s *LoanService) asOfOrToday(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return s.now().UTC()
	}
	return asOf.UTC()
}

// termsFor returns the company's term set, or the configured default
func (s *LoanService) termsFor(company *domain.Company) amortization.CompanyTermOptions {
	terms := amortization.CompanyTermOptions(company.AllowedTerms).Normalize()
	if len(terms) == 0 {
		return s.defaultTerms
	}
	return terms
}

// resolveTerm applies the smallest-term default and rejects terms the company does not offer
func (s *LoanService) resolveTerm(company *domain.Company, requested int) (int, error) {
	terms := s.termsFor(company)
	if requested == 0 {
		return terms.Smallest(), nil
	}
	if !terms.Contains(requested) {
		return 0, customError.WrapInvalidTerm(requested)
	}
	return requested, nil
}

func (s *LoanService) getLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

// mergedCohort loads the successor a merged loan was folded into, so its
// clock stops at the merge date.
func (s *LoanService) mergedCohort(ctx context.Context, loan *domain.Loan) ([]amortization.LoanSnapshot, error) {
	if loan.ParentLoanID == nil {
		return nil, nil
	}

	parent, err := s.getLoan(ctx, *loan.ParentLoanID)
	if err != nil {
		return nil, err
	}
	return []amortization.LoanSnapshot{parent.Snapshot(decimal.Zero)}, nil
}

// breakdown runs the engine for loan as of asOf, counting payments made up to the end of that day
func (s *LoanService) breakdown(ctx context.Context, loan *domain.Loan, company *domain.Company, asOf time.Time) (amortization.Result, decimal.Decimal, error) {
	paid, err := s.PaymentRepo.GetTotalPaid(ctx, loan.ID, utils.EndOfDay(asOf))
	if err != nil {
		return amortization.Result{}, decimal.Zero, customError.WrapDatabaseError(err)
	}

	cohort, err := s.mergedCohort(ctx, loan)
	if err != nil {
		return amortization.Result{}, decimal.Zero, err
	}

	result, err := amortization.Calculate(loan.Snapshot(paid), amortization.Options{
		AsOf:         asOf,
		AllowedTerms: s.termsFor(company),
		MergedCohort: cohort,
	})
	if err != nil {
		return amortization.Result{}, decimal.Zero, calculationError(err)
	}

	return result, paid, nil
}

func calculationError(err error) error {
	if errors.Is(err, amortization.ErrInvalidInput) {
		return customError.WrapInvalidInput(err)
	}
	return err
}

func logWarnings(loanID uuid.UUID, warnings []amortization.ConfigurationWarning) {
	for _, w := range warnings {
		logger.Warn("loan calculated with configuration warning",
			zap.String("loan_id", loanID.String()),
			zap.String("code", w.Code),
			zap.String("detail", w.Message),
		)
	}
}
