package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/loan-servicing/internal/amortization"
	"github.com/segyhp/loan-servicing/internal/domain"
	"github.com/segyhp/loan-servicing/internal/fees"
	customError "github.com/segyhp/loan-servicing/pkg/errors"
	"github.com/segyhp/loan-servicing/pkg/logger"
	"github.com/segyhp/loan-servicing/pkg/utils"
)

// loanTerms is what CreateLoan and MergeLoans share when originating a loan
type loanTerms struct {
	issueDate    time.Time
	termMonths   int
	interestType amortization.InterestType
	rate         decimal.Decimal
}

func (s *LoanService) parseLoanTerms(company *domain.Company, issueDate string, termMonths int, interestType string, rate decimal.Decimal) (loanTerms, error) {
	issued, err := amortization.ParseIssueDate(issueDate)
	if err != nil {
		return loanTerms{}, customError.WrapInvalidInput(err)
	}

	kind := amortization.InterestType(interestType)
	if !kind.Valid() {
		return loanTerms{}, customError.WrapInvalidInput(&amortization.InvalidInputError{
			Field:  "interest_type",
			Reason: "must be flat or compound",
		})
	}

	if rate.IsNegative() {
		return loanTerms{}, customError.WrapInvalidInput(&amortization.InvalidInputError{
			Field:  "monthly_rate_percent",
			Reason: "must not be negative",
		})
	}
	if !utils.FitsScale(rate, utils.RatePlaces) {
		return loanTerms{}, scaleError("monthly_rate_percent", utils.RatePlaces)
	}

	term, err := s.resolveTerm(company, termMonths)
	if err != nil {
		return loanTerms{}, err
	}

	return loanTerms{
		issueDate:    utils.TruncateToDate(issued),
		termMonths:   term,
		interestType: kind,
		rate:         rate,
	}, nil
}

func scaleError(field string, places int32) error {
	return customError.WrapInvalidInput(&amortization.InvalidInputError{
		Field:  field,
		Reason: fmt.Sprintf("must not have more than %d decimal places", places),
	})
}

// originate applies the company's fees to base and builds an active loan
func (s *LoanService) originate(company *domain.Company, customerID uuid.UUID, base decimal.Decimal, terms loanTerms) (*domain.Loan, error) {
	resolution, err := fees.Resolve(base, company.Fees)
	if err != nil {
		return nil, customError.WrapInvalidInput(err)
	}

	now := s.now().UTC()
	return &domain.Loan{
		ID:                 uuid.New(),
		CompanyID:          company.ID,
		CustomerID:         customerID,
		BaseAmount:         resolution.Base,
		FeesTotal:          resolution.Fees,
		PrincipalSubtotal:  resolution.Subtotal,
		IssueDate:          terms.issueDate,
		TermMonths:         terms.termMonths,
		InterestType:       terms.interestType,
		MonthlyRatePercent: terms.rate,
		Status:             domain.LoanStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// CreateLoan originates a loan for a customer of the company
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	if !request.BaseAmount.IsPositive() {
		return nil, customError.WrapInvalidInput(&amortization.InvalidInputError{
			Field:  "base_amount",
			Reason: "must be positive",
		})
	}
	if !utils.FitsScale(request.BaseAmount, utils.CurrencyPlaces) {
		return nil, scaleError("base_amount", utils.CurrencyPlaces)
	}

	company, customer, err := s.companyAndCustomer(ctx, request.CompanyID, request.CustomerID)
	if err != nil {
		return nil, err
	}

	terms, err := s.parseLoanTerms(company, request.IssueDate, request.TermMonths, request.InterestType, request.MonthlyRatePercent)
	if err != nil {
		return nil, err
	}

	loan, err := s.originate(company, customer.ID, request.BaseAmount, terms)
	if err != nil {
		return nil, err
	}

	if err = s.LoanRepo.Create(ctx, loan); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	logger.Info("loan created",
		zap.String("loan_id", loan.ID.String()),
		zap.String("company_id", company.ID.String()),
		zap.String("principal_subtotal", loan.PrincipalSubtotal.String()),
		zap.Int("term_months", loan.TermMonths),
	)

	return loan, nil
}

// GetBalance returns the amortization breakdown of a loan as of a date.
// A zero asOf means today.
func (s *LoanService) GetBalance(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.BalanceResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	company, err := s.GetCompany(ctx, loan.CompanyID)
	if err != nil {
		return nil, err
	}

	asOf = s.asOfOrToday(asOf)
	result, paid, err := s.breakdown(ctx, loan, company, asOf)
	if err != nil {
		return nil, err
	}
	logWarnings(loan.ID, result.Warnings)

	return &domain.BalanceResponse{
		LoanID:     loan.ID,
		AsOf:       asOf,
		Status:     loan.Status,
		PaidAmount: paid,
		Breakdown:  result,
	}, nil
}

// PreviewTerms shows what the loan would cost under each term the company offers
func (s *LoanService) PreviewTerms(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.TermPreviewResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	company, err := s.GetCompany(ctx, loan.CompanyID)
	if err != nil {
		return nil, err
	}

	asOf = s.asOfOrToday(asOf)
	paid, err := s.PaymentRepo.GetTotalPaid(ctx, loan.ID, utils.EndOfDay(asOf))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	cohort, err := s.mergedCohort(ctx, loan)
	if err != nil {
		return nil, err
	}

	terms := s.termsFor(company)
	results, err := amortization.CalculateBatchForTerms(loan.Snapshot(paid), terms, amortization.Options{
		AsOf:         asOf,
		AllowedTerms: terms,
		MergedCohort: cohort,
	})
	if err != nil {
		return nil, calculationError(err)
	}

	previews := make([]domain.TermPreview, 0, len(results))
	for i, result := range results {
		previews = append(previews, domain.TermPreview{
			TermMonths: terms[i],
			Breakdown:  result,
		})
	}

	return &domain.TermPreviewResponse{
		LoanID:   loan.ID,
		AsOf:     asOf,
		Previews: previews,
	}, nil
}

// MakePayment records a payment against an active loan. The amount may not
// exceed the balance owed on the payment date; a payment that clears the
// balance settles the loan. The balance check runs under a lock on the loan
// so concurrent payments cannot overpay it.
func (s *LoanService) MakePayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.MakePaymentResponse, error) {
	if !request.Amount.IsPositive() || !utils.FitsScale(request.Amount, utils.CurrencyPlaces) {
		return nil, customError.WrapInvalidPaymentAmount(request.Amount.String())
	}

	paidAt := s.now().UTC()
	if request.PaidAt != "" {
		parsed, err := utils.ParseDate(request.PaidAt)
		if err != nil {
			return nil, customError.WrapInvalidInput(&amortization.InvalidInputError{
				Field:  "paid_at",
				Reason: err.Error(),
			})
		}
		paidAt = parsed
	}

	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if !loan.IsActive() {
		return nil, customError.WrapLoanNotActive(loan.ID.String(), loan.Status)
	}

	company, err := s.GetCompany(ctx, loan.CompanyID)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:        uuid.New(),
		LoanID:    loan.ID,
		Amount:    request.Amount,
		PaidAt:    paidAt,
		Note:      request.Note,
		CreatedAt: s.now().UTC(),
	}

	var remaining decimal.Decimal
	err = s.PaymentRepo.Record(ctx, payment, utils.EndOfDay(paidAt), func(locked *domain.Loan, paid decimal.Decimal) (bool, error) {
		if !locked.IsActive() {
			return false, customError.WrapLoanNotActive(locked.ID.String(), locked.Status)
		}

		result, err := amortization.Calculate(locked.Snapshot(paid), amortization.Options{
			AsOf:         paidAt,
			AllowedTerms: s.termsFor(company),
		})
		if err != nil {
			return false, calculationError(err)
		}

		if request.Amount.GreaterThan(result.RemainingBalance) {
			return false, customError.WrapPaymentExceedsBalance(request.Amount.String(), result.RemainingBalance.String())
		}

		remaining = utils.ClampZero(result.RemainingBalance.Sub(request.Amount))
		return remaining.IsZero(), nil
	})

	var businessErr *customError.BusinessError
	if errors.As(err, &businessErr) {
		return nil, err
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	status := domain.LoanStatusActive
	if remaining.IsZero() {
		status = domain.LoanStatusPaid
	}

	logger.Info("payment recorded",
		zap.String("loan_id", loan.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("remaining_balance", remaining.String()),
		zap.String("loan_status", status),
	)

	return &domain.MakePaymentResponse{
		Payment:          payment,
		RemainingBalance: remaining,
		LoanStatus:       status,
	}, nil
}
