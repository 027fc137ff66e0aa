package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/loan-servicing/internal/amortization"
	"github.com/segyhp/loan-servicing/internal/domain"
	"github.com/segyhp/loan-servicing/internal/repository"
	customError "github.com/segyhp/loan-servicing/pkg/errors"
	"github.com/segyhp/loan-servicing/pkg/logger"
	"github.com/segyhp/loan-servicing/pkg/utils"
)

// MergeLoans folds the remaining balances of a customer's active loans, as of
// the new issue date, into a single new loan. The merged loans keep their
// history and point at the new loan as their parent.
func (s *LoanService) MergeLoans(ctx context.Context, request *domain.MergeLoansRequest) (*domain.MergeLoansResponse, error) {
	if request.AdditionalAmount.IsNegative() {
		return nil, customError.WrapInvalidInput(&amortization.InvalidInputError{
			Field:  "additional_amount",
			Reason: "must not be negative",
		})
	}
	if !utils.FitsScale(request.AdditionalAmount, utils.CurrencyPlaces) {
		return nil, scaleError("additional_amount", utils.CurrencyPlaces)
	}

	ids, err := uniqueLoanIDs(request.LoanIDs)
	if err != nil {
		return nil, err
	}

	company, customer, err := s.companyAndCustomer(ctx, request.CompanyID, request.CustomerID)
	if err != nil {
		return nil, err
	}

	terms, err := s.parseLoanTerms(company, request.IssueDate, request.TermMonths, request.InterestType, request.MonthlyRatePercent)
	if err != nil {
		return nil, err
	}

	loans, err := s.mergeCandidates(ctx, ids, company, customer)
	if err != nil {
		return nil, err
	}

	totals, err := s.PaymentRepo.GetTotalsByLoanIDs(ctx, ids, utils.EndOfDay(terms.issueDate))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	allowed := s.termsFor(company)
	parts := make([]domain.MergedLoanPart, 0, len(loans))
	amounts := []decimal.Decimal{request.AdditionalAmount}
	for _, loan := range loans {
		if terms.issueDate.Before(loan.IssueDate) {
			return nil, customError.WrapMergeConflict(
				fmt.Sprintf("loan %s is issued after the merge date", loan.ID),
			)
		}

		result, err := amortization.Calculate(loan.Snapshot(totals[loan.ID]), amortization.Options{
			AsOf:         terms.issueDate,
			AllowedTerms: allowed,
		})
		if err != nil {
			return nil, calculationError(err)
		}

		amounts = append(amounts, result.RemainingBalance)
		parts = append(parts, domain.MergedLoanPart{
			LoanID:           loan.ID,
			RemainingBalance: result.RemainingBalance,
			MonthsElapsed:    result.MonthsElapsed,
		})
	}

	base := utils.SumDecimals(amounts...)
	if !base.IsPositive() {
		return nil, customError.WrapMergeConflict("nothing left to merge")
	}

	merged, err := s.originate(company, customer.ID, base, terms)
	if err != nil {
		return nil, err
	}

	err = s.LoanRepo.CreateMerged(ctx, merged, ids)
	if errors.Is(err, repository.ErrStaleLoans) {
		return nil, customError.WrapMergeConflict(err.Error())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	logger.Info("loans merged",
		zap.String("loan_id", merged.ID.String()),
		zap.Int("merged_loans", len(parts)),
		zap.String("base_amount", merged.BaseAmount.String()),
	)

	return &domain.MergeLoansResponse{
		Loan:        merged,
		MergedLoans: parts,
	}, nil
}

// mergeCandidates loads the loans in request order and checks each can be merged
func (s *LoanService) mergeCandidates(ctx context.Context, ids []uuid.UUID, company *domain.Company, customer *domain.Customer) ([]*domain.Loan, error) {
	found, err := s.LoanRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	byID := make(map[uuid.UUID]*domain.Loan, len(found))
	for _, loan := range found {
		byID[loan.ID] = loan
	}

	loans := make([]*domain.Loan, 0, len(ids))
	for _, id := range ids {
		loan, ok := byID[id]
		if !ok {
			return nil, customError.WrapLoanNotFound(id.String())
		}
		if !loan.IsActive() {
			return nil, customError.WrapLoanNotActive(loan.ID.String(), loan.Status)
		}
		if loan.CompanyID != company.ID || loan.CustomerID != customer.ID {
			return nil, customError.WrapMergeConflict(
				fmt.Sprintf("loan %s belongs to another customer", loan.ID),
			)
		}
		loans = append(loans, loan)
	}

	return loans, nil
}

func uniqueLoanIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, customError.WrapInvalidInput(&amortization.InvalidInputError{
			Field:  "loan_ids",
			Reason: "is required",
		})
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return nil, customError.WrapMergeConflict(fmt.Sprintf("loan %s is listed twice", id))
		}
		seen[id] = struct{}{}
	}
	return ids, nil
}
