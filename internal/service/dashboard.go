package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/loan-servicing/internal/amortization"
	"github.com/segyhp/loan-servicing/internal/domain"
	customError "github.com/segyhp/loan-servicing/pkg/errors"
	"github.com/segyhp/loan-servicing/pkg/logger"
	"github.com/segyhp/loan-servicing/pkg/utils"
)

// Dashboard aggregates a company's loan book as of a date. Merged loans are
// only counted since their balance lives on in the loan they were merged into.
// Settled loans contribute what was paid on them.
func (s *LoanService) Dashboard(ctx context.Context, companyID uuid.UUID, asOf time.Time) (*domain.DashboardSummary, error) {
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	loans, err := s.LoanRepo.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	asOf = s.asOfOrToday(asOf)
	summary := &domain.DashboardSummary{
		CompanyID:        company.ID,
		AsOf:             asOf,
		TotalPrincipal:   decimal.Zero,
		TotalInterest:    decimal.Zero,
		TotalOwed:        decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
	}

	issued := issuedBy(loans, asOf)
	if len(issued) == 0 {
		return summary, nil
	}

	totals, err := s.PaymentRepo.GetTotalsByLoanIDs(ctx, loanIDs(issued), utils.EndOfDay(asOf))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	allowed := s.termsFor(company)
	for _, loan := range issued {
		paid := totals[loan.ID]

		switch loan.Status {
		case domain.LoanStatusMerged:
			summary.MergedLoans++
			continue
		case domain.LoanStatusPaid:
			summary.PaidLoans++
			summary.TotalPrincipal = summary.TotalPrincipal.Add(loan.PrincipalSubtotal)
			summary.TotalInterest = summary.TotalInterest.Add(utils.ClampZero(paid.Sub(loan.PrincipalSubtotal)))
			summary.TotalOwed = summary.TotalOwed.Add(paid)
			summary.TotalPaid = summary.TotalPaid.Add(paid)
			continue
		}

		result, err := amortization.Calculate(loan.Snapshot(paid), amortization.Options{
			AsOf:         asOf,
			AllowedTerms: allowed,
		})
		if err != nil {
			return nil, calculationError(err)
		}

		summary.ActiveLoans++
		if isOverdue(loan, result) {
			summary.OverdueLoans++
		}
		summary.TotalPrincipal = summary.TotalPrincipal.Add(result.Subtotal)
		summary.TotalInterest = summary.TotalInterest.Add(result.InterestAccrued)
		summary.TotalOwed = summary.TotalOwed.Add(result.TotalOwed)
		summary.TotalPaid = summary.TotalPaid.Add(paid)
		summary.TotalOutstanding = summary.TotalOutstanding.Add(result.RemainingBalance)
	}

	return summary, nil
}

// RefreshStatuses settles active loans whose balance has reached zero and
// counts the ones running past their original term. A failing loan is logged
// and skipped so one bad record does not stop the run.
func (s *LoanService) RefreshStatuses(ctx context.Context, asOf time.Time) (*domain.StatusRefreshReport, error) {
	loans, err := s.LoanRepo.ListActive(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	asOf = s.asOfOrToday(asOf)
	report := &domain.StatusRefreshReport{}
	if len(loans) == 0 {
		return report, nil
	}

	totals, err := s.PaymentRepo.GetTotalsByLoanIDs(ctx, loanIDs(loans), utils.EndOfDay(asOf))
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	companies := make(map[uuid.UUID]*domain.Company)
	for _, loan := range loans {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		company, ok := companies[loan.CompanyID]
		if !ok {
			company, err = s.GetCompany(ctx, loan.CompanyID)
			if err != nil {
				report.Failed++
				logger.Error("status refresh: company lookup failed", err, zap.String("loan_id", loan.ID.String()))
				continue
			}
			companies[loan.CompanyID] = company
		}

		result, err := amortization.Calculate(loan.Snapshot(totals[loan.ID]), amortization.Options{
			AsOf:         asOf,
			AllowedTerms: s.termsFor(company),
		})
		if err != nil {
			report.Failed++
			logger.Error("status refresh: calculation failed", err, zap.String("loan_id", loan.ID.String()))
			continue
		}

		if result.RemainingBalance.IsZero() {
			if err = s.LoanRepo.UpdateStatus(ctx, loan.ID, domain.LoanStatusPaid); err != nil {
				report.Failed++
				logger.Error("status refresh: settle failed", err, zap.String("loan_id", loan.ID.String()))
				continue
			}
			report.Settled++
			continue
		}

		if isOverdue(loan, result) {
			report.Overdue++
			logger.Warn("loan past original term",
				zap.String("loan_id", loan.ID.String()),
				zap.Int("term_months", loan.TermMonths),
				zap.Int("months_elapsed", result.MonthsElapsed),
				zap.String("remaining_balance", result.RemainingBalance.String()),
			)
		}
	}

	logger.Info("loan statuses refreshed",
		zap.Time("as_of", asOf),
		zap.Int("checked", report.Checked),
		zap.Int("settled", report.Settled),
		zap.Int("overdue", report.Overdue),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func isOverdue(loan *domain.Loan, result amortization.Result) bool {
	return result.MonthsElapsed > loan.TermMonths && result.RemainingBalance.IsPositive()
}

func issuedBy(loans []*domain.Loan, asOf time.Time) []*domain.Loan {
	day := utils.TruncateToDate(asOf)
	out := make([]*domain.Loan, 0, len(loans))
	for _, loan := range loans {
		if !loan.IssueDate.After(day) {
			out = append(out, loan)
		}
	}
	return out
}

func loanIDs(loans []*domain.Loan) []uuid.UUID {
	ids := make([]uuid.UUID, len(loans))
	for i, loan := range loans {
		ids[i] = loan.ID
	}
	return ids
}
