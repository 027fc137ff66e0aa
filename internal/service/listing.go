package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/segyhp/loan-servicing/internal/domain"
	customError "github.com/segyhp/loan-servicing/pkg/errors"
)

func (s *LoanService) ListCompanies(ctx context.Context) ([]*domain.Company, error) {
	companies, err := s.CompanyRepo.List(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if companies == nil {
		companies = []*domain.Company{}
	}
	return companies, nil
}

// ListCustomers returns the borrowers of a company
func (s *LoanService) ListCustomers(ctx context.Context, companyID uuid.UUID) ([]*domain.Customer, error) {
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}

	customers, err := s.CustomerRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if customers == nil {
		customers = []*domain.Customer{}
	}
	return customers, nil
}

// ListCustomerLoans returns every loan of a customer, merged ones included
func (s *LoanService) ListCustomerLoans(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	loans, err := s.LoanRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if loans == nil {
		loans = []*domain.Loan{}
	}
	return loans, nil
}

// GetLoan returns a loan with its payments and the loans that were merged into it
func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.LoanDetails, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.GetByLoanID(ctx, loan.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	children, err := s.LoanRepo.ListChildren(ctx, loan.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	details := &domain.LoanDetails{
		Loan:       loan,
		Payments:   payments,
		MergedFrom: children,
	}
	if details.Payments == nil {
		details.Payments = []*domain.Payment{}
	}
	if details.MergedFrom == nil {
		details.MergedFrom = []*domain.Loan{}
	}
	return details, nil
}
