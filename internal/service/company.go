package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/segyhp/loan-servicing/internal/amortization"
	"github.com/segyhp/loan-servicing/internal/cache"
	"github.com/segyhp/loan-servicing/internal/domain"
	customError "github.com/segyhp/loan-servicing/pkg/errors"
	"github.com/segyhp/loan-servicing/pkg/logger"
	"github.com/segyhp/loan-servicing/pkg/utils"
)

// CreateCompany stores a company's fee and term configuration
func (s *LoanService) CreateCompany(ctx context.Context, request *domain.CreateCompanyRequest) (*domain.Company, error) {
	now := s.now().UTC()

	fees := request.Fees
	if fees == nil {
		fees = []domain.Fee{}
	}
	for _, fee := range fees {
		if !utils.FitsScale(fee.Value, utils.RatePlaces) {
			return nil, scaleError("fees.value", utils.RatePlaces)
		}
	}

	company := &domain.Company{
		ID:           uuid.New(),
		Name:         request.Name,
		AllowedTerms: []int(amortization.CompanyTermOptions(request.AllowedTerms).Normalize()),
		Fees:         fees,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.CompanyRepo.Create(ctx, company); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.cacheCompany(ctx, company)

	logger.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.Ints("allowed_terms", company.AllowedTerms),
		zap.Int("fees", len(company.Fees)),
	)

	return company, nil
}

// GetCompany reads through the company cache. Cache failures are logged and
// the database is used instead.
func (s *LoanService) GetCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	if s.companyCache != nil {
		company, err := s.companyCache.Get(ctx, id)
		if err == nil {
			return company, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("company cache read failed",
				zap.String("company_id", id.String()),
				zap.Error(customError.WrapCacheError(err)),
			)
		}
	}

	company, err := s.CompanyRepo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapCompanyNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.cacheCompany(ctx, company)
	return company, nil
}

func (s *LoanService) cacheCompany(ctx context.Context, company *domain.Company) {
	if s.companyCache == nil {
		return
	}
	if err := s.companyCache.Set(ctx, company); err != nil {
		logger.Warn("company cache write failed",
			zap.String("company_id", company.ID.String()),
			zap.Error(customError.WrapCacheError(err)),
		)
	}
}

// CreateCustomer registers a borrower with a company
func (s *LoanService) CreateCustomer(ctx context.Context, request *domain.CreateCustomerRequest) (*domain.Customer, error) {
	if _, err := s.GetCompany(ctx, request.CompanyID); err != nil {
		return nil, err
	}

	customer := &domain.Customer{
		ID:        uuid.New(),
		CompanyID: request.CompanyID,
		FullName:  request.FullName,
		Email:     request.Email,
		Phone:     request.Phone,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.CustomerRepo.Create(ctx, customer); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return customer, nil
}

func (s *LoanService) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	customer, err := s.CustomerRepo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapCustomerNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return customer, nil
}

// companyAndCustomer loads both and checks the customer belongs to the company
func (s *LoanService) companyAndCustomer(ctx context.Context, companyID, customerID uuid.UUID) (*domain.Company, *domain.Customer, error) {
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}

	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}

	if customer.CompanyID != company.ID {
		return nil, nil, customError.WrapCustomerCompanyMismatch(customer.ID.String(), company.ID.String())
	}

	return company, customer, nil
}
