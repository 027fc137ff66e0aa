package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/loan-servicing/internal/domain"
	"github.com/segyhp/loan-servicing/pkg/response"
	"github.com/segyhp/loan-servicing/pkg/utils"
)

// LoanService is what the HTTP layer needs from the service package
type LoanService interface {
	CreateCompany(ctx context.Context, request *domain.CreateCompanyRequest) (*domain.Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	CreateCustomer(ctx context.Context, request *domain.CreateCustomerRequest) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error)
	GetBalance(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.BalanceResponse, error)
	PreviewTerms(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.TermPreviewResponse, error)
	MakePayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.MakePaymentResponse, error)
	MergeLoans(ctx context.Context, request *domain.MergeLoansRequest) (*domain.MergeLoansResponse, error)
	Dashboard(ctx context.Context, companyID uuid.UUID, asOf time.Time) (*domain.DashboardSummary, error)
	ListCompanies(ctx context.Context) ([]*domain.Company, error)
	ListCustomers(ctx context.Context, companyID uuid.UUID) ([]*domain.Customer, error)
	ListCustomerLoans(ctx context.Context, customerID uuid.UUID) ([]*domain.Loan, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.LoanDetails, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
	}
}

// decode reads a JSON body into dst and validates it. It answers the
// request itself and returns false when the body is unusable.
func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return false
	}

	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// asOfParam reads the optional as_of query parameter. Missing means today.
func asOfParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}, true
	}

	asOf, err := utils.ParseDate(raw)
	if err != nil {
		response.BadRequest(w, "Invalid as_of date", err)
		return time.Time{}, false
	}
	return asOf, true
}

// CreateCompany handles POST /api/v1/companies
func (h *LoanHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateCompanyRequest
	if !h.decode(w, r, &request) {
		return
	}

	company, err := h.service.CreateCompany(r.Context(), &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, company)
}

// GetCompany handles GET /api/v1/companies/{companyId}
func (h *LoanHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "companyId")
	if !ok {
		return
	}

	company, err := h.service.GetCompany(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, company)
}

// ListCompanies handles GET /api/v1/companies
func (h *LoanHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, companies)
}

// ListCustomers handles GET /api/v1/companies/{companyId}/customers
func (h *LoanHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "companyId")
	if !ok {
		return
	}

	customers, err := h.service.ListCustomers(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, customers)
}

// Dashboard handles GET /api/v1/companies/{companyId}/dashboard
func (h *LoanHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "companyId")
	if !ok {
		return
	}
	asOf, ok := asOfParam(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Dashboard(r.Context(), id, asOf)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, summary)
}

// CreateCustomer handles POST /api/v1/customers
func (h *LoanHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateCustomerRequest
	if !h.decode(w, r, &request) {
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, customer)
}

// GetCustomer handles GET /api/v1/customers/{customerId}
func (h *LoanHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "customerId")
	if !ok {
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, customer)
}

// ListCustomerLoans handles GET /api/v1/customers/{customerId}/loans
func (h *LoanHandler) ListCustomerLoans(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "customerId")
	if !ok {
		return
	}

	loans, err := h.service.ListCustomerLoans(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, loans)
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if !h.decode(w, r, &request) {
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, loan)
}

// MergeLoans handles POST /api/v1/loans/merge
func (h *LoanHandler) MergeLoans(w http.ResponseWriter, r *http.Request) {
	var request domain.MergeLoansRequest
	if !h.decode(w, r, &request) {
		return
	}

	merged, err := h.service.MergeLoans(r.Context(), &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, merged)
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	details, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, details)
}

// GetBalance handles GET /api/v1/loans/{loanId}/balance
func (h *LoanHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}
	asOf, ok := asOfParam(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), id, asOf)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, balance)
}

// PreviewTerms handles GET /api/v1/loans/{loanId}/terms
func (h *LoanHandler) PreviewTerms(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}
	asOf, ok := asOfParam(w, r)
	if !ok {
		return
	}

	preview, err := h.service.PreviewTerms(r.Context(), id, asOf)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, preview)
}

// MakePayment handles POST /api/v1/loans/{loanId}/payments
func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	var request domain.MakePaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	payment, err := h.service.MakePayment(r.Context(), id, &request)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, payment)
}
