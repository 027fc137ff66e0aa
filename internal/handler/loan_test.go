package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-servicing/internal/amortization"
	"github.com/segyhp/loan-servicing/internal/domain"
	"github.com/segyhp/loan-servicing/internal/mocks"
	customError "github.com/segyhp/loan-servicing/pkg/errors"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func newTestRouter(service *mocks.MockLoanService) http.Handler {
	return NewRouter(NewLoanHandler(service), NewHealthHandler(nil, nil, time.Second), []string{"*"})
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestLoanHandler_CreateLoan(t *testing.T) {
	companyID := uuid.New()
	customerID := uuid.New()

	validBody := map[string]interface{}{
		"company_id":           companyID,
		"customer_id":          customerID,
		"base_amount":          "1000",
		"issue_date":           "2024-01-01",
		"term_months":          12,
		"interest_type":        "flat",
		"monthly_rate_percent": "1.5",
	}

	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*mocks.MockLoanService)
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name: "created",
			body: validBody,
			setupMock: func(service *mocks.MockLoanService) {
				service.On("CreateLoan", mock.Anything, mock.MatchedBy(func(req *domain.CreateLoanRequest) bool {
					return req.CompanyID == companyID &&
						req.BaseAmount.Equal(decimal.NewFromInt(1000)) &&
						req.MonthlyRatePercent.Equal(decimal.RequireFromString("1.5")) &&
						req.TermMonths == 12
				})).Return(&domain.Loan{ID: uuid.New(), CompanyID: companyID, Status: domain.LoanStatusActive}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid JSON payload",
			body:           "{not json",
			setupMock:      func(service *mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request body",
		},
		{
			name: "zero base amount",
			body: map[string]interface{}{
				"company_id":    companyID,
				"customer_id":   customerID,
				"base_amount":   "0",
				"issue_date":    "2024-01-01",
				"interest_type": "flat",
			},
			setupMock:      func(service *mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Validation failed",
		},
		{
			name: "negative rate",
			body: map[string]interface{}{
				"company_id":           companyID,
				"customer_id":          customerID,
				"base_amount":          "1000",
				"issue_date":           "2024-01-01",
				"interest_type":        "flat",
				"monthly_rate_percent": "-1",
			},
			setupMock:      func(service *mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Validation failed",
		},
		{
			name: "base amount below a cent",
			body: map[string]interface{}{
				"company_id":    companyID,
				"customer_id":   customerID,
				"base_amount":   "100.005",
				"issue_date":    "2024-01-01",
				"interest_type": "flat",
			},
			setupMock:      func(service *mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Validation failed",
		},
		{
			name: "rate beyond four places",
			body: map[string]interface{}{
				"company_id":           companyID,
				"customer_id":          customerID,
				"base_amount":          "100",
				"issue_date":           "2024-01-01",
				"interest_type":        "flat",
				"monthly_rate_percent": "1.123456",
			},
			setupMock:      func(service *mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Validation failed",
		},
		{
			name: "unknown interest type",
			body: map[string]interface{}{
				"company_id":    companyID,
				"customer_id":   customerID,
				"base_amount":   "1000",
				"issue_date":    "2024-01-01",
				"interest_type": "simple",
			},
			setupMock:      func(service *mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Validation failed",
		},
		{
			name: "term not offered",
			body: validBody,
			setupMock: func(service *mocks.MockLoanService) {
				service.On("CreateLoan", mock.Anything, mock.Anything).Return(nil, customError.WrapInvalidTerm(12)).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   customError.ErrCodeInvalidTerm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mocks.MockLoanService{}
			tt.setupMock(service)

			w, env := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedStatus == http.StatusCreated, env.Success)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, env.Code)
			}
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, env.Message)
				service.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestLoanHandler_GetBalance(t *testing.T) {
	loanID := uuid.New()
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("with as_of", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("GetBalance", mock.Anything, loanID, asOf).Return(&domain.BalanceResponse{
			LoanID: loanID,
			AsOf:   asOf,
			Status: domain.LoanStatusActive,
			Breakdown: amortization.Result{
				Subtotal:         decimal.NewFromInt(1000),
				InterestAccrued:  decimal.NewFromInt(60),
				TotalOwed:        decimal.NewFromInt(1060),
				RemainingBalance: decimal.NewFromInt(1060),
				MonthsElapsed:    2,
				DynamicTerm:      6,
			},
		}, nil)

		w, env := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/loans/"+loanID.String()+"/balance?as_of=2024-03-01", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var balance domain.BalanceResponse
		require.NoError(t, json.Unmarshal(env.Data, &balance))
		assert.Equal(t, loanID, balance.LoanID)
		assert.Equal(t, 6, balance.Breakdown.DynamicTerm)
		assert.True(t, balance.Breakdown.RemainingBalance.Equal(decimal.NewFromInt(1060)))
	})

	t.Run("without as_of", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("GetBalance", mock.Anything, loanID, time.Time{}).Return(&domain.BalanceResponse{LoanID: loanID}, nil)

		w, _ := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/loans/"+loanID.String()+"/balance", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("bad as_of", func(t *testing.T) {
		service := &mocks.MockLoanService{}

		w, env := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/loans/"+loanID.String()+"/balance?as_of=yesterday", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid as_of date", env.Message)
	})

	t.Run("bad loan id", func(t *testing.T) {
		service := &mocks.MockLoanService{}

		w, _ := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/loans/LOAN123/balance", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown loan", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("GetBalance", mock.Anything, loanID, time.Time{}).Return(nil, customError.WrapLoanNotFound(loanID.String()))

		w, env := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/loans/"+loanID.String()+"/balance", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, customError.ErrCodeLoanNotFound, env.Code)
	})

	t.Run("database failure hides the detail", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("GetBalance", mock.Anything, loanID, time.Time{}).
			Return(nil, customError.WrapDatabaseError(errors.New("pq: password authentication failed")))

		w, env := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/loans/"+loanID.String()+"/balance", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, env.Error)
		assert.Equal(t, "Internal server error", env.Message)
	})
}

func TestLoanHandler_PreviewTerms(t *testing.T) {
	loanID := uuid.New()
	service := &mocks.MockLoanService{}
	service.On("PreviewTerms", mock.Anything, loanID, time.Time{}).Return(&domain.TermPreviewResponse{
		LoanID: loanID,
		Previews: []domain.TermPreview{
			{TermMonths: 6, Breakdown: amortization.Result{DynamicTerm: 6}},
			{TermMonths: 12, Breakdown: amortization.Result{DynamicTerm: 12}},
		},
	}, nil)

	w, env := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/loans/"+loanID.String()+"/terms", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var preview domain.TermPreviewResponse
	require.NoError(t, json.Unmarshal(env.Data, &preview))
	assert.Len(t, preview.Previews, 2)
}

func TestLoanHandler_MakePayment(t *testing.T) {
	loanID := uuid.New()

	t.Run("recorded", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("MakePayment", mock.Anything, loanID, mock.MatchedBy(func(req *domain.MakePaymentRequest) bool {
			return req.Amount.Equal(decimal.RequireFromString("250.50")) && req.PaidAt == "2024-02-01"
		})).Return(&domain.MakePaymentResponse{
			Payment:          &domain.Payment{ID: uuid.New(), LoanID: loanID},
			RemainingBalance: decimal.NewFromInt(809),
			LoanStatus:       domain.LoanStatusActive,
		}, nil)

		w, env := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments",
			map[string]string{"amount": "250.50", "paid_at": "2024-02-01"})

		require.Equal(t, http.StatusCreated, w.Code)
		var payment domain.MakePaymentResponse
		require.NoError(t, json.Unmarshal(env.Data, &payment))
		assert.Equal(t, domain.LoanStatusActive, payment.LoanStatus)
	})

	t.Run("zero amount fails validation", func(t *testing.T) {
		service := &mocks.MockLoanService{}

		w, env := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments",
			map[string]string{"amount": "0"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Message)
	})

	t.Run("sub-cent amount fails validation", func(t *testing.T) {
		service := &mocks.MockLoanService{}

		w, env := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments",
			map[string]string{"amount": "0.004"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Message)
		service.AssertNotCalled(t, "MakePayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("above remaining balance", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("MakePayment", mock.Anything, loanID, mock.Anything).
			Return(nil, customError.WrapPaymentExceedsBalance("5000", "1060"))

		w, env := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments",
			map[string]string{"amount": "5000"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, customError.ErrCodePaymentExceedsBalance, env.Code)
	})
}

func TestLoanHandler_MergeLoans(t *testing.T) {
	companyID := uuid.New()
	customerID := uuid.New()
	loanIDs := []uuid.UUID{uuid.New(), uuid.New()}

	t.Run("merged", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("MergeLoans", mock.Anything, mock.MatchedBy(func(req *domain.MergeLoansRequest) bool {
			return len(req.LoanIDs) == 2 && req.AdditionalAmount.IsZero()
		})).Return(&domain.MergeLoansResponse{
			Loan: &domain.Loan{ID: uuid.New()},
			MergedLoans: []domain.MergedLoanPart{
				{LoanID: loanIDs[0], RemainingBalance: decimal.NewFromInt(1000)},
				{LoanID: loanIDs[1], RemainingBalance: decimal.NewFromInt(500)},
			},
		}, nil)

		w, _ := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans/merge", map[string]interface{}{
			"company_id":    companyID,
			"customer_id":   customerID,
			"loan_ids":      loanIDs,
			"issue_date":    "2024-03-01",
			"interest_type": "compound",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("no loans listed", func(t *testing.T) {
		service := &mocks.MockLoanService{}

		w, _ := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans/merge", map[string]interface{}{
			"company_id":    companyID,
			"customer_id":   customerID,
			"loan_ids":      []uuid.UUID{},
			"issue_date":    "2024-03-01",
			"interest_type": "compound",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("conflict", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("MergeLoans", mock.Anything, mock.Anything).Return(nil, customError.WrapMergeConflict("nothing left to merge"))

		w, env := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/loans/merge", map[string]interface{}{
			"company_id":    companyID,
			"customer_id":   customerID,
			"loan_ids":      loanIDs,
			"issue_date":    "2024-03-01",
			"interest_type": "flat",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "nothing left to merge", env.Message)
	})
}

func TestLoanHandler_Companies(t *testing.T) {
	companyID := uuid.New()

	t.Run("create", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("CreateCompany", mock.Anything, mock.MatchedBy(func(req *domain.CreateCompanyRequest) bool {
			return req.Name == "Acme Lending" && len(req.Fees) == 1 && req.Fees[0].Type == domain.FeeTypePercentage
		})).Return(&domain.Company{ID: companyID, Name: "Acme Lending"}, nil)

		w, _ := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/companies", map[string]interface{}{
			"name":          "Acme Lending",
			"allowed_terms": []int{6, 12},
			"fees":          []map[string]string{{"name": "processing", "type": "percentage", "value": "2"}},
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("create with negative fee", func(t *testing.T) {
		service := &mocks.MockLoanService{}

		w, _ := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/companies", map[string]interface{}{
			"name": "Acme Lending",
			"fees": []map[string]string{{"name": "processing", "type": "flat", "value": "-5"}},
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get unknown", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("GetCompany", mock.Anything, companyID).Return(nil, customError.WrapCompanyNotFound(companyID.String()))

		w, env := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/companies/"+companyID.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, customError.ErrCodeCompanyNotFound, env.Code)
	})

	t.Run("dashboard", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		service.On("Dashboard", mock.Anything, companyID, asOf).Return(&domain.DashboardSummary{
			CompanyID:   companyID,
			ActiveLoans: 3,
		}, nil)

		w, env := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/companies/"+companyID.String()+"/dashboard?as_of=2024-03-01", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var summary domain.DashboardSummary
		require.NoError(t, json.Unmarshal(env.Data, &summary))
		assert.Equal(t, 3, summary.ActiveLoans)
	})
}

func TestLoanHandler_Customers(t *testing.T) {
	companyID := uuid.New()
	customerID := uuid.New()

	t.Run("create", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("CreateCustomer", mock.Anything, mock.AnythingOfType("*domain.CreateCustomerRequest")).
			Return(&domain.Customer{ID: customerID, CompanyID: companyID, FullName: "Jane Borrower"}, nil)

		w, _ := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/customers", map[string]interface{}{
			"company_id": companyID,
			"full_name":  "Jane Borrower",
			"email":      "jane@example.com",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("bad email", func(t *testing.T) {
		service := &mocks.MockLoanService{}

		w, _ := doRequest(t, newTestRouter(service), http.MethodPost, "/api/v1/customers", map[string]interface{}{
			"company_id": companyID,
			"full_name":  "Jane Borrower",
			"email":      "not-an-email",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		service := &mocks.MockLoanService{}
		service.On("GetCustomer", mock.Anything, customerID).Return(&domain.Customer{ID: customerID}, nil)

		w, _ := doRequest(t, newTestRouter(service), http.MethodGet, "/api/v1/customers/"+customerID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestLoanHandler_Listings(t *testing.T) {
	companyID := uuid.New()
	customerID := uuid.New()
	loanID := uuid.New()

	service := &mocks.MockLoanService{}
	service.On("ListCompanies", mock.Anything).Return([]*domain.Company{{ID: companyID}}, nil)
	service.On("ListCustomers", mock.Anything, companyID).Return([]*domain.Customer{{ID: customerID, CompanyID: companyID}}, nil)
	service.On("ListCustomerLoans", mock.Anything, customerID).Return([]*domain.Loan{{ID: loanID, CustomerID: customerID}}, nil)
	service.On("GetLoan", mock.Anything, loanID).Return(&domain.LoanDetails{
		Loan:       &domain.Loan{ID: loanID},
		Payments:   []*domain.Payment{},
		MergedFrom: []*domain.Loan{},
	}, nil)
	router := newTestRouter(service)

	for _, path := range []string{
		"/api/v1/companies",
		"/api/v1/companies/" + companyID.String() + "/customers",
		"/api/v1/customers/" + customerID.String() + "/loans",
		"/api/v1/loans/" + loanID.String(),
	} {
		w, env := doRequest(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.True(t, env.Success, path)
	}

	service.AssertExpectations(t)
}
