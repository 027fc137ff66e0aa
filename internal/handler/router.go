package handler

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/segyhp/loan-servicing/pkg/response"
)

// NewRouter wires every route behind request logging and CORS
func NewRouter(loanHandler *LoanHandler, healthHandler *HealthHandler, corsOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods(http.MethodGet)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/companies", loanHandler.CreateCompany).Methods(http.MethodPost)
	api.HandleFunc("/companies", loanHandler.ListCompanies).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId}", loanHandler.GetCompany).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId}/dashboard", loanHandler.Dashboard).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId}/customers", loanHandler.ListCustomers).Methods(http.MethodGet)

	api.HandleFunc("/customers", loanHandler.CreateCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers/{customerId}", loanHandler.GetCustomer).Methods(http.MethodGet)
	api.HandleFunc("/customers/{customerId}/loans", loanHandler.ListCustomerLoans).Methods(http.MethodGet)

	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/merge", loanHandler.MergeLoans).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}", loanHandler.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/balance", loanHandler.GetBalance).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/terms", loanHandler.PreviewTerms).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/payments", loanHandler.MakePayment).Methods(http.MethodPost)

	return cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	})(router)
}
