package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrLoanNotFound            = errors.New("loan not found")
	ErrCompanyNotFound         = errors.New("company not found")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidTerm             = errors.New("term is not offered by the company")
	ErrInvalidPaymentAmount    = errors.New("invalid payment amount")
	ErrPaymentExceedsBalance   = errors.New("payment exceeds remaining balance")
	ErrLoanNotActive           = errors.New("loan is not active")
	ErrCustomerCompanyMismatch = errors.New("customer does not belong to company")
	ErrMergeConflict           = errors.New("loans cannot be merged")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound            = "LOAN_NOT_FOUND"
	ErrCodeCompanyNotFound         = "COMPANY_NOT_FOUND"
	ErrCodeCustomerNotFound        = "CUSTOMER_NOT_FOUND"
	ErrCodeInvalidInput            = "INVALID_INPUT"
	ErrCodeInvalidTerm             = "INVALID_TERM"
	ErrCodeInvalidPaymentAmount    = "INVALID_PAYMENT_AMOUNT"
	ErrCodePaymentExceedsBalance   = "PAYMENT_EXCEEDS_BALANCE"
	ErrCodeLoanNotActive           = "LOAN_NOT_ACTIVE"
	ErrCodeCustomerCompanyMismatch = "CUSTOMER_COMPANY_MISMATCH"
	ErrCodeMergeConflict           = "MERGE_CONFLICT"
	ErrCodeDatabaseError           = "DATABASE_ERROR"
	ErrCodeCacheError              = "CACHE_ERROR"
)

var statusByCode = map[string]int{
	ErrCodeLoanNotFound:            http.StatusNotFound,
	ErrCodeCompanyNotFound:         http.StatusNotFound,
	ErrCodeCustomerNotFound:        http.StatusNotFound,
	ErrCodeInvalidInput:            http.StatusBadRequest,
	ErrCodeInvalidTerm:             http.StatusUnprocessableEntity,
	ErrCodeInvalidPaymentAmount:    http.StatusUnprocessableEntity,
	ErrCodePaymentExceedsBalance:   http.StatusUnprocessableEntity,
	ErrCodeLoanNotActive:           http.StatusConflict,
	ErrCodeCustomerCompanyMismatch: http.StatusUnprocessableEntity,
	ErrCodeMergeConflict:           http.StatusConflict,
	ErrCodeDatabaseError:           http.StatusInternalServerError,
	ErrCodeCacheError:              http.StatusInternalServerError,
}

// HTTPStatus maps an error to the status code handlers should answer with.
func HTTPStatus(err error) int {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		if status, ok := statusByCode[businessErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Code returns the business error code, or an empty string.
func Code(err error) string {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapCompanyNotFound(companyID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCompanyNotFound,
		fmt.Sprintf("Company with ID %s not found", companyID),
		ErrCompanyNotFound,
	)
}

func WrapCustomerNotFound(customerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerNotFound,
		fmt.Sprintf("Customer with ID %s not found", customerID),
		ErrCustomerNotFound,
	)
}

// WrapInvalidInput keeps the underlying error so callers can still match it
func WrapInvalidInput(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidInput,
		"invalid input",
		fmt.Errorf("%w: %w", ErrInvalidInput, err),
	)
}

func WrapInvalidTerm(term int) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTerm,
		fmt.Sprintf("Term of %d months is not offered by the company", term),
		ErrInvalidTerm,
	)
}

func WrapInvalidPaymentAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidPaymentAmount,
	)
}

func WrapPaymentExceedsBalance(amount, remaining string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentExceedsBalance,
		fmt.Sprintf("Payment amount %s exceeds remaining balance %s", amount, remaining),
		ErrPaymentExceedsBalance,
	)
}

func WrapLoanNotActive(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotActive,
		fmt.Sprintf("Loan with ID %s is %s", loanID, status),
		ErrLoanNotActive,
	)
}

func WrapCustomerCompanyMismatch(customerID, companyID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerCompanyMismatch,
		fmt.Sprintf("Customer %s does not belong to company %s", customerID, companyID),
		ErrCustomerCompanyMismatch,
	)
}

func WrapMergeConflict(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeMergeConflict,
		reason,
		ErrMergeConflict,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
