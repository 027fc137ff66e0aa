package amortization

import (
	"errors"
	"fmt"
	"time"

	"github.com/segyhp/loan-servicing/pkg/utils"
)

// ErrInvalidInput is matched by every InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid amortization input")

// InvalidInputError reports a malformed or missing engine input.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

// Warning codes
const (
	WarningEmptyTermSet     = "EMPTY_TERM_SET"
	WarningUnsanctionedTerm = "UNSANCTIONED_TERM"
)

// ConfigurationWarning is a non-fatal note attached to a Result. The
// calculation still runs with the requested term.
type ConfigurationWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseIssueDate parses a calendar date or an RFC3339 timestamp. It never
// falls back to the current date.
func ParseIssueDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, invalid("issue_date", "is required")
	}

	t, err := utils.ParseDate(value)
	if err != nil {
		return time.Time{}, invalid("issue_date", err.Error())
	}
	return t, nil
}
