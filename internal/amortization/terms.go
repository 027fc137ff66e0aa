package amortization

import (
	"fmt"
	"sort"
)

// CompanyTermOptions is the set of term lengths, in months, a company offers.
// It is not the term of any single loan.
type CompanyTermOptions []int

// DefaultTermOptions is used whenever a company has no term set configured.
var DefaultTermOptions = CompanyTermOptions{6, 12, 18, 24, 30, 36, 48}

// Normalize returns a sorted copy without duplicates or non-positive entries.
func (o CompanyTermOptions) Normalize() CompanyTermOptions {
	seen := make(map[int]struct{}, len(o))
	out := make(CompanyTermOptions, 0, len(o))
	for _, term := range o {
		if term <= 0 {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	sort.Ints(out)
	return out
}

// Contains reports whether term is offered.
func (o CompanyTermOptions) Contains(term int) bool {
	for _, t := range o {
		if t == term {
			return true
		}
	}
	return false
}

// Smallest returns the shortest term. o must be normalized and non-empty.
func (o CompanyTermOptions) Smallest() int {
	return o[0]
}

// Largest returns the longest term. o must be normalized and non-empty.
func (o CompanyTermOptions) Largest() int {
	return o[len(o)-1]
}

// SmallestAtLeast returns the shortest term >= months.
func (o CompanyTermOptions) SmallestAtLeast(months int) (int, bool) {
	for _, t := range o {
		if t >= months {
			return t, true
		}
	}
	return 0, false
}

// effectiveTerms resolves the configured set, falling back to the defaults.
func effectiveTerms(configured CompanyTermOptions) (CompanyTermOptions, []ConfigurationWarning) {
	terms := configured.Normalize()
	if len(terms) > 0 {
		return terms, nil
	}

	return DefaultTermOptions.Normalize(), []ConfigurationWarning{{
		Code:    WarningEmptyTermSet,
		Message: "company has no allowed terms configured, using default term set",
	}}
}

// resolveDynamicTerm escalates original to the next allowed bucket once the
// loan has run past it. A loan beyond every bucket stays on the largest one.
func resolveDynamicTerm(original, elapsed int, terms CompanyTermOptions) int {
	if elapsed <= original {
		return original
	}

	next, ok := terms.SmallestAtLeast(elapsed)
	if !ok {
		next = terms.Largest()
	}
	if next < original {
		return original
	}
	return next
}

func unsanctioned(term int) ConfigurationWarning {
	return ConfigurationWarning{
		Code:    WarningUnsanctionedTerm,
		Message: fmt.Sprintf("term of %d months is not offered by the company", term),
	}
}
