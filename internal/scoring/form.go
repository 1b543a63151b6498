// Package scoring builds requests for the remote default-risk scoring
// service and carries the HTTP client that talks to it.
package scoring

import (
	"fmt"
	"math"
	"strconv"

	dErrors "riskdash/pkg/domain-errors"
)

// FormInput is the editable applicant form as the UI owns it. Numeric fields
// arrive as raw strings and are coerced at submission time; the core never
// mutates this value.
type FormInput struct {
	LoanAmount      string
	InterestRate    string
	AnnualIncome    string
	EmploymentYears string
	Term            string
	Grade           string
	HomeOwnership   string
	Purpose         string
}

// DefaultForm returns the form's initial values.
func DefaultForm() FormInput {
	return FormInput{
		LoanAmount:      "10000",
		InterestRate:    "11.5",
		AnnualIncome:    "75000",
		EmploymentYears: "5",
		Term:            Term36Months,
		Grade:           "B",
		HomeOwnership:   "MORTGAGE",
		Purpose:         "debt_consolidation",
	}
}

// Accepted categorical values, exactly as the scoring model was trained on
// them. The leading space in the term values is part of the wire format.
const (
	Term36Months = " 36 months"
	Term60Months = " 60 months"
)

var (
	validTerms         = []string{Term36Months, Term60Months}
	validGrades        = []string{"A", "B", "C", "D", "E", "F", "G"}
	validHomeOwnership = []string{"RENT", "MORTGAGE", "OWN", "ANY"}
	validPurposes      = []string{"debt_consolidation", "credit_card", "home_improvement", "other"}
)

// Defaults is the fixed field set merged into every scoring request. The
// scoring model expects a full applicant profile; fields the form does not
// expose are pinned to a representative profile.
type Defaults struct {
	DTI                  float64 `json:"dti"`
	FICORangeLow         float64 `json:"fico_range_low"`
	FICORangeHigh        float64 `json:"fico_range_high"`
	OpenAccounts         float64 `json:"open_acc"`
	PublicRecords        float64 `json:"pub_rec"`
	RevolvingBalance     float64 `json:"revol_bal"`
	RevolvingUtilization float64 `json:"revol_util"`
	TotalAccounts        float64 `json:"total_acc"`
	IssueDate            string  `json:"issue_d"`
	EarliestCreditLine   string  `json:"earliest_cr_line"`
}

// StandardDefaults is the representative applicant profile used for every
// submission.
var StandardDefaults = Defaults{
	DTI:                  20.0,
	FICORangeLow:         690,
	FICORangeHigh:        694,
	OpenAccounts:         10,
	PublicRecords:        0,
	RevolvingBalance:     15000,
	RevolvingUtilization: 50.0,
	TotalAccounts:        25,
	IssueDate:            "Dec-2015",
	EarliestCreditLine:   "Jan-2005",
}

// Request is the full scoring payload: coerced form fields plus the fixed
// defaults. Derived, immutable, constructed fresh per submission.
type Request struct {
	LoanAmount      float64 `json:"loan_amnt"`
	InterestRate    float64 `json:"int_rate"`
	AnnualIncome    float64 `json:"annual_inc"`
	EmploymentYears float64 `json:"emp_length"`
	Term            string  `json:"term"`
	Grade           string  `json:"grade"`
	HomeOwnership   string  `json:"home_ownership"`
	Purpose         string  `json:"purpose"`

	Defaults
}

// ValidationError reports a form field that failed coercion or validation.
// Submission must stop before any network call when one is returned.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s (got %q)", e.Field, e.Reason, e.Value)
}

// BuildRequest coerces the form into a scoring request and merges the fixed
// defaults. Pure: same input and defaults always yield the same request.
func BuildRequest(input FormInput, defaults Defaults) (Request, error) {
	loanAmount, err := coerceNumber("loan_amnt", input.LoanAmount, 1, math.MaxFloat64)
	if err != nil {
		return Request{}, err
	}
	interestRate, err := coerceNumber("int_rate", input.InterestRate, 0, 100)
	if err != nil {
		return Request{}, err
	}
	annualIncome, err := coerceNumber("annual_inc", input.AnnualIncome, 0, math.MaxFloat64)
	if err != nil {
		return Request{}, err
	}
	employmentYears, err := coerceNumber("emp_length", input.EmploymentYears, 0, 100)
	if err != nil {
		return Request{}, err
	}

	if err := coerceChoice("term", input.Term, validTerms); err != nil {
		return Request{}, err
	}
	if err := coerceChoice("grade", input.Grade, validGrades); err != nil {
		return Request{}, err
	}
	if err := coerceChoice("home_ownership", input.HomeOwnership, validHomeOwnership); err != nil {
		return Request{}, err
	}
	if err := coerceChoice("purpose", input.Purpose, validPurposes); err != nil {
		return Request{}, err
	}

	return Request{
		LoanAmount:      loanAmount,
		InterestRate:    interestRate,
		AnnualIncome:    annualIncome,
		EmploymentYears: employmentYears,
		Term:            input.Term,
		Grade:           input.Grade,
		HomeOwnership:   input.HomeOwnership,
		Purpose:         input.Purpose,
		Defaults:        defaults,
	}, nil
}

func coerceNumber(field, raw string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, validationErr(field, raw, "must be a finite number")
	}
	if v < min {
		return 0, validationErr(field, raw, fmt.Sprintf("must be at least %g", min))
	}
	if v > max {
		return 0, validationErr(field, raw, fmt.Sprintf("must be at most %g", max))
	}
	return v, nil
}

func coerceChoice(field, raw string, allowed []string) error {
	for _, a := range allowed {
		if raw == a {
			return nil
		}
	}
	return validationErr(field, raw, "is not an accepted value")
}

func validationErr(field, value, reason string) error {
	return dErrors.Wrap(
		&ValidationError{Field: field, Value: value, Reason: reason},
		dErrors.CodeInvalidInput,
		"invalid form input",
	)
}
