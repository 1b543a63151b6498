package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "riskdash/pkg/domain-errors"
)

func TestBuildRequest_MergesDefaults(t *testing.T) {
	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	assert.Equal(t, 10000.0, req.LoanAmount)
	assert.Equal(t, 11.5, req.InterestRate)
	assert.Equal(t, 75000.0, req.AnnualIncome)
	assert.Equal(t, 5.0, req.EmploymentYears)
	assert.Equal(t, Term36Months, req.Term)
	assert.Equal(t, "B", req.Grade)
	assert.Equal(t, "MORTGAGE", req.HomeOwnership)
	assert.Equal(t, "debt_consolidation", req.Purpose)

	// Fixed defaults come through untouched.
	assert.Equal(t, 20.0, req.DTI)
	assert.Equal(t, 690.0, req.FICORangeLow)
	assert.Equal(t, 694.0, req.FICORangeHigh)
	assert.Equal(t, "Dec-2015", req.IssueDate)
	assert.Equal(t, "Jan-2005", req.EarliestCreditLine)
}

func TestBuildRequest_RejectsNonNumericInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormInput)
		field  string
	}{
		{"loan amount not a number", func(f *FormInput) { f.LoanAmount = "ten thousand" }, "loan_amnt"},
		{"interest rate empty", func(f *FormInput) { f.InterestRate = "" }, "int_rate"},
		{"income NaN", func(f *FormInput) { f.AnnualIncome = "NaN" }, "annual_inc"},
		{"employment infinite", func(f *FormInput) { f.EmploymentYears = "+Inf" }, "emp_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := DefaultForm()
			tt.mutate(&form)

			_, err := BuildRequest(form, StandardDefaults)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestBuildRequest_RejectsOutOfRangeInput(t *testing.T) {
	form := DefaultForm()
	form.LoanAmount = "-5000"

	_, err := BuildRequest(form, StandardDefaults)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestBuildRequest_RejectsUnknownCategoricalValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormInput)
	}{
		{"term without leading space", func(f *FormInput) { f.Term = "36 months" }},
		{"unknown grade", func(f *FormInput) { f.Grade = "H" }},
		{"unknown home ownership", func(f *FormInput) { f.HomeOwnership = "BOAT" }},
		{"unknown purpose", func(f *FormInput) { f.Purpose = "vacation" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := DefaultForm()
			tt.mutate(&form)

			_, err := BuildRequest(form, StandardDefaults)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestBuildRequest_IsPure(t *testing.T) {
	form := DefaultForm()
	first, err := BuildRequest(form, StandardDefaults)
	require.NoError(t, err)
	second, err := BuildRequest(form, StandardDefaults)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
