// Package scoringstub is a self-contained stand-in for the scoring service,
// useful for local development and end-to-end exercises. It scores with a
// fixed logistic model and reports per-feature contributions, mirroring the
// response shape of the real service.
package scoringstub

import (
	"math"

	"riskdash/internal/scoring"
)

// Model is a deterministic toy scorer. Each feature contributes a weighted,
// centered term to a logistic score; the contribution map doubles as the
// explanation payload.
type Model struct {
	loaded bool
}

func NewModel() *Model {
	return &Model{}
}

// Load marks the model ready. Scoring before Load fails, matching the real
// service's behavior when the model artifact is missing.
func (m *Model) Load() {
	m.loaded = true
}

func (m *Model) Loaded() bool {
	return m.loaded
}

var gradeWeights = map[string]float64{
	"A": -0.8, "B": -0.4, "C": 0.0, "D": 0.4, "E": 0.8, "F": 1.2, "G": 1.6,
}

var homeWeights = map[string]float64{
	"MORTGAGE": -0.15, "OWN": -0.1, "RENT": 0.2, "ANY": 0.0,
}

var purposeWeights = map[string]float64{
	"debt_consolidation": 0.1,
	"credit_card":        0.15,
	"home_improvement":   -0.05,
	"other":              0.05,
}

var termWeights = map[string]float64{
	scoring.Term36Months: -0.2,
	scoring.Term60Months: 0.3,
}

// Score returns the default probability and the per-feature contributions
// for one applicant.
func (m *Model) Score(req scoring.Request) (float64, map[string]float64) {
	contributions := map[string]float64{
		"int_rate":       0.09 * (req.InterestRate - 10),
		"dti":            0.02 * (req.DTI - 20),
		"loan_amnt":      0.00002 * (req.LoanAmount - 10000),
		"annual_inc":     -0.000005 * (req.AnnualIncome - 60000),
		"emp_length":     -0.02 * req.EmploymentYears,
		"fico_range_low": -0.01 * (req.FICORangeLow - 690),
		"revol_util":     0.008 * (req.RevolvingUtilization - 50),
		"open_acc":       0.005 * (req.OpenAccounts - 10),
		"pub_rec":        0.3 * req.PublicRecords,
		"grade":          gradeWeights[req.Grade],
		"home_ownership": homeWeights[req.HomeOwnership],
		"purpose":        purposeWeights[req.Purpose],
		"term":           termWeights[req.Term],
	}

	score := -1.5
	for _, v := range contributions {
		score += v
	}

	probability := 1 / (1 + math.Exp(-score))
	return probability, contributions
}
