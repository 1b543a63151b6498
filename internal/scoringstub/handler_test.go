package scoringstub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskdash/internal/scoring"
)

func stubServer(t *testing.T, load bool) *httptest.Server {
	t.Helper()
	model := NewModel()
	if load {
		model.Load()
	}
	server := httptest.NewServer(NewHandler(model, nil).Routes())
	t.Cleanup(server.Close)
	return server
}

func postPredict(t *testing.T, server *httptest.Server, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/predict", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestPredictReturnsProbabilityAndExplanation(t *testing.T) {
	server := stubServer(t, true)

	req, err := scoring.BuildRequest(scoring.DefaultForm(), scoring.StandardDefaults)
	require.NoError(t, err)
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	resp := postPredict(t, server, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result scoring.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.Greater(t, result.DefaultProbability, 0.0)
	assert.Less(t, result.DefaultProbability, 1.0)
	assert.Contains(t, result.Explanation, "int_rate")
	assert.Contains(t, result.Explanation, "grade")
	assert.Contains(t, result.Explanation, "dti")
}

func TestPredictIsDeterministic(t *testing.T) {
	server := stubServer(t, true)

	req, err := scoring.BuildRequest(scoring.DefaultForm(), scoring.StandardDefaults)
	require.NoError(t, err)
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	var first, second scoring.Result
	resp := postPredict(t, server, payload)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	resp = postPredict(t, server, payload)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))

	assert.Equal(t, first.DefaultProbability, second.DefaultProbability)
	assert.Equal(t, first.Explanation, second.Explanation)
}

func TestRiskierApplicantScoresHigher(t *testing.T) {
	model := NewModel()
	model.Load()

	safe, err := scoring.BuildRequest(scoring.FormInput{
		LoanAmount:      "5000",
		InterestRate:    "6.0",
		AnnualIncome:    "120000",
		EmploymentYears: "10",
		Term:            scoring.Term36Months,
		Grade:           "A",
		HomeOwnership:   "OWN",
		Purpose:         "home_improvement",
	}, scoring.StandardDefaults)
	require.NoError(t, err)

	risky, err := scoring.BuildRequest(scoring.FormInput{
		LoanAmount:      "35000",
		InterestRate:    "28.0",
		AnnualIncome:    "25000",
		EmploymentYears: "0",
		Term:            scoring.Term60Months,
		Grade:           "G",
		HomeOwnership:   "RENT",
		Purpose:         "credit_card",
	}, scoring.StandardDefaults)
	require.NoError(t, err)

	safeProbability, _ := model.Score(safe)
	riskyProbability, _ := model.Score(risky)
	assert.Greater(t, riskyProbability, safeProbability)
}

func TestPredictBeforeLoadFails(t *testing.T) {
	server := stubServer(t, false)

	resp := postPredict(t, server, []byte(`{}`))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "model not loaded", body["error"])
}

func TestPredictRejectsMalformedBody(t *testing.T) {
	server := stubServer(t, true)

	resp := postPredict(t, server, []byte(`{"loan_amnt": "not a number"`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	server := stubServer(t, true)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
