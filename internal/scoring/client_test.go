package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "riskdash/pkg/domain-errors"
	"riskdash/pkg/platform/circuit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:        baseURL,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		Logger:         testLogger(),
	})
	require.NoError(t, err)
	return client
}

func TestPredict_Success(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		json.NewEncoder(w).Encode(Result{
			DefaultProbability: 0.42,
			Explanation:        map[string]float64{"int_rate": 0.3, "annual_inc": -0.1},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	result, err := client.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.42, result.DefaultProbability)
	assert.Len(t, result.Explanation, 2)

	// Wire format carries both form fields and fixed defaults flat.
	assert.Equal(t, 10000.0, gotPayload["loan_amnt"])
	assert.Equal(t, 20.0, gotPayload["dti"])
	assert.Equal(t, "Dec-2015", gotPayload["issue_d"])
	assert.Equal(t, " 36 months", gotPayload["term"])
}

func TestPredict_NonSuccessStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model not loaded"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	result, err := client.Predict(context.Background(), req)
	require.Error(t, err)
	assert.Zero(t, result)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, "model not loaded", svcErr.Message)

	assert.Equal(t, int32(1), calls.Load(), "application-level rejections must not be retried")
}

func TestPredict_TransportFailureRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	client := newTestClient(t, srv.URL)
	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestPredict_TransportFailureRecoversOnRetry(t *testing.T) {
	var calls atomic.Int32
	var flaky *httptest.Server
	flaky = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the first connection mid-request to force a transport error.
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(Result{DefaultProbability: 0.1})
	}))
	defer flaky.Close()

	client := newTestClient(t, flaky.URL)
	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	result, err := client.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.1, result.DefaultProbability)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPredict_ContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewClient(Config{
		BaseURL:        srv.URL,
		MaxRetries:     5,
		InitialBackoff: time.Hour, // cancellation must win over the backoff
		Logger:         testLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	_, err = client.Predict(ctx, req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestPredict_OpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(Result{DefaultProbability: 0.5})
	}))
	defer srv.Close()

	breaker := circuit.New("scoring", circuit.WithFailureThreshold(1))
	client, err := NewClient(Config{
		BaseURL:        srv.URL,
		MaxRetries:     0,
		InitialBackoff: time.Millisecond,
		Logger:         testLogger(),
		Breaker:        breaker,
	})
	require.NoError(t, err)

	breaker.RecordFailure()
	require.True(t, breaker.IsOpen())

	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Equal(t, int32(0), calls.Load(), "open breaker must not reach the network")

	breaker.Reset()
	result, err := client.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.DefaultProbability)
}

func TestPredict_BreakerRecoversAgainstHealthyUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(Result{DefaultProbability: 0.3})
	}))
	defer srv.Close()

	breaker := circuit.New("scoring",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(1),
		circuit.WithCoolDown(10*time.Millisecond),
	)
	client, err := NewClient(Config{
		BaseURL:        srv.URL,
		MaxRetries:     0,
		InitialBackoff: time.Millisecond,
		Logger:         testLogger(),
		Breaker:        breaker,
	})
	require.NoError(t, err)

	breaker.RecordFailure()
	require.True(t, breaker.IsOpen())

	req, err := BuildRequest(DefaultForm(), StandardDefaults)
	require.NoError(t, err)

	// Once the cool-down elapses a trial call reaches the healthy upstream
	// and its success closes the breaker.
	require.Eventually(t, func() bool {
		_, err := client.Predict(context.Background(), req)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, breaker.IsOpen())
	assert.Greater(t, calls.Load(), int32(0))

	result, err := client.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.3, result.DefaultProbability)
}
