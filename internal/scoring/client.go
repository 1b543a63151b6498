package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	dErrors "riskdash/pkg/domain-errors"
	"riskdash/pkg/platform/circuit"
)

// Result is the scoring service's success payload: a default probability in
// [0,1] and a signed per-feature attribution map.
type Result struct {
	DefaultProbability float64            `json:"default_probability"`
	Explanation        map[string]float64 `json:"explanation"`
}

// ServiceError is a non-success response from the scoring service. It is an
// application-level rejection and is never retried.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("scoring service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("scoring service returned %d", e.StatusCode)
}

// Config holds scoring client configuration.
type Config struct {
	BaseURL string
	// HTTPClient overrides the default client; its timeout bounds each
	// attempt.
	HTTPClient *http.Client
	Timeout    time.Duration
	// MaxRetries bounds additional attempts after a transport failure.
	// Non-success responses are never retried.
	MaxRetries     int
	InitialBackoff time.Duration
	Logger         *slog.Logger
	// Breaker, when set, short-circuits calls while the upstream is down.
	// Only transport-level failures count against it.
	Breaker *circuit.Breaker
}

// Client talks to the remote scoring service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	logger         *slog.Logger
	tracer         trace.Tracer
	breaker        *circuit.Breaker
}

const (
	defaultTimeout        = 15 * time.Second
	defaultMaxRetries     = 2
	defaultInitialBackoff = 200 * time.Millisecond
)

// NewClient creates a scoring client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scoring base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if cfg.MaxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = defaultInitialBackoff
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		maxRetries:     maxRetries,
		initialBackoff: backoff,
		logger:         logger,
		tracer:         otel.Tracer("riskdash/scoring"),
		breaker:        cfg.Breaker,
	}, nil
}

// Predict submits a scoring request and returns the service's result.
// Transport failures are retried with exponential backoff up to MaxRetries;
// a non-success status aborts immediately with a ServiceError.
func (c *Client) Predict(ctx context.Context, req Request) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "scoring.Predict")
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "marshal scoring request")
	}

	if c.breaker != nil && !c.breaker.Allow() {
		err := dErrors.New(dErrors.CodeUnavailable, "scoring circuit open")
		span.RecordError(err)
		return Result{}, err
	}

	var lastErr error
	backoff := c.initialBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WarnContext(ctx, "retrying scoring request",
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return Result{}, dErrors.Wrap(ctx.Err(), dErrors.CodeUnavailable, "scoring request cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, retryable, err := c.predictOnce(ctx, body)
		if err == nil {
			c.recordSuccess(ctx)
			span.SetAttributes(attribute.Float64("scoring.default_probability", result.DefaultProbability))
			return result, nil
		}
		if !retryable {
			// Application-level rejection, the upstream is alive.
			c.recordSuccess(ctx)
			span.RecordError(err)
			return Result{}, err
		}
		lastErr = err
	}

	c.recordFailure(ctx)
	span.RecordError(lastErr)
	return Result{}, dErrors.Wrap(lastErr, dErrors.CodeUnavailable, "scoring service unreachable")
}

func (c *Client) recordSuccess(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "scoring circuit closed", "breaker", c.breaker.Name())
	}
}

func (c *Client) recordFailure(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "scoring circuit opened", "breaker", c.breaker.Name())
	}
}

// predictOnce performs a single attempt. The retryable flag is true only for
// transport-level failures.
func (c *Client) predictOnce(ctx context.Context, body []byte) (Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Result{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "create scoring request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, true, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		svcErr := &ServiceError{StatusCode: resp.StatusCode, Message: upstreamMessage(respBody)}
		return Result{}, false, dErrors.Wrap(svcErr, dErrors.CodeUpstream, "scoring service rejected request")
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Result{}, false, dErrors.Wrap(err, dErrors.CodeUpstream, "malformed scoring response")
	}
	return result, false, nil
}

// upstreamMessage pulls the error field out of an error response body, if any.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}
