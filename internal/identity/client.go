package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"riskdash/pkg/domain"
	domainerrors "riskdash/pkg/domain-errors"
)

const defaultTimeout = 10 * time.Second

// changeBuffer bounds the change stream; a stalled consumer drops the oldest
// transition rather than blocking the provider.
const changeBuffer = 16

// ProviderError carries the provider-supplied rejection reason verbatim.
type ProviderError struct {
	StatusCode int
	Reason     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider rejected request (status %d): %s", e.StatusCode, e.Reason)
}

// Config holds the settings for the REST client.
type Config struct {
	// BaseURL is the provider root, e.g. https://auth.example.com.
	BaseURL string

	// APIKey is sent as the apikey header on every request.
	APIKey string

	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client is a GoTrue-style REST client implementing Provider.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	accessToken string
	current     *Identity
	expiryTimer *time.Timer
	closed      bool
	changes     chan Change
}

// NewClient builds a provider client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "identity: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
		now:     time.Now,
		changes: make(chan Change, changeBuffer),
	}
	// The stream opens with the current state, so a subscriber always learns
	// who is signed in without waiting for the next transition.
	c.changes <- Change{}
	return c, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// Login exchanges credentials for an authenticated identity via the password
// grant endpoint.
func (c *Client) Login(ctx context.Context, email, password string) (Identity, error) {
	var token tokenResponse
	err := c.post(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password}, "", &token)
	if err != nil {
		return Identity{}, err
	}
	return c.adopt(token)
}

// Signup registers a new user. The provider signs the user in as part of
// registration, so a successful signup also rotates the current identity.
func (c *Client) Signup(ctx context.Context, email, password string) (Identity, error) {
	var token tokenResponse
	err := c.post(ctx, "/auth/v1/signup", credentials{Email: email, Password: password}, "", &token)
	if err != nil {
		return Identity{}, err
	}
	return c.adopt(token)
}

// RequestPasswordReset asks the provider to send a recovery email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.post(ctx, "/auth/v1/recover", struct {
		Email string `json:"email"`
	}{Email: email}, "", nil)
}

// Logout revokes the current token and announces the sign-out. Revocation
// failures are logged but do not keep the client signed in; the local state
// is cleared regardless.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	if token == "" {
		return nil
	}

	if err := c.post(ctx, "/auth/v1/logout", nil, token, nil); err != nil {
		c.logger.Warn("identity: token revocation failed", "error", err)
	}
	c.clearSession()
	return nil
}

// Changes streams identity transitions.
func (c *Client) Changes() <-chan Change {
	return c.changes
}

// Close stops the expiry timer and closes the change stream.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
	close(c.changes)
	return nil
}

// adopt installs a freshly issued token as the current session and schedules
// the expiry-driven sign-out.
func (c *Client) adopt(token tokenResponse) (Identity, error) {
	ident, expiresAt, err := c.identityFromToken(token)
	if err != nil {
		return Identity{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Identity{}, domainerrors.New(domainerrors.CodeUnavailable, "identity: client is closed")
	}

	c.accessToken = token.AccessToken
	c.current = &ident
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
	}
	if until := expiresAt.Sub(c.now()); until > 0 {
		tok := token.AccessToken
		c.expiryTimer = time.AfterFunc(until, func() { c.expire(tok) })
	}
	c.emitLocked(Change{Identity: &ident})
	return ident, nil
}

// expire signs the client out when the token that is still current lapses.
func (c *Client) expire(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.accessToken != token {
		return
	}
	c.logger.Info("identity: access token expired")
	c.accessToken = ""
	c.current = nil
	c.expiryTimer = nil
	c.emitLocked(Change{})
}

func (c *Client) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.accessToken == "" {
		return
	}
	c.accessToken = ""
	c.current = nil
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
	c.emitLocked(Change{})
}

func (c *Client) emitLocked(change Change) {
	select {
	case c.changes <- change:
	default:
		select {
		case <-c.changes:
		default:
		}
		c.changes <- change
		c.logger.Warn("identity: change stream full, dropped oldest transition")
	}
}

// identityFromToken extracts the identity and expiry from the access token
// claims, falling back to the user object for fields the token omits. The
// token was just received from the issuer, so its signature is not verified
// locally.
func (c *Client) identityFromToken(token tokenResponse) (Identity, time.Time, error) {
	if token.AccessToken == "" {
		return Identity{}, time.Time{}, domainerrors.New(domainerrors.CodeUpstream, "identity: provider response missing access token")
	}

	subject := token.User.ID
	email := token.User.Email
	expiresAt := time.Time{}
	if token.ExpiresIn > 0 {
		expiresAt = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, claims); err == nil {
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			subject = sub
		}
		if v, ok := claims["email"].(string); ok && v != "" {
			email = v
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expiresAt = exp.Time
		}
	}

	userID, err := domain.ParseUserID(subject)
	if err != nil {
		return Identity{}, time.Time{}, domainerrors.Wrap(err, domainerrors.CodeUpstream, "identity: provider issued malformed subject")
	}
	return Identity{UserID: userID, Email: email}, expiresAt, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, bearer string, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "identity: encode request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "identity: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "identity: provider unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUpstream, "identity: read provider response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		provErr := &ProviderError{StatusCode: resp.StatusCode, Reason: providerReason(raw)}
		return domainerrors.Wrap(provErr, codeForStatus(resp.StatusCode), "identity: provider rejected request")
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeUpstream, "identity: malformed provider response")
		}
	}
	return nil
}

// providerReason digs the human-readable message out of the provider's error
// body, which varies across endpoints.
func providerReason(raw []byte) string {
	var body struct {
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, candidate := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return string(raw)
}

func codeForStatus(status int) domainerrors.Code {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest:
		return domainerrors.CodeUnauthorized
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return domainerrors.CodeConflict
	case status >= 500:
		return domainerrors.CodeUnavailable
	default:
		return domainerrors.CodeUpstream
	}
}
