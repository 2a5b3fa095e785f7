package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/metrics"
)

// BreakerSettings configures the circuit breaker around remote calls.
type BreakerSettings struct {
	MaxRequests  uint32        `json:"max_requests" yaml:"max_requests"`
	Interval     time.Duration `json:"interval" yaml:"interval"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	FailureRatio float64       `json:"failure_ratio" yaml:"failure_ratio"`
	MinRequests  uint32        `json:"min_requests" yaml:"min_requests"`
}

// DefaultBreakerSettings trips after 60% of at least 5 requests fail.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  5,
	}
}

// HTTPError is a non-2xx response from the code service.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPClient calls a remote code service over JSON. It implements
// Generator, Validator, Evaluator and Fixer. All calls share one circuit
// breaker; while it is open calls fail immediately.
//
// Endpoints, relative to the base URL, all POST:
//
//	/generate  {"content"}          -> {"code"}
//	/validate  {"code"}             -> {"success", "errors"}
//	/evaluate  {"code", "context"}  -> {"score", "feedback"}
//	/fix       {"code", "summary"}  -> {"code"}
type HTTPClient struct {
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var (
	_ compiler.Generator = (*HTTPClient)(nil)
	_ compiler.Validator = (*HTTPClient)(nil)
	_ compiler.Evaluator = (*HTTPClient)(nil)
	_ compiler.Fixer     = (*HTTPClient)(nil)
)

// HTTPOption configures an HTTPClient.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	client  *http.Client
	timeout time.Duration
	breaker BreakerSettings
	logger  *zap.Logger
	metrics *metrics.Collector
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *httpOptions) { o.client = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) { o.timeout = d }
}

// WithBreaker sets the circuit breaker settings.
func WithBreaker(s BreakerSettings) HTTPOption {
	return func(o *httpOptions) { o.breaker = s }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(o *httpOptions) { o.logger = l }
}

// WithHTTPMetrics records breaker state changes.
func WithHTTPMetrics(m *metrics.Collector) HTTPOption {
	return func(o *httpOptions) { o.metrics = m }
}

// NewHTTPClient creates a client for the service at endpoint.
func NewHTTPClient(endpoint string, opts ...HTTPOption) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, errors.New("collaborator endpoint is empty")
	}
	o := httpOptions{
		timeout: 30 * time.Second,
		breaker: DefaultBreakerSettings(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: o.timeout}
	}

	const name = "collaborator"
	bs := o.breaker
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bs.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= bs.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			o.metrics.SetBreakerState(name, breakerStateValue(to))
		},
		// Client errors say nothing about the service's health.
		IsSuccessful: func(err error) bool {
			var he *HTTPError
			if errors.As(err, &he) {
				return !he.Temporary()
			}
			return err == nil
		},
	})
	o.metrics.SetBreakerState(name, breakerStateValue(gobreaker.StateClosed))

	return &HTTPClient{
		base:    strings.TrimRight(endpoint, "/"),
		client:  o.client,
		breaker: breaker,
		logger:  o.logger,
	}, nil
}

func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// BreakerState returns the breaker's current state.
func (c *HTTPClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

type generateRequest struct {
	Content string `json:"content"`
}

type codeResponse struct {
	Code string `json:"code"`
}

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	Success bool            `json:"success"`
	Errors  []ir.Diagnostic `json:"errors"`
}

type evaluateRequest struct {
	Code    string            `json:"code"`
	Context map[string]string `json:"context"`
}

type evaluateResponse struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type fixRequest struct {
	Code    string `json:"code"`
	Summary string `json:"summary"`
}

// Generate implements compiler.Generator.
func (c *HTTPClient) Generate(ctx context.Context, content string) (string, error) {
	var resp codeResponse
	if err := c.call(ctx, "generate", generateRequest{Content: content}, &resp); err != nil {
		return "", err
	}
	if resp.Code == "" {
		return "", errors.New("generate: empty code in response")
	}
	return resp.Code, nil
}

// Validate implements compiler.Validator.
func (c *HTTPClient) Validate(ctx context.Context, code string) (compiler.ValidationResult, error) {
	var resp validateResponse
	if err := c.call(ctx, "validate", validateRequest{Code: code}, &resp); err != nil {
		return compiler.ValidationResult{}, err
	}
	return compiler.ValidationResult{Success: resp.Success, Errors: resp.Errors}, nil
}

// Evaluate implements compiler.Evaluator.
func (c *HTTPClient) Evaluate(ctx context.Context, code string, evalCtx map[string]string) (compiler.Evaluation, error) {
	var resp evaluateResponse
	if err := c.call(ctx, "evaluate", evaluateRequest{Code: code, Context: evalCtx}, &resp); err != nil {
		return compiler.Evaluation{}, err
	}
	return compiler.Evaluation{Score: resp.Score, Feedback: resp.Feedback}, nil
}

// Fix implements compiler.Fixer.
func (c *HTTPClient) Fix(ctx context.Context, code, summary string) (string, error) {
	var resp codeResponse
	if err := c.call(ctx, "fix", fixRequest{Code: code, Summary: summary}, &resp); err != nil {
		return "", err
	}
	if resp.Code == "" {
		return "", errors.New("fix: empty code in response")
	}
	return resp.Code, nil
}

// call posts req to /op through the breaker and decodes the response into
// out. Errors that repeating cannot fix are wrapped with backoff.Permanent.
func (c *HTTPClient) call(ctx context.Context, op string, req, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.post(ctx, op, req, out)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("collaborator call rejected by breaker", zap.String("op", op), zap.Error(err))
		return backoff.Permanent(fmt.Errorf("%s: %w", op, err))
	}
	var he *HTTPError
	if errors.As(err, &he) && !he.Temporary() {
		return backoff.Permanent(err)
	}
	return err
}

func (c *HTTPClient) post(ctx context.Context, op string, req, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%s: encode request: %w", op, err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+op, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%s: %w", op, err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
