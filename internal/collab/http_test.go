package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snc/internal/ir"
)

// fakeService answers the four endpoints. Status overrides the response
// code for every request when non-zero.
type fakeService struct {
	status atomic.Int32
	calls  atomic.Int32
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s := f.status.Load(); s != 0 {
		http.Error(w, "scripted failure", int(s))
		return
	}

	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/generate":
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "// " + req["content"].(string)})
	case "/validate":
		code := req["code"].(string)
		if code == "broken" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"errors": []ir.Diagnostic{{
					File: "unit.ts", Line: 1, Char: 1, Severity: "error", Code: "TS1005", Message: "';' expected.",
				}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	case "/evaluate":
		ctx := req["context"].(map[string]any)
		_ = json.NewEncoder(w).Encode(map[string]any{"score": 7.5, "feedback": "name=" + ctx["name"].(string)})
	case "/fix":
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "fixed: " + req["summary"].(string)})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, svc *fakeService, opts ...HTTPOption) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPClient("")
	assert.Error(t, err)
}

func TestHTTPClient_Endpoints(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)
	ctx := context.Background()

	code, err := c.Generate(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "// hello", code)

	res, err := c.Validate(ctx, "fine")
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = c.Validate(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "TS1005", res.Errors[0].Code)

	ev, err := c.Evaluate(ctx, "code", map[string]string{"name": "Intro"})
	require.NoError(t, err)
	assert.Equal(t, 7.5, ev.Score)
	assert.Equal(t, "name=Intro", ev.Feedback)

	fixed, err := c.Fix(ctx, "broken", "unit.ts(1,1): ';' expected.")
	require.NoError(t, err)
	assert.Equal(t, "fixed: unit.ts(1,1): ';' expected.", fixed)

	assert.Equal(t, int32(5), svc.calls.Load())
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())
}

func TestHTTPClient_ClientErrorsArePermanent(t *testing.T) {
	svc := &fakeService{}
	svc.status.Store(http.StatusBadRequest)
	c := newTestClient(t, svc, WithBreaker(BreakerSettings{MaxRequests: 1, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2}))

	for i := 0; i < 5; i++ {
		_, err := c.Generate(context.Background(), "x")
		require.Error(t, err)

		var perm *backoff.PermanentError
		assert.True(t, errors.As(err, &perm), "4xx must not be retried")
		var he *HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, http.StatusBadRequest, he.StatusCode)
		assert.False(t, he.Temporary())
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState(), "client errors do not trip the breaker")
}

func TestHTTPClient_ServerErrorsAreRetriable(t *testing.T) {
	svc := &fakeService{}
	svc.status.Store(http.StatusServiceUnavailable)
	c := newTestClient(t, svc)

	_, err := c.Generate(context.Background(), "x")
	require.Error(t, err)

	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.True(t, he.Temporary())
}

func TestHTTPClient_BreakerOpensAndShortCircuits(t *testing.T) {
	svc := &fakeService{}
	svc.status.Store(http.StatusInternalServerError)
	c := newTestClient(t, svc, WithBreaker(BreakerSettings{MaxRequests: 1, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2}))

	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	before := svc.calls.Load()
	_, err := c.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	var perm *backoff.PermanentError
	assert.True(t, errors.As(err, &perm))
	assert.Equal(t, before, svc.calls.Load(), "an open breaker does not reach the service")
}

func TestHTTPClient_EmptyCodeIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":""}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "x")
	assert.Error(t, err)
	_, err = c.Fix(context.Background(), "x", "y")
	assert.Error(t, err)
}
