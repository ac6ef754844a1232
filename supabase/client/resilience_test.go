package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/R3E-Network/souschef/internal/logging"
)

func fastRetry(n int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = n
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Jitter = 0
	return cfg
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if !cfg.retryableStatus(http.StatusServiceUnavailable) {
		t.Errorf("503 should be retryable")
	}
	if cfg.retryableStatus(http.StatusConflict) {
		t.Errorf("409 should not be retryable")
	}
}

func TestRetryBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}
	if got := cfg.backoff(1); got != 100*time.Millisecond {
		t.Errorf("backoff(1) = %v, want 100ms", got)
	}
	if got := cfg.backoff(3); got != 400*time.Millisecond {
		t.Errorf("backoff(3) = %v, want 400ms", got)
	}
	if got := cfg.backoff(10); got != time.Second {
		t.Errorf("backoff(10) = %v, want 1s", got)
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	cb.now = func() time.Time { return now }

	if cb.State() != CircuitClosed {
		t.Fatalf("initial State() = %v, want closed", cb.State())
	}
	cb.RecordFailure(errors.New("one"))
	cb.RecordFailure(errors.New("two"))
	if cb.State() != CircuitOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}
	if cb.LastError() == nil || cb.LastError().Error() != "two" {
		t.Fatalf("LastError() = %v", cb.LastError())
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("State() = %v, want half-open", cb.State())
	}
	cb.RecordFailure(errors.New("probe"))
	if cb.State() != CircuitOpen {
		t.Fatalf("failed probe should reopen, got %v", cb.State())
	}

	now = now.Add(2 * time.Minute)
	_ = cb.Allow()
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitStateString(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	var mu sync.Mutex
	var seen []CircuitState
	done := make(chan struct{}, 1)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(_, to CircuitState) {
			mu.Lock()
			seen = append(seen, to)
			mu.Unlock()
			done <- struct{}{}
		},
	})
	cb.RecordFailure(errors.New("x"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnStateChange not called")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != CircuitOpen {
		t.Fatalf("transitions = %v", seen)
	}
}

func TestTransportRetriesServerErrorsAndRewindsBody(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("attempt %d body = %q", atomic.LoadInt32(&calls), body)
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c, err := New(Config{URL: server.URL, APIKey: "k", Retry: ptr(fastRetry(3))})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := c.From("t").Insert(context.Background(), map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if stats := c.Transport().Stats(); stats["retried_requests"] != 2 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestTransportGivesUpAndOpensCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := New(Config{
		URL:            server.URL,
		APIKey:         "k",
		Retry:          ptr(fastRetry(1)),
		CircuitBreaker: &CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := c.From("t").Execute(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if c.Transport().Breaker.State() != CircuitOpen {
		t.Fatalf("breaker = %v, want open", c.Transport().Breaker.State())
	}
	if _, err := c.From("t").Execute(context.Background()); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestTransportHonoursContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, _ := New(Config{URL: server.URL, APIKey: "k", Retry: ptr(fastRetry(3))})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.From("t").Execute(ctx)
	if err == nil || !strings.Contains(err.Error(), "context deadline exceeded") {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancellation not honoured")
	}
}

func TestTransportPropagatesTraceID(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Request-ID")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	c, _ := New(Config{URL: server.URL, APIKey: "k"})
	ctx := logging.WithTraceID(context.Background(), "trace-123")
	if _, err := c.From("t").Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if id := <-got; id != "trace-123" {
		t.Fatalf("X-Request-ID = %q", id)
	}
}

func TestHTTPErrorError(t *testing.T) {
	err := &HTTPError{StatusCode: http.StatusServiceUnavailable}
	if err.Error() != "supabase: Service Unavailable" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func ptr[T any](v T) *T { return &v }
