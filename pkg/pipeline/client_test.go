package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Model:          "test-model",
		TimeoutSecs:    5,
		MaxAttempts:    3,
		RetryBackoffMS: 20,
	}
}

func newTestClient(t *testing.T, cfg *Config, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	client, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return client
}

const completionBody = `{"choices":[{"message":{"content":"the answer"}}]}`

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"missing base url", &Config{APIKey: "k"}},
		{"missing api key", &Config{BaseURL: "https://api.example.com"}},
		{"bad scheme", &Config{BaseURL: "ftp://api.example.com", APIKey: "k"}},
		{"no host", &Config{BaseURL: "https://", APIKey: "k"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg, WithLogger(zerolog.Nop())); err == nil {
				t.Fatalf("expected constructor error")
			}
		})
	}
}

func TestSubmitRetriesServerErrorsThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		count := len(stamps)
		mu.Unlock()
		if count < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	text, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "the answer" {
		t.Fatalf("expected answer, got %q", text)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", len(stamps))
	}
	base := 20 * time.Millisecond
	if d := stamps[1].Sub(stamps[0]); d < base {
		t.Fatalf("first retry delay %v below base %v", d, base)
	}
	if d := stamps[2].Sub(stamps[1]); d < 2*base {
		t.Fatalf("second retry delay %v below doubled base %v", d, 2*base)
	}
}

func TestSubmitDoesNotRetryAuthFailure(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	_, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if requests != 1 {
		t.Fatalf("expected exactly 1 request, got %d", requests)
	}
	if !IsAuth(err) {
		t.Fatalf("expected auth classification, got %v", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Attempts != 1 {
		t.Fatalf("expected 1 recorded attempt, got %+v", reqErr)
	}
}

func TestSubmitDoesNotRetryOtherClientErrors(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	_, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if requests != 1 {
		t.Fatalf("expected exactly 1 request, got %d", requests)
	}
	if reason := Reason(err); reason != ReasonStatus {
		t.Fatalf("expected status classification, got %q", reason)
	}
}

func TestSubmitRetriesRateLimitUntilExhausted(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	_, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if requests != 3 {
		t.Fatalf("expected 3 requests, got %d", requests)
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit classification, got %v", err)
	}
}

func TestSubmitClassifiesTimeoutAfterAllAttempts(t *testing.T) {
	var mu sync.Mutex
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Attempts != 3 {
		t.Fatalf("expected 3 recorded attempts, got %+v", reqErr)
	}
	mu.Lock()
	defer mu.Unlock()
	if requests != 3 {
		t.Fatalf("expected 3 requests, got %d", requests)
	}
}

func TestSubmitStopsWhenContextCanceledDuringWait(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryBackoffMS = 200
	client := newTestClient(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := client.submit(ctx, Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if reason := Reason(err); reason != ReasonCanceled {
		t.Fatalf("expected canceled classification, got %q", reason)
	}
	if requests != 1 {
		t.Fatalf("expected 1 request before cancellation, got %d", requests)
	}
}

func TestSubmitRejectsMalformedReplyWithoutRetry(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `hello there`},
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"content":"  "}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var requests int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newTestClient(t, testConfig(server.URL))
			_, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			if err == nil {
				t.Fatalf("expected error")
			}
			if reason := Reason(err); reason != ReasonShape {
				t.Fatalf("expected shape classification, got %q", reason)
			}
			if requests != 1 {
				t.Fatalf("malformed replies must not be retried, got %d requests", requests)
			}
		})
	}
}

func TestSubmitRequiresMessages(t *testing.T) {
	client := newTestClient(t, testConfig("https://api.example.com"))
	if _, err := client.submit(context.Background(), Envelope{}); err == nil {
		t.Fatalf("expected error for empty envelope")
	}
}

func TestSubmitSendsBearerCredentialAndPath(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	if _, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("expected completions path, got %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer credential, got %q", gotAuth)
	}
}

func TestSubmitSendsCustomHeaders(t *testing.T) {
	var gotOrg, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = r.Header.Get("X-Org")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), WithHeaders(map[string]string{"X-Org": "acme"}))
	if _, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOrg != "acme" {
		t.Fatalf("expected custom header to pass through, got %q", gotOrg)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer credential alongside custom headers, got %q", gotAuth)
	}
}

func TestProductionModeSuppressesNonErrorLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	var buf bytes.Buffer
	cfg := testConfig(server.URL)
	cfg.Mode = ModeProduction
	client, err := New(cfg, WithLogger(zerolog.New(&buf)))
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := client.submit(context.Background(), Envelope{Messages: []Message{{Role: RoleUser, Content: "hi"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logged := strings.TrimSpace(buf.String()); logged != "" {
		t.Fatalf("expected no non-error log output in production mode, got %q", logged)
	}
}

func TestClientConfigReturnsCopy(t *testing.T) {
	client := newTestClient(t, testConfig("https://api.example.com/"))
	cfg := client.Config()
	if cfg.BaseURL != "https://api.example.com" {
		t.Fatalf("expected normalized base url, got %q", cfg.BaseURL)
	}
	cfg.APIKey = "changed"
	*cfg.WebSearch = false
	again := client.Config()
	if again.APIKey != "test-key" {
		t.Fatalf("config copy leaked mutation: %q", again.APIKey)
	}
	if !*again.WebSearch {
		t.Fatalf("web search flag mutated through copy")
	}
}
