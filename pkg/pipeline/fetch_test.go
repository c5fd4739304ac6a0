package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFetchRejectsMalformedURLBeforeNetwork(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	cases := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no scheme", "example.com/page"},
		{"bad scheme", "ftp://example.com/file"},
		{"no host", "https://"},
		{"garbage", "ht!tp://%%"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.Fetch(context.Background(), FetchRequest{URL: tc.url}); err == nil {
				t.Fatalf("expected validation error for %q", tc.url)
			}
		})
	}
	if requests != 0 {
		t.Fatalf("validation must fail before any request, got %d", requests)
	}
}

func TestFetchReturnsContentWithTimestamp(t *testing.T) {
	server := searchBackend(t, "page summary", nil)
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	resp, err := client.Fetch(context.Background(), FetchRequest{URL: "  https://example.com/article  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.URL != "https://example.com/article" {
		t.Fatalf("expected trimmed url echo, got %q", resp.URL)
	}
	if resp.Content != "page summary" {
		t.Fatalf("expected content passthrough, got %q", resp.Content)
	}
	stamp, err := time.Parse(time.RFC3339, resp.FetchedAt)
	if err != nil {
		t.Fatalf("timestamp %q is not RFC3339: %v", resp.FetchedAt, err)
	}
	if since := time.Since(stamp); since < 0 || since > time.Minute {
		t.Fatalf("timestamp %q not close to now", resp.FetchedAt)
	}
	if resp.TookMs < 0 {
		t.Fatalf("negative duration %d", resp.TookMs)
	}
}

func TestFetchOmitsSearchDirective(t *testing.T) {
	var gotBody map[string]any
	server := searchBackend(t, "page text", &gotBody)
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL))
	if _, err := client.Fetch(context.Background(), FetchRequest{URL: "https://example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gotBody["tools"]; ok {
		t.Fatalf("fetch must not request the search tool, got %#v", gotBody["tools"])
	}
	if _, ok := gotBody["response_format"]; ok {
		t.Fatalf("fetch must not force a response format")
	}
}

func TestFetchPromptSelection(t *testing.T) {
	cases := []struct {
		name   string
		prompt string
		want   string
	}{
		{"default", "", "Summarize the key points of the page."},
		{"custom", "Extract the headline only.", "Extract the headline only."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotBody map[string]any
			server := searchBackend(t, "ok", &gotBody)
			defer server.Close()

			client := newTestClient(t, testConfig(server.URL))
			_, err := client.Fetch(context.Background(), FetchRequest{URL: "https://example.com/post", Prompt: tc.prompt})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			instruction := userMessage(t, gotBody)
			if !strings.Contains(instruction, "https://example.com/post") {
				t.Fatalf("expected target url in instruction, got %q", instruction)
			}
			if !strings.Contains(instruction, tc.want) {
				t.Fatalf("expected %q in instruction, got %q", tc.want, instruction)
			}
		})
	}
}

func TestFetchClassifiesTimeoutAfterRetries(t *testing.T) {
	var mu sync.Mutex
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxAttempts = 2
	client := newTestClient(t, cfg, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	_, err := client.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "fetch failed") {
		t.Fatalf("expected operation wrapping, got %q", err.Error())
	}
	mu.Lock()
	defer mu.Unlock()
	if requests != 2 {
		t.Fatalf("expected 2 attempts, got %d", requests)
	}
}
