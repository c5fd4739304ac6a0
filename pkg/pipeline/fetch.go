package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FetchRequest asks the model to retrieve and digest one page. The
// envelope carries no tool directive; retrieval is the hosted model's
// own behavior.
type FetchRequest struct {
	URL    string
	Prompt string
	Model  string
}

// FetchResponse is the digested page.
type FetchResponse struct {
	URL       string `json:"url"`
	Content   string `json:"content"`
	FetchedAt string `json:"timestamp"`
	TookMs    int64  `json:"took_ms"`
}

func (r FetchRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL,
			validation.Required.Error("url is required"),
			validation.By(checkAbsoluteURL),
		),
	)
}

// checkAbsoluteURL enforces an absolute http(s) URL with a host.
func checkAbsoluteURL(value any) error {
	raw, _ := value.(string)
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("url must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}

// Fetch retrieves a page through the hosted model and returns its digest
// with a UTC completion timestamp. Malformed URLs fail before any
// network call is made.
func (c *Client) Fetch(ctx context.Context, req FetchRequest) (*FetchResponse, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	env := Envelope{
		Messages: fetchMessages(req),
		Model:    req.Model,
	}
	start := time.Now()
	content, err := c.submit(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	return &FetchResponse{
		URL:       req.URL,
		Content:   content,
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
		TookMs:    time.Since(start).Milliseconds(),
	}, nil
}

const fetchSystemPrompt = "You are a content retrieval assistant. Read the requested page and report only what it actually contains."

const defaultFetchPrompt = "Summarize the key points of the page."

func fetchMessages(req FetchRequest) []Message {
	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultFetchPrompt
	}
	return []Message{
		{Role: RoleSystem, Content: fetchSystemPrompt},
		{Role: RoleUser, Content: fmt.Sprintf("Retrieve the page at %s and read its content. %s", req.URL, prompt)},
	}
}
