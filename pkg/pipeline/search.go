package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// SearchRequest is a normalized web search request.
type SearchRequest struct {
	Query      string
	Count      int
	TimeRange  string
	Structured bool
	Model      string
}

// SearchResult is one structured search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// SearchResponse is a normalized search response. Text carries the raw
// model reply for unstructured requests; Results and Summary are filled
// for structured ones, with DecodeError marking a degraded decode.
type SearchResponse struct {
	Query       string         `json:"query"`
	Text        string         `json:"text,omitempty"`
	Results     []SearchResult `json:"results"`
	Summary     string         `json:"summary,omitempty"`
	DecodeError string         `json:"error,omitempty"`
	TookMs      int64          `json:"took_ms"`
}

func (r SearchRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query,
			validation.Required.Error("query is required"),
			validation.Length(1, MaxQueryLength),
		),
	)
}

func normalizeSearchRequest(req SearchRequest) SearchRequest {
	req.Query = strings.TrimSpace(req.Query)
	req.TimeRange = strings.TrimSpace(req.TimeRange)
	if req.Count <= 0 {
		req.Count = DefaultSearchCount
	}
	if req.Count > MaxSearchCount {
		req.Count = MaxSearchCount
	}
	return req
}

// Search runs a web search through the hosted model. Validation failures
// surface before any network call is made.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	req = normalizeSearchRequest(req)
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	env := Envelope{
		Messages:   searchMessages(req),
		Model:      req.Model,
		WebSearch:  isEnabled(c.cfg.WebSearch, true),
		JSONObject: req.Structured,
	}
	start := time.Now()
	text, err := c.submit(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &SearchResponse{
		Query:  req.Query,
		TookMs: time.Since(start).Milliseconds(),
	}
	if !req.Structured {
		resp.Text = text
		return resp, nil
	}
	decodeStructured(resp, text)
	return resp, nil
}

const searchSystemPrompt = "You are a web search assistant. Use the search tool to find current information and cite your sources."

const structuredSchemaHint = `{"results": [{"title": "...", "snippet": "...", "url": "...", "source": "..."}], "summary": "..."}`

func searchMessages(req SearchRequest) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Search the web for: %s\n", req.Query)
	fmt.Fprintf(&b, "Return the %d most relevant results.", req.Count)
	if req.TimeRange != "" {
		fmt.Fprintf(&b, " Only include results from the %s.", req.TimeRange)
	}
	if req.Structured {
		b.WriteString("\nRespond with a single JSON object and nothing else, shaped exactly as: ")
		b.WriteString(structuredSchemaHint)
	} else {
		b.WriteString("\nFor each result give the title, the URL and a one or two sentence summary, then finish with a short overall summary.")
	}
	return []Message{
		{Role: RoleSystem, Content: searchSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}

// structuredPayload matches the schema the instruction asks for.
type structuredPayload struct {
	Results []SearchResult `json:"results"`
	Summary string         `json:"summary"`
}

// DecodeErrorMarker flags a structured search whose reply could not be
// decoded and was degraded to a plain summary.
const DecodeErrorMarker = "model reply was not valid result JSON"

// decodeStructured fills resp from the model text. Replies are tried as
// strict JSON first, then tolerant json5; anything without a results
// array degrades to an empty result list with the raw text as summary
// instead of failing the operation.
func decodeStructured(resp *SearchResponse, text string) {
	raw := stripCodeFence(text)
	var payload structuredPayload
	ok := json.Unmarshal([]byte(raw), &payload) == nil
	if !ok {
		payload = structuredPayload{}
		ok = json5.Unmarshal([]byte(raw), &payload) == nil
	}
	if !ok || payload.Results == nil {
		resp.Results = []SearchResult{}
		resp.Summary = text
		resp.DecodeError = DecodeErrorMarker
		return
	}
	resp.Results = payload.Results
	resp.Summary = payload.Summary
}

// stripCodeFence unwraps a ```json ... ``` block if the reply is fenced.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
