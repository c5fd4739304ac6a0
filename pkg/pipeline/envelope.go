package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	completionsPath = "/v1/chat/completions"
	temperature     = 0.7
)

// Message is a single chat turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GoogleSearch enables the endpoint's hosted web search tool. It takes no
// parameters and marshals to an empty object.
type GoogleSearch struct{}

// Tool is one entry of the request's tool directive list.
type Tool struct {
	GoogleSearch *GoogleSearch `json:"google_search,omitempty"`
}

// ResponseFormat constrains the shape of the model output.
type ResponseFormat struct {
	Type string `json:"type"`
}

const formatJSONObject = "json_object"

// Envelope describes one submission to the completions endpoint. Model
// overrides the configured default when set; WebSearch attaches the
// hosted search tool and JSONObject forces a JSON object reply.
type Envelope struct {
	Messages   []Message
	Model      string
	WebSearch  bool
	JSONObject bool
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Tools          []Tool          `json:"tools,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// body assembles the wire request for the resolved model.
func (e Envelope) body(model string) chatRequest {
	req := chatRequest{
		Model:       model,
		Messages:    e.Messages,
		Temperature: temperature,
	}
	if e.WebSearch {
		req.Tools = []Tool{{GoogleSearch: &GoogleSearch{}}}
	}
	if e.JSONObject {
		req.ResponseFormat = &ResponseFormat{Type: formatJSONObject}
	}
	return req
}

// decodeCompletion extracts the assistant text from a completions reply.
// A body that does not decode, has no choices, or has no choice with
// non-empty content is a malformed reply.
func decodeCompletion(data []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion has no choices")
	}
	for _, choice := range resp.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", errors.New("completion has no message content")
}
