package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"

	"github.com/modelsurf/searchbridge/pkg/shared/httputil"
	"github.com/modelsurf/searchbridge/pkg/shared/stringutil"
)

// Client submits chat completions with bounded retries. All state is
// fixed at construction, so a single client is safe for concurrent use;
// per-call model overrides replace any mutable default.
type Client struct {
	cfg     *Config
	http    *http.Client
	headers map[string]string
	log     zerolog.Logger
	timeout time.Duration
	backoff time.Duration
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithLogger replaces the default stderr logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithHeaders adds headers to every request, for proxies that want an
// org or routing header. Later values win, so an Authorization entry
// here overrides the configured API key.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = httputil.MergeHeaders(c.headers, headers)
	}
}

// New builds a client from cfg, failing fast on invalid settings.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	resolved := *cfg
	resolved.WebSearch = ptr.Clone(cfg.WebSearch)
	resolved.WithDefaults()

	baseURL, err := NormalizeBaseURL(resolved.BaseURL)
	if err != nil {
		return nil, err
	}
	resolved.BaseURL = baseURL
	resolved.APIKey = strings.TrimSpace(resolved.APIKey)
	if resolved.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		cfg:     &resolved,
		http:    &http.Client{},
		headers: map[string]string{"Authorization": "Bearer " + resolved.APIKey},
		log:     defaultLogger(resolved.Mode),
		timeout: time.Duration(resolved.TimeoutSecs) * time.Second,
		backoff: time.Duration(resolved.RetryBackoffMS) * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if resolved.Mode == ModeProduction {
		c.log = c.log.Level(zerolog.ErrorLevel)
	}
	return c, nil
}

// Config returns a copy of the resolved configuration.
func (c *Client) Config() Config {
	cfg := *c.cfg
	cfg.WebSearch = ptr.Clone(c.cfg.WebSearch)
	return cfg
}

func defaultLogger(mode string) zerolog.Logger {
	level := zerolog.DebugLevel
	if mode == ModeProduction {
		level = zerolog.ErrorLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// submit runs one envelope through the retry loop and returns the
// assistant text. Attempts are numbered from 1; the delay before attempt
// n+1 doubles each round starting from the configured backoff.
func (c *Client) submit(ctx context.Context, env Envelope) (string, error) {
	if len(env.Messages) == 0 {
		return "", ErrEmptyEnvelope
	}
	model := strings.TrimSpace(env.Model)
	if model == "" {
		model = c.cfg.Model
	}
	payload, err := json.Marshal(env.body(model))
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	log := c.log.With().
		Str("request_id", xid.New().String()).
		Str("model", model).
		Logger()

	delay := c.backoff
	var lastErr *RequestError
	for attempt := 1; ; attempt++ {
		log.Debug().
			Int("attempt", attempt).
			Int("max_attempts", c.cfg.MaxAttempts).
			Msg("Submitting completion request")

		text, reqErr := c.doRequest(ctx, payload)
		if reqErr == nil {
			return text, nil
		}
		reqErr.Attempts = attempt
		lastErr = reqErr

		if ctxErr := ctx.Err(); ctxErr != nil {
			lastErr = &RequestError{Reason: reasonFromContext(ctxErr), Status: reqErr.Status, Attempts: attempt, Err: ctxErr}
			break
		}
		if !reqErr.retryable() || attempt >= c.cfg.MaxAttempts {
			break
		}

		log.Warn().
			Int("attempt", attempt).
			Str("reason", string(reqErr.Reason)).
			Dur("delay", delay).
			Err(reqErr.Err).
			Msg("Retrying completion request")
		if waitErr := c.wait(ctx, delay); waitErr != nil {
			lastErr = &RequestError{Reason: reasonFromContext(waitErr), Attempts: attempt, Err: waitErr}
			break
		}
		delay *= 2
	}

	log.Error().
		Str("reason", string(lastErr.Reason)).
		Int("attempts", lastErr.Attempts).
		Err(lastErr.Err).
		Msg("Completion request failed")
	return "", lastErr
}

// doRequest performs a single attempt under the per-attempt timeout.
func (c *Client) doRequest(ctx context.Context, payload []byte) (string, *RequestError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, status, err := httputil.PostJSON(attemptCtx, c.http, c.cfg.BaseURL+completionsPath, c.headers, payload)
	if err != nil {
		return "", &RequestError{Reason: classifyTransport(err), Status: status, Err: err}
	}

	if status < 200 || status >= 300 {
		reason := ReasonStatus
		if status == http.StatusUnauthorized {
			reason = ReasonAuth
		}
		return "", &RequestError{
			Reason: reason,
			Status: status,
			Err:    fmt.Errorf("http %d: %s", status, stringutil.Truncate(strings.TrimSpace(string(data)), 600)),
		}
	}

	text, err := decodeCompletion(data)
	if err != nil {
		return "", &RequestError{Reason: ReasonShape, Status: status, Err: err}
	}
	return text, nil
}

// wait sleeps for delay unless the parent context ends first.
func (c *Client) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
