package posesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloudpose/internal/logging"
	"cloudpose/internal/services"
)

const defaultBaseURL = "http://localhost:60000"

// Config captures the runtime settings required to reach the pose service.
type Config struct {
	BaseURL string
	// TimeoutSeconds bounds each HTTP exchange; zero leaves requests unbounded.
	TimeoutSeconds int
}

// Client posts request envelopes to the pose service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a pose service client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	var timeout time.Duration
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	client.logger = logging.NewComponentLogger(client.logger, "posesvc")
	return client
}

// BaseURL returns the service address the client posts to.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Response is an undecoded service reply.
type Response struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < http.StatusMultipleChoices
}

// Keypoints posts env to /api/pose.
func (c *Client) Keypoints(ctx context.Context, env Envelope) (*PoseResult, error) {
	resp, err := c.exchange(ctx, OpKeypoints, env)
	if err != nil {
		return nil, err
	}
	result, err := decodePoseResult(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "pose service", string(OpKeypoints), "", err)
	}
	return result, nil
}

// Annotated posts env to /api/pose/annotated.
func (c *Client) Annotated(ctx context.Context, env Envelope) (*AnnotatedResult, error) {
	resp, err := c.exchange(ctx, OpAnnotated, env)
	if err != nil {
		return nil, err
	}
	result, err := decodeAnnotatedResult(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "pose service", string(OpAnnotated), "", err)
	}
	return result, nil
}

func (c *Client) exchange(ctx context.Context, op Operation, env Envelope) (*Response, error) {
	resp, err := c.Send(ctx, op, env)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "pose service", string(op), "", err)
	}
	if !resp.OK() {
		return nil, services.Wrap(services.ErrTransport, "pose service", string(op), "", newHTTPStatusError(resp.StatusCode, resp.Body))
	}
	return resp, nil
}

// Send posts env to the endpoint for op and returns the reply whatever its
// status. Errors cover only request construction and transport failures.
func (c *Client) Send(ctx context.Context, op Operation, env Envelope) (*Response, error) {
	ctx = services.WithOperation(services.WithRequestID(ctx, env.ID), string(op))
	logger := logging.WithContext(ctx, c.logger)

	endpoint, err := url.JoinPath(c.cfg.BaseURL, op.Path())
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	encoded, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	logger.Debug("posting request",
		logging.String("endpoint", endpoint),
		logging.String("file_name", env.FileName),
		logging.Int("payload_bytes", len(encoded)),
	)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.timeoutLabel(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	elapsed := time.Since(start)
	logger.Debug("response received",
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", elapsed),
		logging.Int("body_bytes", len(body)),
	)
	return &Response{StatusCode: resp.StatusCode, Body: body, Elapsed: elapsed}, nil
}

func (c *Client) timeoutLabel() string {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return "none"
	}
	return c.httpClient.Timeout.String()
}

// HealthCheck reports whether anything answers HTTP at the base URL. Any
// status counts as reachable; the service has no dedicated health route.
func (c *Client) HealthCheck(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/", nil)
	if err != nil {
		return 0, fmt.Errorf("pose health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransport, "pose service", "health", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
