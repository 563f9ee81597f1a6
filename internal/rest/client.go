package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/discotek/discotek-go/pkg/config"
	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/discotek/discotek-go/pkg/logger"
	"github.com/discotek/discotek-go/pkg/metrics"
	"github.com/sethvargo/go-retry"
)

// Client is the JSON transport every entity client is built on. It owns
// bearer auth, per-request timeouts, retry for idempotent reads and the
// mapping from HTTP statuses to coded errors.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	logg          *logger.Logger
	metrics       *metrics.APICallMetrics
	retryAttempts uint64
	retryBase     time.Duration
}

// NewClient builds the transport from the API config.
func NewClient(cfg config.APIConfig, logg *logger.Logger, m *metrics.APICallMetrics) (*Client, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("api base url required")
	}
	return &Client{
		baseURL:       base,
		token:         cfg.Token,
		httpClient:    &http.Client{Timeout: cfg.RequestTimeout},
		logg:          logg,
		metrics:       m,
		retryAttempts: cfg.RetryAttempts,
		retryBase:     cfg.RetryBaseDelay,
	}, nil
}

// WithToken returns a copy of the client using the given bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// Get fetches path into out, retrying transient failures with backoff.
// Only reads are retried: none of the write endpoints are idempotent.
func (c *Client) Get(ctx context.Context, label, path string, out any) error {
	backoff := retry.WithMaxRetries(c.retryAttempts, retry.NewFibonacci(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, label, path, nil, out)
		if typed := pkgerrors.As(err); typed != nil && pkgerrors.MetadataFor(typed.Code()).Retryable {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Post creates a resource and decodes the server's echo, which carries
// the assigned id.
func (c *Client) Post(ctx context.Context, label, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, label, path, in, out)
}

// Put replaces a resource.
func (c *Client) Put(ctx context.Context, label, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, label, path, in, out)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, label, path string) error {
	return c.do(ctx, http.MethodDelete, label, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, label, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveDuration(label, time.Since(start))
	if err != nil {
		c.metrics.IncFailure(label)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("call %s", label))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncFailure(label)
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := &pkgerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Endpoint:   label,
			Body:       strings.TrimSpace(string(raw)),
		}
		c.logg.Warn(c.logg.WithField(ctx, "endpoint", label), "backend call failed")
		return pkgerrors.Wrap(codeForStatus(resp.StatusCode), httpErr, fmt.Sprintf("call %s", label))
	}

	c.metrics.IncSuccess(label)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", label))
	}
	return nil
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case status == http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case status == http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case status >= 500:
		return pkgerrors.CodeDependency
	default:
		return pkgerrors.CodeInternal
	}
}
