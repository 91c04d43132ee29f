// Package restkv implements the record store against a remote records REST
// API. All calls go through a shared circuit breaker plus retry with backoff,
// so a flapping remote store degrades loudly instead of hanging requests.
// Change notification is interval polling: the remote API offers no stream,
// and consumers only ever re-run their query anyway.
package restkv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("restkv")

// Client talks to a remote records API implementing the same per-collection
// get/set/remove/getAll contract as the local store.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	cb           *gobreaker.CircuitBreaker
	cfg          resilience.Config
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewClient creates a remote record-store client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, pollInterval time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       apiKey,
		cb:           cb,
		cfg:          cfg,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (c *Client) recordURL(collection, key string) string {
	return fmt.Sprintf("%s/v1/collections/%s/records/%s",
		c.baseURL, url.PathEscape(collection), url.PathEscape(key))
}

func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/v1/collections/%s/records", c.baseURL, url.PathEscape(collection))
}

// doRequest executes one authenticated request and returns the body.
// A 404 maps to (nil, nil): absent keys are not errors at this layer.
func (c *Client) doRequest(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("restkv: request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("restkv: non-2xx response",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("records api returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// execute wraps a call in the circuit breaker and retry policy.
func (c *Client) execute(ctx context.Context, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, fn)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "records-api", Err: err}
	}
	return nil
}

// Get returns the value stored under (collection, key), or nil if absent.
func (c *Client) Get(ctx context.Context, collection, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "RestKV.Get")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	var value []byte
	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, c.recordURL(collection, key), nil)
		if err != nil {
			return err
		}
		value = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set upserts the value under (collection, key).
func (c *Client) Set(ctx context.Context, collection, key string, value []byte) error {
	ctx, span := tracer.Start(ctx, "RestKV.Set")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	return c.execute(ctx, func() error {
		_, err := c.doRequest(ctx, http.MethodPut, c.recordURL(collection, key), value)
		return err
	})
}

// Remove deletes the record under (collection, key).
func (c *Client) Remove(ctx context.Context, collection, key string) error {
	ctx, span := tracer.Start(ctx, "RestKV.Remove")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	return c.execute(ctx, func() error {
		_, err := c.doRequest(ctx, http.MethodDelete, c.recordURL(collection, key), nil)
		return err
	})
}

// GetAll returns every value in the collection. The remote API returns a JSON
// array of raw record objects ordered by key.
func (c *Client) GetAll(ctx context.Context, collection string) ([][]byte, error) {
	ctx, span := tracer.Start(ctx, "RestKV.GetAll")
	defer span.End()
	span.SetAttributes(attribute.String("kv.collection", collection))

	var values [][]byte
	err := c.execute(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, c.collectionURL(collection), nil)
		if err != nil {
			return err
		}
		if body == nil {
			values = nil
			return nil
		}
		var raw []json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("decode collection %s: %w", collection, err)
		}
		values = make([][]byte, len(raw))
		for i, r := range raw {
			values[i] = []byte(r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Subscribe emits a signal every poll interval. Without a change stream from
// the remote API this makes watchers periodically re-run their query, which
// matches the eventually-re-queried contract.
func (c *Client) Subscribe(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once bool
	cancel := func() {
		if !once {
			once = true
			close(done)
		}
	}
	return ch, cancel
}
