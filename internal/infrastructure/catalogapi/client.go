package catalogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
)

// Constants for the Catalog API
const (
	// MaxBatchSize is the provider's per-request item cap
	MaxBatchSize = 10
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024 // 10MB max response

	operationGetItems    = "GetItems"
	operationSearchItems = "SearchItems"
	pathGetItems         = "/catalog/v1/getItems"
	pathSearchItems      = "/catalog/v1/searchItems"

	headerAuthorization = "Authorization"
	headerXDate         = "X-Date"
	headerXTarget       = "X-Target"
)

// Errors for client preconditions
var (
	ErrNoItemIDs     = errors.New("catalogapi: at least one item ID is required")
	ErrBatchTooLarge = fmt.Errorf("catalogapi: at most %d item IDs per request", MaxBatchSize)
	ErrNoKeywords    = errors.New("catalogapi: search keywords are required")
)

// RequestMetrics records one telemetry point per request attempt
type RequestMetrics interface {
	RecordRequest(ctx context.Context, operation, outcome string, elapsed time.Duration)
}

// PayloadArchiver persists raw response payloads for replay and audit.
// Archiving is best-effort: failures are logged, never surfaced.
type PayloadArchiver interface {
	Archive(ctx context.Context, operation string, payload []byte) error
}

// ClientConfig holds the connection settings for the Catalog API
type ClientConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	PartnerTag     string
	Marketplace    string
	Region         string
	TimeoutSeconds int
	// ThrottleRetryBaseMs seeds the backoff wait after a throttled response
	ThrottleRetryBaseMs int
}

// Validate checks the configuration for required fields
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("catalogapi: endpoint is required")
	}
	if _, err := url.Parse(c.Endpoint); err != nil {
		return fmt.Errorf("catalogapi: invalid endpoint: %w", err)
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("catalogapi: access key and secret key are required")
	}
	if c.PartnerTag == "" {
		return errors.New("catalogapi: partner tag is required")
	}
	if c.Marketplace == "" {
		return errors.New("catalogapi: marketplace is required")
	}
	return nil
}

func (c *ClientConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *ClientConfig) throttleRetryBase() time.Duration {
	if c.ThrottleRetryBaseMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.ThrottleRetryBaseMs) * time.Millisecond
}

// Client calls the Catalog API. Every request passes the shared circuit
// breaker and quota governor, is signed, and is recorded in telemetry.
// A throttled response is retried once with backoff before failing.
type Client struct {
	config     *ClientConfig
	endpoint   *url.URL
	httpClient *http.Client
	signer     *Signer
	quota      *QuotaGovernor
	breaker    *CircuitBreaker
	metrics    RequestMetrics
	archiver   PayloadArchiver
	logger     *zap.Logger

	now func() time.Time
}

// NewClient creates a Catalog API client over the shared governor and breaker
func NewClient(config *ClientConfig, quota *QuotaGovernor, breaker *CircuitBreaker, metrics RequestMetrics, archiver PayloadArchiver, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("catalogapi: invalid endpoint: %w", err)
	}
	signer, err := NewSigner(config.AccessKey, config.SecretKey, endpoint.Host, config.Region, "")
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Client{
		config:     config,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: config.timeout()},
		signer:     signer,
		quota:      quota,
		breaker:    breaker,
		metrics:    metrics,
		archiver:   archiver,
		logger:     logger.Named("catalogapi"),
		now:        time.Now,
	}, nil
}

// FetchItems retrieves up to MaxBatchSize items by ID. Per-item provider
// errors are collected on the result; the call fails only on request-level
// errors.
func (c *Client) FetchItems(ctx context.Context, itemIDs []string, resources []string) (*ItemsResult, error) {
	if len(itemIDs) == 0 {
		return nil, ErrNoItemIDs
	}
	if len(itemIDs) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	for _, id := range itemIDs {
		if err := catalog.ValidateItemID(id); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(itemsRequest{
		ItemIDs:     itemIDs,
		Resources:   resources,
		PartnerTag:  c.config.PartnerTag,
		Marketplace: c.config.Marketplace,
	})
	if err != nil {
		return nil, fmt.Errorf("catalogapi: encode request: %w", err)
	}

	var result *ItemsResult
	err = c.callWithRetry(ctx, func() error {
		payload, err := c.doRequest(ctx, operationGetItems, pathGetItems, body)
		if err != nil {
			return err
		}
		var resp itemsResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return fmt.Errorf("catalogapi: decode response: %w", err)
		}
		decoded, err := decodeItemsResponse(&resp)
		if err != nil {
			return err
		}
		result = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SearchItems searches the catalog by keywords
func (c *Client) SearchItems(ctx context.Context, keywords string, opts SearchOptions) (*SearchResult, error) {
	if keywords == "" {
		return nil, ErrNoKeywords
	}

	body, err := json.Marshal(searchRequest{
		Keywords:    keywords,
		SearchIndex: opts.SearchIndex,
		ItemPage:    opts.ItemPage,
		ItemCount:   opts.ItemCount,
		PartnerTag:  c.config.PartnerTag,
		Marketplace: c.config.Marketplace,
	})
	if err != nil {
		return nil, fmt.Errorf("catalogapi: encode request: %w", err)
	}

	var result *SearchResult
	err = c.callWithRetry(ctx, func() error {
		payload, err := c.doRequest(ctx, operationSearchItems, pathSearchItems, body)
		if err != nil {
			return err
		}
		var resp searchResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return fmt.Errorf("catalogapi: decode response: %w", err)
		}
		decoded, err := decodeSearchResponse(&resp)
		if err != nil {
			return err
		}
		result = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// callWithRetry runs one API call, retrying exactly once when the provider
// throttles. All other failures are permanent at this layer.
func (c *Client) callWithRetry(ctx context.Context, call func() error) error {
	attempt := func() error {
		err := call()
		if err == nil {
			return nil
		}
		var throttled *ThrottledError
		if errors.As(err, &throttled) {
			c.logger.Warn("request throttled, backing off",
				zap.String("code", throttled.Code))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.throttleRetryBase()
	policy.MaxElapsedTime = 0 // bounded by the retry count, not elapsed time
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, 1), ctx))
}

// doRequest performs one signed POST against the Catalog API. It consumes
// quota, drives the circuit breaker, and records telemetry for the attempt.
func (c *Client) doRequest(ctx context.Context, operation, path string, body []byte) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}
	if err := c.quota.Reserve(ctx); err != nil {
		return nil, err
	}

	started := c.now()
	payload, err := c.post(ctx, operation, path, body)
	elapsed := c.now().Sub(started)

	if err != nil {
		c.breaker.RecordFailure()
		c.metrics.RecordRequest(ctx, operation, outcomeForError(err), elapsed)
		return nil, err
	}

	c.breaker.RecordSuccess()
	c.metrics.RecordRequest(ctx, operation, "success", elapsed)
	c.archivePayload(ctx, operation, payload)
	return payload, nil
}

func (c *Client) post(ctx context.Context, operation, path string, body []byte) ([]byte, error) {
	signed := c.signer.Sign(operation, path, body, c.now())

	requestURL := c.endpoint.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalogapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set(headerAuthorization, signed.Authorization)
	req.Header.Set(headerXDate, signed.Date)
	req.Header.Set(headerXTarget, signed.Target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalogapi: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("catalogapi: read response: %w", err)
	}

	// The provider reports errors in the body errors array for both 2xx
	// and 4xx responses; classify from the body whenever it parses.
	if resp.StatusCode != http.StatusOK {
		if err := firstRequestLevelError(payload); err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &ThrottledError{Code: "TooManyRequests", Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("catalogapi: unexpected status %d", resp.StatusCode)
	}
	if err := firstRequestLevelError(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) archivePayload(ctx context.Context, operation string, payload []byte) {
	if c.archiver == nil {
		return
	}
	if err := c.archiver.Archive(ctx, operation, payload); err != nil {
		c.logger.Warn("payload archive failed",
			zap.String("operation", operation),
			zap.Error(err))
	}
}

// firstRequestLevelError scans the body errors array for a fatal or
// throttle code. Per-item codes are left for the response decoder.
func firstRequestLevelError(payload []byte) error {
	var probe struct {
		Errors []apiError `json:"errors"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil
	}
	for _, entry := range probe.Errors {
		classified := classifyAPIError(entry.ItemID, entry.Code, entry.Message)
		var itemErr *ItemError
		if !errors.As(classified, &itemErr) {
			return classified
		}
	}
	return nil
}

func decodeItemsResponse(resp *itemsResponse) (*ItemsResult, error) {
	result := &ItemsResult{}
	if resp.ItemsResult != nil {
		result.Items = resp.ItemsResult.Items
	}
	for _, entry := range resp.Errors {
		classified := classifyAPIError(entry.ItemID, entry.Code, entry.Message)
		var itemErr *ItemError
		if errors.As(classified, &itemErr) {
			result.ItemErrors = append(result.ItemErrors, itemErr)
			continue
		}
		return nil, classified
	}
	return result, nil
}

func decodeSearchResponse(resp *searchResponse) (*SearchResult, error) {
	for _, entry := range resp.Errors {
		classified := classifyAPIError(entry.ItemID, entry.Code, entry.Message)
		var itemErr *ItemError
		if !errors.As(classified, &itemErr) {
			return nil, classified
		}
	}
	result := &SearchResult{}
	if resp.SearchResult != nil {
		result.Items = resp.SearchResult.Items
		result.TotalResultCount = resp.SearchResult.TotalResultCount
	}
	return result, nil
}

func outcomeForError(err error) string {
	var (
		fatal     *FatalError
		throttled *ThrottledError
		quota     *QuotaExceededError
	)
	switch {
	case errors.As(err, &fatal):
		return "fatal"
	case errors.As(err, &throttled):
		return "throttled"
	case errors.As(err, &quota):
		return "quota_exceeded"
	default:
		return "error"
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(context.Context, string, string, time.Duration) {}
