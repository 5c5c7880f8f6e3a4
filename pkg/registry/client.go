package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/httpclient"
	"github.com/trialscout/platform/pkg/common/logger"
	"github.com/trialscout/platform/pkg/ratelimit"
	"github.com/trialscout/platform/pkg/retry"
)

const maxPageSize = 100

// Client queries the public trial registry. Every call passes the
// sliding-window limiter before any network I/O and wraps the HTTP
// round-trip in the retry executor.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	limiter        *ratelimit.Limiter
	cache          *Cache
	maxRetries     int
	retryBaseDelay time.Duration
}

type ClientOption func(*Client)

func WithCache(cache *Cache) ClientOption {
	return func(c *Client) { c.cache = cache }
}

func WithRetryPolicy(maxRetries int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBaseDelay = baseDelay
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, limiter *ratelimit.Limiter, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     httpclient.New(15 * time.Second),
		baseURL:        strings.TrimRight(baseURL, "/"),
		limiter:        limiter,
		maxRetries:     3,
		retryBaseDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one registry query and returns the unfiltered mapped set
// plus the server-reported total, which may exceed the returned count.
// Eligibility filtering is the caller's concern.
func (c *Client) Search(ctx context.Context, params TrialSearchParams) (SearchResult, error) {
	if len(params.Conditions) == 0 {
		return SearchResult{}, apperrors.New(apperrors.KindParse, "registry search requires at least one condition")
	}

	query := buildQuery(params)

	if cached, ok := c.cache.Get(ctx, query); ok {
		logger.Log.WithField("query", query).Debug("registry cache hit")
		return cached, nil
	}

	if !c.limiter.Admit() {
		return SearchResult{}, apperrors.New(apperrors.KindRateLimitExceeded, "registry request rate exceeded")
	}

	endpoint := c.baseURL + "/studies?" + query
	response, err := retry.Do(ctx, func(ctx context.Context) (searchResponse, error) {
		return c.doSearch(ctx, endpoint)
	}, retry.WithMaxRetries(c.maxRetries), retry.WithBaseDelay(c.retryBaseDelay), retry.WithRetryIf(apperrors.Retriable))
	if err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{
		Trials:     make([]MappedClinicalTrial, 0, len(response.Studies)),
		TotalCount: response.TotalCount,
	}
	for _, study := range response.Studies {
		result.Trials = append(result.Trials, mapStudy(study))
	}

	c.cache.Set(ctx, query, result)
	return result, nil
}

// FetchByNCTID retrieves and maps a single study.
func (c *Client) FetchByNCTID(ctx context.Context, nctID string) (MappedClinicalTrial, error) {
	if nctID == "" {
		return MappedClinicalTrial{}, apperrors.New(apperrors.KindNotFound, "empty nct id")
	}

	if !c.limiter.Admit() {
		return MappedClinicalTrial{}, apperrors.New(apperrors.KindRateLimitExceeded, "registry request rate exceeded")
	}

	endpoint := fmt.Sprintf("%s/studies/%s?format=json", c.baseURL, url.PathEscape(nctID))
	record, err := retry.Do(ctx, func(ctx context.Context) (studyRecord, error) {
		return c.doFetch(ctx, endpoint, nctID)
	}, retry.WithMaxRetries(c.maxRetries), retry.WithBaseDelay(c.retryBaseDelay), retry.WithRetryIf(apperrors.Retriable))
	if err != nil {
		return MappedClinicalTrial{}, err
	}

	return mapStudy(record), nil
}

// ClearCache drops cached registry responses and resets the limiter
// window.
func (c *Client) ClearCache(ctx context.Context) error {
	c.limiter.Reset()
	return c.cache.Clear(ctx)
}

func (c *Client) doSearch(ctx context.Context, endpoint string) (searchResponse, error) {
	var response searchResponse
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return response, err
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return searchResponse{}, apperrors.Wrap(apperrors.KindParse, "malformed registry response", err)
	}
	return response, nil
}

func (c *Client) doFetch(ctx context.Context, endpoint, nctID string) (studyRecord, error) {
	var record studyRecord
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(body, &record); err != nil {
		return studyRecord{}, apperrors.Wrap(apperrors.KindParse, "malformed registry study "+nctID, err)
	}
	return record, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamAPI, "building registry request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamAPI, "registry request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.New(apperrors.KindNotFound, "registry study not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.New(apperrors.KindUpstreamAPI, fmt.Sprintf("registry returned status %d", resp.StatusCode))
	}

	return io.ReadAll(resp.Body)
}

// buildQuery OR-joins all conditions into a single term and translates
// the internal status enum to the registry's vocabulary. Page size is
// clamped to the registry maximum.
func buildQuery(params TrialSearchParams) string {
	values := url.Values{}
	values.Set("query.cond", strings.Join(params.Conditions, " OR "))

	if mapped, ok := statusToRegistry[params.Status]; ok {
		values.Set("filter.overallStatus", mapped)
	}
	if params.Location != "" {
		values.Set("query.locn", params.Location)
	}
	if len(params.Phase) > 0 {
		values.Set("query.type", strings.Join(params.Phase, " OR "))
	}

	pageSize := params.MaxResults
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	values.Set("pageSize", strconv.Itoa(pageSize))
	values.Set("format", "json")

	return values.Encode()
}
