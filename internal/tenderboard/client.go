package tenderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"sjsage522/tenderscraper/helpers"
	"sjsage522/tenderscraper/logger"
	scrapeerr "sjsage522/tenderscraper/pkg/errors"
	"sjsage522/tenderscraper/services/cache"
)

// Portal web service endpoints, relative to the base URL
const (
	PageCountPath = "/Templates/TenderBoardWebService.aspx/GetCurrentPublicTenderPageCount"
	PagePath      = "/Templates/TenderBoardWebService.aspx/GetCurrentPublicTenderByPage"
)

// Endpoint names used in logs and metrics
const (
	endpointLanding   = "landing"
	endpointPageCount = "page_count"
	endpointPage      = "page"
)

// Options configures a Client
type Options struct {
	BaseURL  string
	ProxyURL string
	Headers  helpers.Headers
	Timeout  time.Duration
	Retry    RetryPolicy
	Guard    *cache.RateLimitGuard
	Observer RowObserver
}

// Client talks to the tender board portal. It is safe for concurrent use.
type Client struct {
	http      *resty.Client
	baseURL   string
	headers   helpers.Headers
	retry     RetryPolicy
	guard     *cache.RateLimitGuard
	extractor *Extractor
}

// NewClient creates a portal client
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	headers := opts.Headers
	if headers.Len() == 0 {
		headers = helpers.PortalHeaders(baseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New()
	httpClient.SetTimeout(timeout)
	if opts.ProxyURL != "" {
		httpClient.SetProxy(opts.ProxyURL)
	}

	extractor := NewExtractor(baseURL)
	if opts.Observer != nil {
		extractor.Observer = opts.Observer
	}

	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		headers:   headers,
		retry:     opts.Retry,
		guard:     opts.Guard,
		extractor: extractor,
	}
}

// LoadMinistries fetches the landing page once and returns its ministry options
func (c *Client) LoadMinistries(ctx context.Context) ([]Ministry, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.headers.Map()).
		Get(c.baseURL + helpers.LandingPath)
	if err != nil {
		requestsTotal.WithLabelValues(endpointLanding, "error").Inc()
		return nil, scrapeerr.NewNetwork(endpointLanding, "failed to load landing page", err)
	}
	requestsTotal.WithLabelValues(endpointLanding, strconv.Itoa(res.StatusCode())).Inc()
	if res.StatusCode() != http.StatusOK {
		return nil, scrapeerr.NewStatus(endpointLanding, res.StatusCode())
	}

	body, err := helpers.DecodeUTF8(res.Body(), res.Header().Get("Content-Type"))
	if err != nil {
		return nil, scrapeerr.NewParsing(endpointLanding, "failed to decode landing page", err)
	}
	ministries, err := ParseMinistries(body)
	if err != nil {
		return nil, scrapeerr.NewParsing(endpointLanding, "failed to parse ministries", err)
	}

	logger.ForPortal().Debug().Int("ministries", len(ministries)).Msg("Loaded ministry directory")
	return ministries, nil
}

// CountPages asks the portal how many listing pages match the filter
func (c *Client) CountPages(ctx context.Context, filter Filter) (int, error) {
	payload, err := filter.Payload(CountPage)
	if err != nil {
		return 0, scrapeerr.NewValidation(endpointPageCount, err.Error())
	}

	var count int
	err = c.retry.Do(ctx, endpointPageCount, func(int) error {
		d, err := c.post(ctx, endpointPageCount, PageCountPath, payload)
		if err != nil {
			return err
		}
		n, err := decodeCount(d)
		if err != nil {
			return scrapeerr.NewParsing(endpointPageCount, "invalid page count", err)
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FetchPage retrieves one listing page and extracts its records
func (c *Client) FetchPage(ctx context.Context, page int, filter Filter) PageResult {
	result := c.fetchPage(ctx, page, filter)
	pagesTotal.WithLabelValues(result.Status.String()).Inc()
	return result
}

func (c *Client) fetchPage(ctx context.Context, page int, filter Filter) PageResult {
	payload, err := filter.Payload(page)
	if err != nil {
		return c.failBeforeExtract(page, scrapeerr.NewValidation(pageComponent(page), err.Error()))
	}

	var fragment string
	err = c.retry.Do(ctx, endpointPage, func(int) error {
		d, err := c.post(ctx, endpointPage, PagePath, payload)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(d, &fragment); err != nil {
			return scrapeerr.NewParsing(pageComponent(page), "page fragment is not a string", err)
		}
		return nil
	})
	if err != nil {
		return c.failBeforeExtract(page, err)
	}

	return c.extractor.ExtractPage(page, fragment)
}

// failBeforeExtract reports a page that never reached the extractor, so the
// observer still sees it finish.
func (c *Client) failBeforeExtract(page int, err error) PageResult {
	c.extractor.observer().PageFinished(page, PageFailed)
	return failedResult(page, err)
}

// post sends one request and returns the raw "d" field of the response
func (c *Client) post(ctx context.Context, endpoint, path string, payload []byte) (json.RawMessage, error) {
	if c.guard.Blocked() {
		requestsTotal.WithLabelValues(endpoint, "blocked").Inc()
		return nil, scrapeerr.New(scrapeerr.ErrorTypeRateLimit, endpoint, "portal is marked as rate limited", scrapeerr.ErrBlocked)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.headers.Map()).
		SetBody(payload).
		Post(c.baseURL + path)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, scrapeerr.NewNetwork(endpoint, "request failed", err)
	}
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(res.StatusCode())).Inc()

	switch {
	case res.StatusCode() == http.StatusTooManyRequests:
		c.guard.Block()
		delay := parseRetryAfter(res.Header().Get("Retry-After"))
		return nil, &retryAfterError{err: scrapeerr.NewRateLimit(endpoint, delay), delay: delay}
	case res.StatusCode() != http.StatusOK:
		return nil, scrapeerr.NewStatus(endpoint, res.StatusCode())
	}

	var envelope struct {
		D json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return nil, scrapeerr.NewParsing(endpoint, "invalid response body", err)
	}
	if len(envelope.D) == 0 {
		return nil, scrapeerr.NewParsing(endpoint, "response has no d field", errors.New("missing d"))
	}
	if isNull(envelope.D) {
		return nil, scrapeerr.NewParsing(endpoint, "response d field is null", errors.New("null d"))
	}
	return envelope.D, nil
}

func isNull(d json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(d), []byte("null"))
}

// decodeCount accepts the count as a JSON number or a numeric string
func decodeCount(d json.RawMessage) (int, error) {
	if isNull(d) {
		return 0, errors.New("page count is null")
	}
	raw := bytes.TrimSpace(d)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		raw = []byte(strings.TrimSpace(s))
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("page count %s: %w", string(d), err)
	}
	n := int(f)
	if n < 0 {
		n = 0
	}
	return n, nil
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
