package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/enotrack/enotrack/internal/config"
	"github.com/enotrack/enotrack/internal/types"
)

// pageEnvelope is the JSON wrapper the catalog's AJAX endpoint returns.
// The markup fragment lives in the "productlist" field.
type pageEnvelope struct {
	ProductList string `json:"productlist"`
}

// PageFetcher issues one paginated catalog request and classifies the
// response. It performs no retries; retry and backoff policy belongs to
// the scheduler, which alone knows the cross-category cost of a cooldown.
type PageFetcher struct {
	client *http.Client
	cfg    *config.FetcherConfig
	logger *slog.Logger
}

// New creates a PageFetcher from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*PageFetcher, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	if cfg.Fetcher.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.Fetcher.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &PageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Fetcher.RequestTimeout,
		},
		cfg:    &cfg.Fetcher,
		logger: logger.With("component", "page_fetcher"),
	}, nil
}

// FetchPage performs GET <categoryURL>?isAjax=1&p=<page> with a
// browser-like AJAX header set and classifies the outcome:
//
//	HTTP 2xx  → PageSuccess with the unwrapped markup fragment
//	HTTP 404  → PageNotFound (end of pagination, not an error)
//	HTTP 403  → PageBlocked (fatal for the current crawl cycle)
//	anything else, including network failures → PageMalformed
func (f *PageFetcher) FetchPage(ctx context.Context, categoryURL string, page int) types.PageOutcome {
	reqURL, err := buildPageURL(categoryURL, page)
	if err != nil {
		return malformed(categoryURL, page, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return malformed(categoryURL, page, 0, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return malformed(categoryURL, page, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		f.logger.Debug("page not found", "url", reqURL, "page", page)
		return types.PageOutcome{Status: types.PageNotFound, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusForbidden:
		f.logger.Warn("access denied by origin", "url", reqURL, "page", page)
		return types.PageOutcome{Status: types.PageBlocked, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return malformed(categoryURL, page, resp.StatusCode,
			fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
	}

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}
	reader, err = decompressReader(resp, reader)
	if err != nil {
		return malformed(categoryURL, page, resp.StatusCode, err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return malformed(categoryURL, page, resp.StatusCode, err)
	}

	markup := unwrapMarkup(body)
	f.logger.Debug("page fetched",
		"url", reqURL,
		"page", page,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return types.PageOutcome{Status: types.PageSuccess, Markup: markup, StatusCode: resp.StatusCode}
}

// Close releases idle connections.
func (f *PageFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// buildPageURL appends the AJAX pagination parameters, dropping any query
// string already present on the category URL.
func buildPageURL(categoryURL string, page int) (string, error) {
	u, err := url.Parse(categoryURL)
	if err != nil {
		return "", fmt.Errorf("parse category url: %w", err)
	}
	q := url.Values{}
	q.Set("isAjax", "1")
	q.Set("p", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// unwrapMarkup decodes the expected JSON envelope and returns its markup
// field. Bodies that are not valid JSON are treated as a raw HTML fragment.
func unwrapMarkup(body []byte) string {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		return env.ProductList
	}
	return string(body)
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

func malformed(categoryURL string, page, status int, err error) types.PageOutcome {
	return types.PageOutcome{
		Status:     types.PageMalformed,
		StatusCode: status,
		Err:        &types.FetchError{URL: categoryURL, Page: page, StatusCode: status, Err: err},
	}
}
