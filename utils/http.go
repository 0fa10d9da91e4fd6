package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"dyfetch/internal"
)

// HTTPClientConfig contains configuration for the HTTP client
type HTTPClientConfig struct {
	Timeout  time.Duration
	ProxyURL string
}

// HTTPClient provides a custom HTTP client with typed error mapping and
// user-agent rotation. Retry policy lives with the callers' RetryHandler;
// this layer only classifies failures as retryable or not.
type HTTPClient struct {
	client       *http.Client
	userAgent    string
	userAgentIdx int
	mutex        sync.RWMutex
}

// Predefined user agent strings for rotation
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/120.0",
}

// NewHTTPClient creates a new HTTP client with default configuration
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithConfig(&HTTPClientConfig{
		Timeout: 30 * time.Second,
	})
}

// NewHTTPClientWithConfig creates a new HTTP client with custom configuration
func NewHTTPClientWithConfig(config *HTTPClientConfig) *HTTPClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
	}

	// Configure proxy if provided
	if config.ProxyURL != "" {
		if err := configureProxy(transport, config.ProxyURL); err != nil {
			internal.LogWarn("Failed to configure proxy %s: %v, continuing without proxy", config.ProxyURL, err)
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Allow up to 10 redirects
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:    client,
		userAgent: defaultUserAgents[0],
	}
}

// configureProxy sets up proxy configuration for the transport
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5":
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, nil, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
	}

	return nil
}

// GetWithContext performs a single GET request, returning a typed error
// for non-success statuses so a surrounding RetryHandler can decide
// whether to retry
func (c *HTTPClient) GetWithContext(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set User-Agent
	c.mutex.RLock()
	req.Header.Set("User-Agent", c.userAgent)
	c.mutex.RUnlock()

	// Set custom headers
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	// Default headers expected by the douyin web API; caller-supplied
	// values win
	if req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", "https://www.douyin.com/")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	}
	// Don't set Accept-Encoding explicitly to allow Go's automatic gzip handling
	req.Header.Set("Connection", "keep-alive")

	internal.GetLogger().LogHTTPRequest(req)

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return nil, internal.NewNetworkTimeoutError("GET " + req.URL.Host).WithURL(rawURL)
		}
		return nil, err
	}

	return c.classifyResponse(resp, rawURL)
}

// classifyResponse maps non-success statuses to typed errors, closing
// the body for error statuses
func (c *HTTPClient) classifyResponse(resp *http.Response, rawURL string) (*http.Response, error) {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp, nil
	case http.StatusForbidden:
		// Rotate user agent so the next attempt looks different
		resp.Body.Close()
		c.RotateUserAgent()
		return nil, internal.NewDouyinError(resp.StatusCode, "Forbidden - rotating user agent", internal.ErrRateLimit).WithURL(rawURL)
	case http.StatusTooManyRequests:
		resp.Body.Close()
		retryAfter := 5
		return nil, internal.NewRateLimitError(retryAfter).WithURL(rawURL)
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, internal.NewEntityNotFoundError("resource", rawURL)
	case http.StatusUnauthorized:
		resp.Body.Close()
		return nil, internal.NewAuthRequiredError("Authentication required").WithURL(rawURL)
	default:
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, internal.NewDouyinError(resp.StatusCode, "Server error", internal.ErrInvalidResponse).WithURL(rawURL)
		}
		resp.Body.Close()
		return nil, internal.NewDouyinError(resp.StatusCode, "Client error", internal.ErrInvalidResponse).WithURL(rawURL)
	}
}

// SaveToFile streams a GET response into path via a temporary part file,
// with an optional progress bar. The part file is renamed into place only
// after the body has been fully consumed. Each call writes its own part
// file, so concurrent downloads of the same path never interleave; the
// last rename wins with a complete file.
func (c *HTTPClient) SaveToFile(ctx context.Context, rawURL, path string, headers map[string]string, quiet bool) error {
	resp, err := c.GetWithContext(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return internal.NewDouyinError(500, "failed to create part file: "+err.Error(), internal.ErrDownloadFailed)
	}
	partPath := file.Name()
	// CreateTemp defaults to 0600
	file.Chmod(0644)

	var reader io.Reader = resp.Body
	var tracker *ProgressTracker
	if !quiet && resp.ContentLength > 0 {
		tracker = NewProgressTracker(resp.ContentLength, quiet)
		reader = tracker.Reader(resp.Body)
	}

	_, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	if tracker != nil {
		tracker.Finish()
	}

	if copyErr != nil {
		os.Remove(partPath)
		if isTimeoutError(copyErr) || ctx.Err() != nil {
			return internal.NewNetworkTimeoutError("streaming download").WithURL(rawURL)
		}
		return internal.NewDouyinError(500, "streamed write failed: "+copyErr.Error(), internal.ErrDownloadFailed).WithURL(rawURL)
	}
	if closeErr != nil {
		os.Remove(partPath)
		return internal.NewDouyinError(500, "failed to close part file: "+closeErr.Error(), internal.ErrDownloadFailed)
	}

	if err := os.Rename(partPath, path); err != nil {
		os.Remove(partPath)
		return internal.NewDouyinError(500, "failed to finalize file: "+err.Error(), internal.ErrDownloadFailed)
	}

	return nil
}

// RotateUserAgent rotates to the next user agent string
func (c *HTTPClient) RotateUserAgent() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.userAgentIdx = (c.userAgentIdx + 1) % len(defaultUserAgents)
	c.userAgent = defaultUserAgents[c.userAgentIdx]
}

// GetCurrentUserAgent returns the current user agent string
func (c *HTTPClient) GetCurrentUserAgent() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.userAgent
}

// SetUserAgent sets a custom user agent string
func (c *HTTPClient) SetUserAgent(userAgent string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.userAgent = userAgent
}

// isTimeoutError reports whether err looks like a network timeout
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"i/o timeout",
		"context deadline exceeded",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
