package scan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// maxScriptBody caps how much of a fetched resource is read.
const maxScriptBody = 4 << 20

// HTTPFetcher retrieves external page resources with retries and a
// global rate limit. Safe for concurrent use.
type HTTPFetcher struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

// NewFetcher creates a fetcher limited to rps requests per second.
func NewFetcher(rps float64) *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil

	return &HTTPFetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// Fetch retrieves a resource body and its detected MIME type.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBody))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = mimetype.Detect(body).String()
	}
	return body, mime, nil
}
