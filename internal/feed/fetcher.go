package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/digesthq/feed-digest/pkg/httpclient"
)

const DefaultFetchTimeout = 10 * time.Second

// Fetcher retrieves raw feed bytes over HTTP. One outbound call per
// invocation, no retries.
type Fetcher struct {
	client httpclient.Client
}

// NewFetcher builds a fetcher on the given client, defaulting to a resty
// client with the standard feed timeout.
func NewFetcher(client httpclient.Client) *Fetcher {
	if client == nil {
		client = httpclient.NewRestyClient(DefaultFetchTimeout)
	}
	return &Fetcher{client: client}
}

// Fetch downloads the feed at url and returns its body. A transport error or
// non-2xx status maps to ErrFeedUnavailable; a blank body to ErrEmptyFeed.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFeedUnavailable, status)
	}

	body := resp.Body()
	if strings.TrimSpace(string(body)) == "" {
		return nil, ErrEmptyFeed
	}

	return body, nil
}
