package httpclient

import "context"

// Client is the minimal HTTP surface the feed pipeline depends on.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// Response exposes the parts of an HTTP response the pipeline reads.
type Response interface {
	Body() []byte
	StatusCode() int
}
