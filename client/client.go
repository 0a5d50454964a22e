// Package client builds requests against an HTTP JSON API. Behaviour such as
// authentication, encryption and retries is added by appending handlers to
// Client.Handlers; see the request package.
package client

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/remind101/hexenvelope/client/request"
	"github.com/remind101/hexenvelope/retry"
)

// Client holds request handlers and an http.Client and builds requests using
// them.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Handlers   request.Handlers
}

// Timeout specifies a time limit for requests made by this Client.
func Timeout(t time.Duration) func(*Client) {
	return func(c *Client) {
		c.HTTPClient.Timeout = t
	}
}

// RoundTripper sets a custom transport on the underlying http Client.
func RoundTripper(r http.RoundTripper) func(*Client) {
	return func(c *Client) {
		c.HTTPClient.Transport = r
	}
}

// WithRetrier retries sends with r. Only idempotent requests are retried, and
// only on transport errors and 5xx responses, whatever predicate r was built
// with.
func WithRetrier(r *retry.Retrier) func(*Client) {
	return func(c *Client) {
		retrying := retry.NewRetrier("client", r.BackOffOpts(), request.IsRetryable)
		c.Handlers.Send.Swap(request.BaseSender.Name, request.WithRetry(request.BaseSender, retrying))
	}
}

// New returns a new client for the API rooted at endpoint.
func New(endpoint string, options ...func(*Client)) *Client {
	c := &Client{
		Endpoint: strings.TrimSuffix(endpoint, "/"),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 90 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Handlers: request.DefaultHandlers(),
	}

	c.Handlers.Build.Prepend(request.RequestLogger)
	c.Handlers.ValidateResponse.Prepend(request.ResponseLogger)

	// Apply options
	for _, option := range options {
		option(c)
	}

	return c
}

// NewRequest returns a request for path relative to the endpoint. path may
// carry a query string.
func (c *Client) NewRequest(ctx context.Context, method, path string, params interface{}, data interface{}) *request.Request {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.Endpoint, nil)
	if err == nil {
		httpReq.URL, err = url.Parse(c.Endpoint + path)
	}

	if err != nil {
		httpReq = nil
	}

	r := request.New(httpReq, c.Handlers, params, data)
	r.HTTPClient = c.HTTPClient
	r.Error = err
	return r
}
