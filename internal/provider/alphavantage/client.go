package alphavantage

import (
	"net/http"
)

const (
	// DefaultBaseURL is the provider's single query endpoint.
	DefaultBaseURL = "https://www.alphavantage.co/query"
	// PlaceholderKey is used when no API key is configured. The provider
	// answers it with an error payload, which surfaces as a 400.
	PlaceholderKey = "YOUR_API_KEY_HERE"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Alpha Vantage query API.
type Client struct {
	// baseURL is the query endpoint.
	baseURL string
	// apiKey is sent as the apikey query parameter on every request.
	apiKey string
	// httpClient performs the outbound request.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the Alpha Vantage client.
type Option func(*Client)

// WithBaseURL sets the query endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a new Alpha Vantage client. An empty key falls back to
// PlaceholderKey.
func New(key string, options ...Option) *Client {
	if key == "" {
		key = PlaceholderKey
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     key,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}
