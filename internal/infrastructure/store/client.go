// Package store implements the PostgREST-backed adapters for the external
// transaction store and alert sink. Both speak plain JSON over HTTP with an
// apikey plus bearer-token header pair.
package store

import (
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client is the shared HTTP plumbing for store and sink adapters.
type Client struct {
	baseURL    string
	credential string
	http       *http.Client
}

// NewClient builds a client for the given PostgREST base URL. The credential
// is an opaque bearer token supplied by the environment; it is attached to
// every request and never logged.
func NewClient(baseURL, credential string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		http:       &http.Client{Timeout: timeout},
	}
}

// authorize sets the PostgREST auth headers on a request.
func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.credential)
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("Content-Type", "application/json")
}

// endpoint joins the base URL with a REST resource path.
func (c *Client) endpoint(resource string) string {
	return c.baseURL + "/rest/v1/" + resource
}
