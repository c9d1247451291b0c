// Package upstream locates the remote ordering API.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoBaseURL is returned when a static resolver is built from an empty value
var ErrNoBaseURL = errors.New("api base url is empty")

// Resolver returns the base URL requests to the remote API are sent to.
// consul.Resolver satisfies it for discovered deployments.
type Resolver interface {
	BaseURL(ctx context.Context) (*url.URL, error)
}

// Static always resolves to the same URL
type Static struct {
	base *url.URL
}

// NewStatic parses raw, which must be an absolute http(s) URL
func NewStatic(raw string) (*Static, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q: missing host", raw)
	}
	return &Static{base: u}, nil
}

func (s *Static) BaseURL(context.Context) (*url.URL, error) {
	u := *s.base
	return &u, nil
}
