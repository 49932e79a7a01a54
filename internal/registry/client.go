// Package registry queries the external authoritative store of
// registered users. A registered binding always wins over anything this
// subsystem has scraped, so the orchestrator consults it first.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/socialproof/profile-engine/internal/profile"
)

// Config controls the registry client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements profile.Registry over HTTP.
type Client struct {
	http    *resty.Client
	baseURL string
}

// New builds a Client. An empty BaseURL yields a client whose lookups
// always report no binding, so deployments without a registry degrade to
// the cache/scrape path.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:    resty.New().SetTimeout(timeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Lookup fetches the registry record for handle. A 404 maps to
// profile.ErrNotFound; any other non-2xx outcome (including transport
// failure) maps to profile.ErrRegistryUnavailable so the caller can fall
// through rather than fail the request.
func (c *Client) Lookup(ctx context.Context, handle string) (profile.RegistryUser, error) {
	if c.baseURL == "" {
		return profile.RegistryUser{}, fmt.Errorf("%w: registry not configured", profile.ErrNotFound)
	}

	var user profile.RegistryUser
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		Get(c.baseURL + "/" + handle)
	if err != nil {
		return profile.RegistryUser{}, fmt.Errorf("%w: %v", profile.ErrRegistryUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return profile.RegistryUser{}, fmt.Errorf("%w: %s", profile.ErrNotFound, handle)
	case resp.IsSuccess():
		if user.Handle == "" {
			user.Handle = handle
		}
		return user, nil
	default:
		return profile.RegistryUser{}, fmt.Errorf("%w: status %d", profile.ErrRegistryUnavailable, resp.StatusCode())
	}
}
