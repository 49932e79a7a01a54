// Package fetch provides the plain-HTTP probe that runs ahead of a
// headless session. If the probe body already carries profile markers
// the browser launch is skipped entirely; otherwise the orchestrator
// promotes the request to a full automation session.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// ProbeConfig controls collector behavior.
type ProbeConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Probe executes single-page HTTP GETs using the Colly collector.
type Probe struct {
	cfg           ProbeConfig
	baseCollector *colly.Collector
}

// ProbeResult is the outcome of one probe fetch.
type ProbeResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// NewProbe builds a Probe with a pooled transport.
func NewProbe(cfg ProbeConfig) *Probe {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	c.WithTransport(newHTTPTransport())
	return &Probe{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch performs one GET of url.
func (p *Probe) Fetch(ctx context.Context, url string) (ProbeResult, error) {
	collector := p.baseCollector.Clone()
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	timeout := p.cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	// Colly cannot cancel an in-flight request, so the visit goroutine
	// outlives a canceled ctx until its request timeout fires. Capping
	// the timeout at the ctx deadline bounds that overrun.
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	collector.SetRequestTimeout(timeout)

	var (
		result   ProbeResult
		fetchErr error
	)
	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		result = ProbeResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return ProbeResult{}, fmt.Errorf("probe fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return ProbeResult{}, fmt.Errorf("probe visit failed: %w", err)
		}
		if fetchErr != nil {
			return ProbeResult{}, fmt.Errorf("probe response failed: %w", fetchErr)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
