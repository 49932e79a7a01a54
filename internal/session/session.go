// Package session owns headless browser lifecycles. A Manager holds the
// shared exec allocator plus the concurrency/rate budget; each scrape
// opens its own Session (one browser tab) and must close it on every
// exit path.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/socialproof/profile-engine/internal/profile"
)

// Config controls browser acquisition.
type Config struct {
	ExecPath       string
	UserAgent      string
	MaxParallel    int
	NavTimeout     time.Duration
	ReadyTimeout   time.Duration
	SourceQPS      float64
	ViewportWidth  int
	ViewportHeight int
}

// Manager owns the chromedp exec allocator and doles out sessions under
// a bounded-parallelism and source-QPS budget.
type Manager struct {
	cfg         Config
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
	limiter     chan struct{}
	sourceRate  *rate.Limiter
}

// NewManager resolves a browser executable and prepares the allocator.
// Fails with profile.ErrLaunch when no compatible executable is found.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}

	execPath, err := resolveExecPath(cfg.ExecPath)
	if err != nil {
		return nil, err
	}

	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = 1280, 800
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(width, height),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	var sourceRate *rate.Limiter
	if cfg.SourceQPS > 0 {
		sourceRate = rate.NewLimiter(rate.Limit(cfg.SourceQPS), 1)
	}

	return &Manager{
		cfg:         cfg,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		limiter:     make(chan struct{}, cfg.MaxParallel),
		sourceRate:  sourceRate,
	}, nil
}

// Close cancels the allocator context, terminating any live browsers.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.allocCancel()
}

// NavTimeout returns the configured per-navigation budget.
func (m *Manager) NavTimeout() time.Duration { return m.cfg.NavTimeout }

// ReadyTimeout returns the configured readiness-poll budget.
func (m *Manager) ReadyTimeout() time.Duration { return m.cfg.ReadyTimeout }

// Open launches a browser tab. The caller must Close the session on
// every exit path. Launch failures map to profile.ErrLaunch and are not
// retried here.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	select {
	case m.limiter <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for browser slot: %w", ctx.Err())
	}
	release := func() { <-m.limiter }

	if m.sourceRate != nil {
		if err := m.sourceRate.Wait(ctx); err != nil {
			release()
			return nil, fmt.Errorf("wait source budget: %w", err)
		}
	}

	tabCtx, tabCancel := chromedp.NewContext(m.allocator)
	s := &Session{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		release:   release,
		logger:    m.logger,
	}

	// Warm up so a missing/broken executable surfaces here, not on
	// first navigation.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", profile.ErrLaunch, err)
	}
	if m.cfg.UserAgent != "" {
		if err := chromedp.Run(tabCtx, emulation.SetUserAgentOverride(m.cfg.UserAgent)); err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: set user-agent: %v", profile.ErrLaunch, err)
		}
	}
	return s, nil
}

// Session is a single live browser tab.
type Session struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	release   func()
	logger    *zap.Logger
	closeOnce sync.Once
}

// Navigate loads url and waits for the DOM to be parsed. A blown budget
// maps to profile.ErrNavigationTimeout, anything else to
// profile.ErrNavigation.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", profile.ErrNavigationTimeout, url, timeout)
	}
	return fmt.Errorf("%w: %s: %v", profile.ErrNavigation, url, err)
}

// AwaitReady polls the boolean JS expression until it is true or the
// budget expires. A timeout is not an error: the caller proceeds with
// whatever the page has, so the result is just false.
func (s *Session) AwaitReady(ctx context.Context, probeJS string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		var ready bool
		evalCtx, cancel := context.WithTimeout(s.tabCtx, time.Second)
		err := chromedp.Run(evalCtx, chromedp.Evaluate(probeJS, &ready))
		cancel()
		if err == nil && ready {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return false
		case <-s.tabCtx.Done():
			return false
		}
	}
}

// HTML snapshots the current DOM.
func (s *Session) HTML(ctx context.Context) (string, error) {
	snapCtx, cancel := context.WithTimeout(s.tabCtx, 10*time.Second)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

// Close tears down the tab and releases the parallelism slot. Safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.tabCancel()
		s.release()
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// resolveExecPath picks the browser binary: the explicit override first,
// else the first platform-conventional candidate that exists on disk.
func resolveExecPath(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%w: configured executable %q: %v", profile.ErrLaunch, override, err)
		}
		return override, nil
	}
	for _, candidate := range execCandidates(runtime.GOOS) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no compatible browser executable found", profile.ErrLaunch)
}

func execCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}
}
