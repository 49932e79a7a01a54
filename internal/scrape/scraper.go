// Package scrape implements profile.Scraper: it drives the probe/browser
// pipeline against the source site and turns a page into a normalized
// ScrapedProfile.
package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/socialproof/profile-engine/internal/archive"
	"github.com/socialproof/profile-engine/internal/avatar"
	"github.com/socialproof/profile-engine/internal/extract"
	"github.com/socialproof/profile-engine/internal/fetch"
	"github.com/socialproof/profile-engine/internal/metrics"
	"github.com/socialproof/profile-engine/internal/profile"
	"github.com/socialproof/profile-engine/internal/session"
)

// readyProbeJS is the minimal identity signal: a profile photo element
// or the username block has rendered.
const readyProbeJS = `document.querySelector('img[src*="profile_images"]') !== null ||
document.querySelector('div[data-testid="UserName"]') !== null`

// Session is one live browser page. The scraper must Close it on every
// exit path.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	AwaitReady(ctx context.Context, probeJS string, timeout time.Duration) bool
	HTML(ctx context.Context) (string, error)
	Close()
}

// SessionOpener hands out sessions under the manager's concurrency and
// rate budget.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
	NavTimeout() time.Duration
	ReadyTimeout() time.Duration
}

// Sessions adapts a *session.Manager to SessionOpener.
func Sessions(m *session.Manager) SessionOpener {
	if m == nil {
		return nil
	}
	return managerOpener{m}
}

type managerOpener struct {
	m *session.Manager
}

func (o managerOpener) Open(ctx context.Context) (Session, error) {
	sess, err := o.m.Open(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (o managerOpener) NavTimeout() time.Duration   { return o.m.NavTimeout() }
func (o managerOpener) ReadyTimeout() time.Duration { return o.m.ReadyTimeout() }

// Config controls the scrape pipeline.
type Config struct {
	SourceBaseURL string
	ArchivePrefix string
	ProbeEnabled  bool
}

// Scraper runs one acquisition's scrape stage.
type Scraper struct {
	cfg      Config
	sessions SessionOpener
	probe    *fetch.Probe
	detector *fetch.Detector
	archiver archive.Provider
	clock    profile.Clock
	logger   *zap.Logger
}

// New wires a Scraper. probe may be nil when the fast path is disabled;
// archiver may be a NoOp.
func New(
	cfg Config,
	sessions SessionOpener,
	probe *fetch.Probe,
	detector *fetch.Detector,
	archiver archive.Provider,
	clock profile.Clock,
	logger *zap.Logger,
) *Scraper {
	if archiver == nil {
		archiver = archive.NoOp{}
	}
	return &Scraper{
		cfg:      cfg,
		sessions: sessions,
		probe:    probe,
		detector: detector,
		archiver: archiver,
		clock:    clock,
		logger:   logger,
	}
}

// Scrape fetches the profile page for handle, extracts fields, and
// normalizes the avatar. Fails with profile.ErrScrapeFailed (or a
// session-level error) when the page never yields an identity signal.
func (s *Scraper) Scrape(ctx context.Context, handle string) (profile.ScrapedProfile, error) {
	url := s.profileURL(handle)
	start := time.Now()
	defer func() { metrics.ObserveScrapeDuration(time.Since(start)) }()

	html, ready, err := s.fetchPage(ctx, url)
	if err != nil {
		return profile.ScrapedProfile{}, err
	}

	doc, err := extract.Parse(strings.NewReader(html))
	if err != nil {
		return profile.ScrapedProfile{}, fmt.Errorf("%w: parse dom: %v", profile.ErrScrapeFailed, err)
	}
	fields := extract.Fields(doc)
	fields.AvatarURL = avatar.Normalize(fields.AvatarURL)

	if !ready && fields.Empty() {
		return profile.ScrapedProfile{}, fmt.Errorf("%w: no identity signal for %s", profile.ErrScrapeFailed, handle)
	}

	s.archiveSnapshot(ctx, handle, html)

	now := s.clock.Now()
	return profile.ScrapedProfile{
		Handle:      handle,
		FullName:    fields.FullName,
		Bio:         fields.Bio,
		AvatarURL:   fields.AvatarURL,
		Followers:   fields.Followers,
		SourceURL:   url,
		LastScraped: now,
	}, nil
}

// fetchPage returns the page HTML and whether the readiness signal was
// observed. The probe fast path is used only when it already carries
// profile markers; everything else goes through a scoped browser
// session that is closed on every exit path.
func (s *Scraper) fetchPage(ctx context.Context, url string) (string, bool, error) {
	if s.cfg.ProbeEnabled && s.probe != nil {
		res, err := s.probe.Fetch(ctx, url)
		if err == nil && !s.detector.NeedsBrowser(res.Body) {
			s.logger.Debug("probe satisfied extraction", zap.String("url", url))
			return string(res.Body), true, nil
		}
		if err != nil {
			s.logger.Debug("probe fetch failed, promoting to browser",
				zap.String("url", url), zap.Error(err))
		}
	}

	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return "", false, err
	}
	metrics.IncActiveSessions()
	defer metrics.DecActiveSessions()
	defer sess.Close()

	if err := sess.Navigate(ctx, url, s.sessions.NavTimeout()); err != nil {
		return "", false, err
	}

	ready := sess.AwaitReady(ctx, readyProbeJS, s.sessions.ReadyTimeout())
	if !ready {
		s.logger.Warn("readiness probe timed out, extracting from partial dom",
			zap.String("url", url))
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", profile.ErrScrapeFailed, err)
	}
	return html, ready, nil
}

func (s *Scraper) archiveSnapshot(ctx context.Context, handle, html string) {
	path := archive.SnapshotPath(s.cfg.ArchivePrefix, handle, s.clock.Now())
	uri, err := s.archiver.Put(ctx, path, []byte(html))
	if err != nil {
		metrics.ObserveArchiveFailure()
		s.logger.Warn("snapshot archive failed", zap.String("handle", handle), zap.Error(err))
		return
	}
	if uri != "" {
		s.logger.Debug("snapshot archived", zap.String("uri", uri))
	}
}

func (s *Scraper) profileURL(handle string) string {
	return strings.TrimRight(s.cfg.SourceBaseURL, "/") + "/" + handle
}
