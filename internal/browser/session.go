package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
)

// Session owns one browser process and its active page. The pair is created
// and destroyed together. A Session is not safe for concurrent use; its owner
// serializes calls.
type Session struct {
	launcher Launcher
	profile  Profile
	logger   *zap.Logger

	browser  Browser
	page     Page
	location string
}

// NewSession returns an inactive session. Nothing is launched until EnsureActive.
func NewSession(launcher Launcher, profile Profile, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		launcher: launcher,
		profile:  profile,
		logger:   logger.Named("session"),
	}
}

// Active reports whether a browser is running.
func (s *Session) Active() bool {
	return s.browser != nil
}

// Location returns the last location navigated to.
func (s *Session) Location() string {
	return s.location
}

// EnsureActive launches the browser if none is running and returns the page.
func (s *Session) EnsureActive(ctx context.Context) (Page, error) {
	if s.page != nil {
		return s.page, nil
	}

	profile := s.profile
	if profile.UserAgent == "" {
		profile.UserAgent = RandomUserAgent()
	}

	s.logger.Info("launching browser",
		zap.Bool("headless", profile.Headless),
		zap.Int("viewportWidth", profile.ViewportWidth),
		zap.Int("viewportHeight", profile.ViewportHeight),
		zap.String("userAgent", profile.UserAgent),
	)

	browser, page, err := s.launcher.Launch(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	s.browser = browser
	s.page = page
	s.location = ""
	return page, nil
}

// Open makes sure the session is active and showing url. It only navigates
// when the page is somewhere else. Exceeding timeout while waiting for the
// network to go idle is a navigation timeout failure.
func (s *Session) Open(ctx context.Context, url string, timeout time.Duration) (Page, error) {
	page, err := s.EnsureActive(ctx)
	if err != nil {
		return nil, err
	}

	current, err := page.URL(ctx)
	if err != nil {
		s.logger.Debug("reading page location failed", zap.Error(err))
	}
	if current == url {
		s.location = url
		return page, nil
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := page.Navigate(navCtx, url); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || navCtx.Err() != nil {
			s.logger.Warn("navigation timed out", zap.String("url", url), zap.Duration("timeout", timeout))
			return nil, chat.NewFailure(chat.KindNavigationTimeout, "navigation timed out", err)
		}
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}

	s.location = url
	return page, nil
}

// Teardown closes the page and then the browser. It is a no-op without a
// running browser.
func (s *Session) Teardown(_ context.Context) error {
	if s.browser == nil && s.page == nil {
		return nil
	}

	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}

	s.page = nil
	s.browser = nil
	s.location = ""
	s.logger.Info("browser closed")
	return errors.Join(errs...)
}
