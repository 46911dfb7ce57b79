// Package roddriver drives Chrome with go-rod.
package roddriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
)

const defaultStartTimeout = 30 * time.Second

// Launcher starts Chrome via rod's launcher, or connects to RemoteURL.
type Launcher struct {
	logger       *zap.Logger
	startTimeout time.Duration
}

var _ browser.Launcher = (*Launcher)(nil)

func New(logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{logger: logger.Named("rod"), startTimeout: defaultStartTimeout}
}

type started struct {
	l       *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
}

func (l *Launcher) Launch(ctx context.Context, profile browser.Profile) (browser.Browser, browser.Page, error) {
	startCtx, cancel := context.WithTimeout(ctx, l.startTimeout)
	defer cancel()

	resCh := make(chan started, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := l.start(profile)
		if err != nil {
			errCh <- err
			return
		}
		resCh <- s
	}()

	var s started
	select {
	case err := <-errCh:
		return nil, nil, err
	case s = <-resCh:
	case <-startCtx.Done():
		// The start goroutine may still finish; reap whatever it produces.
		go func() {
			select {
			case late := <-resCh:
				late.close()
			case <-errCh:
			}
		}()
		return nil, nil, fmt.Errorf("start chrome: %w", startCtx.Err())
	}

	if err := emulate(s.page, profile); err != nil {
		s.close()
		return nil, nil, err
	}

	b := &rodBrowser{started: s, logger: l.logger}
	return b, &page{page: s.page}, nil
}

func (l *Launcher) start(profile browser.Profile) (started, error) {
	var s started

	controlURL := profile.RemoteURL
	if controlURL == "" {
		s.l = newLauncher(profile)
		u, err := s.l.Launch()
		if err != nil {
			return s, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}
	l.logger.Info("connecting to chrome", zap.String("url", controlURL))

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.close()
		return s, fmt.Errorf("connect to chrome: %w", err)
	}

	p, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.close()
		return s, fmt.Errorf("create page: %w", err)
	}
	s.page = p
	return s, nil
}

func newLauncher(profile browser.Profile) *launcher.Launcher {
	l := launcher.New().
		Headless(profile.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("no-first-run").
		Set("no-default-browser-check")
	if profile.ExecPath != "" {
		l = l.Bin(profile.ExecPath)
	}
	if profile.UserAgent != "" {
		l = l.Set("user-agent", profile.UserAgent)
	}
	for _, raw := range profile.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(strings.TrimSpace(raw), "-"), "=")
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func emulate(p *rod.Page, profile browser.Profile) error {
	if profile.ViewportWidth > 0 && profile.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             profile.ViewportWidth,
			Height:            profile.ViewportHeight,
			DeviceScaleFactor: 1,
			Mobile:            false,
		}).Call(p); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}

	lat, lng, acc := profile.Latitude, profile.Longitude, 100.0
	if err := (proto.EmulationSetGeolocationOverride{
		Latitude:  &lat,
		Longitude: &lng,
		Accuracy:  &acc,
	}).Call(p); err != nil {
		return fmt.Errorf("set geolocation: %w", err)
	}

	if profile.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: profile.UserAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	return nil
}

func (s started) close() {
	if s.browser != nil && s.l != nil {
		_ = s.browser.Close()
	}
	if s.l != nil {
		s.l.Kill()
		s.l.Cleanup()
	}
}

type rodBrowser struct {
	started
	logger *zap.Logger
}

// Close closes a launched browser. A remote browser is left running.
func (b *rodBrowser) Close() error {
	if b.l == nil {
		return nil
	}
	err := b.browser.Close()
	b.l.Cleanup()
	if err != nil {
		b.logger.Warn("browser close failed", zap.Error(err))
		return err
	}
	return nil
}
