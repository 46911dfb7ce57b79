// Package chromedriver drives Chrome through the DevTools protocol with chromedp.
package chromedriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
)

const defaultStartTimeout = 30 * time.Second

// Launcher starts Chrome processes (or attaches to a remote one) for sessions.
type Launcher struct {
	logger       *zap.Logger
	startTimeout time.Duration
}

var _ browser.Launcher = (*Launcher)(nil)

// New returns a chromedp launcher.
func New(logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		logger:       logger.Named("chromedp"),
		startTimeout: defaultStartTimeout,
	}
}

// Launch starts the browser, applies the profile to the first tab and returns
// both. The browser outlives ctx; ctx only bounds the start-up.
func (l *Launcher) Launch(ctx context.Context, profile browser.Profile) (browser.Browser, browser.Page, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if profile.RemoteURL != "" {
		l.logger.Info("connecting to chrome", zap.String("url", profile.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), profile.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(profile)...)
	}

	sugar := l.logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	p := &page{ctx: tabCtx, life: newLifecycle()}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*cdppage.EventLifecycleEvent); ok {
			p.life.observe(string(e.FrameID), e.Name)
		}
	})

	startCtx, startDone := context.WithTimeout(ctx, l.startTimeout)
	defer startDone()

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(tabCtx, setupActions(profile)...)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			tabCancel()
			allocCancel()
			return nil, nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-startCtx.Done():
		tabCancel()
		allocCancel()
		return nil, nil, fmt.Errorf("start chrome: %w", startCtx.Err())
	}

	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		p.life.setMainFrame(string(c.Target.TargetID))
	}

	b := &chromeBrowser{ctx: tabCtx, cancel: tabCancel, allocCancel: allocCancel, logger: l.logger}
	return b, p, nil
}

func allocatorOptions(profile browser.Profile) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("headless", profile.Headless),
	}
	if profile.ViewportWidth > 0 && profile.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(profile.ViewportWidth, profile.ViewportHeight))
	}
	if profile.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(profile.UserAgent))
	}
	if profile.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(profile.ExecPath))
	}
	for _, f := range profile.Flags {
		name, value, hasValue := parseFlag(f)
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// parseFlag splits "--name=value" into its parts.
func parseFlag(raw string) (name, value string, hasValue bool) {
	raw = strings.TrimLeft(strings.TrimSpace(raw), "-")
	name, value, hasValue = strings.Cut(raw, "=")
	return name, value, hasValue
}

func setupActions(profile browser.Profile) []chromedp.Action {
	actions := []chromedp.Action{
		cdppage.Enable(),
		cdppage.SetLifecycleEventsEnabled(true),
	}
	if profile.ViewportWidth > 0 && profile.ViewportHeight > 0 {
		actions = append(actions,
			emulation.SetDeviceMetricsOverride(int64(profile.ViewportWidth), int64(profile.ViewportHeight), 1, false))
	}
	actions = append(actions,
		emulation.SetGeolocationOverride().
			WithLatitude(profile.Latitude).
			WithLongitude(profile.Longitude).
			WithAccuracy(100),
	)
	if profile.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(profile.UserAgent))
	}
	return actions
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// Close shuts the browser down gracefully, then releases the allocator.
func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Warn("graceful browser close failed", zap.Error(err))
		return err
	}
	return nil
}
