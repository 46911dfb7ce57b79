// Package app assembles the chat facade from configuration.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
	"github.com/zhouzirui/chat-relay/backend/internal/browser/chromedriver"
	"github.com/zhouzirui/chat-relay/backend/internal/browser/roddriver"
	"github.com/zhouzirui/chat-relay/backend/internal/config"
	"github.com/zhouzirui/chat-relay/backend/internal/service/auth"
	"github.com/zhouzirui/chat-relay/backend/internal/service/chat"
	"github.com/zhouzirui/chat-relay/backend/internal/service/exchange"
)

// NewLauncher returns the browser backend selected by cfg.Driver.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) (browser.Launcher, error) {
	switch cfg.Driver {
	case config.DriverChromedp, "":
		return chromedriver.New(logger), nil
	case config.DriverRod:
		return roddriver.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

// Options converts configuration into facade options.
func Options(cfg *config.Config) (chat.Options, error) {
	selectors, err := browser.LoadSelectors(cfg.Browser.SelectorsFile)
	if err != nil {
		return chat.Options{}, err
	}

	authTiming := auth.DefaultTiming()
	authTiming.Navigation = cfg.Chat.NavigationTimeout
	authTiming.Settle = cfg.Chat.LoginSettle

	exchangeTiming := exchange.DefaultTiming()
	exchangeTiming.Navigation = cfg.Chat.NavigationTimeout
	exchangeTiming.Response = cfg.Chat.ResponseTimeout
	exchangeTiming.Settle = cfg.Chat.ReplySettle
	exchangeTiming.TypingDelay = cfg.Chat.TypingDelay

	return chat.Options{
		TargetURL:      cfg.Chat.TargetURL,
		Selectors:      selectors,
		AuthTiming:     authTiming,
		ExchangeTiming: exchangeTiming,
		ExportDir:      cfg.Export.Dir,
	}, nil
}

// NewChatService builds the facade with the configured browser backend.
func NewChatService(cfg *config.Config, logger *zap.Logger) (*chat.Service, error) {
	launcher, err := NewLauncher(cfg.Browser, logger)
	if err != nil {
		return nil, err
	}

	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("chat service configured",
		zap.String("driver", string(cfg.Browser.Driver)),
		zap.String("target", opts.TargetURL),
		zap.Bool("headless", cfg.Browser.Headless),
	)
	return chat.NewService(launcher, cfg.Browser.Profile(), opts, logger), nil
}
