package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/chat-relay/backend/internal/app"
	"github.com/zhouzirui/chat-relay/backend/internal/config"
	"github.com/zhouzirui/chat-relay/backend/internal/handler"
	"github.com/zhouzirui/chat-relay/backend/internal/logging"
	"github.com/zhouzirui/chat-relay/backend/internal/middleware"
	"github.com/zhouzirui/chat-relay/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using system environment only", zap.Error(envErr))
	}

	chatService, err := app.NewChatService(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build chat service", zap.Error(err))
	}

	serial := middleware.NewSerializer()
	router := handler.NewRouter(chatService, serial, logger)

	if err := run(ctx, cfg.Server, router, chatService, serial, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// run serves HTTP until ctx is done, then shuts the server down and closes
// the browser session once in-flight operations have released serial.
func run(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, chatService *chat.Service, serial *middleware.Serializer, logger *zap.Logger) error {
	// Hijacked websocket connections outlive Shutdown, so their sends are
	// cancelled through the base context instead.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("chat relay listening", zap.String("addr", serverCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
		var closeErr error
		if err := serial.DoContext(shutdownCtx, func() {
			closeErr = chatService.CloseChat(shutdownCtx)
		}); err != nil {
			errs = append(errs, fmt.Errorf("close chat: %w", err))
		}
		if closeErr != nil {
			errs = append(errs, closeErr)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
