// Package chat is the facade the HTTP layer and the CLI talk to. It owns one
// browser session and the transcript of the current conversation.
package chat

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
	"github.com/zhouzirui/chat-relay/backend/internal/service/auth"
	"github.com/zhouzirui/chat-relay/backend/internal/service/exchange"
	"github.com/zhouzirui/chat-relay/backend/internal/service/transcript"
)

// MsgMessageRequired is returned for an empty message.
const MsgMessageRequired = "Message is required"

// Options configures a Service.
type Options struct {
	TargetURL      string
	Selectors      browser.Selectors
	AuthTiming     auth.Timing
	ExchangeTiming exchange.Timing
	ExportDir      string
}

// DefaultOptions targets https://chatgpt.com/ with production timings.
func DefaultOptions() Options {
	return Options{
		TargetURL:      "https://chatgpt.com/",
		Selectors:      browser.DefaultSelectors(),
		AuthTiming:     auth.DefaultTiming(),
		ExchangeTiming: exchange.DefaultTiming(),
	}
}

// Service ties the session, login flow, message exchange and transcript
// together. It is not safe for concurrent use; callers serialize access.
type Service struct {
	session  *browser.Session
	store    *transcript.Store
	flow     *auth.Flow
	protocol *exchange.Protocol
	exporter *transcript.Exporter
	logger   *zap.Logger
}

// NewService builds the facade. Nothing is launched until the first Login or
// SendMessage.
func NewService(launcher browser.Launcher, profile browser.Profile, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	session := browser.NewSession(launcher, profile, logger)
	store := transcript.NewStore()

	return &Service{
		session:  session,
		store:    store,
		flow:     auth.NewFlow(session, opts.TargetURL, opts.Selectors, opts.AuthTiming, logger),
		protocol: exchange.NewProtocol(session, store, opts.TargetURL, opts.Selectors, opts.ExchangeTiming, logger),
		exporter: transcript.NewExporter(opts.ExportDir),
		logger:   logger.Named("chat"),
	}
}

// Login signs the browser session in.
func (s *Service) Login(ctx context.Context, email, password string) (auth.Result, error) {
	return s.flow.Login(ctx, email, password)
}

// SendMessage sends message and returns the reply.
func (s *Service) SendMessage(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", chat.NewFailure(chat.KindInvalidInput, MsgMessageRequired, nil)
	}
	return s.protocol.Send(ctx, message)
}

// CloseChat tears down the browser and forgets the transcript. Calling it
// without an open session is fine.
func (s *Service) CloseChat(ctx context.Context) error {
	err := s.session.Teardown(ctx)
	s.store.Clear()
	if err != nil {
		s.logger.Warn("closing browser failed", zap.Error(err))
		return fmt.Errorf("close chat: %w", err)
	}
	return nil
}

// ExportChatHistory writes the transcript to a CSV file and returns its path.
func (s *Service) ExportChatHistory() (string, error) {
	path, err := s.exporter.Export(s.store.Snapshot())
	if err != nil {
		return "", err
	}
	s.logger.Info("chat history exported", zap.String("path", path), zap.Int("turns", s.store.Len()))
	return path, nil
}

// History returns a copy of the transcript.
func (s *Service) History() []chat.Turn {
	return s.store.Snapshot()
}

// Messages returns the transcript as role-tagged eino messages.
func (s *Service) Messages() []*schema.Message {
	return s.store.Messages()
}

// Status describes the current session.
func (s *Service) Status() chat.Status {
	return chat.Status{
		SessionActive: s.session.Active(),
		Location:      s.session.Location(),
		Turns:         s.store.Len(),
	}
}
