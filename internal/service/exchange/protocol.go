// Package exchange sends one message through the chat UI and reads the reply.
package exchange

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
	"github.com/zhouzirui/chat-relay/backend/internal/service/transcript"
)

const (
	MsgSendControlNotFound = "Send button not found"
	MsgResponseTimeout     = "response timed out"
	MsgSendFailed          = "Failed to send message"
)

// Timing bounds the waits of an exchange.
type Timing struct {
	Navigation time.Duration
	// Response bounds the wait for a new assistant message to appear.
	Response time.Duration
	// Settle bounds the wait for the reply to stop growing.
	Settle       time.Duration
	TypingDelay  time.Duration
	PollInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Navigation:   60 * time.Second,
		Response:     30 * time.Second,
		Settle:       20 * time.Second,
		TypingDelay:  50 * time.Millisecond,
		PollInterval: 500 * time.Millisecond,
	}
}

// Protocol types a message, waits for the assistant reply and records both
// sides in the transcript.
type Protocol struct {
	session   *browser.Session
	store     *transcript.Store
	target    string
	selectors browser.Selectors
	timing    Timing
	logger    *zap.Logger
}

func NewProtocol(session *browser.Session, store *transcript.Store, target string, selectors browser.Selectors, timing Timing, logger *zap.Logger) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{
		session:   session,
		store:     store,
		target:    target,
		selectors: selectors,
		timing:    timing,
		logger:    logger.Named("exchange"),
	}
}

// Send delivers text and returns the assistant's reply. The user turn is
// recorded before anything is typed, so failed attempts stay in the
// transcript. Errors are *chat.Failure values, except a browser launch
// failure, which wraps browser.ErrLaunch.
func (p *Protocol) Send(ctx context.Context, text string) (string, error) {
	page, err := p.session.Open(ctx, p.target, p.timing.Navigation)
	if err != nil {
		if errors.Is(err, browser.ErrLaunch) || chat.KindOf(err) != "" {
			return "", err
		}
		return "", p.sendFailed(err)
	}

	p.store.Append(chat.RoleUser, text)

	before, err := p.assistantCount(ctx, page)
	if err != nil {
		return "", p.sendFailed(err)
	}

	if err := page.Type(ctx, p.selectors.ChatInput, text, p.timing.TypingDelay); err != nil {
		return "", p.sendFailed(err)
	}

	ok, err := page.Exists(ctx, p.selectors.SendButton)
	if err != nil {
		return "", p.sendFailed(err)
	}
	if !ok {
		return "", chat.NewFailure(chat.KindSendControlNotFound, MsgSendControlNotFound, nil)
	}
	if err := page.Click(ctx, p.selectors.SendButton); err != nil {
		return "", p.sendFailed(err)
	}

	if err := p.awaitReply(ctx, page, before); err != nil {
		return "", err
	}

	reply, err := p.lastReply(ctx, page)
	if err != nil {
		return "", p.sendFailed(err)
	}

	p.store.Append(chat.RoleAssistant, reply)
	p.logger.Info("reply received", zap.Int("chars", len(reply)))
	return reply, nil
}

func (p *Protocol) assistantCount(ctx context.Context, page browser.Page) (int, error) {
	texts, err := page.Texts(ctx, p.selectors.AssistantMessages)
	if err != nil {
		return 0, err
	}
	return len(texts), nil
}

// awaitReply waits for a new assistant message, then for generation to end:
// the stop control is gone and the last reply did not change since the
// previous poll. Generation has no reliable completion signal, so the second
// wait gives up quietly after the settle limit.
func (p *Protocol) awaitReply(ctx context.Context, page browser.Page, before int) error {
	respCtx, cancel := context.WithTimeout(ctx, p.timing.Response)
	defer cancel()

	err := browser.Poll(respCtx, p.timing.PollInterval, func(ctx context.Context) (bool, error) {
		n, err := p.assistantCount(ctx, page)
		return n > before, err
	})
	if err != nil {
		if respCtx.Err() != nil && ctx.Err() == nil {
			p.logger.Warn("no reply before deadline", zap.Duration("timeout", p.timing.Response))
			return chat.NewFailure(chat.KindResponseTimeout, MsgResponseTimeout, err)
		}
		return p.sendFailed(err)
	}

	var last string
	seen := false
	done, err := browser.Settle(ctx, p.timing.Settle, p.timing.PollInterval, func(ctx context.Context) (bool, error) {
		generating, err := page.Exists(ctx, p.selectors.StopButton)
		if err != nil {
			return false, err
		}
		current, err := p.lastReply(ctx, page)
		if err != nil {
			return false, err
		}
		stable := seen && current == last
		last, seen = current, true
		return !generating && stable, nil
	})
	if err != nil {
		return p.sendFailed(err)
	}
	if !done {
		p.logger.Debug("reply still changing at settle limit", zap.Duration("limit", p.timing.Settle))
	}
	return nil
}

func (p *Protocol) lastReply(ctx context.Context, page browser.Page) (string, error) {
	texts, err := page.Texts(ctx, p.selectors.AssistantMessages)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", nil
	}
	return texts[len(texts)-1], nil
}

func (p *Protocol) sendFailed(cause error) error {
	p.logger.Debug("send failed", zap.Error(cause))
	return chat.NewFailure(chat.KindMessageSendFailed, MsgSendFailed, cause)
}
