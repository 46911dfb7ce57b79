package exchange_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
	"github.com/zhouzirui/chat-relay/backend/internal/browser/browsertest"
	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
	"github.com/zhouzirui/chat-relay/backend/internal/service/exchange"
	"github.com/zhouzirui/chat-relay/backend/internal/service/transcript"
)

const target = "https://chat.example.test/"

var sel = browser.DefaultSelectors()

var fastTiming = exchange.Timing{
	Navigation:   50 * time.Millisecond,
	Response:     50 * time.Millisecond,
	Settle:       20 * time.Millisecond,
	TypingDelay:  50 * time.Millisecond,
	PollInterval: time.Millisecond,
}

func newProtocol(t *testing.T, launcher *browsertest.Launcher) (*exchange.Protocol, *transcript.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := transcript.NewStore()
	session := browser.NewSession(launcher, browser.DefaultProfile(), logger)
	return exchange.NewProtocol(session, store, target, sel, fastTiming, logger), store
}

// chatSite answers every send with reply as a new assistant message.
func chatSite(history []string, reply string) func() *browsertest.Page {
	return func() *browsertest.Page {
		p := browsertest.NewPage().Show(sel.ChatInput, sel.SendButton)
		for _, h := range history {
			p.AppendText(sel.AssistantMessages, h)
		}
		return p.OnClick(sel.SendButton, func(p *browsertest.Page) {
			p.AppendText(sel.AssistantMessages, reply)
		})
	}
}

func TestSendReturnsLatestReply(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: chatSite([]string{"old answer"}, "Hello there")}
	proto, store := newProtocol(t, launcher)

	reply, err := proto.Send(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	turns := store.Snapshot()
	require.Len(t, turns, 2)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
	assert.Equal(t, "Hi", turns[0].Content)
	assert.Equal(t, chat.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Hello there", turns[1].Content)

	page := launcher.Page(0)
	assert.Equal(t, "Hi", page.Typed(sel.ChatInput))
	assert.Equal(t, 50*time.Millisecond, page.TypingDelay(sel.ChatInput))
	assert.Equal(t, []string{sel.SendButton}, page.Clicks())
}

func TestSendWaitsForGenerationToFinish(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		p := browsertest.NewPage().Show(sel.ChatInput, sel.SendButton)
		return p.OnClick(sel.SendButton, func(p *browsertest.Page) {
			p.Show(sel.StopButton).AppendText(sel.AssistantMessages, "Hel")
			go func() {
				time.Sleep(5 * time.Millisecond)
				p.SetLastText(sel.AssistantMessages, "Hello, world")
				p.Hide(sel.StopButton)
			}()
		})
	}}
	proto := withSettle(t, launcher, 2*time.Second)

	reply, err := proto.Send(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", reply)
}

func withSettle(t *testing.T, launcher *browsertest.Launcher, settle time.Duration) *exchange.Protocol {
	t.Helper()
	timing := fastTiming
	timing.Settle = settle
	logger := zaptest.NewLogger(t)
	session := browser.NewSession(launcher, browser.DefaultProfile(), logger)
	return exchange.NewProtocol(session, transcript.NewStore(), target, sel, timing, logger)
}

func TestSendWithoutSendControl(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return browsertest.NewPage().Show(sel.ChatInput)
	}}
	proto, store := newProtocol(t, launcher)

	_, err := proto.Send(context.Background(), "Hi")
	require.Error(t, err)
	assert.Equal(t, chat.KindSendControlNotFound, chat.KindOf(err))
	assert.Len(t, store.Snapshot(), 1, "the attempt stays in the transcript")
}

func TestSendResponseTimeout(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return browsertest.NewPage().Show(sel.ChatInput, sel.SendButton)
	}}
	proto, store := newProtocol(t, launcher)

	_, err := proto.Send(context.Background(), "Hi")
	require.Error(t, err)
	assert.Equal(t, chat.KindResponseTimeout, chat.KindOf(err))
	assert.True(t, chat.IsTimeout(err))

	turns := store.Snapshot()
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
}

func TestSendDriverFailureIsGeneric(t *testing.T) {
	cause := errors.New("target closed")
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return chatSite(nil, "ok")().Fail(browsertest.OpType, sel.ChatInput, cause)
	}}
	proto, store := newProtocol(t, launcher)

	_, err := proto.Send(context.Background(), "Hi")
	require.Error(t, err)
	assert.Equal(t, "Failed to send message", err.Error())
	assert.Equal(t, chat.KindMessageSendFailed, chat.KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Len(t, store.Snapshot(), 1)
}

func TestSendNavigationTimeout(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return browsertest.NewPage().BlockNavigation()
	}}
	proto, store := newProtocol(t, launcher)

	_, err := proto.Send(context.Background(), "Hi")
	assert.Equal(t, chat.KindNavigationTimeout, chat.KindOf(err))
	assert.Zero(t, store.Len())
}

func TestSendLaunchFailure(t *testing.T) {
	launcher := &browsertest.Launcher{Err: errors.New("no chrome")}
	proto, store := newProtocol(t, launcher)

	_, err := proto.Send(context.Background(), "Hi")
	assert.ErrorIs(t, err, browser.ErrLaunch)
	assert.Zero(t, store.Len())
}

func TestSendReusesOpenPage(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: chatSite(nil, "pong")}
	proto, store := newProtocol(t, launcher)

	for i := 0; i < 2; i++ {
		_, err := proto.Send(context.Background(), "ping")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, launcher.Launches())
	assert.Equal(t, []string{target}, launcher.Page(0).Navigations())
	assert.Equal(t, 4, store.Len())
}
