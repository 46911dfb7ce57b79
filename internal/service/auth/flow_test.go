package auth_test

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
	"github.com/zhouzirui/chat-relay/backend/internal/service/auth"
)

const target = "https://chat.example.test/"

var sel = browser.DefaultSelectors()

var fastTiming = auth.Timing{
	Navigation:   50 * time.Millisecond,
	Settle:       20 * time.Millisecond,
	PollInterval: time.Millisecond,
}

func newFlow(t *testing.T, launcher *browsertest.Launcher) *auth.Flow {
	t.Helper()
	logger := zaptest.NewLogger(t)
	session := browser.NewSession(launcher, browser.DefaultProfile(), logger)
	return auth.NewFlow(session, target, sel, fastTiming, logger)
}

// loginSite scripts a login page that reveals each form after the previous
// one is submitted. finish runs when the password form is submitted.
func loginSite(finish func(*browsertest.Page)) func() *browsertest.Page {
	return func() *browsertest.Page {
		return browsertest.NewPage().
			Show(sel.LoginButton).
			OnClick(sel.LoginButton, func(p *browsertest.Page) {
				p.Hide(sel.LoginButton).Show(sel.EmailInput, sel.ContinueButton)
			}).
			OnClick(sel.ContinueButton, func(p *browsertest.Page) {
				p.Hide(sel.EmailInput, sel.ContinueButton).Show(sel.PasswordInput, sel.SubmitButton)
			}).
			OnClick(sel.SubmitButton, func(p *browsertest.Page) {
				if finish != nil {
					finish(p)
				}
			})
	}
}

func TestLoginSuccess(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: loginSite(func(p *browsertest.Page) {
		p.Hide(sel.PasswordInput, sel.SubmitButton).Show(sel.ChatInput)
	})}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, auth.StateSuccess, res.State)
	assert.Equal(t, []auth.State{
		auth.StateNotStarted,
		auth.StateNavigated,
		auth.StateAwaitingEmailForm,
		auth.StateEmailSubmitted,
		auth.StateAwaitingPasswordForm,
		auth.StatePasswordSubmitted,
		auth.StateCheckingResult,
		auth.StateSuccess,
	}, res.Trace)

	page := launcher.Page(0)
	assert.Equal(t, "a@b.com", page.Typed(sel.EmailInput))
	assert.Equal(t, "secret", page.Typed(sel.PasswordInput))
	assert.Equal(t, []string{sel.LoginButton, sel.ContinueButton, sel.SubmitButton}, page.Clicks())
	assert.Equal(t, []string{target}, page.Navigations())
}

func TestLoginAlreadySignedInIsIdempotent(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return browsertest.NewPage().Show(sel.ChatInput)
	}}
	flow := newFlow(t, launcher)

	for i := 0; i < 2; i++ {
		res, err := flow.Login(context.Background(), "a@b.com", "secret")
		require.NoError(t, err)
		assert.True(t, res.Success, "attempt %d", i+1)
	}

	page := launcher.Page(0)
	assert.Equal(t, 1, launcher.Launches())
	assert.Empty(t, page.Clicks())
	assert.Empty(t, page.Typed(sel.EmailInput))
	assert.Equal(t, []string{target}, page.Navigations())
}

func TestLoginRequiresCredentials(t *testing.T) {
	launcher := &browsertest.Launcher{}
	flow := newFlow(t, launcher)

	for _, tc := range []struct{ email, password string }{
		{"a@b.com", ""},
		{"", "secret"},
		{"", ""},
	} {
		res, err := flow.Login(context.Background(), tc.email, tc.password)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Email and password are required", res.Error)
		assert.Equal(t, chat.KindInvalidInput, res.Kind)
	}
	assert.Zero(t, launcher.Launches())
}

func TestLoginMissingPasswordField(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return browsertest.NewPage().
			Show(sel.LoginButton).
			OnClick(sel.LoginButton, func(p *browsertest.Page) {
				p.Show(sel.EmailInput, sel.ContinueButton)
			})
	}}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "email or password is incorrect", res.Error)
	assert.Equal(t, chat.KindInvalidCredentials, res.Kind)
	assert.Equal(t, auth.StateInvalidCredentials, res.State)
}

func TestLoginMissingSubmitControl(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return browsertest.NewPage().
			Show(sel.LoginButton).
			OnClick(sel.LoginButton, func(p *browsertest.Page) {
				p.Show(sel.PasswordInput)
			})
	}}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, chat.KindInvalidCredentials, res.Kind)
	assert.Equal(t, "secret", launcher.Page(0).Typed(sel.PasswordInput))
}

func TestLoginWrongPassword(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: loginSite(func(p *browsertest.Page) {
		p.Show(sel.PasswordError)
	})}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "wrong")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "email or password is incorrect", res.Error)
	assert.Equal(t, auth.StateInvalidCredentials, res.State)
}

func TestLoginTwoFactor(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: loginSite(func(p *browsertest.Page) {
		p.Hide(sel.PasswordInput, sel.SubmitButton).Show(sel.OTPInput)
	})}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Cannot bypass 2FA", res.Error)
	assert.Equal(t, chat.KindTwoFactorRequired, res.Kind)
}

func TestLoginDriverFailureIsCaptcha(t *testing.T) {
	cases := map[string]func(*browsertest.Page){
		"click": func(p *browsertest.Page) {
			p.Fail(browsertest.OpClick, sel.LoginButton, errors.New("element detached"))
		},
		"navigation": func(p *browsertest.Page) {
			p.Fail(browsertest.OpWaitNavigation, "", errors.New("frame detached"))
		},
		"no chat input": func(p *browsertest.Page) {
			// submit leaves the page without any known control
			p.OnClick(sel.SubmitButton, func(p *browsertest.Page) {
				p.Hide(sel.PasswordInput, sel.SubmitButton)
			})
		},
	}

	for name, breakPage := range cases {
		t.Run(name, func(t *testing.T) {
			launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
				p := loginSite(nil)()
				breakPage(p)
				return p
			}}
			flow := newFlow(t, launcher)

			res, err := flow.Login(context.Background(), "a@b.com", "secret")
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, "Cannot bypass Captcha", res.Error)
			assert.Equal(t, chat.KindCaptchaBlocked, res.Kind)
			assert.Equal(t, auth.StateCaptchaBlocked, res.State)
		})
	}
}

func TestLoginNavigationTimeout(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return browsertest.NewPage().BlockNavigation()
	}}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "navigation timed out", res.Error)
	assert.Equal(t, chat.KindNavigationTimeout, res.Kind)
	assert.Equal(t, auth.StateError, res.State)
}

func TestLoginNavigationFailure(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		return loginSite(nil)().Fail(browsertest.OpNavigate, "", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	}}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "net::ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, chat.KindNavigationFailed, res.Kind)
	assert.Equal(t, auth.StateError, res.State)
	assert.Equal(t, []auth.State{auth.StateNotStarted, auth.StateError}, res.Trace)
}

func TestLoginLaunchFailure(t *testing.T) {
	launcher := &browsertest.Launcher{Err: errors.New("chrome not found")}
	flow := newFlow(t, launcher)

	res, err := flow.Login(context.Background(), "a@b.com", "secret")
	require.ErrorIs(t, err, browser.ErrLaunch)
	assert.False(t, res.Success)
	assert.Equal(t, auth.StateError, res.State)
}
