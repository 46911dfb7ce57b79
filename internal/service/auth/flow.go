// Package auth signs a browser session into the target chat application.
package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
)

const (
	MsgCredentialsRequired = "Email and password are required"
	MsgInvalidCredentials  = "email or password is incorrect"
	MsgTwoFactorRequired   = "Cannot bypass 2FA"
	MsgCaptchaBlocked      = "Cannot bypass Captcha"
)

// Timing bounds the waits of the login flow.
type Timing struct {
	// Navigation bounds page loads and post-click navigations.
	Navigation time.Duration
	// Settle bounds the wait for the next form to show up.
	Settle time.Duration
	// PollInterval is how often settle conditions are checked.
	PollInterval time.Duration
}

// DefaultTiming returns the production timings.
func DefaultTiming() Timing {
	return Timing{
		Navigation:   60 * time.Second,
		Settle:       10 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Result is the outcome of a login attempt.
type Result struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Kind    chat.FailureKind `json:"kind,omitempty"`
	State   State            `json:"state"`
	Trace   []State          `json:"trace,omitempty"`
}

// Flow drives the login form of the target site.
type Flow struct {
	session   *browser.Session
	target    string
	selectors browser.Selectors
	timing    Timing
	logger    *zap.Logger
}

// NewFlow returns a Flow operating on session.
func NewFlow(session *browser.Session, target string, selectors browser.Selectors, timing Timing, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		session:   session,
		target:    target,
		selectors: selectors,
		timing:    timing,
		logger:    logger.Named("auth"),
	}
}

// attempt carries the per-call state between steps.
type attempt struct {
	email    string
	password string
	page     browser.Page
	kind     chat.FailureKind
	message  string
}

func (a *attempt) fail(kind chat.FailureKind, message string) {
	a.kind = kind
	a.message = message
}

type step func(ctx context.Context, a *attempt) (State, error)

// Login walks the state machine until it reaches a terminal state. Only a
// browser launch failure or cancellation of ctx is returned as an error;
// every other outcome is described by the Result.
func (f *Flow) Login(ctx context.Context, email, password string) (Result, error) {
	if email == "" || password == "" {
		return Result{
			Error: MsgCredentialsRequired,
			Kind:  chat.KindInvalidInput,
			State: StateNotStarted,
			Trace: []State{StateNotStarted},
		}, nil
	}

	steps := map[State]step{
		StateNotStarted:           f.navigate,
		StateNavigated:            f.openLoginForm,
		StateAwaitingEmailForm:    f.submitEmail,
		StateEmailSubmitted:       f.awaitPasswordForm,
		StateAwaitingPasswordForm: f.submitPassword,
		StatePasswordSubmitted:    f.awaitOutcome,
		StateCheckingResult:       f.checkOutcome,
	}

	a := &attempt{email: email, password: password}
	state := StateNotStarted
	trace := []State{state}

	for !state.Terminal() {
		next, err := steps[state](ctx, a)
		if err != nil {
			switch {
			case errors.Is(err, browser.ErrLaunch):
				f.logger.Error("browser launch failed", zap.Error(err))
				return Result{Error: err.Error(), State: StateError, Trace: append(trace, StateError)}, err
			case ctx.Err() != nil:
				return Result{Error: ctx.Err().Error(), State: StateError, Trace: append(trace, StateError)}, ctx.Err()
			case chat.KindOf(err) != "":
				a.fail(chat.KindOf(err), err.Error())
				next = StateError
			default:
				f.logger.Debug("login step failed", zap.String("state", string(state)), zap.Error(err))
				a.fail(chat.KindCaptchaBlocked, MsgCaptchaBlocked)
				next = StateCaptchaBlocked
			}
		}

		f.logger.Debug("login transition", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
		trace = append(trace, state)
	}

	res := Result{Success: state == StateSuccess, State: state, Trace: trace}
	if !res.Success {
		res.Error = a.message
		res.Kind = a.kind
	}
	f.logger.Info("login finished", zap.String("state", string(state)), zap.Bool("success", res.Success))
	return res, nil
}

func (f *Flow) navigate(ctx context.Context, a *attempt) (State, error) {
	page, err := f.session.Open(ctx, f.target, f.timing.Navigation)
	if err != nil {
		if errors.Is(err, browser.ErrLaunch) || chat.KindOf(err) != "" || ctx.Err() != nil {
			return StateError, err
		}
		// The page never loaded, so there is no form to blame.
		f.logger.Warn("navigation failed", zap.String("url", f.target), zap.Error(err))
		a.fail(chat.KindNavigationFailed, err.Error())
		return StateError, nil
	}
	a.page = page
	return StateNavigated, nil
}

// openLoginForm treats a missing login entry as an already signed-in session.
func (f *Flow) openLoginForm(ctx context.Context, a *attempt) (State, error) {
	ok, err := a.page.Exists(ctx, f.selectors.LoginButton)
	if err != nil {
		return StateError, err
	}
	if !ok {
		f.logger.Info("no login entry on page, already signed in")
		return StateSuccess, nil
	}

	if err := a.page.Click(ctx, f.selectors.LoginButton); err != nil {
		return StateError, err
	}
	if err := f.waitNavigation(ctx, a.page); err != nil {
		return StateError, err
	}
	return StateAwaitingEmailForm, nil
}

func (f *Flow) submitEmail(ctx context.Context, a *attempt) (State, error) {
	ok, err := a.page.Exists(ctx, f.selectors.EmailInput)
	if err != nil {
		return StateError, err
	}
	if ok {
		if err := a.page.Type(ctx, f.selectors.EmailInput, a.email, 0); err != nil {
			return StateError, err
		}
	}

	ok, err = a.page.Exists(ctx, f.selectors.ContinueButton)
	if err != nil {
		return StateError, err
	}
	if ok {
		if err := a.page.Click(ctx, f.selectors.ContinueButton); err != nil {
			return StateError, err
		}
	}
	return StateEmailSubmitted, nil
}

func (f *Flow) awaitPasswordForm(ctx context.Context, a *attempt) (State, error) {
	if _, err := browser.Settle(ctx, f.timing.Settle, f.timing.PollInterval,
		browser.AnyExists(a.page, f.selectors.PasswordInput)); err != nil {
		return StateError, err
	}
	return StateAwaitingPasswordForm, nil
}

func (f *Flow) submitPassword(ctx context.Context, a *attempt) (State, error) {
	ok, err := a.page.Exists(ctx, f.selectors.PasswordInput)
	if err != nil {
		return StateError, err
	}
	if !ok {
		a.fail(chat.KindInvalidCredentials, MsgInvalidCredentials)
		return StateInvalidCredentials, nil
	}
	if err := a.page.Type(ctx, f.selectors.PasswordInput, a.password, 0); err != nil {
		return StateError, err
	}

	ok, err = a.page.Exists(ctx, f.selectors.SubmitButton)
	if err != nil {
		return StateError, err
	}
	if !ok {
		a.fail(chat.KindInvalidCredentials, MsgInvalidCredentials)
		return StateInvalidCredentials, nil
	}
	if err := a.page.Click(ctx, f.selectors.SubmitButton); err != nil {
		return StateError, err
	}
	return StatePasswordSubmitted, nil
}

func (f *Flow) awaitOutcome(ctx context.Context, a *attempt) (State, error) {
	if _, err := browser.Settle(ctx, f.timing.Settle, f.timing.PollInterval,
		browser.AnyExists(a.page, f.selectors.PasswordError, f.selectors.OTPInput, f.selectors.ChatInput)); err != nil {
		return StateError, err
	}
	return StateCheckingResult, nil
}

func (f *Flow) checkOutcome(ctx context.Context, a *attempt) (State, error) {
	ok, err := a.page.Exists(ctx, f.selectors.PasswordError)
	if err != nil {
		return StateError, err
	}
	if ok {
		a.fail(chat.KindInvalidCredentials, MsgInvalidCredentials)
		return StateInvalidCredentials, nil
	}

	if err := f.waitNavigation(ctx, a.page); err != nil {
		return StateError, err
	}

	ok, err = a.page.Exists(ctx, f.selectors.OTPInput)
	if err != nil {
		return StateError, err
	}
	if ok {
		a.fail(chat.KindTwoFactorRequired, MsgTwoFactorRequired)
		return StateTwoFactorRequired, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.timing.Navigation)
	defer cancel()
	if err := a.page.WaitFor(waitCtx, f.selectors.ChatInput); err != nil {
		return StateError, err
	}
	return StateSuccess, nil
}

func (f *Flow) waitNavigation(ctx context.Context, page browser.Page) error {
	navCtx, cancel := context.WithTimeout(ctx, f.timing.Navigation)
	defer cancel()
	return page.WaitNavigation(navCtx)
}
