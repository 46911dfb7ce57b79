package auth

// State is a step of the login state machine.
type State string

const (
	StateNotStarted           State = "not_started"
	StateNavigated            State = "navigated"
	StateAwaitingEmailForm    State = "awaiting_email_form"
	StateEmailSubmitted       State = "email_submitted"
	StateAwaitingPasswordForm State = "awaiting_password_form"
	StatePasswordSubmitted    State = "password_submitted"
	StateCheckingResult       State = "checking_result"

	StateSuccess            State = "success"
	StateInvalidCredentials State = "invalid_credentials"
	StateTwoFactorRequired  State = "two_factor_required"
	StateCaptchaBlocked     State = "captcha_blocked"
	StateError              State = "error"
)

// Terminal reports whether the machine stops at s.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateInvalidCredentials, StateTwoFactorRequired, StateCaptchaBlocked, StateError:
		return true
	default:
		return false
	}
}
