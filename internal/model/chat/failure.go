package chat

import "errors"

// FailureKind tags the reason an operation failed so callers can branch on it.
type FailureKind string

const (
	KindInvalidInput        FailureKind = "invalid_input"
	KindNavigationTimeout   FailureKind = "navigation_timeout"
	KindNavigationFailed    FailureKind = "navigation_failed"
	KindResponseTimeout     FailureKind = "response_timeout"
	KindInvalidCredentials  FailureKind = "invalid_credentials"
	KindTwoFactorRequired   FailureKind = "two_factor_required"
	KindCaptchaBlocked      FailureKind = "captcha_blocked"
	KindSendControlNotFound FailureKind = "send_control_not_found"
	KindMessageSendFailed   FailureKind = "message_send_failed"
	KindEmptyHistory        FailureKind = "empty_history"
)

// Failure is a classified, caller-facing error. Error() only returns Message;
// the underlying driver error stays reachable through Unwrap for logging.
type Failure struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// NewFailure builds a Failure.
func NewFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// KindOf returns the failure kind carried by err, or "" if err is not a Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsTimeout reports whether err is a navigation or response timeout.
func IsTimeout(err error) bool {
	switch KindOf(err) {
	case KindNavigationTimeout, KindResponseTimeout:
		return true
	default:
		return false
	}
}
