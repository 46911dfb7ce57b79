package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureHidesCause(t *testing.T) {
	cause := errors.New("cdp: node not found")
	err := NewFailure(KindMessageSendFailed, "Failed to send message", cause)

	assert.Equal(t, "Failed to send message", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("send: %w", NewFailure(KindResponseTimeout, "response timed out", nil))

	assert.Equal(t, KindResponseTimeout, KindOf(err))
	assert.True(t, IsTimeout(err))
	assert.Equal(t, FailureKind(""), KindOf(errors.New("plain")))
	assert.False(t, IsTimeout(NewFailure(KindCaptchaBlocked, "Cannot bypass Captcha", nil)))
}

func TestTurnMessageRole(t *testing.T) {
	assert.Equal(t, RoleUser, Turn{Role: RoleUser, Content: "hi"}.Message().Role)
	assert.Equal(t, RoleAssistant, Turn{Role: RoleAssistant, Content: "hello"}.Message().Role)
}
