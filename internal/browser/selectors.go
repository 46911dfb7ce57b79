package browser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors names the controls of the target chat application. They are the
// only thing that has to change when the target UI changes.
type Selectors struct {
	LoginButton       string `yaml:"login_button"`
	EmailInput        string `yaml:"email_input"`
	ContinueButton    string `yaml:"continue_button"`
	PasswordInput     string `yaml:"password_input"`
	SubmitButton      string `yaml:"submit_button"`
	PasswordError     string `yaml:"password_error"`
	OTPInput          string `yaml:"otp_input"`
	ChatInput         string `yaml:"chat_input"`
	SendButton        string `yaml:"send_button"`
	StopButton        string `yaml:"stop_button"`
	AssistantMessages string `yaml:"assistant_messages"`
}

// DefaultSelectors targets https://chatgpt.com/.
func DefaultSelectors() Selectors {
	return Selectors{
		LoginButton:       `button[data-testid="login-button"]`,
		EmailInput:        `input[name="email"]`,
		ContinueButton:    `input[name="continue"]`,
		PasswordInput:     `input[type="password"]`,
		SubmitButton:      `button[name="action"]`,
		PasswordError:     `span[id="error-element-password"]`,
		OTPInput:          `input[type="number"]`,
		ChatInput:         `div[id="prompt-textarea"] p`,
		SendButton:        `button[aria-label="Send prompt"]`,
		StopButton:        `button[data-testid="stop-button"]`,
		AssistantMessages: `div[data-message-author-role="assistant"]`,
	}
}

// LoadSelectors reads a YAML file and overlays its non-empty entries on the
// defaults. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, fmt.Errorf("read selectors file: %w", err)
	}

	var override Selectors
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Selectors{}, fmt.Errorf("parse selectors file %s: %w", path, err)
	}

	sel.merge(override)
	return sel, nil
}

func (s *Selectors) merge(o Selectors) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.LoginButton, o.LoginButton)
	set(&s.EmailInput, o.EmailInput)
	set(&s.ContinueButton, o.ContinueButton)
	set(&s.PasswordInput, o.PasswordInput)
	set(&s.SubmitButton, o.SubmitButton)
	set(&s.PasswordError, o.PasswordError)
	set(&s.OTPInput, o.OTPInput)
	set(&s.ChatInput, o.ChatInput)
	set(&s.SendButton, o.SendButton)
	set(&s.StopButton, o.StopButton)
	set(&s.AssistantMessages, o.AssistantMessages)
}
