package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSelectorsDefaults(t *testing.T) {
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSelectors(), sel)
}

func TestLoadSelectorsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	content := "send_button: 'button#composer-submit'\nassistant_messages: 'article .reply'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sel, err := LoadSelectors(path)
	require.NoError(t, err)
	assert.Equal(t, "button#composer-submit", sel.SendButton)
	assert.Equal(t, "article .reply", sel.AssistantMessages)
	assert.Equal(t, DefaultSelectors().LoginButton, sel.LoginButton)
}

func TestLoadSelectorsMissingFile(t *testing.T) {
	_, err := LoadSelectors(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRandomUserAgentIsDesktop(t *testing.T) {
	for i := 0; i < 20; i++ {
		ua := RandomUserAgent()
		assert.NotContains(t, ua, "Mobile")
		assert.Contains(t, desktopUserAgents, ua)
	}
}
