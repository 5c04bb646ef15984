package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesDocument(t *testing.T) {
	path := writeConfig(t, `{
		"max_num_workspaces": 3,
		"unpublished_days_limit": 7,
		"spps": [4, 16, 64],
		"configs": {"denoiser": "registry.fbksd.org/denoiser:latest"},
		"mailer_smtp_domain": "smtp.fbksd.org",
		"mailer_email_user": "bot@fbksd.org",
		"mailer_email_password": "secret",
		"mailer_polling_rate": 30,
		"mailer_timeout": 10
	}`)

	sys, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, sys.MaxNumWorkspaces)
	assert.Equal(t, 7, sys.UnpublishedDaysLimit)
	assert.Equal(t, []int{4, 16, 64}, sys.SPPs)
	assert.Equal(t, 30*time.Second, sys.MailerPollingInterval())
	assert.Equal(t, 10*time.Second, sys.MailerTimeoutDuration())
}

func TestLoadOverlaysWWWOwnershipFromEnv(t *testing.T) {
	path := writeConfig(t, `{"max_num_workspaces": 1}`)

	t.Setenv("FBKSD_WWW_USER", "www-data")
	t.Setenv("FBKSD_WWW_GROUP", "www-data")

	sys, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "www-data", sys.WWWUser)
	assert.Equal(t, "www-data", sys.WWWGroup)
}

func TestLoadLeavesWWWOwnershipBlankWhenUnset(t *testing.T) {
	path := writeConfig(t, `{"max_num_workspaces": 1}`)

	t.Setenv("FBKSD_WWW_USER", "")
	t.Setenv("FBKSD_WWW_GROUP", "")

	sys, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, sys.WWWUser)
	assert.Empty(t, sys.WWWGroup)
}

func TestLoadRejectsNonPositiveMaxWorkspaces(t *testing.T) {
	path := writeConfig(t, `{"max_num_workspaces": 0}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestImageForAlias(t *testing.T) {
	sys := &System{Configs: map[string]string{"denoiser": "img:latest"}}

	img, ok := sys.ImageForAlias("denoiser")
	assert.True(t, ok)
	assert.Equal(t, "img:latest", img)

	_, ok = sys.ImageForAlias("missing")
	assert.False(t, ok)
}
