package dataroot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDataRoot(t *testing.T) {
	t.Setenv("FBKSD_DATA_ROOT", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/fbksd")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresAbsoluteDataRoot(t *testing.T) {
	t.Setenv("FBKSD_DATA_ROOT", "relative/path")
	t.Setenv("DATABASE_URL", "postgres://localhost/fbksd")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("FBKSD_DATA_ROOT", "/data")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadSuccess(t *testing.T) {
	t.Setenv("FBKSD_DATA_ROOT", "/data")
	t.Setenv("DATABASE_URL", "postgres://localhost/fbksd")

	root, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data", root.Path)
	assert.Equal(t, "postgres://localhost/fbksd", root.DatabaseURL)
}

func TestRootPathHelpers(t *testing.T) {
	root := &Root{Path: "/data"}

	assert.Equal(t, "/data/config.json", root.ConfigPath())
	assert.Equal(t, "/data/scenes", root.ScenesDir())
	assert.Equal(t, "/data/renderers", root.RenderersDir())
	assert.Equal(t, "/data/iqa", root.IQADir())
	assert.Equal(t, "/data/page", root.PageTemplateDir())
	assert.Equal(t, "/data/public", root.PublicDir())
	assert.Equal(t, "/data/tmp/workspace", root.ScratchDir())
	assert.Equal(t, "/data/scenes/.fbksd-scenes-cache.json", root.SceneCachePath())
	assert.Equal(t, "/data/workspaces/denoisers", root.WorkspacesDir("DENOISER"))
	assert.Equal(t, "/data/workspaces/denoisers/42", root.TechniqueDir("DENOISER", 42))
}

func TestGroupDir(t *testing.T) {
	assert.Equal(t, "denoisers", GroupDir("DENOISER"))
	assert.Equal(t, "samplers", GroupDir("SAMPLER"))
	assert.Equal(t, "unknown", GroupDir("BOGUS"))
}
