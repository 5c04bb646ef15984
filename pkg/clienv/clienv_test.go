package clienv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/types"
)

func setCIEnv(t *testing.T, id, sha, email, token string) {
	t.Helper()
	t.Setenv("CI_PROJECT_ID", id)
	t.Setenv("CI_COMMIT_SHORT_SHA", sha)
	t.Setenv("GITLAB_USER_EMAIL", email)
	t.Setenv("FBKSD_TOKEN", token)
}

func TestLoadProjectSuccess(t *testing.T) {
	setCIEnv(t, "7", "abc123", "user@example.com", "tok")

	proj, err := LoadProject()
	require.NoError(t, err)
	assert.Equal(t, 7, proj.ID)
	assert.Equal(t, "abc123", proj.CommitSHA)
	assert.Equal(t, "user@example.com", proj.UserEmail)
	assert.Equal(t, "tok", proj.Token)
	assert.Empty(t, proj.ContainerImage, "LoadProject never fills ContainerImage")
}

func TestLoadProjectMissingVar(t *testing.T) {
	setCIEnv(t, "7", "abc123", "user@example.com", "tok")
	t.Setenv("CI_COMMIT_SHORT_SHA", "")

	_, err := LoadProject()
	var missing *MissingEnvVar
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "CI_COMMIT_SHORT_SHA", missing.Name)
}

func TestLoadProjectInvalidID(t *testing.T) {
	setCIEnv(t, "not-a-number", "abc123", "user@example.com", "tok")

	_, err := LoadProject()
	var invalid *InvalidID
	require.True(t, errors.As(err, &invalid))
}

func TestLoadProjectRejectsNonPositiveID(t *testing.T) {
	setCIEnv(t, "0", "abc123", "user@example.com", "tok")

	_, err := LoadProject()
	var invalid *InvalidID
	require.True(t, errors.As(err, &invalid))
}

func TestResolveImageFillsContainerImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitlab-ci.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"include:\n  project: fbksd/fbksd_ci_config\n  ref: master\n  file: /denoiser.yml\n",
	), 0o644))

	sys := &config.System{Configs: map[string]string{"denoiser": "registry.fbksd.org/denoiser:latest"}}

	p := types.Project{ID: 1}
	require.NoError(t, ResolveImage(&p, path, sys))
	assert.Equal(t, "registry.fbksd.org/denoiser:latest", p.ContainerImage)
}

func TestResolveImageRejectsUnknownAlias(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitlab-ci.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"include:\n  project: fbksd/fbksd_ci_config\n  ref: master\n  file: /unknown.yml\n",
	), 0o644))

	sys := &config.System{Configs: map[string]string{"denoiser": "registry.fbksd.org/denoiser:latest"}}

	p := types.Project{ID: 1}
	err := ResolveImage(&p, path, sys)
	assert.Error(t, err)
}
