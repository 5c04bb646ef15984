package ciconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMappingInclude(t *testing.T) {
	data := []byte(`
include:
  project: fbksd/fbksd_ci_config
  ref: master
  file: /denoiser.yml
`)
	alias, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "denoiser", alias)
}

func TestParseSequenceIncludeSingleEntry(t *testing.T) {
	data := []byte(`
include:
  - project: fbksd/fbksd_ci_config
    ref: master
    file: /sampler.yml
`)
	alias, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "sampler", alias)
}

func TestParseRejectsMultipleIncludes(t *testing.T) {
	data := []byte(`
include:
  - project: fbksd/fbksd_ci_config
    ref: master
    file: /a.yml
  - project: fbksd/fbksd_ci_config
    ref: master
    file: /b.yml
`)
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrBadCIConfig)
}

func TestParseRejectsMissingInclude(t *testing.T) {
	_, err := Parse([]byte(`stages: [build]`))
	assert.ErrorIs(t, err, ErrBadCIConfig)
}

func TestParseRejectsWrongProjectOrRef(t *testing.T) {
	data := []byte(`
include:
  project: someone/else
  ref: master
  file: /denoiser.yml
`)
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrCIConfigMissingInclude)

	data = []byte(`
include:
  project: fbksd/fbksd_ci_config
  ref: not-master
  file: /denoiser.yml
`)
	_, err = Parse(data)
	assert.ErrorIs(t, err, ErrCIConfigMissingInclude)
}

func TestParseRejectsFileWithoutLeadingSlashOrYmlSuffix(t *testing.T) {
	cases := []string{"denoiser.yml", "/denoiser", "/denoiser.yaml"}
	for _, file := range cases {
		data := []byte("include:\n  project: fbksd/fbksd_ci_config\n  ref: master\n  file: " + file + "\n")
		_, err := Parse(data)
		assert.ErrorIsf(t, err, ErrCIConfigMissingInclude, "file=%q", file)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "nope.yml"))
	assert.True(t, errors.Is(err, ErrCIConfigNotFound))
}

func TestLoadReadsAndParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitlab-ci.yml")
	content := "include:\n  project: fbksd/fbksd_ci_config\n  ref: master\n  file: /denoiser.yml\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	alias, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "denoiser", alias)
}

func TestResolveImage(t *testing.T) {
	whitelist := map[string]string{"denoiser": "registry.fbksd.org/denoiser:latest"}

	img, err := ResolveImage("denoiser", whitelist)
	require.NoError(t, err)
	assert.Equal(t, "registry.fbksd.org/denoiser:latest", img)

	_, err = ResolveImage("unknown", whitelist)
	assert.ErrorIs(t, err, ErrCIConfigImageNotFound)
}
