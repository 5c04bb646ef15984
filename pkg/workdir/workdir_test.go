package workdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
)

func TestWithDirRestoresCwdOnSuccess(t *testing.T) {
	prev, err := os.Getwd()
	require.NoError(t, err)

	target := t.TempDir()
	var seen string
	err = WithDir(target, func() error {
		seen, _ = os.Getwd()
		return nil
	})
	require.NoError(t, err)

	resolvedTarget, _ := filepath.EvalSymlinks(target)
	resolvedSeen, _ := filepath.EvalSymlinks(seen)
	assert.Equal(t, resolvedTarget, resolvedSeen)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, prev, after)
}

func TestWithDirRestoresCwdOnError(t *testing.T) {
	prev, err := os.Getwd()
	require.NoError(t, err)

	wantErr := assert.AnError
	err = WithDir(t.TempDir(), func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)

	after, getErr := os.Getwd()
	require.NoError(t, getErr)
	assert.Equal(t, prev, after)
}

func TestScratchResetWipesExistingContent(t *testing.T) {
	root := &dataroot.Root{Path: t.TempDir()}
	s := NewScratch(root)

	dir, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, root.ScratchDir(), dir)

	stray := filepath.Join(dir, "leftover.txt")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))

	dir2, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)

	_, err = os.Stat(stray)
	assert.True(t, os.IsNotExist(err), "Reset must wipe prior scratch contents")
}

func TestScratchPathDoesNotReset(t *testing.T) {
	root := &dataroot.Root{Path: t.TempDir()}
	s := NewScratch(root)

	assert.Equal(t, root.ScratchDir(), s.Path())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "Path must not create the directory")
}
