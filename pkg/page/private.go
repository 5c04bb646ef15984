package page

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// CopyPublicPage stages a private preview page at D/public/{uuid}/ for
// a Finished workspace of technique t in group G, per the page-export
// contract: the page template is cloned, scenes/ is symlinked to the
// shared corpus, every published technique of the opposite group is
// symlinked wholesale, every published technique of the same group
// except t itself (whose fresh results are about to be copied in) is
// symlinked individually, and data/{G}/ is created as a real directory
// holding t's new result images.
func CopyPublicPage(root *dataroot.Root, t *types.Technique, workspaceUUID string, published []PublishedTechnique) error {
	previewDir := root.Join("public", workspaceUUID)
	if err := os.RemoveAll(previewDir); err != nil {
		return fmt.Errorf("page: clear preview dir: %w", err)
	}
	if err := copyTree(root.PageTemplateDir(), previewDir); err != nil {
		return fmt.Errorf("page: clone page template: %w", err)
	}

	if err := symlinkReplace(root.ScenesDir(), filepath.Join(previewDir, "scenes")); err != nil {
		return fmt.Errorf("page: symlink scenes: %w", err)
	}

	group := dataroot.GroupDir(string(t.Kind))
	oppositeGroup := dataroot.GroupDir(string(t.Kind.Opposite()))

	oppositeDir := filepath.Join(previewDir, "data", oppositeGroup)
	if err := os.MkdirAll(filepath.Dir(oppositeDir), 0o755); err != nil {
		return fmt.Errorf("page: create data dir: %w", err)
	}
	publicOppositeDataDir := filepath.Join(root.PublicDir(), "data", oppositeGroup)
	if dirExists(publicOppositeDataDir) {
		if err := symlinkReplace(publicOppositeDataDir, oppositeDir); err != nil {
			return fmt.Errorf("page: symlink opposite group: %w", err)
		}
	}

	sameGroupDir := filepath.Join(previewDir, "data", group)
	if err := os.MkdirAll(sameGroupDir, 0o755); err != nil {
		return fmt.Errorf("page: create same-group data dir: %w", err)
	}
	for _, other := range published {
		if other.Kind != t.Kind || other.ShortName == t.ShortName {
			continue
		}
		publicDir := filepath.Join(root.PublicDir(), "data", group, other.ShortName)
		if !dirExists(publicDir) {
			continue
		}
		if err := symlinkReplace(publicDir, filepath.Join(sameGroupDir, other.ShortName)); err != nil {
			return fmt.Errorf("page: symlink sibling %s: %w", other.ShortName, err)
		}
	}

	resultsDir := filepath.Join(sameGroupDir, t.ShortName)
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return fmt.Errorf("page: create technique results dir: %w", err)
	}
	workspaceResults := root.Join("workspaces", group, fmt.Sprintf("%d", t.ID), workspaceUUID, "results")
	if err := copyTree(workspaceResults, resultsDir); err != nil {
		return fmt.Errorf("page: copy workspace results: %w", err)
	}
	return nil
}

// PublishedTechnique names an already-published technique for the
// purposes of private-page symlinking.
type PublishedTechnique struct {
	Kind      types.TechniqueKind
	ShortName string
}

// UpdateResults merges the scratch workspace's fresh per-scene results
// into the private preview's data dir, retaining scenes already present
// there — the "missing scenes top-up" flow: only the scratch workspace's
// {s3}-shaped subset is copied, and copyTree never overwrites an
// existing destination file.
func UpdateResults(root *dataroot.Root, t *types.Technique, workspaceUUID, scratchDir string) error {
	group := dataroot.GroupDir(string(t.Kind))
	dest := root.Join("public", workspaceUUID, "data", group, t.ShortName)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("page: create results dest: %w", err)
	}
	return copyTreeIgnoreExisting(scratchDir, dest)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func symlinkReplace(target, linkPath string) error {
	if err := os.RemoveAll(linkPath); err != nil {
		return err
	}
	return os.Symlink(target, linkPath)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, false)
	})
}

// copyTreeIgnoreExisting mirrors `rsync --ignore-existing`: files
// already present at the destination are left untouched.
func copyTreeIgnoreExisting(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, true)
	})
}

func copyFile(src, dst string, ignoreExisting bool) error {
	if ignoreExisting {
		if _, err := os.Stat(dst); err == nil {
			return nil
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
