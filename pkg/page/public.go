package page

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// PromotePublic performs the filesystem half of public promotion. The
// registry transition (Finished -> Published, with atomic demotion of
// any prior Published workspace) must already have been committed by
// the caller; this moves the private preview's technique-results
// directory into the public page, replacing any prior directory
// atomically, repoints workspaces/{G}/{id}/published at the new uuid,
// removes the private preview, rewrites the public page artefacts, and
// finally chowns the whole public page tree to wwwUser:wwwGroup.
func PromotePublic(root *dataroot.Root, exp *Exporter, idx *SceneIndex, t *types.Technique, workspaceUUID string, wwwUser, wwwGroup string) error {
	group := dataroot.GroupDir(string(t.Kind))

	previewResultsDir := root.Join("public", workspaceUUID, "data", group, t.ShortName)
	publicDataDir := filepath.Join(root.PublicDir(), "data", group)
	if err := os.MkdirAll(publicDataDir, 0o755); err != nil {
		return fmt.Errorf("page: create public data dir: %w", err)
	}
	finalDir := filepath.Join(publicDataDir, t.ShortName)
	staging := finalDir + ".incoming"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("page: clear staging dir: %w", err)
	}
	if err := copyTree(previewResultsDir, staging); err != nil {
		return fmt.Errorf("page: stage technique results: %w", err)
	}
	if err := os.RemoveAll(finalDir); err != nil {
		return fmt.Errorf("page: remove prior public results: %w", err)
	}
	if err := os.Rename(staging, finalDir); err != nil {
		return fmt.Errorf("page: move staged results into place: %w", err)
	}

	publishedLink := filepath.Join(root.TechniqueDir(string(t.Kind), t.ID), "published")
	if err := symlinkReplace(workspaceUUID, publishedLink); err != nil {
		return fmt.Errorf("page: update published symlink: %w", err)
	}

	if err := os.RemoveAll(root.Join("public", workspaceUUID)); err != nil {
		return fmt.Errorf("page: remove private preview: %w", err)
	}

	if err := exp.WriteAll(exp.ExportDataDir(root.PublicDir()), idx); err != nil {
		return fmt.Errorf("page: rewrite public artefacts: %w", err)
	}

	if err := applyWWWOwnership(root.PublicDir(), wwwUser, wwwGroup); err != nil {
		return fmt.Errorf("page: apply public page ownership: %w", err)
	}
	return nil
}
