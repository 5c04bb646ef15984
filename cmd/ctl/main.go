// Command ctl is the operator-facing administrative tool: it reports
// registry/queue status, re-triggers benchmark runs, unpublishes a
// technique, and rebuilds the scene cache and public page artefacts.
// update-scenes and trim use try_flock so they never block a
// concurrently running benchmark.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fbksd/fbksd-server/pkg/banner"
	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/lock"
	"github.com/fbksd/fbksd-server/pkg/page"
	"github.com/fbksd/fbksd-server/pkg/queue"
	"github.com/fbksd/fbksd-server/pkg/registry"
	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var lockFile string

var rootCmd = &cobra.Command{
	Use:           "ctl",
	Short:         "fbksd-server administrative tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&lockFile, "lock-file", "/var/lock/fbksd.lock", "exclusive data-root lock file")
	rootCmd.AddCommand(
		&cobra.Command{Use: "status", Short: "Report registry and queue depth", RunE: runStatus},
		&cobra.Command{Use: "run-all", Short: "Enqueue a benchmark run for every registered technique", RunE: runRunAll},
		&cobra.Command{Use: "unpublish <id>", Short: "Revert a technique's public workspace to private", Args: cobra.ExactArgs(1), RunE: runUnpublish},
		&cobra.Command{Use: "update-page", Short: "Rewrite the public page artefacts", RunE: runUpdatePage},
		&cobra.Command{Use: "update-scenes", Short: "Rescan the scene corpus and rewrite the scene cache", RunE: runUpdateScenes},
		&cobra.Command{Use: "trim", Short: "Delete Finished workspaces past the retention limit", RunE: runTrim},
	)
}

type env struct {
	root *dataroot.Root
	sys  *config.System
	st   store.Store
	reg  *registry.Registry
	fl   *lock.FileLock
}

func bootstrap() (*env, error) {
	root, err := dataroot.Load()
	if err != nil {
		return nil, err
	}
	sys, err := config.Load(root.ConfigPath())
	if err != nil {
		return nil, err
	}
	st, err := store.NewPostgresStore(root.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &env{
		root: root,
		sys:  sys,
		st:   st,
		reg:  registry.New(st, sys.MaxNumWorkspaces),
		fl:   lock.New(lockFile),
	}, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	title := "fbksd status"
	e, err := bootstrap()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer e.st.Close()

	ids, err := e.reg.ListTechniqueIDs()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	denoisers, samplers := 0, 0
	for _, id := range ids {
		t, err := e.reg.GetTechnique(id)
		if err != nil {
			continue
		}
		if t.Kind == types.KindDenoiser {
			denoisers++
		} else {
			samplers++
		}
	}

	lines := []string{
		fmt.Sprintf("registered techniques: %d (%d denoisers, %d samplers)", len(ids), denoisers, samplers),
	}
	if m, err := queue.New(e.st).PeekMail(); err == nil && m != nil {
		lines = append(lines, "mail queue: non-empty")
	} else {
		lines = append(lines, "mail queue: empty")
	}
	banner.Success(title, lines...)
	return nil
}

func runRunAll(cmd *cobra.Command, args []string) error {
	title := "fbksd run-all"
	e, err := bootstrap()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer e.st.Close()

	ids, err := e.reg.ListTechniqueIDs()
	if err != nil {
		banner.Failure(title, err)
		return err
	}

	q := queue.New(e.st)
	var enqueued, skipped int
	for _, id := range ids {
		_, commitSHA, image, ok := lastKnownWorkspace(e, id)
		if !ok {
			skipped++
			continue
		}
		if err := q.PushRun(types.Project{ID: id, CommitSHA: commitSHA, ContainerImage: image}); err != nil {
			skipped++
			continue
		}
		enqueued++
	}
	banner.Success(title, fmt.Sprintf("enqueued %d run(s), skipped %d (no prior workspace or already pending)", enqueued, skipped))
	return nil
}

// lastKnownWorkspace finds a commit/image pair to re-run a technique
// against, preferring an unpublished (New|Finished) workspace over a
// Published one so a re-run refreshes what is not already live.
func lastKnownWorkspace(e *env, techniqueID int) (uuid, commitSHA, image string, ok bool) {
	if uuids, err := e.reg.GetUnpublished(techniqueID); err == nil && len(uuids) > 0 {
		if ws, err := e.reg.GetWorkspace(uuids[0]); err == nil {
			return ws.UUID, ws.CommitSHA, ws.ContainerImage, true
		}
	}
	if _, err := e.reg.GetTechnique(techniqueID); err != nil {
		return "", "", "", false
	}
	for _, kind := range []types.TechniqueKind{types.KindDenoiser, types.KindSampler} {
		published, err := e.reg.GetPublished(kind)
		if err != nil {
			continue
		}
		for _, p := range published {
			if p.TechniqueID != techniqueID {
				continue
			}
			if ws, err := e.reg.GetWorkspace(p.UUID); err == nil {
				return ws.UUID, ws.CommitSHA, ws.ContainerImage, true
			}
		}
	}
	return "", "", "", false
}

func runUnpublish(cmd *cobra.Command, args []string) error {
	title := "fbksd unpublish"
	var id int
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		err := fmt.Errorf("invalid technique id %q", args[0])
		banner.Failure(title, err)
		return err
	}

	e, err := bootstrap()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer e.st.Close()

	var kind types.TechniqueKind
	var uuid string
	if err := e.fl.WithLock(func() error {
		kind, uuid, err = e.reg.UnpublishWorkspace(id)
		if err != nil {
			return err
		}
		group := dataroot.GroupDir(string(kind))
		t, err := e.reg.GetTechnique(id)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(e.root.Join("public", "data", group, t.ShortName)); err != nil {
			return err
		}
		exp := page.NewExporter(e.root, e.reg)
		cache, err := page.LoadSceneCache(e.root)
		if err != nil {
			return err
		}
		idx := page.BuildSceneIndex(cache)
		return exp.WriteAll(exp.ExportDataDir(e.root.PublicDir()), idx)
	}); err != nil {
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, fmt.Sprintf("technique %d (%s) unpublished; workspace %s reverted to Finished", id, kind, uuid))
	return nil
}

func runUpdatePage(cmd *cobra.Command, args []string) error {
	title := "fbksd update-page"
	e, err := bootstrap()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer e.st.Close()

	if err := e.fl.WithLock(func() error {
		cache, err := page.LoadSceneCache(e.root)
		if err != nil {
			return err
		}
		idx := page.BuildSceneIndex(cache)
		exp := page.NewExporter(e.root, e.reg)
		return exp.WriteAll(exp.ExportDataDir(e.root.PublicDir()), idx)
	}); err != nil {
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, "public page artefacts rewritten")
	return nil
}

func runUpdateScenes(cmd *cobra.Command, args []string) error {
	title := "fbksd update-scenes"
	e, err := bootstrap()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer e.st.Close()

	ok, err := e.fl.WithTryLock(func() error {
		return page.UpdateScenes(e.root)
	})
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	if !ok {
		err := fmt.Errorf("data root is locked by a concurrent benchmark run")
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, "scene cache rebuilt")
	return nil
}

func runTrim(cmd *cobra.Command, args []string) error {
	title := "fbksd trim"
	e, err := bootstrap()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer e.st.Close()

	var removed int
	ok, err := e.fl.WithTryLock(func() error {
		for _, kind := range []types.TechniqueKind{types.KindDenoiser, types.KindSampler} {
			stale, err := e.reg.GetUnpublishedOlderThan(kind, e.sys.UnpublishedDaysLimit)
			if err != nil {
				return err
			}
			for _, entry := range stale {
				t, err := e.reg.GetTechnique(entry.TechniqueID)
				if err != nil {
					return err
				}
				if err := e.reg.RemoveWorkspace(entry.TechniqueID, entry.UUID); err != nil {
					return err
				}
				wsDir := filepath.Join(e.root.TechniqueDir(string(t.Kind), entry.TechniqueID), entry.UUID)
				if err := os.RemoveAll(wsDir); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	if !ok {
		err := fmt.Errorf("data root is locked by a concurrent benchmark run")
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, fmt.Sprintf("removed %d stale workspace(s)", removed))
	return nil
}
