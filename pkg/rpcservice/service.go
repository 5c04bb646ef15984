// Package rpcservice implements rpc.Service on top of pkg/registry and
// pkg/page, wiring them together under the exclusive data-root lock as
// described by the concurrency model — every mutating request reloads
// state from the store, mutates, and persists, holding no authority of
// its own between requests.
package rpcservice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/lock"
	"github.com/fbksd/fbksd-server/pkg/log"
	"github.com/fbksd/fbksd-server/pkg/page"
	"github.com/fbksd/fbksd-server/pkg/registry"
	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
	"github.com/fbksd/fbksd-server/pkg/workdir"
)

// NoScene is the InitMissingScenesWP result when the scene corpus has
// nothing at all to offer — distinct from the normal "" result, which
// means the workspace already covers every known scene or a top-up
// manifest was staged for the ones it doesn't.
const NoScene = "NO_SCENE"

// Service wires the registry and page-export layers together
// behind the data-root flock, implementing rpc.Service.
type Service struct {
	root *dataroot.Root
	sys  *config.System
	reg  *registry.Registry
	lock *lock.FileLock
	exp  *page.Exporter
}

// New builds a Service over reg. Task-queue admission (push_build,
// push_run, push_publish) is not part of the RPC surface — it neither
// touches the filesystem data root nor needs the exclusive flock, so
// producer and consumer talk to pkg/queue directly against the shared
// store.
func New(root *dataroot.Root, sys *config.System, reg *registry.Registry, fl *lock.FileLock) *Service {
	return &Service{
		root: root,
		sys:  sys,
		reg:  reg,
		lock: fl,
		exp:  page.NewExporter(root, reg),
	}
}

func (s *Service) Register(project types.Project, info types.Info) error {
	l := log.WithTechniqueID(project.ID)
	err := s.lock.WithLock(func() error {
		return s.reg.Register(project, info)
	})
	if err != nil {
		l.Warn().Err(err).Msg("register failed")
		return err
	}
	l.Info().Str("short_name", info.ShortName).Msg("register")
	return nil
}

// SaveResults re-persists the technique's descriptive fields from info
// (a technique may revise short_name/citation/comment between install
// and save), admits a new workspace under the capacity invariant, and
// moves the CI runner's scratch install+results tree into the
// workspace's permanent directory.
func (s *Service) SaveResults(project types.Project, info types.Info) (uuid string, err error) {
	l := log.WithTechniqueID(project.ID)
	defer func() {
		if err != nil {
			l.Warn().Err(err).Msg("save results failed")
			return
		}
		l.Info().Str("workspace_uuid", uuid).Msg("results saved in private folder")
	}()
	err = s.lock.WithLock(func() error {
		if err := s.reg.Register(project, info); err != nil {
			return err
		}
		u, err := s.reg.AddWorkspace(project)
		if err != nil {
			return err
		}
		uuid = u

		t, err := s.reg.GetTechnique(project.ID)
		if err != nil {
			return err
		}
		wsDir := filepath.Join(s.root.TechniqueDir(string(t.Kind), t.ID), uuid)
		if err := os.MkdirAll(wsDir, 0o755); err != nil {
			return fmt.Errorf("rpcservice: create workspace dir: %w", err)
		}
		scratch := workdir.NewScratch(s.root)
		if err := moveTree(scratch.Path(), wsDir); err != nil {
			return fmt.Errorf("rpcservice: move scratch into workspace: %w", err)
		}
		return nil
	})
	return uuid, err
}

// PublishPrivate finishes the workspace and stages its private preview
// page, symlinking every already-published technique around it.
func (s *Service) PublishPrivate(project types.Project, uuid string) error {
	l := log.WithWorkspaceUUID(uuid)
	err := s.lock.WithLock(func() error {
		if err := s.reg.PublishWorkspacePrivate(uuid); err != nil {
			return err
		}
		t, err := s.reg.GetTechnique(project.ID)
		if err != nil {
			return err
		}
		published, err := s.siblingPublished(t)
		if err != nil {
			return err
		}
		return page.CopyPublicPage(s.root, t, uuid, published)
	})
	if err != nil {
		l.Warn().Err(err).Msg("publish private failed")
		return err
	}
	l.Info().Int("technique_id", project.ID).Msg("publish private")
	return nil
}

// InitMissingScenesWP compares the workspace's existing results against
// the full scene corpus and stages a scratch workspace scoped to
// whatever scenes are missing, for a possible rerun. It returns
// NoScene if the corpus has no scenes to offer at all.
func (s *Service) InitMissingScenesWP(project types.Project, uuid string) (status string, err error) {
	err = s.lock.WithLock(func() error {
		cache, err := page.LoadSceneCache(s.root)
		if err != nil {
			return err
		}
		if len(cache) == 0 {
			status = NoScene
			return nil
		}

		t, err := s.reg.GetTechnique(project.ID)
		if err != nil {
			return err
		}
		resultsDir := filepath.Join(s.root.TechniqueDir(string(t.Kind), t.ID), uuid, "results")

		scratch := workdir.NewScratch(s.root)
		scratchDir, err := scratch.Reset()
		if err != nil {
			return err
		}

		var missing []page.Scene
		for _, rs := range cache {
			have := existingScenes(filepath.Join(resultsDir, rs.Renderer))
			missing = append(missing, page.Missing(cache, rs.Renderer, have)...)
		}
		if len(missing) == 0 {
			status = ""
			return nil
		}
		if err := writeMissingManifest(scratchDir, missing); err != nil {
			return err
		}
		status = ""
		return nil
	})
	return status, err
}

// UpdateResults merges the scratch workspace's fresh per-scene results
// (from a possible InitMissingScenesWP rerun) into the private preview,
// retaining any scenes already present.
func (s *Service) UpdateResults(project types.Project, uuid string) error {
	l := log.WithWorkspaceUUID(uuid)
	err := s.lock.WithLock(func() error {
		t, err := s.reg.GetTechnique(project.ID)
		if err != nil {
			return err
		}
		scratch := workdir.NewScratch(s.root)
		return page.UpdateResults(s.root, t, uuid, scratch.Path())
	})
	if err != nil {
		l.Warn().Err(err).Msg("update results failed")
		return err
	}
	l.Info().Int("technique_id", project.ID).Msg("update results")
	return nil
}

// PublishPublic transitions the workspace to Published — atomically
// demoting any prior Published workspace of the technique — then moves
// its results into the public page and rewrites the page artefacts.
func (s *Service) PublishPublic(project types.Project, uuid string) error {
	l := log.WithWorkspaceUUID(uuid)
	err := s.lock.WithLock(func() error {
		if err := s.reg.PublishWorkspacePublic(uuid); err != nil {
			return err
		}
		t, err := s.reg.GetTechnique(project.ID)
		if err != nil {
			return err
		}
		cache, err := page.LoadSceneCache(s.root)
		if err != nil {
			return err
		}
		idx := page.BuildSceneIndex(cache)
		return page.PromotePublic(s.root, s.exp, idx, t, uuid, s.sys.WWWUser, s.sys.WWWGroup)
	})
	if err != nil {
		l.Warn().Err(err).Msg("publish public failed")
		return err
	}
	l.Info().Int("technique_id", project.ID).Msg("publish public")
	return nil
}

// CanRun reports whether project's technique is registered and
// therefore permitted to run a benchmark.
func (s *Service) CanRun(project types.Project) (bool, error) {
	_, err := s.reg.GetTechnique(project.ID)
	if errors.Is(err, store.ErrNotRegistered) {
		log.WithTechniqueID(project.ID).Info().Msg("can not run: not registered")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log.WithTechniqueID(project.ID).Info().Msg("can run")
	return true, nil
}

// DeleteWorkspace removes a workspace from the registry and its
// on-disk directory.
func (s *Service) DeleteWorkspace(project types.Project, uuid string) error {
	l := log.WithWorkspaceUUID(uuid)
	err := s.lock.WithLock(func() error {
		t, err := s.reg.GetTechnique(project.ID)
		if err != nil {
			return err
		}
		if err := s.reg.RemoveWorkspace(project.ID, uuid); err != nil {
			return err
		}
		wsDir := filepath.Join(s.root.TechniqueDir(string(t.Kind), t.ID), uuid)
		if err := os.RemoveAll(wsDir); err != nil {
			return fmt.Errorf("rpcservice: remove workspace dir: %w", err)
		}
		return os.RemoveAll(s.root.Join("public", uuid))
	})
	if err != nil {
		l.Warn().Err(err).Msg("delete workspace failed")
		return err
	}
	l.Info().Int("technique_id", project.ID).Msg("delete workspace")
	return nil
}

// siblingPublished lists every published technique of t's own group, in
// the shape page.CopyPublicPage expects for same-group symlinking.
func (s *Service) siblingPublished(t *types.Technique) ([]page.PublishedTechnique, error) {
	entries, err := s.reg.GetPublished(t.Kind)
	if err != nil {
		return nil, fmt.Errorf("rpcservice: list published %s: %w", t.Kind, err)
	}
	var out []page.PublishedTechnique
	for _, e := range entries {
		other, err := s.reg.GetTechnique(e.TechniqueID)
		if err != nil {
			return nil, fmt.Errorf("rpcservice: load technique %d: %w", e.TechniqueID, err)
		}
		out = append(out, page.PublishedTechnique{Kind: other.Kind, ShortName: other.ShortName})
	}
	return out, nil
}

func moveTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.Rename(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func existingScenes(rendererResultsDir string) map[string]bool {
	have := make(map[string]bool)
	entries, err := os.ReadDir(rendererResultsDir)
	if err != nil {
		return have
	}
	for _, entry := range entries {
		if entry.IsDir() {
			have[entry.Name()] = true
		}
	}
	return have
}

// missingManifest is the scratch-workspace top-up file the CI runner
// reads to restrict a rerun to exactly the scenes a workspace lacks.
type missingManifest struct {
	Scenes []page.Scene `json:"scenes"`
}

func writeMissingManifest(scratchDir string, scenes []page.Scene) error {
	path := filepath.Join(scratchDir, "missing_scenes.json")
	data, err := json.MarshalIndent(missingManifest{Scenes: scenes}, "", "  ")
	if err != nil {
		return fmt.Errorf("rpcservice: marshal missing-scenes manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
