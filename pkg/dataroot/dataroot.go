// Package dataroot binds the two process-wide singletons every
// fbksd-server process depends on — the filesystem data root and the
// registry/queue database connection string — once at first access,
// and exposes them as an immutable value passed down explicitly rather
// than re-read from the environment deep in call stacks.
package dataroot

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root is the resolved, immutable process configuration derived from
// FBKSD_DATA_ROOT and DATABASE_URL.
type Root struct {
	Path        string // absolute path to D
	DatabaseURL string
}

// Load reads and validates the two required environment variables. It is
// called once, near the top of each process's main(), and the returned
// Root is threaded through every subsequent call rather than re-read.
func Load() (*Root, error) {
	path := os.Getenv("FBKSD_DATA_ROOT")
	if path == "" {
		return nil, fmt.Errorf("dataroot: FBKSD_DATA_ROOT is required")
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("dataroot: FBKSD_DATA_ROOT must be an absolute path, got %q", path)
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("dataroot: DATABASE_URL is required")
	}
	return &Root{Path: path, DatabaseURL: dbURL}, nil
}

// Join resolves a path relative to D.
func (r *Root) Join(elem ...string) string {
	return filepath.Join(append([]string{r.Path}, elem...)...)
}

func (r *Root) ConfigPath() string       { return r.Join("config.json") }
func (r *Root) ScenesDir() string        { return r.Join("scenes") }
func (r *Root) RenderersDir() string     { return r.Join("renderers") }
func (r *Root) IQADir() string           { return r.Join("iqa") }
func (r *Root) PageTemplateDir() string  { return r.Join("page") }
func (r *Root) PublicDir() string        { return r.Join("public") }
func (r *Root) ScratchDir() string       { return r.Join("tmp", "workspace") }
func (r *Root) SceneCachePath() string   { return r.Join("scenes", ".fbksd-scenes-cache.json") }

// WorkspacesDir returns D/workspaces/{denoisers|samplers}.
func (r *Root) WorkspacesDir(kind string) string {
	return r.Join("workspaces", GroupDir(kind))
}

// TechniqueDir returns D/workspaces/{group}/{id}.
func (r *Root) TechniqueDir(kind string, id int) string {
	return filepath.Join(r.WorkspacesDir(kind), fmt.Sprintf("%d", id))
}

// GroupDir maps a technique kind to its filesystem group directory name.
func GroupDir(kind string) string {
	switch kind {
	case "DENOISER":
		return "denoisers"
	case "SAMPLER":
		return "samplers"
	default:
		return "unknown"
	}
}
