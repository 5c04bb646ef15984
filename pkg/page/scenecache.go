package page

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
)

// Scene is one benchmark scene entry as carried by the scene cache and
// by scenes.json.
type Scene struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	RefImg string `json:"ref-img"`
	Ref    string `json:"ref,omitempty"`
}

// RendererScenes groups a renderer's scenes, the unit the cache file
// stores one of per discovered renderer.
type RendererScenes struct {
	Renderer string  `json:"renderer"`
	Scenes   []Scene `json:"scenes"`
}

// SceneCache is the parsed form of D/scenes/.fbksd-scenes-cache.json.
type SceneCache []RendererScenes

// sceneManifest is the per-scene-directory fbksd-scene(s).json shape.
type sceneManifest struct {
	Scenes []Scene `json:"scenes"`
	Scene  *Scene  `json:"scene"`
}

// UpdateScenes scans D/scenes/*/**/fbksd-scene[s].json, normalizes every
// path to be relative to D/scenes, and writes the cache file. It is
// idempotent: given an unchanged scenes tree, two runs produce
// byte-identical output, because renderers and scenes are both sorted
// before marshaling.
func UpdateScenes(root *dataroot.Root) error {
	scenesDir := root.ScenesDir()
	entries, err := os.ReadDir(scenesDir)
	if err != nil {
		return fmt.Errorf("page: read scenes dir: %w", err)
	}

	var cache SceneCache
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		renderer := entry.Name()
		rendererDir := filepath.Join(scenesDir, renderer)
		scenes, err := scanRendererScenes(scenesDir, rendererDir)
		if err != nil {
			return fmt.Errorf("page: scan renderer %s: %w", renderer, err)
		}
		if len(scenes) == 0 {
			continue
		}
		sort.Slice(scenes, func(i, j int) bool { return scenes[i].Name < scenes[j].Name })
		cache = append(cache, RendererScenes{Renderer: renderer, Scenes: scenes})
	}
	sort.Slice(cache, func(i, j int) bool { return cache[i].Renderer < cache[j].Renderer })

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("page: marshal scene cache: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(root.SceneCachePath(), data, 0o644); err != nil {
		return fmt.Errorf("page: write scene cache: %w", err)
	}
	return nil
}

func scanRendererScenes(scenesDir, rendererDir string) ([]Scene, error) {
	var scenes []Scene
	err := filepath.WalkDir(rendererDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "fbksd-scene.json" && name != "fbksd-scenes.json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var manifest sceneManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		dir := filepath.Dir(path)
		found := manifest.Scenes
		if manifest.Scene != nil {
			found = append(found, *manifest.Scene)
		}
		for _, sc := range found {
			sc.Path = normalizeRelative(scenesDir, dir, sc.Path)
			sc.RefImg = normalizeRelative(scenesDir, dir, sc.RefImg)
			if sc.Ref != "" {
				sc.Ref = normalizeRelative(scenesDir, dir, sc.Ref)
			}
			scenes = append(scenes, sc)
		}
		return nil
	})
	return scenes, err
}

func normalizeRelative(scenesDir, manifestDir, p string) string {
	if p == "" {
		return ""
	}
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(manifestDir, p)
	}
	rel, err := filepath.Rel(scenesDir, abs)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// LoadSceneCache reads the cache file written by UpdateScenes.
func LoadSceneCache(root *dataroot.Root) (SceneCache, error) {
	data, err := os.ReadFile(root.SceneCachePath())
	if err != nil {
		return nil, fmt.Errorf("page: read scene cache: %w", err)
	}
	var cache SceneCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("page: parse scene cache: %w", err)
	}
	return cache, nil
}

// SceneIndex assigns stable integer ids 0..N-1 to every scene, in
// renderer order as read from the cache, so that result records can
// reference scenes by that id across runs.
type SceneIndex struct {
	idByKey map[string]int
	scenes  []Scene
}

func BuildSceneIndex(cache SceneCache) *SceneIndex {
	idx := &SceneIndex{idByKey: make(map[string]int)}
	for _, rs := range cache {
		for _, sc := range rs.Scenes {
			key := sceneKey(rs.Renderer, sc.Name)
			idx.idByKey[key] = len(idx.scenes)
			idx.scenes = append(idx.scenes, sc)
		}
	}
	return idx
}

func sceneKey(renderer, name string) string {
	return renderer + "/" + name
}

// IDFor returns the stable id of a scene, and whether it was found.
func (idx *SceneIndex) IDFor(renderer, name string) (int, bool) {
	id, ok := idx.idByKey[sceneKey(renderer, name)]
	return id, ok
}

// Scenes returns the full ordered scene list, index == assigned id.
func (idx *SceneIndex) Scenes() []Scene {
	return idx.scenes
}

// Missing returns the scenes the corpus described by cache lists for
// renderer whose names are absent from have — used by
// InitMissingScenesWP's "missing scenes top-up" flow.
func Missing(cache SceneCache, renderer string, have map[string]bool) []Scene {
	var missing []Scene
	for _, rs := range cache {
		if rs.Renderer != renderer {
			continue
		}
		for _, sc := range rs.Scenes {
			if !have[sc.Name] {
				missing = append(missing, sc)
			}
		}
	}
	return missing
}
