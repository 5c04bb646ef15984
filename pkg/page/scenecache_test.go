package page

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
)

func writeManifest(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestUpdateScenesIsIdempotentAndSorted(t *testing.T) {
	root := &dataroot.Root{Path: t.TempDir()}
	scenesDir := root.ScenesDir()

	writeManifest(t, filepath.Join(scenesDir, "pbrt", "kitchen"), "fbksd-scene.json", `{
		"scene": {"name": "kitchen", "path": "scene.pbrt", "ref-img": "ref.exr"}
	}`)
	writeManifest(t, filepath.Join(scenesDir, "pbrt", "bedroom"), "fbksd-scenes.json", `{
		"scenes": [{"name": "bedroom", "path": "scene.pbrt", "ref-img": "ref.exr"}]
	}`)
	writeManifest(t, filepath.Join(scenesDir, "mitsuba", "bathroom"), "fbksd-scene.json", `{
		"scene": {"name": "bathroom", "path": "scene.xml", "ref-img": "ref.exr"}
	}`)

	require.NoError(t, UpdateScenes(root))
	first, err := os.ReadFile(root.SceneCachePath())
	require.NoError(t, err)

	require.NoError(t, UpdateScenes(root))
	second, err := os.ReadFile(root.SceneCachePath())
	require.NoError(t, err)

	assert.Equal(t, first, second, "UpdateScenes must be idempotent over an unchanged tree")

	cache, err := LoadSceneCache(root)
	require.NoError(t, err)
	require.Len(t, cache, 2)
	assert.Equal(t, "mitsuba", cache[0].Renderer, "renderers sorted alphabetically")
	assert.Equal(t, "pbrt", cache[1].Renderer)
	require.Len(t, cache[1].Scenes, 2)
	assert.Equal(t, "bedroom", cache[1].Scenes[0].Name, "scenes sorted within a renderer")
	assert.Equal(t, "kitchen", cache[1].Scenes[1].Name)
}

func TestUpdateScenesNormalizesPathsRelativeToScenesDir(t *testing.T) {
	root := &dataroot.Root{Path: t.TempDir()}
	scenesDir := root.ScenesDir()

	writeManifest(t, filepath.Join(scenesDir, "pbrt", "kitchen"), "fbksd-scene.json", `{
		"scene": {"name": "kitchen", "path": "scene.pbrt", "ref-img": "ref.exr"}
	}`)
	require.NoError(t, UpdateScenes(root))

	cache, err := LoadSceneCache(root)
	require.NoError(t, err)
	require.Len(t, cache, 1)
	require.Len(t, cache[0].Scenes, 1)
	sc := cache[0].Scenes[0]
	assert.Equal(t, "pbrt/kitchen/scene.pbrt", sc.Path)
	assert.Equal(t, "pbrt/kitchen/ref.exr", sc.RefImg)
}

func TestBuildSceneIndexAssignsStableIDsInRendererOrder(t *testing.T) {
	cache := SceneCache{
		{Renderer: "mitsuba", Scenes: []Scene{{Name: "bathroom"}}},
		{Renderer: "pbrt", Scenes: []Scene{{Name: "bedroom"}, {Name: "kitchen"}}},
	}
	idx := BuildSceneIndex(cache)

	id, ok := idx.IDFor("mitsuba", "bathroom")
	require.True(t, ok)
	assert.Equal(t, 0, id)

	id, ok = idx.IDFor("pbrt", "bedroom")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = idx.IDFor("pbrt", "kitchen")
	require.True(t, ok)
	assert.Equal(t, 2, id)

	_, ok = idx.IDFor("pbrt", "missing")
	assert.False(t, ok)

	assert.Len(t, idx.Scenes(), 3)
}

func TestMissingReportsAbsentScenesForRenderer(t *testing.T) {
	cache := SceneCache{
		{Renderer: "pbrt", Scenes: []Scene{{Name: "bedroom"}, {Name: "kitchen"}}},
	}

	missing := Missing(cache, "pbrt", map[string]bool{"bedroom": true})
	require.Len(t, missing, 1)
	assert.Equal(t, "kitchen", missing[0].Name)

	missing = Missing(cache, "mitsuba", map[string]bool{})
	assert.Empty(t, missing)
}
