package page

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// Exporter translates registry + scene-cache state into the JSON
// artefacts the static page template consumes, under <page>/data/.
type Exporter struct {
	root *dataroot.Root
	reg  Registry
}

// Registry is the subset of *registry.Registry the exporter needs; kept
// as an interface so export logic can be tested against a fake.
type Registry interface {
	GetTechnique(id int) (*types.Technique, error)
	GetPublished(kind types.TechniqueKind) ([]store.PublishedEntry, error)
}

func NewExporter(root *dataroot.Root, reg Registry) *Exporter {
	return &Exporter{root: root, reg: reg}
}

// catalogEntry is one entry of filters.json or iqa_metrics.json: the
// name of one subdirectory of the listed corpus directory.
type catalogEntry struct {
	Name string `json:"name"`
}

// ExportDataDir returns the directory export artefacts are written to.
func (e *Exporter) ExportDataDir(dir string) string {
	return filepath.Join(dir, "data")
}

// WriteScenesJSON writes scenes.json from the scene cache, with stable
// ids assigned in renderer order.
func (e *Exporter) WriteScenesJSON(dataDir string, idx *SceneIndex) error {
	type sceneRecord struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Path   string `json:"path"`
		RefImg string `json:"ref-img"`
	}
	var records []sceneRecord
	for id, sc := range idx.Scenes() {
		records = append(records, sceneRecord{ID: id, Name: sc.Name, Path: sc.Path, RefImg: sc.RefImg})
	}
	return writeJSON(filepath.Join(dataDir, "scenes.json"), records)
}

// WriteCatalogJSON writes filters.json or iqa_metrics.json by listing
// the immediate subdirectories of corpusDir.
func (e *Exporter) WriteCatalogJSON(dataDir, fileName, corpusDir string) error {
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return fmt.Errorf("page: list %s: %w", corpusDir, err)
	}
	var catalog []catalogEntry
	for _, entry := range entries {
		if entry.IsDir() {
			catalog = append(catalog, catalogEntry{Name: entry.Name()})
		}
	}
	return writeJSON(filepath.Join(dataDir, fileName), catalog)
}

// techniqueRecord is one entry of samplers.json (for samplers) or the
// technique list embedded in results.json (for denoisers).
type techniqueRecord struct {
	ID        int    `json:"id"`
	ShortName string `json:"short_name"`
	FullName  string `json:"full_name"`
	Comment   string `json:"comment"`
	Citation  string `json:"citation"`
}

// WriteSamplersJSON writes samplers.json: every published sampler.
func (e *Exporter) WriteSamplersJSON(dataDir string) error {
	published, err := e.reg.GetPublished(types.KindSampler)
	if err != nil {
		return fmt.Errorf("page: list published samplers: %w", err)
	}
	records, err := e.techniqueRecords(published)
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dataDir, "samplers.json"), records)
}

// resultsRecord is one technique's result summary as embedded in
// results.json / samplers_results.json.
type resultsRecord struct {
	Technique techniqueRecord `json:"technique"`
}

// WriteResultsJSON writes results.json (denoisers) or
// samplers_results.json (samplers), from the full set of published
// techniques of that kind.
func (e *Exporter) WriteResultsJSON(dataDir, fileName string, kind types.TechniqueKind) error {
	published, err := e.reg.GetPublished(kind)
	if err != nil {
		return fmt.Errorf("page: list published %s: %w", kind, err)
	}
	records, err := e.techniqueRecords(published)
	if err != nil {
		return err
	}
	var results []resultsRecord
	for _, rec := range records {
		results = append(results, resultsRecord{Technique: rec})
	}
	return writeJSON(filepath.Join(dataDir, fileName), results)
}

func (e *Exporter) techniqueRecords(published []store.PublishedEntry) ([]techniqueRecord, error) {
	var out []techniqueRecord
	for _, p := range published {
		t, err := e.reg.GetTechnique(p.TechniqueID)
		if err != nil {
			return nil, fmt.Errorf("page: load technique %d: %w", p.TechniqueID, err)
		}
		out = append(out, techniqueRecord{
			ID:        t.ID,
			ShortName: t.ShortName,
			FullName:  t.FullName,
			Comment:   t.Comment,
			Citation:  t.Citation,
		})
	}
	return out, nil
}

// WriteAll regenerates every artefact under dataDir from the current
// registry and scene-cache state.
func (e *Exporter) WriteAll(dataDir string, idx *SceneIndex) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("page: create %s: %w", dataDir, err)
	}
	if err := e.WriteScenesJSON(dataDir, idx); err != nil {
		return err
	}
	if err := e.WriteCatalogJSON(dataDir, "iqa_metrics.json", e.root.IQADir()); err != nil {
		return err
	}
	if err := e.WriteCatalogJSON(dataDir, "filters.json", e.root.RenderersDir()); err != nil {
		return err
	}
	if err := e.WriteSamplersJSON(dataDir); err != nil {
		return err
	}
	if err := e.WriteResultsJSON(dataDir, "results.json", types.KindDenoiser); err != nil {
		return err
	}
	if err := e.WriteResultsJSON(dataDir, "samplers_results.json", types.KindSampler); err != nil {
		return err
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("page: marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("page: write %s: %w", path, err)
	}
	return nil
}
