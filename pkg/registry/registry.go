// Package registry is the authoritative state machine for techniques and
// their workspaces. It validates info.json-shaped input and otherwise
// delegates to pkg/store for the transactional persistence and invariant
// enforcement (uniqueness, capacity, single-Published).
package registry

import (
	"fmt"

	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// Registry is the facade used by the RPC server and CLI tools.
type Registry struct {
	store store.Store
	maxWS int
}

// New builds a Registry over store backed by the given workspace
// capacity (system config's max_num_workspaces).
func New(s store.Store, maxWS int) *Registry {
	return &Registry{store: s, maxWS: maxWS}
}

// Register validates info and registers or updates the technique named
// by project.ID.
func (r *Registry) Register(project types.Project, info types.Info) error {
	if err := validateInfo(info); err != nil {
		return err
	}
	return r.store.Register(project, info)
}

// validateInfo enforces the info.json versions constraint: empty, or
// exactly one entry named "default".
func validateInfo(info types.Info) error {
	switch len(info.Versions) {
	case 0:
		return nil
	case 1:
		if info.Versions[0].Name != "default" {
			return fmt.Errorf("%w: single version must be named \"default\"", store.ErrInvalidInfoFile)
		}
		return nil
	default:
		return fmt.Errorf("%w: at most one version is supported", store.ErrInvalidInfoFile)
	}
}

func (r *Registry) AddWorkspace(project types.Project) (string, error) {
	return r.store.AddWorkspace(project.ID, project.CommitSHA, project.ContainerImage, r.maxWS)
}

func (r *Registry) PublishWorkspacePrivate(uuid string) error {
	return r.store.PublishWorkspacePrivate(uuid)
}

func (r *Registry) PublishWorkspacePublic(uuid string) error {
	return r.store.PublishWorkspacePublic(uuid)
}

func (r *Registry) UnpublishWorkspace(techniqueID int) (types.TechniqueKind, string, error) {
	return r.store.UnpublishWorkspace(techniqueID)
}

func (r *Registry) RemoveWorkspace(techniqueID int, uuid string) error {
	return r.store.RemoveWorkspace(techniqueID, uuid)
}

func (r *Registry) TechniqueKind(id int) (types.TechniqueKind, error) {
	return r.store.TechniqueKind(id)
}

func (r *Registry) GetTechnique(id int) (*types.Technique, error) {
	return r.store.GetTechnique(id)
}

func (r *Registry) GetWorkspace(uuid string) (*types.Workspace, error) {
	return r.store.GetWorkspace(uuid)
}

func (r *Registry) GetPublished(kind types.TechniqueKind) ([]store.PublishedEntry, error) {
	return r.store.GetPublished(kind)
}

func (r *Registry) GetUnpublished(techniqueID int) ([]string, error) {
	return r.store.GetUnpublished(techniqueID)
}

func (r *Registry) GetUnpublishedOlderThan(kind types.TechniqueKind, days int) ([]store.PublishedEntry, error) {
	return r.store.GetUnpublishedOlderThan(kind, days)
}

func (r *Registry) ListTechniqueIDs() ([]int, error) {
	return r.store.ListTechniqueIDs()
}
