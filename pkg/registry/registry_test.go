package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// fakeStore is a minimal in-memory store.Store used to test the
// registry facade's own logic (info validation) in isolation from the
// Postgres-backed persistence invariants, which belong to pkg/store.
type fakeStore struct {
	registered    []types.Info
	lastProject   types.Project
	ids           []int
	registerErr   error
}

func (f *fakeStore) Register(project types.Project, info types.Info) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.lastProject = project
	f.registered = append(f.registered, info)
	return nil
}

func (f *fakeStore) GetTechnique(id int) (*types.Technique, error)  { return nil, nil }
func (f *fakeStore) TechniqueKind(id int) (types.TechniqueKind, error) {
	return types.KindDenoiser, nil
}
func (f *fakeStore) ListTechniqueIDs() ([]int, error) { return f.ids, nil }
func (f *fakeStore) AddWorkspace(techniqueID int, commitSHA, containerImage string, maxWS int) (string, error) {
	return "fake-uuid", nil
}
func (f *fakeStore) GetWorkspace(uuid string) (*types.Workspace, error) { return nil, nil }
func (f *fakeStore) PublishWorkspacePrivate(uuid string) error         { return nil }
func (f *fakeStore) PublishWorkspacePublic(uuid string) error          { return nil }
func (f *fakeStore) UnpublishWorkspace(techniqueID int) (types.TechniqueKind, string, error) {
	return types.KindDenoiser, "", nil
}
func (f *fakeStore) RemoveWorkspace(techniqueID int, uuid string) error { return nil }
func (f *fakeStore) GetPublished(kind types.TechniqueKind) ([]store.PublishedEntry, error) {
	return nil, nil
}
func (f *fakeStore) GetUnpublished(techniqueID int) ([]string, error) { return nil, nil }
func (f *fakeStore) GetUnpublishedOlderThan(kind types.TechniqueKind, days int) ([]store.PublishedEntry, error) {
	return nil, nil
}
func (f *fakeStore) PushBuild(project types.Project) error                      { return nil }
func (f *fakeStore) PushRun(project types.Project) error                        { return nil }
func (f *fakeStore) PushPublish(project types.Project, workspaceUUID string) error { return nil }
func (f *fakeStore) PopNext() (*types.Task, error)                              { return nil, nil }
func (f *fakeStore) PushMail(to, subject, text string) error                    { return nil }
func (f *fakeStore) PeekMail() (*types.MessageTask, error)                      { return nil, nil }
func (f *fakeStore) PopMail(id int64) error                                     { return nil }
func (f *fakeStore) Close() error                                               { return nil }

func TestRegisterAcceptsNoVersionsOrSingleDefault(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs, 3)

	require.NoError(t, r.Register(types.Project{ID: 1}, types.Info{}))
	require.NoError(t, r.Register(types.Project{ID: 1}, types.Info{
		Versions: []types.TechniqueVersion{{Name: "default"}},
	}))
	assert.Len(t, fs.registered, 2)
}

func TestRegisterRejectsNonDefaultSingleVersionName(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs, 3)

	err := r.Register(types.Project{ID: 1}, types.Info{
		Versions: []types.TechniqueVersion{{Name: "v2"}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInfoFile)
	assert.Empty(t, fs.registered, "store must not be called when validation fails")
}

func TestRegisterRejectsMultipleVersions(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs, 3)

	err := r.Register(types.Project{ID: 1}, types.Info{
		Versions: []types.TechniqueVersion{{Name: "default"}, {Name: "v2"}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInfoFile)
}

func TestRegisterPropagatesStoreError(t *testing.T) {
	fs := &fakeStore{registerErr: store.ErrNameAlreadyExists}
	r := New(fs, 3)

	err := r.Register(types.Project{ID: 1}, types.Info{})
	assert.ErrorIs(t, err, store.ErrNameAlreadyExists)
}

func TestListTechniqueIDsDelegatesToStore(t *testing.T) {
	fs := &fakeStore{ids: []int{1, 2, 3}}
	r := New(fs, 3)

	ids, err := r.ListTechniqueIDs()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)
}
