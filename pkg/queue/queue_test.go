package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// fakeStore is a minimal in-memory store.Store that records the calls
// Queue forwards to it, so this package's tests exercise only its own
// naming/facade logic, not the transactional invariants owned by
// pkg/store.
type fakeStore struct {
	builds    []types.Project
	runs      []types.Project
	publishes []types.Project
	nextTask  *types.Task
	mail      []struct{ to, subject, text string }
	peekTask  *types.MessageTask
	poppedID  int64
}

func (f *fakeStore) Register(project types.Project, info types.Info) error { return nil }
func (f *fakeStore) GetTechnique(id int) (*types.Technique, error)         { return nil, nil }
func (f *fakeStore) TechniqueKind(id int) (types.TechniqueKind, error) {
	return types.KindDenoiser, nil
}
func (f *fakeStore) ListTechniqueIDs() ([]int, error) { return nil, nil }
func (f *fakeStore) AddWorkspace(techniqueID int, commitSHA, containerImage string, maxWS int) (string, error) {
	return "", nil
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

func (f *fakeStore) PushBuild(project types.Project) error {
	f.builds = append(f.builds, project)
	return nil
}
func (f *fakeStore) PushRun(project types.Project) error {
	f.runs = append(f.runs, project)
	return nil
}
func (f *fakeStore) PushPublish(project types.Project, workspaceUUID string) error {
	f.publishes = append(f.publishes, project)
	return nil
}
func (f *fakeStore) PopNext() (*types.Task, error) { return f.nextTask, nil }

func (f *fakeStore) PushMail(to, subject, text string) error {
	f.mail = append(f.mail, struct{ to, subject, text string }{to, subject, text})
	return nil
}
func (f *fakeStore) PeekMail() (*types.MessageTask, error) { return f.peekTask, nil }
func (f *fakeStore) PopMail(id int64) error {
	f.poppedID = id
	return nil
}
func (f *fakeStore) Close() error { return nil }

func TestPushBuildRunPublishDelegate(t *testing.T) {
	fs := &fakeStore{}
	q := New(fs)

	proj := types.Project{ID: 1, CommitSHA: "abc"}
	require.NoError(t, q.PushBuild(proj))
	require.NoError(t, q.PushRun(proj))
	require.NoError(t, q.PushPublish(proj, "ws-uuid"))

	assert.Equal(t, []types.Project{proj}, fs.builds)
	assert.Equal(t, []types.Project{proj}, fs.runs)
	assert.Equal(t, []types.Project{proj}, fs.publishes)
}

func TestPopNextReturnsNilWhenEmpty(t *testing.T) {
	fs := &fakeStore{}
	q := New(fs)

	task, err := q.PopNext()
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestPopNextReturnsQueuedTask(t *testing.T) {
	fs := &fakeStore{nextTask: &types.Task{ID: 5, Kind: types.TaskBuild}}
	q := New(fs)

	task, err := q.PopNext()
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, int64(5), task.ID)
}

func TestMailRoundTrip(t *testing.T) {
	fs := &fakeStore{}
	q := New(fs)

	require.NoError(t, q.PushMail("a@b.com", "subject", "body"))
	require.Len(t, fs.mail, 1)
	assert.Equal(t, "a@b.com", fs.mail[0].to)

	fs.peekTask = &types.MessageTask{ID: 9, To: "a@b.com"}
	m, err := q.PeekMail()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(9), m.ID)

	require.NoError(t, q.PopMail(9))
	assert.Equal(t, int64(9), fs.poppedID)
}

func TestPriorityOfTaskKind(t *testing.T) {
	assert.Equal(t, types.PriorityHigh, types.PriorityOf(types.TaskBuild))
	assert.Equal(t, types.PriorityNormal, types.PriorityOf(types.TaskRunBenchmark))
	assert.Equal(t, types.PriorityNormal, types.PriorityOf(types.TaskPublish))
}
