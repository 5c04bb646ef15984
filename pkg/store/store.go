// Package store persists the registry (techniques, workspaces), the
// two-priority task queue, and the outbound mail queue in a shared SQL
// database. Every mutating method runs in a single database transaction
// that enforces the relevant invariant (uniqueness, capacity, single
// Published workspace, single pending task) as a transactional predicate
// rather than leaving that check to the caller.
package store

import (
	"github.com/fbksd/fbksd-server/pkg/types"
)

// PublishedEntry names a technique/workspace pair, returned by the
// published- and unpublished-workspace queries.
type PublishedEntry struct {
	TechniqueID int
	UUID        string
}

// Store is the persistence surface shared by the registry, the queue,
// and the mailer. A single implementation (Postgres, see postgres.go)
// backs all three so that registry mutations and queue admission share
// one transactional boundary per the "at most one pending task"
// invariant, which must observe a consistent view of technique
// registration.
type Store interface {
	// Registry

	// Register inserts a new technique or updates the mutable fields of
	// an existing one. info must already be validated by the caller
	// (version-count / version-name rules); Register itself enforces
	// short_name uniqueness and kind immutability inside the
	// transaction.
	Register(project types.Project, info types.Info) error

	GetTechnique(id int) (*types.Technique, error)
	TechniqueKind(id int) (types.TechniqueKind, error)

	// ListTechniqueIDs returns every registered technique id, for
	// administrative tools that operate over the whole registry
	// (ctl run-all).
	ListTechniqueIDs() ([]int, error)

	// AddWorkspace mints a workspace uuid for the technique, provided
	// its unpublished-workspace count is below maxWS.
	AddWorkspace(techniqueID int, commitSHA, containerImage string, maxWS int) (uuid string, err error)

	GetWorkspace(uuid string) (*types.Workspace, error)

	// PublishWorkspacePrivate transitions New|Finished -> Finished.
	PublishWorkspacePrivate(uuid string) error

	// PublishWorkspacePublic transitions Finished -> Published and
	// atomically demotes the technique's previously Published
	// workspace, if any, back to Finished.
	PublishWorkspacePublic(uuid string) error

	// UnpublishWorkspace flips the technique's sole Published workspace
	// back to Finished, clearing published_at.
	UnpublishWorkspace(techniqueID int) (kind types.TechniqueKind, uuid string, err error)

	RemoveWorkspace(techniqueID int, uuid string) error

	GetPublished(kind types.TechniqueKind) ([]PublishedEntry, error)
	GetUnpublished(techniqueID int) ([]string, error)
	GetUnpublishedOlderThan(kind types.TechniqueKind, days int) ([]PublishedEntry, error)

	// Queue

	PushBuild(project types.Project) error
	PushRun(project types.Project) error
	PushPublish(project types.Project, workspaceUUID string) error

	// PopNext atomically selects and deletes the next task in strict
	// priority order (all High before any Normal, FIFO within a
	// class). Returns nil, nil when both tables are empty.
	PopNext() (*types.Task, error)

	// Mail queue

	PushMail(to, subject, text string) error
	PeekMail() (*types.MessageTask, error)
	PopMail(id int64) error

	Close() error
}
