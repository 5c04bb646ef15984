// Package queue is the durable two-priority task queue plus outbound
// mail queue. It is a thin facade over pkg/store: all admission and
// ordering invariants are enforced transactionally inside the store, so
// this package is mostly naming — push_build/push_run/push_publish and
// pop_next, matching the contract in the component design.
package queue

import (
	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// Queue is the facade used by the producer and ctl (enqueue), the
// consumer (dequeue and mail enqueue), and the mailer (mail drain).
type Queue struct {
	store store.Store
}

func New(s store.Store) *Queue {
	return &Queue{store: s}
}

func (q *Queue) PushBuild(project types.Project) error {
	return q.store.PushBuild(project)
}

func (q *Queue) PushRun(project types.Project) error {
	return q.store.PushRun(project)
}

func (q *Queue) PushPublish(project types.Project, workspaceUUID string) error {
	return q.store.PushPublish(project, workspaceUUID)
}

// PopNext returns the next task in strict priority order, or nil if the
// queue is empty. The consumer is expected to poll this at a fixed
// interval of at least 10 seconds when it returns nil.
func (q *Queue) PopNext() (*types.Task, error) {
	return q.store.PopNext()
}

func (q *Queue) PushMail(to, subject, text string) error {
	return q.store.PushMail(to, subject, text)
}

func (q *Queue) PeekMail() (*types.MessageTask, error) {
	return q.store.PeekMail()
}

func (q *Queue) PopMail(id int64) error {
	return q.store.PopMail(id)
}
