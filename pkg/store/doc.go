/*
Package store persists fbksd-server's registry, task queue, and mail
queue in a single shared Postgres database, reachable by every process
(producer, consumer, RPC server, ctl, mailer) through DATABASE_URL.

	┌──────────────────────── STORE ────────────────────────┐
	│  techniques          workspaces                        │
	│  tasks_high          tasks_normal          mail         │
	│                                                          │
	│  every mutating method = one *sql.Tx;                  │
	│  invariants (uniqueness, capacity, single-Published,   │
	│  single-pending-task) are checked inside that tx        │
	└──────────────────────────────────────────────────────────┘

The interface is kept small and operation-shaped (Register,
AddWorkspace, PopNext, ...) rather than CRUD-shaped, because several of
these operations have to observe and mutate more than one row under one
lock to hold their invariant — a generic Get/Put surface would push
that transaction boundary out to callers, which is exactly what the
registry's failure semantics forbid.
*/
package store
