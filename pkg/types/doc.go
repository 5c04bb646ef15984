/*
Package types defines the domain model shared by every fbksd-server
package and process: Technique, Workspace, Task, MessageTask, and the
Project/Info values carried on RPC requests.

These are plain data types; their only behavior is TechniqueKind.Opposite
and the PriorityOf lookup — the state machine lives in pkg/registry,
persistence in pkg/store, and queue ordering in pkg/queue. Keeping the
types free of dependencies on those layers lets every layer (store,
registry, rpc, page) share one vocabulary without import cycles.
*/
package types
