package store

import "errors"

// Domain errors returned by Store methods. These are the core error
// taxonomy named in the specification; the RPC layer maps them to the
// wire Logic(message) variant, and anything else to Internal.
var (
	ErrNameAlreadyExists     = errors.New("short_name already registered to a different technique")
	ErrNotRegistered         = errors.New("technique is not registered")
	ErrInvalidInfoFile       = errors.New("info.json is invalid")
	ErrAlreadyPublished      = errors.New("workspace is already published")
	ErrMaxWorkspacesExceeded = errors.New("technique has reached its workspace capacity")
	ErrWorkspaceNotFinished  = errors.New("workspace must be finished before it can be published")
	ErrTaskAlreadyPending    = errors.New("a task is already pending for this technique in that priority class")
	ErrWorkspaceNotFound     = errors.New("workspace not found")
	ErrUnspecified           = errors.New("unspecified store error")
)
