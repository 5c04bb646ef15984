package types

import "time"

// TechniqueKind partitions techniques into the two benchmark groups.
type TechniqueKind string

const (
	KindDenoiser TechniqueKind = "DENOISER"
	KindSampler  TechniqueKind = "SAMPLER"
)

// Opposite returns the other group — used when symlinking a private
// preview page's wholesale group.
func (k TechniqueKind) Opposite() TechniqueKind {
	if k == KindDenoiser {
		return KindSampler
	}
	return KindDenoiser
}

// Technique is the unit of contribution: a denoiser or sampler CI project.
// ID is externally assigned by the CI host and never changes; Kind is fixed
// after the first successful Register.
type Technique struct {
	ID            int
	Kind          TechniqueKind
	ShortName     string
	FullName      string
	Citation      string
	Comment       string
	OwnerEmail    string
	Versions      []TechniqueVersion
	NumWorkspaces int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TechniqueVersion is an entry of info.json's optional "versions" array.
// Only the "default" version is currently meaningful; the field is carried
// through unused otherwise so the info.json round-trip is lossless.
type TechniqueVersion struct {
	Name       string `json:"name"`
	Comment    string `json:"comment,omitempty"`
	Executable string `json:"executable,omitempty"`
}

// WorkspaceStatus is the state-machine position of a Workspace.
type WorkspaceStatus string

const (
	WorkspaceNew       WorkspaceStatus = "New"
	WorkspaceFinished  WorkspaceStatus = "Finished"
	WorkspacePublished WorkspaceStatus = "Published"
)

// Workspace is a per-build result slot owned by one Technique.
type Workspace struct {
	UUID           string
	TechniqueID    int
	CommitSHA      string
	ContainerImage string
	Status         WorkspaceStatus
	CreatedAt      time.Time
	FinishedAt     *time.Time
	PublishedAt    *time.Time
}

// TaskKind names the three kinds of deferred work the queue carries.
type TaskKind string

const (
	TaskBuild        TaskKind = "Build"
	TaskRunBenchmark TaskKind = "RunBenchmark"
	TaskPublish      TaskKind = "PublishResults"
)

// TaskPriority selects which of the queue's two tables a Task lives in.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "High"
	PriorityNormal TaskPriority = "Normal"
)

// PriorityOf returns the fixed priority class for a task kind: Build is
// always High, RunBenchmark and PublishResults are always Normal.
func PriorityOf(kind TaskKind) TaskPriority {
	if kind == TaskBuild {
		return PriorityHigh
	}
	return PriorityNormal
}

// Task is a unit of deferred work popped by the consumer.
type Task struct {
	ID             int64
	TechniqueID    int
	CommitSHA      string
	ContainerImage string
	Kind           TaskKind
	Payload        string // e.g. the target workspace uuid, for PublishResults
	Priority       TaskPriority
	CreatedAt      time.Time
}

// MessageTask is an outbound email, drained FIFO by the mailer.
type MessageTask struct {
	ID        int64
	To        string
	Subject   string
	Text      string
	CreatedAt time.Time
}

// Project is the caller identity carried on every RPC request: the CI
// project asserting a technique id plus the commit/image/token context of
// the invocation that produced it.
type Project struct {
	ID             int
	CommitSHA      string
	UserEmail      string
	ContainerImage string
	Token          string
}

// Info is the decoded form of a technique's info.json manifest.
type Info struct {
	Kind      TechniqueKind      `json:"technique_type"`
	ShortName string             `json:"short_name"`
	FullName  string             `json:"full_name"`
	Citation  string             `json:"citation"`
	Comment   string             `json:"comment"`
	Versions  []TechniqueVersion `json:"versions"`
}
