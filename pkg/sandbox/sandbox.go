// Package sandbox invokes the CI-runner subcommand inside the task's
// container image via containerd: it mounts the read-only corpora
// (scenes, renderers, iqa), the writable scratch workspace, and the
// lock file, runs the subcommand to completion, and reports its exit
// code. This is the only place untrusted technique code executes.
package sandbox

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
)

const (
	defaultNamespace = "fbksd"
	stopTimeout      = 10 * time.Second
)

// Runtime is a containerd-backed sandbox. One Runtime is reused across
// the consumer's lifetime; each Run call creates and tears down its own
// container.
type Runtime struct {
	client *containerd.Client
}

// New connects to the containerd socket (default
// /run/containerd/containerd.sock).
func New(socketPath string) (*Runtime, error) {
	if socketPath == "" {
		socketPath = "/run/containerd/containerd.sock"
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: connect to containerd: %w", err)
	}
	return &Runtime{client: client}, nil
}

func (r *Runtime) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Spec describes one container invocation: the image, the subcommand
// name (install|run|publish|delete-workspace), and the env vars passed
// through to the CI runner inside it.
type Spec struct {
	Image      string
	Subcommand string
	Env        []string
	Root       *dataroot.Root
	LockPath   string
}

// Run pulls Image if necessary, creates a container with the corpora
// and scratch workspace mounted, runs the subcommand to completion, and
// returns its exit code. The caller is responsible for holding the
// data-root flock around the call if the subcommand mutates D.
func (r *Runtime) Run(ctx context.Context, containerID string, spec Spec) (exitCode int, err error) {
	ctx = namespaces.WithNamespace(ctx, defaultNamespace)

	image, err := r.client.GetImage(ctx, spec.Image)
	if err != nil {
		image, err = r.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
		if err != nil {
			return -1, fmt.Errorf("sandbox: pull image %s: %w", spec.Image, err)
		}
	}

	mounts := []specs.Mount{
		roMount(spec.Root.ScenesDir(), "/fbksd/scenes"),
		roMount(spec.Root.RenderersDir(), "/fbksd/renderers"),
		roMount(spec.Root.IQADir(), "/fbksd/iqa"),
		rwMount(spec.Root.ScratchDir(), "/fbksd/workspace"),
	}
	if spec.LockPath != "" {
		mounts = append(mounts, rwMount(spec.LockPath, "/var/lock/fbksd.lock"))
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
		oci.WithProcessArgs("fbksd-ci-runner", spec.Subcommand),
		oci.WithMounts(mounts),
	}

	container, err := r.client.NewContainer(
		ctx,
		containerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(containerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return -1, fmt.Errorf("sandbox: create container: %w", err)
	}
	defer container.Delete(ctx, containerd.WithSnapshotCleanup)

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return -1, fmt.Errorf("sandbox: create task: %w", err)
	}
	defer task.Delete(ctx)

	statusC, err := task.Wait(ctx)
	if err != nil {
		return -1, fmt.Errorf("sandbox: wait on task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return -1, fmt.Errorf("sandbox: start task: %w", err)
	}

	select {
	case status := <-statusC:
		code, _, err := status.Result()
		if err != nil {
			return -1, fmt.Errorf("sandbox: task result: %w", err)
		}
		return int(code), nil
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		task.Kill(stopCtx, syscall.SIGTERM)
		return -1, ctx.Err()
	}
}

func roMount(source, dest string) specs.Mount {
	return specs.Mount{Source: source, Destination: dest, Type: "bind", Options: []string{"ro", "bind"}}
}

func rwMount(source, dest string) specs.Mount {
	return specs.Mount{Source: source, Destination: dest, Type: "bind", Options: []string{"rbind"}}
}
