// Command consumer is the long-running worker: it polls the durable
// task queue, dispatches each task to a sandboxed container, and
// reports the outcome by email to the technique's owner. It has no
// subcommands and runs until killed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/lock"
	"github.com/fbksd/fbksd-server/pkg/log"
	"github.com/fbksd/fbksd-server/pkg/metrics"
	"github.com/fbksd/fbksd-server/pkg/queue"
	"github.com/fbksd/fbksd-server/pkg/registry"
	"github.com/fbksd/fbksd-server/pkg/sandbox"
	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
	"github.com/fbksd/fbksd-server/pkg/workdir"
)

const pollInterval = 10 * time.Second

var (
	containerdSocket string
	lockPath         string
	serverAddr       string
	metricsAddr      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "consumer: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Drain the fbksd-server task queue into sandboxed containers",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&containerdSocket, "containerd-socket", "", "containerd socket path (default /run/containerd/containerd.sock)")
	rootCmd.Flags().StringVar(&lockPath, "lock-file", "/var/lock/fbksd.lock", "exclusive data-root lock file")
	rootCmd.Flags().StringVar(&serverAddr, "server-addr", "", "RPC server address passed to containers (default $FBKSD_SERVER_ADDR)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "loopback address to serve /metrics and /health on (disabled if empty)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "emit structured JSON logs")
	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
	})
}

func run(cmd *cobra.Command, args []string) error {
	root, err := dataroot.Load()
	if err != nil {
		return err
	}
	sys, err := config.Load(root.ConfigPath())
	if err != nil {
		return err
	}
	if serverAddr == "" {
		serverAddr = os.Getenv("FBKSD_SERVER_ADDR")
	}

	st, err := store.NewPostgresStore(root.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	rt, err := sandbox.New(containerdSocket)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := &poller{
		root: root,
		sys:  sys,
		reg:  registry.New(st, sys.MaxNumWorkspaces),
		q:    queue.New(st),
		rt:   rt,
		fl:   lock.New(lockPath),
		addr: serverAddr,
	}

	if metricsAddr != "" {
		collector := metrics.NewCollector(w.reg, w.q)
		collector.Start()
		defer collector.Stop()
		metrics.RegisterComponent("containerd", true, "")
		go serveMetrics(metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	componentLog := log.WithComponent("consumer")
	componentLog.Info().Msg("consumer started")
	return w.loop(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithComponent("consumer").Warn().Err(err).Msg("metrics server stopped")
	}
}

type poller struct {
	root *dataroot.Root
	sys  *config.System
	reg  *registry.Registry
	q    *queue.Queue
	rt   *sandbox.Runtime
	fl   *lock.FileLock
	addr string
}

func (w *poller) loop(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		task, err := w.q.PopNext()
		if err != nil {
			log.WithComponent("consumer").Warn().Err(err).Msg("consumer: pop_next failed")
		} else if task != nil {
			w.handle(ctx, task)
			continue // drain the queue before sleeping again
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func subcommandFor(kind types.TaskKind) string {
	switch kind {
	case types.TaskBuild:
		return "install"
	case types.TaskRunBenchmark:
		return "run"
	case types.TaskPublish:
		return "publish"
	default:
		return ""
	}
}

func (w *poller) handle(ctx context.Context, task *types.Task) {
	taskLog := log.WithTask(task.TechniqueID, task.ID)
	taskLog.Info().Str("kind", string(task.Kind)).Msg("consumer: dispatching task")

	scratch := workdir.NewScratch(w.root)
	if err := w.fl.WithLock(func() error {
		_, err := scratch.Reset()
		return err
	}); err != nil {
		taskLog.Error().Err(err).Msg("consumer: reset scratch workspace")
		w.notify(task, false, fmt.Sprintf("could not prepare scratch workspace: %v", err))
		return
	}

	ownerEmail := "unknown@fbksd.local"
	if t, err := w.reg.GetTechnique(task.TechniqueID); err == nil && t.OwnerEmail != "" {
		ownerEmail = t.OwnerEmail
	}

	env := []string{
		"FBKSD_DATA_ROOT=" + w.root.Path,
		"FBKSD_SERVER_ADDR=" + w.addr,
		"CI_PROJECT_ID=" + fmt.Sprint(task.TechniqueID),
		"CI_COMMIT_SHORT_SHA=" + task.CommitSHA,
		"GITLAB_USER_EMAIL=" + ownerEmail,
		// CI identity beyond a shared token is out of scope; the
		// in-container CI runner carries this through unchecked.
		"FBKSD_TOKEN=unverified",
	}
	if task.Kind == types.TaskPublish {
		env = append(env, "FBKSD_PUBLISH="+task.Payload)
	}

	metrics.TasksDispatchedTotal.WithLabelValues(string(task.Kind)).Inc()
	timer := metrics.NewTimer()
	containerID := fmt.Sprintf("fbksd-task-%d", task.ID)
	exitCode, err := w.rt.Run(ctx, containerID, sandbox.Spec{
		Image:      task.ContainerImage,
		Subcommand: subcommandFor(task.Kind),
		Env:        env,
		Root:       w.root,
		LockPath:   "/var/lock/fbksd.lock",
	})
	timer.ObserveDurationVec(metrics.ContainerRunDuration, string(task.Kind))
	if err != nil {
		taskLog.Error().Err(err).Msg("consumer: container run failed")
		w.notify(task, false, fmt.Sprintf("container run failed: %v", err))
		return
	}
	metrics.ContainerExitCodeTotal.WithLabelValues(string(task.Kind), strconv.Itoa(exitCode)).Inc()
	if exitCode != 0 {
		taskLog.Warn().Int("exit_code", exitCode).Msg("consumer: task container exited non-zero")
		w.notify(task, false, fmt.Sprintf("task exited with status %d; the queue row is already removed, no automatic retry", exitCode))
		return
	}
	taskLog.Info().Msg("consumer: task completed")
	w.notify(task, true, "")
}

// notify enqueues the status email named by §4.5's post-task mail
// hook. The queue row was already deleted at pop time, so there is no
// automatic retry of the task itself on failure.
func (w *poller) notify(task *types.Task, success bool, failureDetail string) {
	t, err := w.reg.GetTechnique(task.TechniqueID)
	if err != nil || t.OwnerEmail == "" {
		return
	}
	subject := fmt.Sprintf("[fbksd] %s %s", t.ShortName, task.Kind)
	text := fmt.Sprintf("Technique: %s\nCommit: %s\n", t.ShortName, task.CommitSHA)
	if success {
		subject += " succeeded"
		text += "Status: succeeded\n"
	} else {
		subject += " failed"
		text += "Status: failed\n" + failureDetail + "\n"
	}
	if err := w.q.PushMail(t.OwnerEmail, subject, text); err != nil {
		log.WithTask(task.TechniqueID, task.ID).Warn().Err(err).Msg("consumer: enqueue status mail failed")
	}
}
