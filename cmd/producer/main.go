// Command producer runs inside the untrusted CI container on every
// GitLab CI event. It validates the CI context and the technique's
// .gitlab-ci.yml include contract, then admits the appropriate task
// onto the durable queue — push_build/push_run/push_publish go
// directly against the shared store, since queue admission neither
// touches the data root's filesystem nor needs the exclusive flock.
// delete-workspace is the one subcommand that mutates D, so it goes
// through the privileged RPC server instead.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fbksd/fbksd-server/pkg/banner"
	"github.com/fbksd/fbksd-server/pkg/clienv"
	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/dataroot"
	"github.com/fbksd/fbksd-server/pkg/queue"
	"github.com/fbksd/fbksd-server/pkg/rpc"
	"github.com/fbksd/fbksd-server/pkg/store"
	"github.com/fbksd/fbksd-server/pkg/types"
)

const ciConfigPath = ".gitlab-ci.yml"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1) // subcommands print their own banner before returning an error
	}
}

var rootCmd = &cobra.Command{
	Use:           "producer",
	Short:         "fbksd CI producer: validates CI context and admits tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		&cobra.Command{Use: "validate-ci", Short: "Validate .gitlab-ci.yml's include contract", RunE: runValidateCI},
		&cobra.Command{Use: "install", Short: "Enqueue a Build task", RunE: runEnqueue(func(q *queue.Queue, p types.Project) error { return q.PushBuild(p) })},
		&cobra.Command{Use: "run", Short: "Enqueue a RunBenchmark task", RunE: runEnqueue(func(q *queue.Queue, p types.Project) error { return q.PushRun(p) })},
		&cobra.Command{Use: "publish", Short: "Enqueue a PublishResults task", RunE: runEnqueue(pushPublish)},
		&cobra.Command{Use: "delete-workspace", Short: "Delete a workspace via the RPC server", RunE: runDeleteWorkspace},
	)
}

func runValidateCI(cmd *cobra.Command, args []string) error {
	sys, project, err := bootstrap()
	if err != nil {
		banner.Failure("fbksd validate-ci", err)
		return err
	}
	if err := clienv.ResolveImage(&project, ciConfigPath, sys); err != nil {
		banner.Failure("fbksd validate-ci", err)
		return err
	}
	banner.Success("fbksd validate-ci", fmt.Sprintf("resolved container image: %s", project.ContainerImage))
	return nil
}

func pushPublish(q *queue.Queue, p types.Project) error {
	uuid := os.Getenv("FBKSD_PUBLISH")
	if uuid == "" {
		return &clienv.MissingEnvVar{Name: "FBKSD_PUBLISH"}
	}
	return q.PushPublish(p, uuid)
}

// runEnqueue builds the RunE for a subcommand that resolves the CI
// context, opens the shared store, and hands the project to push.
func runEnqueue(push func(*queue.Queue, types.Project) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		title := "fbksd " + cmd.Name()
		sys, project, err := bootstrap()
		if err != nil {
			banner.Failure(title, err)
			return err
		}
		if err := clienv.ResolveImage(&project, ciConfigPath, sys); err != nil {
			banner.Failure(title, err)
			return err
		}

		root, err := dataroot.Load()
		if err != nil {
			banner.Failure(title, err)
			return err
		}
		st, err := store.NewPostgresStore(root.DatabaseURL)
		if err != nil {
			banner.Failure(title, err)
			return err
		}
		defer st.Close()

		if err := push(queue.New(st), project); err != nil {
			banner.Failure(title, err)
			return err
		}
		banner.Success(title, "task enqueued")
		return nil
	}
}

func runDeleteWorkspace(cmd *cobra.Command, args []string) error {
	title := "fbksd delete-workspace"
	_, project, err := bootstrap()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	uuid := os.Getenv("FBKSD_DELETE_WORKSPACE")
	if uuid == "" {
		err := &clienv.MissingEnvVar{Name: "FBKSD_DELETE_WORKSPACE"}
		banner.Failure(title, err)
		return err
	}

	addr := os.Getenv("FBKSD_SERVER_ADDR")
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", rpc.DefaultPort)
	}
	client, err := rpc.Dial(addr)
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer client.Close()

	if err := client.DeleteWorkspace(project, uuid); err != nil {
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, fmt.Sprintf("workspace %s deleted", uuid))
	return nil
}

func bootstrap() (*config.System, types.Project, error) {
	root, err := dataroot.Load()
	if err != nil {
		return nil, types.Project{}, err
	}
	sys, err := config.Load(root.ConfigPath())
	if err != nil {
		return nil, types.Project{}, err
	}
	project, err := clienv.LoadProject()
	if err != nil {
		return nil, types.Project{}, err
	}
	return sys, project, nil
}
