// Command ci-runner is invoked by the consumer inside the sandboxed
// container. It drives the cmake build, validates the install
// manifest, and is the only process besides the producer that talks
// to the privileged RPC server — it never touches the data root or
// the database directly, only the read-only corpora and scratch
// workspace bind-mounted into the container at /fbksd.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fbksd/fbksd-server/pkg/banner"
	"github.com/fbksd/fbksd-server/pkg/clienv"
	"github.com/fbksd/fbksd-server/pkg/rpc"
	"github.com/fbksd/fbksd-server/pkg/types"
)

const (
	scenesDir    = "/fbksd/scenes"
	renderersDir = "/fbksd/renderers"
	iqaDir       = "/fbksd/iqa"
	workspaceDir = "/fbksd/workspace"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ci-runner",
	Short:         "fbksd in-container CI runner",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		&cobra.Command{Use: "install", Short: "Build and register the technique", RunE: runInstall},
		&cobra.Command{Use: "run", Short: "Execute the benchmark and save results", RunE: runBenchmark},
		&cobra.Command{Use: "publish", Short: "Promote a workspace to the public page", RunE: runPublish},
		&cobra.Command{Use: "delete-workspace", Short: "Delete a workspace", RunE: runDeleteWorkspace},
	)
}

func dial() (*rpc.Client, error) {
	addr := os.Getenv("FBKSD_SERVER_ADDR")
	if addr == "" {
		return nil, &clienv.MissingEnvVar{Name: "FBKSD_SERVER_ADDR"}
	}
	return rpc.Dial(addr)
}

// buildAndInstall drives cmake configure+install against
// CMAKE_INSTALL_PREFIX=install, then validates install_manifest.txt:
// every listed path must live under install/, and install/info.json
// must parse.
func buildAndInstall() (types.Info, error) {
	configure := exec.Command("cmake", "-S", ".", "-B", "build", "-DCMAKE_BUILD_TYPE=Release", "-DCMAKE_INSTALL_PREFIX=install")
	configure.Stdout, configure.Stderr = os.Stdout, os.Stderr
	if err := configure.Run(); err != nil {
		return types.Info{}, fmt.Errorf("ci-runner: cmake configure: %w", err)
	}

	install := exec.Command("cmake", "--install", "build")
	install.Stdout, install.Stderr = os.Stdout, os.Stderr
	if err := install.Run(); err != nil {
		return types.Info{}, fmt.Errorf("ci-runner: cmake install: %w", err)
	}

	manifest, err := os.ReadFile(filepath.Join("build", "install_manifest.txt"))
	if err != nil {
		return types.Info{}, fmt.Errorf("ci-runner: read install_manifest.txt: %w", err)
	}
	for _, line := range splitLines(manifest) {
		if line == "" {
			continue
		}
		rel, err := filepath.Rel("install", line)
		if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
			return types.Info{}, fmt.Errorf("ci-runner: install_manifest.txt entry %q escapes install/", line)
		}
	}

	infoPath := filepath.Join("install", "info.json")
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return types.Info{}, fmt.Errorf("ci-runner: read %s: %w", infoPath, err)
	}
	var info types.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return types.Info{}, fmt.Errorf("ci-runner: parse %s: %w", infoPath, err)
	}
	return info, nil
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}

func runInstall(cmd *cobra.Command, args []string) error {
	title := "fbksd install"
	project, err := clienv.LoadProject()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	info, err := buildAndInstall()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	client, err := dial()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer client.Close()

	if err := client.Register(project, info); err != nil {
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, fmt.Sprintf("registered technique %q", info.ShortName))
	return nil
}

// runFbksd shells out to the external fbksd benchmark runner and
// metric computation step; their algorithms are out of scope here —
// only their invocation and scratch-layout output are this runner's
// concern.
func runFbksd(scene string) error {
	runCmd := exec.Command("fbksd", "run", "--scenes-dir", scenesDir, "--renderers-dir", renderersDir, "--workspace", workspaceDir)
	if scene != "" {
		runCmd.Args = append(runCmd.Args, "--scene", scene)
	}
	runCmd.Stdout, runCmd.Stderr = os.Stdout, os.Stderr
	if err := runCmd.Run(); err != nil {
		return fmt.Errorf("ci-runner: fbksd run: %w", err)
	}

	computeCmd := exec.Command("fbksd", "results", "compute", "--iqa-dir", iqaDir, "--workspace", workspaceDir)
	computeCmd.Stdout, computeCmd.Stderr = os.Stdout, os.Stderr
	if err := computeCmd.Run(); err != nil {
		return fmt.Errorf("ci-runner: fbksd results compute: %w", err)
	}
	return nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	title := "fbksd run"
	project, err := clienv.LoadProject()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	infoPath := filepath.Join("install", "info.json")
	data, err := os.ReadFile(infoPath)
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	var info types.Info
	if err := json.Unmarshal(data, &info); err != nil {
		banner.Failure(title, err)
		return err
	}

	client, err := dial()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer client.Close()

	can, err := client.CanRun(project)
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	if !can {
		err := fmt.Errorf("technique %d is not permitted to run", project.ID)
		banner.Failure(title, err)
		return err
	}

	if err := runFbksd(""); err != nil {
		banner.Failure(title, err)
		return err
	}

	uuid, err := client.SaveResults(project, info)
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	if err := client.PublishPrivate(project, uuid); err != nil {
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, fmt.Sprintf("workspace %s finished", uuid))
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	title := "fbksd publish"
	project, err := clienv.LoadProject()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	uuid := os.Getenv("FBKSD_PUBLISH")
	if uuid == "" {
		err := &clienv.MissingEnvVar{Name: "FBKSD_PUBLISH"}
		banner.Failure(title, err)
		return err
	}

	client, err := dial()
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	defer client.Close()

	status, err := client.InitMissingScenesWP(project, uuid)
	if err != nil {
		banner.Failure(title, err)
		return err
	}
	if status != "" {
		banner.Success(title, fmt.Sprintf("workspace %s: %s, nothing to publish", uuid, status))
		return nil
	}

	manifestPath := filepath.Join(workspaceDir, "missing_scenes.json")
	if _, err := os.Stat(manifestPath); err == nil {
		if err := runFbksd(""); err != nil {
			banner.Failure(title, err)
			return err
		}
	}

	if err := client.UpdateResults(project, uuid); err != nil {
		banner.Failure(title, err)
		return err
	}
	if err := client.PublishPublic(project, uuid); err != nil {
		banner.Failure(title, err)
		return err
	}
	banner.Success(title, fmt.Sprintf("workspace %s published", uuid))
	return nil
}

func runDeleteWorkspace(cmd *cobra.Command, args []string) error {
	title := "fbksd delete-workspace"
	project, err := clienv.LoadProject()
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

	client, err := dial()
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
