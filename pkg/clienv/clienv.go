// Package clienv reads the CI-host environment shared by the producer
// and CI-runner processes and resolves it to a Project identity plus
// the container image the technique's .gitlab-ci.yml include names.
package clienv

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fbksd/fbksd-server/pkg/ciconfig"
	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/types"
)

// MissingEnvVar is returned when a required CI environment variable is
// absent.
type MissingEnvVar struct {
	Name string
}

func (e *MissingEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %s is not set", e.Name)
}

// InvalidID is returned when CI_PROJECT_ID does not parse as a
// positive integer.
type InvalidID struct {
	Value string
}

func (e *InvalidID) Error() string {
	return fmt.Sprintf("CI_PROJECT_ID %q is not a positive integer", e.Value)
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", &MissingEnvVar{Name: name}
	}
	return v, nil
}

// LoadProject reads the CI-host identity variables. containerImage is
// left empty; call ResolveImage to fill it from the technique's CI
// config.
func LoadProject() (types.Project, error) {
	idStr, err := requireEnv("CI_PROJECT_ID")
	if err != nil {
		return types.Project{}, err
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return types.Project{}, &InvalidID{Value: idStr}
	}
	sha, err := requireEnv("CI_COMMIT_SHORT_SHA")
	if err != nil {
		return types.Project{}, err
	}
	email, err := requireEnv("GITLAB_USER_EMAIL")
	if err != nil {
		return types.Project{}, err
	}
	token, err := requireEnv("FBKSD_TOKEN")
	if err != nil {
		return types.Project{}, err
	}
	return types.Project{ID: id, CommitSHA: sha, UserEmail: email, Token: token}, nil
}

// ResolveImage parses the repository's .gitlab-ci.yml at path and
// resolves its include alias against sys's whitelist, filling
// project.ContainerImage.
func ResolveImage(project *types.Project, path string, sys *config.System) error {
	alias, err := ciconfig.Load(path)
	if err != nil {
		return err
	}
	image, err := ciconfig.ResolveImage(alias, sys.Configs)
	if err != nil {
		return err
	}
	project.ContainerImage = image
	return nil
}
