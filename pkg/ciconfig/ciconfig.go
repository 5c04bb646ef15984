// Package ciconfig parses a technique repository's .gitlab-ci.yml and
// validates its single required include against the system-config
// whitelist, resolving it to a container image alias.
package ciconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	requiredProject = "fbksd/fbksd_ci_config"
	requiredRef     = "master"
)

var (
	ErrCIConfigNotFound        = errors.New("ciconfig: .gitlab-ci.yml not found")
	ErrBadCIConfig             = errors.New("ciconfig: .gitlab-ci.yml must declare exactly one include")
	ErrCIConfigMissingInclude  = errors.New("ciconfig: include must reference fbksd/fbksd_ci_config@master")
	ErrCIConfigImageNotFound   = errors.New("ciconfig: include file alias is not in the system whitelist")
)

// includeDoc mirrors the subset of GitLab CI YAML this package cares
// about: the top-level include key, as either one mapping or a list.
type includeDoc struct {
	Include yaml.Node `yaml:"include"`
}

type includeEntry struct {
	Project string `yaml:"project"`
	Ref     string `yaml:"ref"`
	File    string `yaml:"file"`
}

// Load reads path and returns the single validated include alias
// (the file name stripped of its leading slash and .yml suffix).
func Load(path string) (alias string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrCIConfigNotFound
		}
		return "", fmt.Errorf("ciconfig: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates the include contract against raw YAML bytes.
func Parse(data []byte) (alias string, err error) {
	var doc includeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("ciconfig: parse yaml: %w", err)
	}

	entries, err := decodeIncludes(&doc.Include)
	if err != nil {
		return "", err
	}
	if len(entries) != 1 {
		return "", ErrBadCIConfig
	}

	entry := entries[0]
	if entry.Project != requiredProject || entry.Ref != requiredRef {
		return "", ErrCIConfigMissingInclude
	}
	return aliasFromFile(entry.File)
}

func decodeIncludes(node *yaml.Node) ([]includeEntry, error) {
	if node.Kind == 0 {
		return nil, ErrBadCIConfig
	}
	switch node.Kind {
	case yaml.MappingNode:
		var entry includeEntry
		if err := node.Decode(&entry); err != nil {
			return nil, fmt.Errorf("ciconfig: decode include: %w", err)
		}
		return []includeEntry{entry}, nil
	case yaml.SequenceNode:
		var entries []includeEntry
		if err := node.Decode(&entries); err != nil {
			return nil, fmt.Errorf("ciconfig: decode include list: %w", err)
		}
		return entries, nil
	default:
		return nil, ErrBadCIConfig
	}
}

func aliasFromFile(file string) (string, error) {
	if len(file) < 2 || file[0] != '/' {
		return "", ErrCIConfigMissingInclude
	}
	name := file[1:]
	const suffix = ".yml"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return "", ErrCIConfigMissingInclude
	}
	return name[:len(name)-len(suffix)], nil
}

// ResolveImage resolves alias against the system-config whitelist.
func ResolveImage(alias string, whitelist map[string]string) (string, error) {
	img, ok := whitelist[alias]
	if !ok {
		return "", ErrCIConfigImageNotFound
	}
	return img, nil
}
