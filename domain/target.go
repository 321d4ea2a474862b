// Package domain provides core domain types for pushdeploy.
package domain

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultScriptName is the deploy script every project exposes at its root
	DefaultScriptName = "deploy.sh"

	// BranchRefPrefix is the ref namespace GitHub uses for branches
	BranchRefPrefix = "refs/heads/"
)

// DeploymentTarget is a project directory under the projects root and the
// script inside it. It is computed per event and never stored.
type DeploymentTarget struct {
	Repository string
	Dir        string
	Script     string
}

func NewDeploymentTarget(projectsRoot, repository, scriptName string) DeploymentTarget {
	if scriptName == "" {
		scriptName = DefaultScriptName
	}
	dir := filepath.Join(projectsRoot, repository)
	return DeploymentTarget{
		Repository: repository,
		Dir:        dir,
		Script:     filepath.Join(dir, scriptName),
	}
}

// PushPayload holds the push event fields the filter and launcher need
type PushPayload struct {
	Repository string
	Ref        string
	Pusher     string
	After      string
}

// Branch returns the bare branch name of the pushed ref, or "" when the
// ref is not a branch (tags, notes, malformed refs).
func (p PushPayload) Branch() string {
	return NormalizeBranch(p.Ref)
}

// NormalizeBranch strips the refs/heads/ namespace. Refs in any other
// namespace yield "" so a tag named like the target branch never matches.
func NormalizeBranch(ref string) string {
	if strings.HasPrefix(ref, "refs/") {
		if !strings.HasPrefix(ref, BranchRefPrefix) {
			return ""
		}
		return strings.TrimPrefix(ref, BranchRefPrefix)
	}
	return ref
}
