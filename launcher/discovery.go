package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/oar-cd/pushdeploy/domain"
)

// ScriptState describes the deploy script of a project directory
type ScriptState int

const (
	ScriptReady ScriptState = iota
	ScriptMissing
	ScriptNotExecutable
	ScriptNotRegular
)

func (s ScriptState) String() string {
	switch s {
	case ScriptReady:
		return "ready"
	case ScriptMissing:
		return "missing"
	case ScriptNotExecutable:
		return "not executable"
	case ScriptNotRegular:
		return "not a regular file"
	default:
		return "unknown"
	}
}

func checkScript(path string) ScriptState {
	info, err := os.Stat(path)
	if err != nil {
		return ScriptMissing
	}
	if !info.Mode().IsRegular() {
		return ScriptNotRegular
	}
	if info.Mode().Perm()&0o111 == 0 {
		return ScriptNotExecutable
	}
	return ScriptReady
}

// Project is a directory under the projects root
type Project struct {
	Target domain.DeploymentTarget
	Script ScriptState
}

// Discover lists the directories directly under projectsRoot, sorted by
// name, with the state of their deploy script. Hidden directories are
// skipped.
func Discover(projectsRoot, scriptName string) ([]Project, error) {
	entries, err := os.ReadDir(projectsRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects root %s: %w", projectsRoot, err)
	}

	var projects []Project
	for _, entry := range entries {
		if entry.Name()[0] == '.' {
			continue
		}
		if !entry.IsDir() {
			// Project directories are often symlinks into a release tree
			if entry.Type()&os.ModeSymlink == 0 {
				continue
			}
			info, err := os.Stat(filepath.Join(projectsRoot, entry.Name()))
			if err != nil || !info.IsDir() {
				continue
			}
		}
		target := domain.NewDeploymentTarget(projectsRoot, entry.Name(), scriptName)
		projects = append(projects, Project{
			Target: target,
			Script: checkScript(target.Script),
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Target.Repository < projects[j].Target.Repository
	})
	return projects, nil
}
