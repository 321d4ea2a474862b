package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeploymentRun is one spawned deploy script
type DeploymentRun struct {
	ID         uuid.UUID
	Target     DeploymentTarget
	PID        int
	Status     RunStatus
	ExitCode   int
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewDeploymentRun(target DeploymentTarget) DeploymentRun {
	return DeploymentRun{
		ID:        uuid.New(),
		Target:    target,
		Status:    RunStatusRunning,
		ExitCode:  -1,
		StartedAt: time.Now(),
	}
}

// Duration returns the wall-clock time of a finished run, or the time
// elapsed so far for a running one.
func (r DeploymentRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome is what the notifier reports
type Outcome struct {
	Kind       OutcomeKind
	Repository string
	ExitCode   int
	Excerpt    string
	Duration   time.Duration
	Reason     string
}

func Triggered(repository string) Outcome {
	return Outcome{Kind: OutcomeTriggered, Repository: repository}
}

func ScriptMissing(repository string) Outcome {
	return Outcome{Kind: OutcomeScriptMissing, Repository: repository}
}

func DirectoryMissing(repository string) Outcome {
	return Outcome{Kind: OutcomeDirectoryMissing, Repository: repository}
}

func RepositoryMissing() Outcome {
	return Outcome{Kind: OutcomeRepositoryMissing}
}

func LaunchFailed(repository string, reason string) Outcome {
	return Outcome{Kind: OutcomeLaunchFailed, Repository: repository, Reason: reason}
}

func Failed(repository string, exitCode int, excerpt string, duration time.Duration) Outcome {
	return Outcome{
		Kind:       OutcomeFailed,
		Repository: repository,
		ExitCode:   exitCode,
		Excerpt:    excerpt,
		Duration:   duration,
	}
}

func Succeeded(repository string, excerpt string, duration time.Duration) Outcome {
	return Outcome{
		Kind:       OutcomeSucceeded,
		Repository: repository,
		Excerpt:    excerpt,
		Duration:   duration,
	}
}

// OutcomeFromRun classifies a finished run by its exit code
func OutcomeFromRun(run DeploymentRun) Outcome {
	if run.ExitCode == 0 {
		return Succeeded(run.Target.Repository, run.Output, run.Duration())
	}
	return Failed(run.Target.Repository, run.ExitCode, run.Output, run.Duration())
}
