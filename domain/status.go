package domain

import "fmt"

// RunStatus represents the lifecycle state of a deployment run
type RunStatus int

const (
	RunStatusUnknown RunStatus = iota
	RunStatusRunning
	RunStatusSucceeded
	RunStatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusRunning:
		return "running"
	case RunStatusSucceeded:
		return "succeeded"
	case RunStatusFailed:
		return "failed"
	case RunStatusUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func ParseRunStatus(s string) (RunStatus, error) {
	switch s {
	case "running":
		return RunStatusRunning, nil
	case "succeeded":
		return RunStatusSucceeded, nil
	case "failed":
		return RunStatusFailed, nil
	case "unknown":
		return RunStatusUnknown, nil
	default:
		return RunStatusUnknown, fmt.Errorf("invalid run status: %q", s)
	}
}

// OutcomeKind classifies what happened to a triggering event
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeTriggered
	OutcomeScriptMissing
	OutcomeDirectoryMissing
	OutcomeRepositoryMissing
	OutcomeLaunchFailed
	OutcomeFailed
	OutcomeSucceeded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTriggered:
		return "triggered"
	case OutcomeScriptMissing:
		return "script_missing"
	case OutcomeDirectoryMissing:
		return "directory_missing"
	case OutcomeRepositoryMissing:
		return "repository_missing"
	case OutcomeLaunchFailed:
		return "launch_failed"
	case OutcomeFailed:
		return "failed"
	case OutcomeSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the outcome ends the lifecycle of an event.
// Triggered is the only informational kind.
func (k OutcomeKind) IsTerminal() bool {
	return k != OutcomeTriggered && k != OutcomeUnknown
}
