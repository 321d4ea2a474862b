package webhook

import (
	"github.com/oar-cd/pushdeploy/domain"
)

const (
	// EventPush is the only event kind that triggers a deployment
	EventPush = "push"
	// EventPing is sent by GitHub when a webhook is created
	EventPing = "ping"
)

// Decision is the filter verdict for a verified event
type Decision int

const (
	DecisionDeploy Decision = iota
	DecisionIgnoreEvent
	DecisionIgnoreBranch
)

func (d Decision) String() string {
	switch d {
	case DecisionDeploy:
		return "deploy"
	case DecisionIgnoreEvent:
		return "ignored_event"
	case DecisionIgnoreBranch:
		return "ignored_branch"
	default:
		return "unknown"
	}
}

// Classify decides what to do with an event. Both ignore decisions lead
// to the same response; they are kept apart so logs can tell them apart.
func Classify(eventKind string, payload domain.PushPayload, targetBranch string) Decision {
	if eventKind != EventPush {
		return DecisionIgnoreEvent
	}
	branch := payload.Branch()
	if branch == "" || branch != domain.NormalizeBranch(targetBranch) {
		return DecisionIgnoreBranch
	}
	return DecisionDeploy
}

// ShouldDeploy reports whether eventKind is a push to exactly targetBranch
func ShouldDeploy(eventKind string, payload domain.PushPayload, targetBranch string) bool {
	return Classify(eventKind, payload, targetBranch) == DecisionDeploy
}
