package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v66/github"

	"github.com/oar-cd/pushdeploy/domain"
)

// DecodePush extracts the fields needed for filtering from a push body
func DecodePush(body []byte) (domain.PushPayload, error) {
	var event github.PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.PushPayload{}, fmt.Errorf("failed to decode push payload: %w", err)
	}

	return domain.PushPayload{
		Repository: event.GetRepo().GetName(),
		Ref:        event.GetRef(),
		Pusher:     event.GetPusher().GetName(),
		After:      event.GetAfter(),
	}, nil
}
