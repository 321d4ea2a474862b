package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/oar-cd/pushdeploy/domain"
)

// maxExcerptLength keeps messages well under Telegram's 4096 character limit
const maxExcerptLength = 3000

// Format renders an outcome as a Telegram HTML message
func Format(outcome domain.Outcome) string {
	repo := html.EscapeString(outcome.Repository)

	var b strings.Builder
	switch outcome.Kind {
	case domain.OutcomeTriggered:
		fmt.Fprintf(&b, "🚀 <b>DEPLOY STARTED</b>\nProject: %s", repo)
	case domain.OutcomeSucceeded:
		fmt.Fprintf(&b, "✅ <b>DEPLOY SUCCEEDED</b>\nProject: %s\nDuration: %s", repo, formatDuration(outcome.Duration))
		writeExcerpt(&b, outcome.Excerpt)
	case domain.OutcomeFailed:
		fmt.Fprintf(&b, "❌ <b>DEPLOY FAILED</b>\nProject: %s\nExit code: %d\nDuration: %s",
			repo, outcome.ExitCode, formatDuration(outcome.Duration))
		writeExcerpt(&b, outcome.Excerpt)
	case domain.OutcomeScriptMissing:
		fmt.Fprintf(&b, "❌ <b>DEPLOY FAILED</b>\nProject: %s\ndeploy script not found", repo)
	case domain.OutcomeDirectoryMissing:
		fmt.Fprintf(&b, "❌ <b>DEPLOY FAILED</b>\nProject: %s\nproject directory not found", repo)
	case domain.OutcomeRepositoryMissing:
		b.WriteString("❌ <b>DEPLOY FAILED</b>\nrepository name missing from push payload")
	case domain.OutcomeLaunchFailed:
		fmt.Fprintf(&b, "❌ <b>DEPLOY FAILED</b>\nProject: %s\ncould not start deploy script", repo)
		if outcome.Reason != "" {
			fmt.Fprintf(&b, "\n<pre>%s</pre>", html.EscapeString(outcome.Reason))
		}
	default:
		fmt.Fprintf(&b, "DEPLOY %s\nProject: %s", strings.ToUpper(outcome.Kind.String()), repo)
	}
	return b.String()
}

func writeExcerpt(b *strings.Builder, excerpt string) {
	excerpt = strings.TrimSpace(excerpt)
	if excerpt == "" {
		return
	}
	fmt.Fprintf(b, "\n<pre>%s</pre>", html.EscapeString(truncateHead(excerpt, maxExcerptLength)))
}

// truncateHead keeps the end of s, where deploy scripts print their errors
func truncateHead(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return "..." + string(runes[len(runes)-maxLength+3:])
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
