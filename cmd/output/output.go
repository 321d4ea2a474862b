// Package output provides functions to print messages with optional color formatting
package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/config"
	"github.com/oar-cd/pushdeploy/launcher"
)

const (
	Plain   = color.FgWhite
	Success = color.FgGreen
	Warning = color.FgYellow
	Error   = color.FgRed
)

const maxPathLength = 60

var maybeColorize func(kind color.Attribute, tmpl string, a ...any) string

// InitColors sets up color functions based on environment
func InitColors(isColorDisabled bool) {
	if color.NoColor || isColorDisabled {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return fmt.Sprintf(tmpl, a...)
		}
	} else {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return color.New(kind).SprintfFunc()(tmpl, a...)
		}
	}
}

// PrintMessage formats a message with color (if enabled) and returns it
func PrintMessage(kind color.Attribute, tmpl string, a ...any) string {
	if maybeColorize == nil || kind == Plain {
		return fmt.Sprintf(tmpl+"\n", a...)
	}
	return fmt.Sprintln(maybeColorize(kind, tmpl, a...))
}

// FprintPlain writes an uncolored message to the command's stdout
func FprintPlain(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), PrintMessage(Plain, tmpl, a...))
	return err
}

// FprintError writes an error message to the command's stderr
func FprintError(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.ErrOrStderr(), PrintMessage(Error, tmpl, a...))
	return err
}

func PrintTable(header []string, data [][]string) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowHeaderLine: tw.Off,
				},
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignRight, tw.AlignLeft}},
			},
		}))

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

// PrintProjectList renders the projects found under the projects root
func PrintProjectList(projects []launcher.Project) (string, error) {
	if len(projects) == 0 {
		return PrintMessage(Plain, "No projects found."), nil
	}

	header := []string{"Name", "Script", "Directory"}
	var data [][]string
	for _, project := range projects {
		data = append(data, []string{
			project.Target.Repository,
			scriptStateLabel(project.Script),
			truncateString(project.Target.Dir, maxPathLength),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing project list table: %w", err)
	}
	return table, nil
}

func scriptStateLabel(state launcher.ScriptState) string {
	switch state {
	case launcher.ScriptReady:
		return maybeColor(Success, state.String())
	case launcher.ScriptMissing:
		return maybeColor(Warning, state.String())
	default:
		return maybeColor(Error, state.String())
	}
}

func maybeColor(kind color.Attribute, s string) string {
	if maybeColorize == nil {
		return s
	}
	return maybeColorize(kind, "%s", s)
}

// PrintConfig renders the effective configuration with secrets masked
func PrintConfig(cfg *config.Config) (string, error) {
	data := [][]string{
		{"Webhook Secret", maskSensitiveValue(cfg.WebhookSecret)},
		{"Target Branch", cfg.TargetBranch},
		{"Projects Root", cfg.ProjectsRoot},
		{"Deploy Script", cfg.ScriptName},
		{"Output Tail Lines", strconv.Itoa(cfg.OutputTailLines)},
		{"Listen Address", cfg.Address()},
		{"Shutdown Timeout", cfg.ShutdownTimeout.String()},
		{"Telegram Token", maskSensitiveValue(cfg.TelegramToken)},
		{"Telegram Chat ID", valueOrUnset(cfg.TelegramChatID)},
		{"Telegram API URL", cfg.TelegramAPIURL},
		{"Notify Timeout", cfg.NotifyTimeout.String()},
		{"Notify On Start", strconv.FormatBool(cfg.NotifyOnStart)},
		{"Notifications", enabledLabel(cfg.NotificationsEnabled())},
		{"Log Level", cfg.LogLevel},
		{"Log Format", cfg.LogFormat},
		{"Log File", valueOrUnset(cfg.LogFile)},
	}

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing config table: %w", err)
	}
	return table, nil
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func valueOrUnset(value string) string {
	if value == "" {
		return "(not set)"
	}
	return value
}

// maskSensitiveValue keeps a few characters at each end so operators can
// tell secrets apart without revealing them
func maskSensitiveValue(value string) string {
	if value == "" {
		return "(not set)"
	}

	runes := []rune(value)
	n := len(runes)
	switch {
	case n <= 2:
		return strings.Repeat("*", n)
	case n <= 8:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	default:
		return string(runes[:3]) + strings.Repeat("*", n-6) + string(runes[n-3:])
	}
}

func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return "..."[:maxLength]
	}
	return string(runes[:maxLength-3]) + "..."
}

// CLI flag for disabling color output

// NoColor is a flag that can be used to disable colored output in the CLI.
var NoColor = &noColorFlag{set: false}

type noColorFlag struct {
	set bool
}

func (f *noColorFlag) Set(value string) error {
	// This is a boolean flag, so we ignore the value and just mark it as set
	f.set = true
	return nil
}

func (f *noColorFlag) String() string {
	if f.set {
		return "true"
	}
	return "false"
}

func (f *noColorFlag) Type() string {
	return "bool"
}

// IsSet returns true if the --no-color flag was explicitly set
func (f *noColorFlag) IsSet() bool {
	return f.set
}

// IsBoolFlag tells pflag this is a boolean flag (no argument required)
func (f *noColorFlag) IsBoolFlag() bool {
	return true
}
