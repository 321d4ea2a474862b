// Package sign implements the sign command, which computes webhook
// signatures for manual deliveries.
package sign

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/oar-cd/pushdeploy/cmd/output"
	"github.com/oar-cd/pushdeploy/cmd/utils"
	"github.com/oar-cd/pushdeploy/webhook"
)

func NewCmdSign() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "sign [payload-file]",
		Short: "Compute the signature header for a payload",
		Long: `Print the X-Hub-Signature-256 value for a payload read from a file, or
from stdin when no file is given. The secret comes from --secret or, when
unset, from the configuration.`,
		Example: `  pushdeploy sign push.json
  curl -X POST localhost:8000/deploy \
    -H "X-GitHub-Event: push" \
    -H "X-Hub-Signature-256: $(pushdeploy sign push.json)" \
    --data-binary @push.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, args, secret)
		},
	}

	cmd.Flags().StringVarP(&secret, "secret", "s", "", "Webhook secret (defaults to the configured secret)")
	return cmd
}

func runSign(cmd *cobra.Command, args []string, secret string) error {
	if secret == "" {
		cfg, err := utils.LoadConfig(cmd)
		if err != nil {
			return err
		}
		secret = cfg.WebhookSecret
	}

	body, err := readPayload(cmd, args)
	if err != nil {
		return err
	}

	return output.FprintPlain(cmd, "%s", webhook.Sign(body, []byte(secret)))
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		body, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		return body, nil
	}

	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return body, nil
}
