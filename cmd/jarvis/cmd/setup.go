package cmd

import (
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/m4xw311/jarvis/errors"
	"github.com/m4xw311/jarvis/provision"
	"github.com/spf13/cobra"
)

func NewSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Provision the IAM role, Bedrock agent and alias the chat client needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var opts []func(*awsconfig.LoadOptions) error
			if cfg.Region != "" {
				opts = append(opts, awsconfig.WithRegion(cfg.Region))
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
			if err != nil {
				return errors.Wrapf(err, "failed to load AWS config")
			}

			p := provision.New(
				iam.NewFromConfig(awsCfg),
				sts.NewFromConfig(awsCfg),
				bedrockagent.NewFromConfig(awsCfg),
				log,
			)
			result, err := p.Run(ctx, cfg)
			if err != nil {
				return errors.Wrapf(err, "setup failed")
			}

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return errors.Wrapf(err, "failed to render setup result")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Setup completed successfully with the following resources:")
			fmt.Fprintln(out, string(data))
			fmt.Fprintln(out, "Add agent_id and agent_alias_id to .jarvis/config.yaml, then run 'jarvis chat'.")
			return nil
		},
	}
}
