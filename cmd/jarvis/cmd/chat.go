package cmd

import (
	"os"

	"github.com/m4xw311/jarvis/agent"
	"github.com/m4xw311/jarvis/agent/terminal"
	"github.com/m4xw311/jarvis/agentruntime"
	"github.com/m4xw311/jarvis/errors"
	"github.com/m4xw311/jarvis/session"
	"github.com/spf13/cobra"
)

func NewChatCmd() *cobra.Command {
	var (
		traceFlag bool
		memoryID  string
	)

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session with the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("trace") {
				cfg.EnableTrace = traceFlag
			}
			if cmd.Flags().Changed("memory-id") {
				cfg.MemoryID = memoryID
			}
			if err := cfg.ValidateChat(); err != nil {
				return err
			}

			ctx := cmd.Context()
			rt, err := agentruntime.NewBedrockRuntime(ctx, cfg.Region)
			if err != nil {
				return errors.Wrapf(err, "failed to create Bedrock client")
			}

			sess, err := session.New(cfg.MemoryID)
			if err != nil {
				return errors.Wrapf(err, "failed to create session")
			}
			log.Info("starting new session",
				"session_id", sess.ID, "memory_id", sess.MemoryID, "region", rt.Region())

			a := agent.New(cfg, sess, rt, log, os.Stdout)
			return terminal.New(a, log).Run(ctx)
		},
	}

	chatCmd.Flags().BoolVar(&traceFlag, "trace", false, "log the agent's trace events")
	chatCmd.Flags().StringVar(&memoryID, "memory-id", "", "memory id for cross-session recall (overrides config)")

	return chatCmd
}
