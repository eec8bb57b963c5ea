package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/aura/internal/config"
	"github.com/flemzord/aura/internal/grounding"
	"github.com/flemzord/aura/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the grounding and memory tools over MCP on stdio",
		Long: `Serve the Model Context Protocol on stdin/stdout.

Tools: rank_chunks, build_grounded_prompt, validate_memory.
Resource: ` + mcpserver.MemorySchemaURI + `.
The grounding section of --config, when given, sets the tool defaults.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var gcfg grounding.Config
			if cfgPath != "" {
				cfg, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				gcfg = cfg.Grounding
			}
			if err := gcfg.WithDefaults().Validate(); err != nil {
				return err
			}

			// stdout carries the protocol; logs go to stderr.
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))
			srv := mcpserver.New(version, gcfg, logger)
			return srv.ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Configuration file providing grounding defaults")
	return cmd
}
