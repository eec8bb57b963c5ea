// Package main is the entry point for the aura CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/aura/internal/config"
	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/security"
	"github.com/flemzord/aura/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aura",
		Short:         "A self-hosted chat host with document grounding and session memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		versionCmd(),
		startCmd(),
		configCmd(),
		initCmd(),
		serviceCmd(),
		mcpCmd(),
		memoryCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "aura %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	var (
		cfgPath string
		dataDir string
		debug   bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start aura with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), runParams(cfgPath, dataDir, debug))
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override the data directory")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func runParams(cfgPath, dataDir string, debug bool) app.RunParams {
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
		Debug:      debug,
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var printConfig bool
	check := &cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and provision every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			// Building the host provisions every module, so a bad API key
			// variable or an unreachable database fails here too.
			rt, err := app.Build(cmd.Context(), cfg, app.RunParams{
				Version:   version,
				LogOutput: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer rt.Stop()

			ids := config.Resolve(cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			if !printConfig {
				return nil
			}
			return printRedacted(out, args[0])
		},
	}
	check.Flags().BoolVar(&printConfig, "print", false, "Print the configuration with secrets redacted")
	cmd.AddCommand(check)
	return cmd
}

// printRedacted writes the raw configuration file with every secret-looking
// value replaced.
func printRedacted(w io.Writer, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	security.NewRedactor().RedactMap(doc)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "---")
	_, err = w.Write(out)
	return err
}
