package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/aura/internal/memory"
)

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Session memory utilities",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate <file|->",
			Short: "Check a session memory document against the schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				if err := memory.Check(string(raw)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Memory document OK")
				return nil
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the session memory JSON Schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := cmd.OutOrStdout().Write(memory.Schema())
				return err
			},
		},
	)
	return cmd
}

// readInput reads path, or the command's stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
