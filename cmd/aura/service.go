package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/aura/pkg/app"
)

const serviceName = "aura"

// program adapts app.Run to the service manager's Start/Stop callbacks.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

// Start must not block.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() { done <- app.Run(ctx, p.params) }()
	return nil
}

// Stop cancels the host and waits for its shutdown to complete.
func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

// serviceConfig describes the unit the service manager runs. The config
// path is made absolute since services do not start in the caller's
// working directory.
func serviceConfig(cfgPath string) (*service.Config, error) {
	args := []string{"service", "run"}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: "Aura",
		Description: "Self-hosted chat host with document grounding and session memory.",
		Arguments:   args,
	}, nil
}

func serviceCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage aura as a system service",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	newService := func() (service.Service, *program, error) {
		svcCfg, err := serviceConfig(cfgPath)
		if err != nil {
			return nil, nil, err
		}
		prg := &program{params: runParams(cfgPath, "", false)}
		s, err := service.New(prg, svcCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating service: %w", err)
		}
		return s, prg, nil
	}

	for _, action := range []struct{ use, short string }{
		{"install", "Install the system service"},
		{"uninstall", "Remove the system service"},
		{"start", "Start the installed service"},
		{"stop", "Stop the running service"},
		{"restart", "Restart the running service"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   action.use,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, _, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(s, action.use); err != nil {
					return fmt.Errorf("service %s: %w", action.use, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service %s: ok\n", action.use)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report the service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := newService()
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil {
				return fmt.Errorf("service status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service %s\n", statusText(st))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, _, err := newService()
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
