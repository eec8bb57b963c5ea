package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Backends offered by the wizard.
const (
	backendOllama = "ollama"
	backendOpenAI = "openai_compatible"

	storeSQLite   = "sqlite"
	storePostgres = "postgres"
	storeMemory   = "memory"
)

// initAnswers holds everything the wizard asks for.
type initAnswers struct {
	Backend   string
	BaseURL   string
	Model     string
	APIKeyEnv string
	Store     string
	DSNEnv    string
	Gateway   bool
	Bind      string
	TokenEnv  string
	Cron      bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Backend:   backendOllama,
		BaseURL:   "http://localhost:11434",
		Model:     "llama3.1",
		APIKeyEnv: "OPENAI_API_KEY",
		Store:     storeSQLite,
		DSNEnv:    "AURA_POSTGRES_DSN",
		Gateway:   true,
		Bind:      "127.0.0.1:8080",
		TokenEnv:  "AURA_GATEWAY_TOKEN",
		Cron:      true,
	}
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if !yes {
				if err := runWizard(&answers); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("init aborted")
					}
					return err
				}
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := writeConfig(output, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: user config directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept every default without prompting")
	return cmd
}

// runWizard asks the questions in three groups: model, storage, surfaces.
func runWizard(a *initAnswers) error {
	backend := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Model backend").
			Options(
				huh.NewOption("Ollama (local)", backendOllama),
				huh.NewOption("OpenAI-compatible API", backendOpenAI),
			).
			Value(&a.Backend),
	)
	if err := huh.NewForm(backend).Run(); err != nil {
		return err
	}
	if a.Backend == backendOpenAI && a.BaseURL == defaultAnswers().BaseURL {
		a.BaseURL = "https://api.openai.com/v1"
		a.Model = "gpt-4o-mini"
	}

	modelFields := []huh.Field{
		huh.NewInput().Title("Base URL").Value(&a.BaseURL).Validate(validateURL),
		huh.NewInput().Title("Model").Value(&a.Model).Validate(required("model")),
	}
	if a.Backend == backendOpenAI {
		modelFields = append(modelFields,
			huh.NewInput().
				Title("Environment variable holding the API key").
				Value(&a.APIKeyEnv).
				Validate(required("variable name")),
		)
	}

	form := huh.NewForm(
		huh.NewGroup(modelFields...),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Session storage").
				Options(
					huh.NewOption("SQLite file in the data directory", storeSQLite),
					huh.NewOption("PostgreSQL", storePostgres),
					huh.NewOption("In memory (lost on restart)", storeMemory),
				).
				Value(&a.Store),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Expose the HTTP gateway?").Value(&a.Gateway),
			huh.NewConfirm().Title("Compact idle sessions on a schedule?").Value(&a.Cron),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	var extra []huh.Field
	if a.Store == storePostgres {
		extra = append(extra, huh.NewInput().
			Title("Environment variable holding the PostgreSQL DSN").
			Value(&a.DSNEnv).
			Validate(required("variable name")))
	}
	if a.Gateway {
		extra = append(extra,
			huh.NewInput().Title("Gateway listen address").Value(&a.Bind).Validate(required("address")),
			huh.NewInput().
				Title("Environment variable holding the gateway bearer token").
				Placeholder("leave empty to disable auth").
				Value(&a.TokenEnv),
		)
	}
	if len(extra) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(extra...)).Run()
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http or https URL")
	}
	return nil
}

// renderConfig turns the answers into an aura.yaml document. Secrets are
// referenced through ${VAR} so the file can be committed.
func renderConfig(a initAnswers) ([]byte, error) {
	modules := map[string]any{}

	switch a.Backend {
	case backendOllama:
		modules["provider.ollama"] = map[string]any{
			"base_url": a.BaseURL,
			"model":    a.Model,
		}
	case backendOpenAI:
		modules["provider.openai_compatible"] = map[string]any{
			"base_url":    a.BaseURL,
			"model":       a.Model,
			"api_key_env": a.APIKeyEnv,
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", a.Backend)
	}

	switch a.Store {
	case storeSQLite:
		modules["store.sqlite"] = map[string]any{}
	case storePostgres:
		modules["store.postgres"] = map[string]any{"dsn_env": a.DSNEnv}
	case storeMemory:
	default:
		return nil, fmt.Errorf("unknown store %q", a.Store)
	}

	if a.Gateway {
		gw := map[string]any{"bind": a.Bind}
		if a.TokenEnv != "" {
			gw["auth"] = map[string]any{"bearer_token": "${" + a.TokenEnv + "}"}
		}
		modules["gateway.http"] = gw
	}
	if a.Cron {
		modules["cron.scheduler"] = map[string]any{}
	}

	doc := map[string]any{
		"version": "1",
		"log":     map[string]any{"level": "info", "format": "text"},
		"modules": modules,
	}
	return yaml.Marshal(doc)
}

func writeConfig(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// defaultConfigPath is the first location ResolveConfigPath searches.
func defaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "aura", "aura.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "aura", "aura.yaml")
	}
	return "aura.yaml"
}
