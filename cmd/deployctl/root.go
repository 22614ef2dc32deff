package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	deployment "github.com/haowjy/meridian-deploy-go"
	"github.com/haowjy/meridian-deploy-go/setup"
)

// app holds the state shared by every subcommand.
type app struct {
	configPath    string
	verbose       bool
	disabledRules []string

	logger       *slog.Logger
	registry     *deployment.Registry
	orchestrator *deployment.Orchestrator
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "deployctl",
		Short:         "Inspect and drive model deployments",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "deployments YAML file (default: embedded configuration)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringSliceVar(&a.disabledRules, "disable-rule", nil, `request validation rule to skip, e.g. "Parameter Validation" (repeatable)`)

	root.AddCommand(
		newListCmd(a),
		newChatCmd(a),
		newSearchQueriesCmd(a),
		newRerankCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)

	if path := deployment.LoadEnv(); path != "" {
		a.logger.Debug("loaded environment file", "path", path)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	a.registry, err = setup.NewRegistry(cfg, setup.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}

	engine, err := a.validationEngine()
	if err != nil {
		return err
	}
	a.orchestrator = deployment.NewOrchestrator(a.registry,
		deployment.WithLogger(a.logger),
		deployment.WithValidationEngine(engine),
	)
	return nil
}

// validationEngine builds the default rule set minus --disable-rule entries.
func (a *app) validationEngine() (*deployment.ValidationEngine, error) {
	engine := deployment.NewValidationEngine(deployment.DefaultValidationRules()...)
	for _, name := range a.disabledRules {
		if !engine.RemoveRule(name) {
			return nil, fmt.Errorf("unknown validation rule %q", name)
		}
		a.logger.Debug("disabled validation rule", "rule", name)
	}
	return engine, nil
}

func (a *app) loadConfig() (*deployment.Config, error) {
	if a.configPath == "" {
		return deployment.DefaultConfig()
	}
	cfg, err := deployment.LoadConfigFile(a.configPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("loaded deployments file", "path", a.configPath, "deployments", len(cfg.Deployments))
	return cfg, nil
}
