package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/rand/goalsolver/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Commands for inspecting goalsolver configuration",
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the effective configuration after merging defaults, the config file and the environment",
		Example: heredoc.Doc(`
			# Show config in human-readable format
			goalsolver config show

			# Show config as JSON
			goalsolver config show --json

			# Show config as YAML
			goalsolver config show --yaml
		`),
		RunE: runConfigShow,
	}
	configShowCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	configShowCmd.Flags().BoolP("yaml", "y", false, "Output as YAML")

	configValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long:  "Check the configuration for errors and warnings",
		Example: heredoc.Doc(`
			# Validate a config file
			goalsolver config validate --config goalsolver.yaml
		`),
		RunE: runConfigValidate,
	}

	configSchemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Schema()
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	configCmd.AddCommand(
		configShowCmd,
		configValidateCmd,
		configSchemaCmd,
	)
	return configCmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	}

	if asYAML {
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	}

	fmt.Fprintln(out, "Effective Configuration")
	fmt.Fprintln(out, "=======================")
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Search Depth:        %d\n", cfg.SearchDepth)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Logging:")
	fmt.Fprintf(out, "  Level:             %s\n", cfg.Log.Level)
	fmt.Fprintf(out, "  Format:            %s\n", cfg.Log.Format)
	if cfg.Log.File != "" {
		fmt.Fprintf(out, "  File:              %s (rotate at %d MB, keep %d)\n", cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
	} else {
		fmt.Fprintf(out, "  File:              stderr\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Circuit Breaker:")
	fmt.Fprintf(out, "  Enabled:           %v\n", cfg.Breaker.Enabled)
	if cfg.Breaker.Enabled {
		fmt.Fprintf(out, "  Failure Threshold: %d\n", cfg.Breaker.FailureThreshold)
		fmt.Fprintf(out, "  Recovery Timeout:  %s\n", cfg.Breaker.RecoveryTimeout)
		fmt.Fprintf(out, "  Success Threshold: %d\n", cfg.Breaker.SuccessThreshold)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Rate Limit:")
	if cfg.RateLimit.PerSecond > 0 {
		fmt.Fprintf(out, "  Per Second:        %g\n", cfg.RateLimit.PerSecond)
		fmt.Fprintf(out, "  Burst:             %d\n", cfg.RateLimit.Burst)
	} else {
		fmt.Fprintf(out, "  Disabled\n")
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.LoadUnchecked(config.Options{Path: path, EnvFile: envFile})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "✗ Configuration error: %v\n", err)
		return err
	}

	errs, warnings := cfg.Check()

	if len(errs) > 0 {
		fmt.Fprintln(out, "Errors:")
		for _, e := range errs {
			fmt.Fprintf(out, "  ✗ %s\n", e)
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintln(out, "Warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  ⚠ %s\n", w)
		}
	}

	if len(errs) == 0 && len(warnings) == 0 {
		fmt.Fprintln(out, "✓ Configuration is valid")
	} else if len(errs) == 0 {
		fmt.Fprintln(out, "\n✓ Configuration is valid with warnings")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration has %d error(s)", len(errs))
	}
	return nil
}
