package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/keepmind9/featurebot/internal/core"
	"github.com/spf13/cobra"
)

var (
	validateConfig string
	validateShow   bool
	validateJSON   bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Config    string   `json:"config"`
	Transport string   `json:"transport,omitempty"`
	Commands  []string `json:"commands,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate featurebot configuration",
	Long: `Validate the featurebot configuration without starting the service.

This command checks:
  - YAML syntax
  - Transport selection and its token
  - Durations, retry and calculator limits
  - Logging settings

Warnings are informational and do not fail validation.

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		result, cfg := validateFile(resolveConfigFile(validateConfig))

		if validateShow && cfg != nil {
			showConfig(out, result, cfg)
		}

		outputValidationResult(out, result, validateJSON)

		if !result.Valid {
			os.Exit(1)
		}
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfig, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show the effective configuration")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}

// validateFile loads the configuration and collects errors and warnings.
// The returned config is nil when loading failed.
func validateFile(path string) (ValidationResult, *core.Config) {
	result := ValidationResult{Config: path}
	if path == "" {
		result.Config = "(environment)"
	}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		result.Errors = []string{err.Error()}
		return result, nil
	}

	registry := core.NewRegistry()
	if err := core.RegisterDefaults(registry); err != nil {
		result.Errors = []string{err.Error()}
		return result, cfg
	}
	for _, c := range registry.Commands() {
		result.Commands = append(result.Commands, cfg.CommandPrefix+c.Name)
	}

	result.Valid = true
	result.Transport = cfg.Transport
	result.Warnings = validateConfigDetails(cfg)
	return result, cfg
}

func validateConfigDetails(cfg *core.Config) []string {
	var warnings []string

	if cfg.Transport == core.TransportTelegram && cfg.Telegram.Debug {
		warnings = append(warnings, "telegram.debug is enabled - request logging includes message contents")
	}

	if cfg.Transport == core.TransportDiscord && cfg.Telegram.Token != "" {
		warnings = append(warnings, "A Telegram token is configured but transport is discord - it will be ignored")
	}
	if cfg.Transport == core.TransportTelegram && cfg.Discord.Token != "" {
		warnings = append(warnings, "A Discord token is configured but transport is telegram - it will be ignored")
	}

	logCfg := cfg.LoggerConfig()
	if logCfg.File == "" && !logCfg.EnableStdout {
		warnings = append(warnings, "Logging has no file and stdout is disabled - logs are discarded")
	}

	if cfg.DispatchTimeout() >= cfg.EngineOptions().IdleTimeout {
		warnings = append(warnings, "dispatch.timeout is not shorter than dispatch.idle_timeout")
	}

	return warnings
}

func showConfig(out io.Writer, result ValidationResult, cfg *core.Config) {
	policy := cfg.RetryPolicy()
	opts := cfg.EngineOptions()

	fmt.Fprintf(out, "✓ Configuration loaded: %s\n\n", result.Config)
	fmt.Fprintf(out, "Transport: %s\n", cfg.Transport)
	fmt.Fprintf(out, "Command prefix: %s\n", cfg.CommandPrefix)
	fmt.Fprintf(out, "Dispatch timeout: %s\n", cfg.DispatchTimeout())
	fmt.Fprintf(out, "Conversation idle timeout: %s\n", opts.IdleTimeout)
	fmt.Fprintf(out, "Send timeout: %s\n", opts.SendTimeout)
	fmt.Fprintf(out, "Retry: %d attempt(s), %s initial delay, %s max delay\n",
		policy.MaxAttempts, policy.InitialDelay, policy.MaxDelay)
	fmt.Fprintf(out, "\nCommands (%d):\n", len(result.Commands))
	for _, name := range result.Commands {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	fmt.Fprintln(out)
}

func outputValidationResult(out io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(out, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(out, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(out, "✓ Configuration is valid")
		fmt.Fprintf(out, "  - Config: %s\n", result.Config)
		fmt.Fprintf(out, "  - Transport: %s\n", result.Transport)
		fmt.Fprintf(out, "  - Commands: %d\n", len(result.Commands))
		if len(result.Warnings) > 0 {
			fmt.Fprintln(out, "\n⚠️  Warnings:")
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "  - %s\n", warning)
			}
		}
		return
	}

	fmt.Fprintln(out, "❌ Configuration validation failed:")
	if len(result.Errors) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(out, "  - %s\n", errMsg)
		}
	}
}
