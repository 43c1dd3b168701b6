package main

import (
	"fmt"
	"strings"

	"github.com/keepmind9/featurebot/internal/calc"
	"github.com/spf13/cobra"
)

var calcCmd = &cobra.Command{
	Use:   "calc <expression>",
	Short: "Evaluate an arithmetic expression",
	Long: `Evaluate an expression with the same evaluator the /calc command uses.

Supports + - * / **, parentheses and decimal numbers. Flags are not parsed so
expressions may start with a minus sign:

  featurebot calc -2 ** 2
  featurebot calc "(1 + 2) * 3"`,
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := strings.Join(args, " ")
		result, err := calc.Evaluate(expr)
		if err != nil {
			return fmt.Errorf("cannot evaluate %q: %w", expr, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), calc.FormatResult(result))
		return nil
	},
}
