package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cmsync/internal/declaration"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                  `json:"valid"`
	Problems []declaration.Problem `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <declaration>",
		Short: "Validate a declaration without touching the store",
		Long: `Load a YAML or CUE declaration and check it for missing keys, unbound
templates and record sets, invalid folder paths and locales, and duplicate
keys. Warnings do not fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	doc, err := loadDeclaration(formatter, path)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %s declaration %s", doc.Format, path)

	problems := doc.Validate()
	if declaration.HasErrors(problems) {
		return outputProblems(formatter, problems)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Problems: problems})
	}
	for _, p := range problems {
		fmt.Fprintf(formatter.Writer, "warning: %s\n", p.Error())
	}
	fmt.Fprintln(formatter.Writer, "✓ Declaration valid")
	return nil
}

// outputProblems reports a declaration with validation errors.
func outputProblems(formatter *OutputFormatter, problems []declaration.Problem) error {
	errCount := 0
	var first declaration.Problem
	for _, p := range problems {
		if p.Severity == declaration.SeverityError {
			if errCount == 0 {
				first = p
			}
			errCount++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Problems: problems},
			Error:  &CLIError{Code: first.Code, Message: first.Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", errCount))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, p := range problems {
		if p.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", p.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s: %s\n\n", p.Code, p.Severity, p.Field, p.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", errCount))
}
