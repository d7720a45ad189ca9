package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/specialize/internal/builtins"
	"github.com/roach88/specialize/internal/compiler"
	"github.com/roach88/specialize/internal/dispatch"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Kinds  []string                   `json:"kinds,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate node kinds without writing IR",
		Long: `Validate CUE node-kind declarations.

Checks structure (names, arity, accepted types, impl or returns) and
that every guard, implementation and error kind a declaration names
exists in the builtin library. Faster than compile for development
feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	validationErrors := validateAll(loadResult, builtins.Library(), formatter)

	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, loadResult)
}

// validateAll runs structural and binding validation on every loaded kind.
// Field names are prefixed with the kind so errors from several kinds can
// be told apart.
func validateAll(result *LoadResult, lib *dispatch.Library, formatter *OutputFormatter) []compiler.ValidationError {
	var all []compiler.ValidationError
	for i := range result.Kinds {
		kind := &result.Kinds[i]
		formatter.VerboseLog("Validating node kind: %s", kind.Name)

		errs := compiler.Validate(kind)
		errs = append(errs, compiler.ValidateBindings(kind, lib)...)
		for _, e := range errs {
			e.Field = fmt.Sprintf("node.%s.%s", kind.Name, e.Field)
			all = append(all, e)
		}
	}
	return all
}

func lineOf(err *LoadError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *LoadResult) error {
	names := make([]string, len(result.Kinds))
	for i, k := range result.Kinds {
		names[i] = k.Name
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Kinds: names})
	}

	fmt.Fprintf(formatter.Writer, "%s All node kinds valid (%d)\n", formatter.Pass(), len(names))
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", formatter.Fail())
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failed
}

// ValidateSpecsDir validates all node kinds in a directory against lib.
// A nil lib means the builtin library.
func ValidateSpecsDir(specsDir string, lib *dispatch.Library) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if lib == nil {
		lib = builtins.Library()
	}
	silent := &OutputFormatter{Format: "text", Writer: io.Discard}
	return validateAll(loadResult, lib, silent), nil
}
