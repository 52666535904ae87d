package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qshape/internal/compiler"
	"github.com/roach88/qshape/internal/schema"
	"github.com/roach88/qshape/internal/shape"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Files  int                        `json:"files"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema> <query.yaml>...",
		Short: "Validate query definitions against a schema",
		Long: `Validate YAML query definitions against a CUE table schema without
executing them.

Structural problems are reported for every file before any query is built.
Queries that are structurally sound are then built, so unknown tables,
ambiguous partial selections and duplicate aliases are reported too.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemaPath string, queryPaths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := LoadSchema(schemaPath)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Error(), nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Found %d table(s) in %d CUE file(s)", loaded.Catalog.Len(), loaded.FileCount)

	var validationErrors []compiler.ValidationError
	for _, path := range queryPaths {
		formatter.VerboseLog("Validating query: %s", path)
		validationErrors = append(validationErrors, validateQueryFile(path, loaded.Catalog)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, len(queryPaths))
}

// validateQueryFile collects every structural error in one file, then
// builds the query if none were found.
func validateQueryFile(path string, catalog *schema.Catalog) []compiler.ValidationError {
	def, err := compiler.LoadQueryFile(path)
	if err != nil {
		return []compiler.ValidationError{{Field: path, Message: err.Error(), Code: ErrCodeLoadFailed}}
	}

	if errs := compiler.ValidateQuery(def); len(errs) > 0 {
		for i := range errs {
			errs[i].Field = path + ": " + errs[i].Field
		}
		return errs
	}

	q, err := compiler.CompileQuery(def, catalog)
	if err != nil {
		loadErr := convertCompileError(err, path)
		return []compiler.ValidationError{{
			Field:   path,
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    getLineFromCuePos(loadErr),
		}}
	}

	if _, err := shape.Build(q); err != nil {
		code := ErrCodeGeneric
		if c := shape.CodeOf(err); c != "" {
			code = string(c)
		}
		return []compiler.ValidationError{{Field: path, Message: err.Error(), Code: code}}
	}
	return nil
}

// getLineFromCuePos extracts the line number of a load error's position.
func getLineFromCuePos(err *LoadError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Files: files}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d query file(s) valid\n", files)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Schema load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s (line %d)\n", err.Field, err.Line)
		} else {
			fmt.Fprintln(formatter.Writer, err.Field)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
