package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/crossplot/internal/compiler"
)

// FileResult holds the validation result of one spec file.
type FileResult struct {
	File   string                     `json:"file"`
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Files []FileResult `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <spec-file|dir>...",
		Short: "Validate chart specs",
		Long: `Validate chart specs in JSON, YAML or CUE against the chart schema.

Directories are expanded to the spec files they contain. Every error in
every file is reported.

Exit codes:
  0 - All specs valid
  1 - One or more specs invalid
  2 - Command error (missing files, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	files, err := expandSpecArgs(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	if len(files) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNoFiles, fmt.Sprintf("no spec files found in %v", args), nil)
	}

	result := ValidationResult{Valid: true, Files: make([]FileResult, 0, len(files))}
	invalid := 0
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		errs, err := compiler.ValidateFile(file)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("loading %s", file), err)
		}
		fr := FileResult{File: file, Valid: len(errs) == 0, Errors: errs}
		if !fr.Valid {
			result.Valid = false
			invalid++
		}
		result.Files = append(result.Files, fr)
	}

	if formatter.IsJSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		first := firstError(result)
		if err := formatter.Failure(first.Code, first.Message, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed in %d file(s)", invalid))
	}

	w := formatter.Writer
	for _, fr := range result.Files {
		if fr.Valid {
			formatter.VerboseLog("✓ %s", fr.File)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fr.File)
		for _, e := range fr.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
		fmt.Fprintln(w)
	}
	if !result.Valid {
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed in %d file(s)", invalid))
	}
	fmt.Fprintf(w, "✓ All specs valid (%d file(s))\n", len(result.Files))
	return nil
}

// expandSpecArgs replaces directory arguments with the spec files they
// contain.
func expandSpecArgs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("spec path not found: %s", arg)
		}
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := compiler.FindSpecFiles(arg)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", arg, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func firstError(r ValidationResult) compiler.ValidationError {
	for _, fr := range r.Files {
		if len(fr.Errors) > 0 {
			return fr.Errors[0]
		}
	}
	return compiler.ValidationError{Code: ErrCodeGeneric, Message: "validation failed"}
}
