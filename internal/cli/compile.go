package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/crossplot/internal/compiler"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/stats"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	DatabaseOptions
	Output string // output file path
}

// CompilationResult holds the compiled layers of one spec.
type CompilationResult struct {
	Spec   string              `json:"spec"`
	Table  string              `json:"table"`
	Layers []compiler.LayerSQL `json:"layers"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <spec-file>",
		Short: "Compile a chart spec to SQL",
		Long: `Compile each layer of a chart spec to the SQL it runs without a
cross-filter.

Binning and scale decisions read field statistics from the database, so
the table must exist. Layers the runtime would omit are reported with the
reason; static layers run no query.

Examples:
  crossplot compile carriers.json --db flights.duckdb --table flights
  crossplot compile hist.cue --table t --setup "CREATE TABLE t AS SELECT range AS v FROM range(10)"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	addDatabaseFlags(cmd, &opts.DatabaseOptions)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, specFile string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(specFile); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("spec file not found: %s", specFile), nil)
	}
	doc, err := compiler.LoadSpec(specFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "loading spec", err)
	}
	if errs := doc.Validate(); len(errs) > 0 {
		if formatter.IsJSON() {
			if err := formatter.Failure(errs[0].Code, errs[0].Message, FileResult{File: specFile, Errors: errs}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s\n", specFile)
			for _, e := range errs {
				fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("spec has %d validation error(s)", len(errs)))
	}

	db, err := openDatabase(ctx, &opts.DatabaseOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "opening database", err)
	}
	defer db.Close()

	formatter.VerboseLog("Compiling %d layer(s) of %s against %s", len(doc.Spec.Layers), specFile, opts.Table)
	layers, err := compiler.Compile(ctx, stats.NewCache(db), queryir.Table{Name: opts.Table}, doc.Spec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQuery, "compiling layers", err)
	}
	result := CompilationResult{Spec: specFile, Table: opts.Table, Layers: layers}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeJSONFile(opts.Output, result); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputCompileText(formatter, result)
}

func outputCompileText(f *OutputFormatter, result CompilationResult) error {
	w := f.Writer
	for _, l := range result.Layers {
		fmt.Fprintf(w, "layer %d (%s)", l.Index, l.Mark)
		switch {
		case l.Error != "":
			fmt.Fprintf(w, ": omitted: %s\n", l.Error)
		case l.Static:
			fmt.Fprintln(w, ": static")
		default:
			if l.Filtered {
				fmt.Fprint(w, " [filtered]")
			}
			fmt.Fprintf(w, ":\n  %s\n", l.SQL)
		}
	}
	fmt.Fprintf(w, "\n✓ Compiled %d layer(s)\n", len(result.Layers))
	return nil
}

// writeJSONFile writes v as indented JSON.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
