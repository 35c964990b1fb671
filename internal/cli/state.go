package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/crossplot/internal/chart"
	"github.com/roach88/crossplot/internal/harness"
	"github.com/roach88/crossplot/internal/spec"
	"github.com/roach88/crossplot/internal/store"
)

// DefaultStorePath is the snapshot database used when --store is not set.
const DefaultStorePath = "crossplot.db"

// StateOptions holds flags shared by the state subcommands.
type StateOptions struct {
	*RootOptions
	Store    string // snapshot database path
	Name     string // snapshot name
	Scenario string // scenario file for restore
}

// SaveResult reports a saved snapshot.
type SaveResult struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Scenario  string `json:"scenario"`
	Charts    int    `json:"charts"`
	Predicate string `json:"predicate"`
}

// RestoreResult reports a replayed snapshot.
type RestoreResult struct {
	ID       int64            `json:"id"`
	Pass     bool             `json:"pass"`
	Errors   []string         `json:"errors,omitempty"`
	Snapshot harness.Snapshot `json:"snapshot"`
}

// NewStateCommand creates the state command and its subcommands.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Save and restore cross-filter snapshots",
		Long: `Manage snapshots of chart specs and selection state.

A snapshot records every chart's spec and its selection values, so a
later restore rebuilds the same cross-filter. Snapshots live in a SQLite
database; saving unchanged content under the same name reuses the
existing snapshot.

Examples:
  crossplot state save scenarios/cross_filter.yaml --name demo
  crossplot state list
  crossplot state show 1
  crossplot state restore 1 --scenario scenarios/cross_filter.yaml
  crossplot state delete 1`,
	}

	cmd.PersistentFlags().StringVar(&opts.Store, "store", DefaultStorePath, "path to snapshot database")

	cmd.AddCommand(newStateSaveCommand(opts))
	cmd.AddCommand(newStateListCommand(opts))
	cmd.AddCommand(newStateShowCommand(opts))
	cmd.AddCommand(newStateRestoreCommand(opts))
	cmd.AddCommand(newStateDeleteCommand(opts))

	return cmd
}

func newStateSaveCommand(opts *StateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "save <scenario-file>",
		Short:         "Run a scenario and save its final state",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateSave(cmd.Context(), opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "snapshot name (default scenario name)")
	return cmd
}

func newStateListCommand(opts *StateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List saved snapshots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateList(cmd.Context(), opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "only list snapshots with this name")
	return cmd
}

func newStateShowCommand(opts *StateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show a saved snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateShow(cmd.Context(), opts, args[0], cmd)
		},
	}
}

func newStateRestoreCommand(opts *StateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a snapshot against a scenario's tables",
		Long: `Restore a snapshot into a fresh host.

The scenario supplies the table setup and the assertions; its own charts
and steps are replaced by the snapshot.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateRestore(cmd.Context(), opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario providing setup and assertions (required)")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func newStateDeleteCommand(opts *StateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a saved snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateDelete(cmd.Context(), opts, args[0], cmd)
		},
	}
}

// withStore opens the snapshot database for the duration of fn.
func withStore(opts *StateOptions, f *OutputFormatter, fn func(*store.Store) error) error {
	s, err := store.Open(opts.Store)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "opening store", err)
	}
	defer s.Close()
	return fn(s)
}

func parseID(f *OutputFormatter, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid snapshot id %q", arg), nil)
	}
	return id, nil
}

func runStateSave(ctx context.Context, opts *StateOptions, scenarioFile string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "loading scenario", err)
	}
	result, err := harness.Run(ctx, scenario)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeTestFailed, "running scenario", err)
	}
	name := opts.Name
	if name == "" {
		name = scenario.Name
	}

	return withStore(opts, formatter, func(s *store.Store) error {
		id, err := s.Save(ctx, name, result.State)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "saving snapshot", err)
		}
		saved := SaveResult{
			ID:        id,
			Name:      name,
			Scenario:  scenario.Name,
			Charts:    len(result.State.Charts),
			Predicate: result.State.Predicate,
		}
		if formatter.IsJSON() {
			return formatter.Success(saved)
		}
		fmt.Fprintf(formatter.Writer, "✓ Saved snapshot %d (%s, %d chart(s))\n", saved.ID, saved.Name, saved.Charts)
		if saved.Predicate != "" {
			fmt.Fprintf(formatter.Writer, "  filter: %s\n", saved.Predicate)
		}
		return nil
	})
}

func runStateList(ctx context.Context, opts *StateOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	return withStore(opts, formatter, func(s *store.Store) error {
		entries, err := s.List(ctx, opts.Name)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "listing snapshots", err)
		}
		if formatter.IsJSON() {
			return formatter.Success(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(formatter.Writer, "No snapshots found.")
			return nil
		}
		w := formatter.Writer
		fmt.Fprintf(w, "%-6s %-20s %-20s %-6s %s\n", "ID", "NAME", "CREATED", "CHARTS", "FILTER")
		for _, e := range entries {
			fmt.Fprintf(w, "%-6d %-20s %-20s %-6d %s\n",
				e.ID, e.Name, e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.Charts, e.Predicate)
		}
		return nil
	})
}

func runStateShow(ctx context.Context, opts *StateOptions, arg string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	id, err := parseID(formatter, arg)
	if err != nil {
		return err
	}

	return withStore(opts, formatter, func(s *store.Store) error {
		st, err := s.Load(ctx, id)
		if err != nil {
			return loadFailure(formatter, id, err)
		}
		if formatter.IsJSON() {
			return formatter.Success(st)
		}
		return outputStateText(formatter, id, st)
	})
}

func runStateRestore(ctx context.Context, opts *StateOptions, arg string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	id, err := parseID(formatter, arg)
	if err != nil {
		return err
	}

	scenario, err := harness.LoadScenario(opts.Scenario)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "loading scenario", err)
	}

	var st chart.AppState
	err = withStore(opts, formatter, func(s *store.Store) error {
		loaded, loadErr := s.Load(ctx, id)
		if loadErr != nil {
			return loadFailure(formatter, id, loadErr)
		}
		st = loaded
		return nil
	})
	if err != nil {
		return err
	}

	result, err := harness.Replay(ctx, scenario, st)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeTestFailed, "restoring snapshot", err)
	}
	restored := RestoreResult{ID: id, Pass: result.Pass, Errors: result.Errors, Snapshot: result.Snapshot}

	if formatter.IsJSON() {
		if restored.Pass {
			return formatter.Success(restored)
		}
		msg := fmt.Sprintf("%d assertion(s) failed", len(restored.Errors))
		if err := formatter.Failure(ErrCodeTestFailed, msg, restored); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := formatter.Writer
	snap, err := spec.MarshalCanonical(restored.Snapshot)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "encoding snapshot", err)
	}
	fmt.Fprintf(w, "%s\n\n", snap)
	if !restored.Pass {
		printScenarioResult(formatter, ScenarioResult{Name: scenario.Name, Errors: restored.Errors}, false)
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(restored.Errors)))
	}
	fmt.Fprintf(w, "✓ Restored snapshot %d against %s\n", id, scenario.Name)
	return nil
}

func runStateDelete(ctx context.Context, opts *StateOptions, arg string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	id, err := parseID(formatter, arg)
	if err != nil {
		return err
	}

	return withStore(opts, formatter, func(s *store.Store) error {
		if err := s.Delete(ctx, id); err != nil {
			return loadFailure(formatter, id, err)
		}
		if formatter.IsJSON() {
			return formatter.Success(map[string]int64{"deleted": id})
		}
		fmt.Fprintf(formatter.Writer, "✓ Deleted snapshot %d\n", id)
		return nil
	})
}

func loadFailure(f *OutputFormatter, id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("snapshot %d not found", id), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("loading snapshot %d", id), err)
}

func outputStateText(f *OutputFormatter, id int64, st chart.AppState) error {
	w := f.Writer
	fmt.Fprintf(w, "Snapshot %d (version %d, %s)\n", id, st.Version, st.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	if st.Predicate != "" {
		fmt.Fprintf(w, "Filter: %s\n", st.Predicate)
	}

	ids := make([]string, 0, len(st.Charts))
	for cid := range st.Charts {
		ids = append(ids, cid)
	}
	sort.Strings(ids)
	for _, chartID := range ids {
		cs := st.Charts[chartID]
		fmt.Fprintf(w, "\n%s: %d layer(s)\n", chartID, len(cs.Layers))
		state := st.ChartStates[chartID]
		names := make([]string, 0, len(state))
		for name := range state {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, err := spec.MarshalCanonical(state[name])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %s = %s\n", name, v)
		}
	}
	return nil
}
