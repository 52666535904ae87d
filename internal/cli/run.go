package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Params []string
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	SQL    string       `json:"sql"`
	Count  int          `json:"count"`
	Rows   []ir.IRValue `json:"rows"`
	Errors []string     `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <schema> <query.yaml>",
		Short: "Execute a query and print materialized rows",
		Long: `Build a query, execute it against the configured database and print
each row materialized into its result shape.

The database is selected with --driver and --dsn, the QSHAPE_DATABASE_*
environment variables, or the database section of qshape.yaml.

Example:
  qshape run --dsn ./app.db ./schema.cue ./q.yaml
  qshape run --driver pgx --dsn postgres://localhost/app ./schema ./q.yaml --param uid=2`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().String("driver", store.DriverSQLite, "database driver (sqlite3|pgx|mysql)")
	cmd.Flags().String("dsn", "", "data source name (path for sqlite3)")
	cmd.Flags().Int("workers", 1, "row materialization workers")
	cmd.Flags().Bool("continue-on-error", false, "keep materializing after a rejected row")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "bind a named parameter (name=value, repeatable)")

	return cmd
}

func runQuery(opts *RunOptions, schemaPath, queryPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.config(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to load config", err)
	}
	if cfg.Database.DSN == "" {
		_ = formatter.Error(ErrCodeDatabase, "no database configured: set --dsn or database.dsn", nil)
		return NewExitError(ExitCommandError, "no database configured")
	}

	params, err := parseParams(opts.Params)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid --param", err)
	}

	plan, err := buildPlan(formatter, schemaPath, queryPath)
	if err != nil {
		return err
	}

	slog.Debug("opening database", "driver", cfg.Database.Driver)
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	st = st.WithLogger(slog.Default())

	// Setup signal handling so a long query can be interrupted
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling query", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := st.Select(ctx, plan, store.SelectOptions{
		Params:          params,
		Workers:         cfg.Workers,
		ContinueOnError: cfg.ContinueOnError,
	})
	if result == nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "query cancelled", err)
		}
		return WrapExitError(ExitFailure, "query failed", err)
	}

	out := RunOutput{SQL: result.SQL, Count: len(result.Rows), Rows: result.Rows}
	if err != nil {
		out.Errors = splitJoined(err)
	}

	if formatter.Format == "json" {
		if encErr := formatter.SuccessWithRun(result.RunID, out); encErr != nil {
			return encErr
		}
	} else if encErr := outputRowsText(formatter, result.RunID, out); encErr != nil {
		return encErr
	}

	if err != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("%d row(s) rejected", len(out.Errors)))
	}
	return nil
}

// outputRowsText prints one canonical JSON row per line. Rejected rows are
// materialized as null and listed afterwards.
func outputRowsText(formatter *OutputFormatter, runID string, out RunOutput) error {
	w := formatter.Writer
	formatter.VerboseLog("run %s: %s", runID, out.SQL)

	for _, row := range out.Rows {
		if row == nil {
			row = ir.IRNull{}
		}
		data, err := ir.MarshalCanonical(row)
		if err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}

	fmt.Fprintf(w, "(%d row(s))\n", out.Count)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
	return nil
}

// splitJoined lists the errors combined by errors.Join.
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs := joined.Unwrap()
		out := make([]string, 0, len(errs))
		for _, e := range errs {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
