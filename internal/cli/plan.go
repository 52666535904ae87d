package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/querysql"
	"github.com/roach88/qshape/internal/shape"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Params []string
}

// PlanOutput is the JSON payload of the plan command.
type PlanOutput struct {
	Mode        string            `json:"mode"`
	Fingerprint string            `json:"fingerprint"`
	Nullability map[string]string `json:"nullability"`
	SQL         string            `json:"sql"`
	Args        []any             `json:"args,omitempty"`
	Plan        ir.IRValue        `json:"plan"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <schema> <query.yaml>",
		Short: "Show a query's result shape and SQL",
		Long: `Build a query against a CUE table schema and print its select mode,
per-table nullability, projected fields, result schema and rendered SQL.

The schema may be a single .cue file or a directory of them.

Examples:
  qshape plan ./schema.cue ./queries/users_posts.yaml
  qshape plan ./schema ./q.yaml --dialect postgres --param uid=2
  qshape plan ./schema ./q.yaml --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().String("dialect", "", "SQL dialect (sqlite|postgres|mysql); derived from the driver when empty")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "bind a named parameter (name=value, repeatable)")

	return cmd
}

func runPlan(opts *PlanOptions, schemaPath, queryPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.config(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to load config", err)
	}

	plan, err := buildPlan(formatter, schemaPath, queryPath)
	if err != nil {
		return err
	}

	dialect, err := cfg.ResolvedDialect()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid dialect", err)
	}

	params, err := parseParams(opts.Params)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid --param", err)
	}

	sc := querysql.NewSQLCompiler(dialect)
	for name, v := range params {
		sc.BoundValues[name] = v
	}
	query, args, err := sc.Compile(plan)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to render SQL", err)
	}

	fingerprint, err := plan.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint plan", err)
	}

	formatter.VerboseLog("Planned %s with %d field(s), dialect %s", queryPath, len(plan.Fields), dialect)

	out := PlanOutput{
		Mode:        string(plan.Mode),
		Fingerprint: fingerprint,
		Nullability: nullabilityStrings(plan.Nullability),
		SQL:         query,
		Args:        args,
		Plan:        plan.Describe(),
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	return outputPlanText(formatter, plan, out)
}

// buildPlan loads the schema and query and builds the plan, reporting
// failures through formatter.
func buildPlan(formatter *OutputFormatter, schemaPath, queryPath string) (*shape.Plan, error) {
	loaded, err := LoadSchema(schemaPath)
	if err != nil {
		return nil, outputLoadError(formatter, err, ExitCommandError)
	}
	formatter.VerboseLog("Loaded %d table(s) from %d CUE file(s)", loaded.Catalog.Len(), loaded.FileCount)

	q, err := LoadQuery(queryPath, loaded.Catalog)
	if err != nil {
		return nil, outputLoadError(formatter, err, ExitFailure)
	}

	plan, err := shape.Build(q)
	if err != nil {
		code := ErrCodeGeneric
		if c := shape.CodeOf(err); c != "" {
			code = string(c)
		}
		return nil, formatter.Fail(ExitFailure, code, "failed to build query", err)
	}
	return plan, nil
}

// outputLoadError reports a load failure under its LoadError code.
func outputLoadError(formatter *OutputFormatter, err error, exitCode int) error {
	code := ErrCodeGeneric
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	return formatter.Fail(exitCode, code, "failed to load", err)
}

func outputPlanText(formatter *OutputFormatter, plan *shape.Plan, out PlanOutput) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Mode: %s\n", out.Mode)
	fmt.Fprintf(w, "Fingerprint: %s\n", out.Fingerprint)

	fmt.Fprintln(w, "Nullability:")
	for _, table := range plan.Query.Graph.TableNames() {
		fmt.Fprintf(w, "  %s: %s\n", table, out.Nullability[table])
	}

	fmt.Fprintln(w, "Fields:")
	for i, f := range plan.Fields {
		source := f.Table
		if f.Column != nil {
			source += "." + f.Column.Name
		} else if f.Expr != nil {
			source = f.Expr.SQL
		}
		fmt.Fprintf(w, "  %d. %s <- %s\n", i, strings.Join(f.Path, "."), source)
	}

	fmt.Fprintln(w, "SQL:")
	fmt.Fprintf(w, "  %s\n", out.SQL)
	if len(out.Args) > 0 {
		fmt.Fprintf(w, "Args: %v\n", out.Args)
	}
	return nil
}

// parseParams turns name=value pairs into bound values. Values are read as
// YAML scalars, so 2 binds an integer and true a boolean.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q must be name=value", pair)
		}
		if raw == "" {
			params[name] = ""
			continue
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		switch v.(type) {
		case nil, bool, int, float64, string:
		default:
			// Sequences and mappings bind as their source text.
			v = raw
		}
		params[name] = v
	}
	return params, nil
}

func nullabilityStrings(nm shape.NullabilityMap) map[string]string {
	out := make(map[string]string, len(nm))
	for table, n := range nm {
		out[table] = string(n)
	}
	return out
}
