package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/plan"
	"github.com/jblukach/domains/pkg/snapshot"
	"github.com/jblukach/domains/pkg/stack"
	"github.com/jblukach/domains/pkg/status"
)

var (
	diffOpts     compileOptions
	diffSnapshot string
	diffJSON     bool

	diffCmd = &cobra.Command{
		Use:   "diff",
		Short: "Show the operations needed to reach the configured state",
		Long: `Synthesize the configuration and compare it with the last saved snapshot.
Operations are printed in execution order: deletes first, dependents before
their dependencies, then creates, updates and replacements in assembly order.
Without a saved snapshot every resource is a create.`,
		RunE: runDiff,
	}
)

func init() {
	diffCmd.Flags().StringVarP(&diffOpts.configFile, "file", "f", "", "Path to domains.yaml file (required)")
	diffCmd.Flags().BoolVar(&diffOpts.resolveAccount, "resolve-account", false, "Resolve the account from the caller's AWS credentials")
	diffCmd.Flags().StringVar(&diffSnapshot, "snapshot", "", "Snapshot location: a local path or s3://bucket/key (required)")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "Print the plan as JSON")
	for _, name := range []string{"file", "snapshot"} {
		if err := diffCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "cmd.diff")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", diffOpts.configFile),
		attribute.String("snapshot", diffSnapshot),
	)

	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	cfg, next, err := compile(ctx, diffOpts)
	if err != nil {
		span.RecordError(err)
		slog.Error("Synthesis failed", "error", err, "file", diffOpts.configFile)
		return err
	}

	store, err := snapshot.Open(ctx, diffSnapshot, cfg.Region)
	if err != nil {
		span.RecordError(err)
		return err
	}
	env, err := store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to load snapshot", "error", err, "location", diffSnapshot)
		return err
	}

	var prev *stack.Assembly
	if env != nil {
		prev = env.Assembly
		slog.Info("Comparing with snapshot", "run_id", env.RunID.String(), "created_at", env.CreatedAt)
	} else {
		slog.Info("No snapshot found, everything will be created", "location", diffSnapshot)
	}

	p, err := plan.Diff(ctx, prev, next)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if diffJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	printPlan(cmd.OutOrStdout(), p)
	return nil
}

func printPlan(w io.Writer, p *plan.Plan) {
	if p.Empty() {
		fmt.Fprintln(w, "No changes.")
		return
	}
	for _, op := range p.Operations {
		fmt.Fprintf(w, "  %s\n", op)
	}
	counts := p.Counts()
	fmt.Fprintf(w, "Plan: %d to create, %d to update, %d to replace, %d to delete.\n",
		counts[plan.ActionCreate], counts[plan.ActionUpdate], counts[plan.ActionReplace], counts[plan.ActionDelete])
}
