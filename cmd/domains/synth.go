package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/snapshot"
	"github.com/jblukach/domains/pkg/stack"
	"github.com/jblukach/domains/pkg/status"
)

var (
	synthOpts     compileOptions
	synthOutDir   string
	synthFormat   string
	synthSnapshot string

	synthCmd = &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the stack assembly",
		Long: `Synthesize the configuration into an assembly and write it to the output
directory as assembly.<ext>, plus one stacks/<stack>.<ext> document per stack.

Use --save-snapshot to record the assembly as the baseline for the next diff.
The location is a local path or s3://bucket/key.`,
		RunE: runSynth,
	}
)

func init() {
	synthCmd.Flags().StringVarP(&synthOpts.configFile, "file", "f", "", "Path to domains.yaml file (required)")
	synthCmd.Flags().BoolVar(&synthOpts.resolveAccount, "resolve-account", false, "Resolve the account from the caller's AWS credentials")
	synthCmd.Flags().StringVarP(&synthOutDir, "output", "o", "out", "Output directory")
	synthCmd.Flags().StringVar(&synthFormat, "format", stack.FormatJSON, "Output format (json or yaml)")
	synthCmd.Flags().StringVar(&synthSnapshot, "save-snapshot", "", "Record the assembly as the deployed baseline at this location")
	if err := synthCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func runSynth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "cmd.synth")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", synthOpts.configFile),
		attribute.String("output.dir", synthOutDir),
		attribute.String("output.format", synthFormat),
	)

	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	cfg, a, err := compile(ctx, synthOpts)
	if err != nil {
		span.RecordError(err)
		slog.Error("Synthesis failed", "error", err, "file", synthOpts.configFile)
		return err
	}

	written, err := writeAssembly(afero.NewOsFs(), synthOutDir, synthFormat, a)
	if err != nil {
		span.RecordError(err)
		return err
	}
	slog.Info("Assembly written", "dir", synthOutDir, "files", len(written))

	if synthSnapshot != "" {
		store, err := snapshot.Open(ctx, synthSnapshot, cfg.Region)
		if err != nil {
			span.RecordError(err)
			return err
		}
		env := snapshot.NewEnvelope(a)
		if err := store.Save(ctx, env); err != nil {
			span.RecordError(err)
			slog.Error("Failed to save snapshot", "error", err, "location", synthSnapshot)
			return err
		}
		slog.Info("Snapshot saved", "location", synthSnapshot, "run_id", env.RunID.String())
	}

	out := cmd.OutOrStdout()
	for _, path := range written {
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	printSummary(out, a)
	return nil
}

// writeAssembly writes assembly.<ext> into dir and one stacks/<stack>.<ext>
// per stack, and returns the written paths.
func writeAssembly(fs afero.Fs, dir, format string, a *stack.Assembly) ([]string, error) {
	if format != stack.FormatJSON && format != stack.FormatYAML {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	data, err := a.Encode(format)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "assembly."+format)
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	written := []string{path}

	stacksDir := filepath.Join(dir, "stacks")
	if len(a.Stacks) > 0 {
		if err := fs.MkdirAll(stacksDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create stack directory %s: %w", stacksDir, err)
		}
	}
	for i := range a.Stacks {
		s := &a.Stacks[i]
		data, err := s.Encode(format)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(stacksDir, s.Name+"."+format)
		if err := afero.WriteFile(fs, path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
