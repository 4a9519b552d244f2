package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/jblukach/domains/pkg/stack"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "cmd.version")
	defer span.End()

	slog.Debug("Version command executed", "version", version, "commit", commit)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "domains %s (%s)\n", version, commit)
	fmt.Fprintf(out, "Assembly format: v%s\n", stack.FormatVersion)
	fmt.Fprintf(out, "Capabilities: %v\n", registry.List(ctx))
	return nil
}
