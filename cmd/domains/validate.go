package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/status"
)

var (
	validateOpts compileOptions

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate a domains.yaml file",
		Long: `Parse the configuration and run a full synthesis without writing
anything. Every record, reference and certificate constraint is checked.`,
		RunE: runValidate,
	}
)

func init() {
	validateCmd.Flags().StringVarP(&validateOpts.configFile, "file", "f", "", "Path to domains.yaml file (required)")
	validateCmd.Flags().BoolVar(&validateOpts.resolveAccount, "resolve-account", false, "Resolve the account from the caller's AWS credentials")
	if err := validateCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "cmd.validate")
	defer span.End()

	span.SetAttributes(attribute.String("config.file", validateOpts.configFile))

	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	cfg, a, err := compile(ctx, validateOpts)
	if err != nil {
		span.RecordError(err)
		slog.Error("Configuration validation failed", "error", err, "file", validateOpts.configFile)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration is valid\n")
	fmt.Fprintf(out, "  Service: %s\n", cfg.Service)
	fmt.Fprintf(out, "  Region: %s\n", cfg.Region)
	printSummary(out, a)
	return nil
}
