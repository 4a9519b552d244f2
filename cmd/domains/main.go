package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jblukach/domains/pkg/capability"
	"github.com/jblukach/domains/pkg/telemetry"
)

var (
	// Global capability registry
	registry *capability.Registry

	verbose bool

	// envFileErr is reported once logging is configured
	envFileErr error

	// Root command
	rootCmd = &cobra.Command{
		Use:   "domains",
		Short: "Compile domain configuration into deployable resource stacks",
		Long: `domains turns a declarative domains.yaml (hosted zones, mail records,
verification records, delegations and static sites) into an ordered, tagged
assembly of cloud resource stacks, and diffs it against the last deployed
snapshot.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)

			if envFileErr != nil {
				slog.Debug("Ignoring unreadable .env file", "error", envFileErr)
			}
		},
	}
)

func init() {
	// Optional .env for local development
	envFileErr = loadEnvFile()

	var err error
	registry, err = capability.DefaultRegistry(context.Background())
	if err != nil {
		log.Fatalf("Failed to register capabilities: %v", err)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadEnvFile loads filenames (".env" when none are given) into the
// environment. A missing file is not an error.
func loadEnvFile(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	_, shutdown, err := telemetry.Setup(ctx, version)
	if err != nil {
		slog.Error("Failed to setup telemetry", "error", err)
		os.Exit(1)
	}

	err = rootCmd.ExecuteContext(ctx)

	if serr := shutdown(context.Background()); serr != nil {
		slog.Error("Failed to shutdown telemetry", "error", serr)
	}
	stop()

	if err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
