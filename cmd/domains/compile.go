package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/awsaccount"
	"github.com/jblukach/domains/pkg/config"
	"github.com/jblukach/domains/pkg/gitmeta"
	"github.com/jblukach/domains/pkg/stack"
	"github.com/jblukach/domains/pkg/synth"
)

// compileOptions are the flags shared by every command that synthesizes.
type compileOptions struct {
	configFile     string
	resolveAccount bool
}

// compile parses the configuration and synthesizes the assembly. The source
// repository tag defaults to the origin of the git repository holding the
// configuration file, when there is one.
func compile(ctx context.Context, opts compileOptions) (*config.DomainsConfig, *stack.Assembly, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "cmd.compile")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", opts.configFile),
		attribute.Bool("resolve_account", opts.resolveAccount),
	)

	cfg, err := config.ParseConfig(ctx, opts.configFile)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	synthOpts := synth.Options{Tags: map[string]string{}}

	origin, err := gitmeta.OriginURL(ctx, filepath.Dir(opts.configFile))
	if err != nil {
		slog.Debug("No git metadata for configuration", "error", err)
	} else if origin != "" {
		synthOpts.Tags[stack.TagRepository] = origin
	}

	if opts.resolveAccount {
		client, err := awsaccount.NewClient(ctx, cfg.Region)
		if err != nil {
			span.RecordError(err)
			return nil, nil, err
		}
		account, err := awsaccount.Resolve(ctx, client)
		if err != nil {
			span.RecordError(err)
			return nil, nil, err
		}
		if cfg.Account != "" && cfg.Account != account {
			err := fmt.Errorf("configured account %s does not match caller account %s", cfg.Account, account)
			span.RecordError(err)
			return nil, nil, err
		}
		synthOpts.Account = account
		slog.Info("Resolved deployment account", "account", account)
	}

	a, err := synth.Synthesize(ctx, cfg, registry, synthOpts)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return cfg, a, nil
}

// printSummary writes one line per stack with its resource counts by kind.
func printSummary(w io.Writer, a *stack.Assembly) {
	total := 0
	for _, s := range a.Stacks {
		counts := make(map[string]int)
		var kinds []string
		for _, r := range s.Resources {
			if counts[string(r.Kind)] == 0 {
				kinds = append(kinds, string(r.Kind))
			}
			counts[string(r.Kind)]++
		}
		fmt.Fprintf(w, "  %s: %d resources", s.Name, len(s.Resources))
		for i, k := range kinds {
			sep := ", "
			if i == 0 {
				sep = " ("
			}
			fmt.Fprintf(w, "%s%s=%d", sep, k, counts[k])
		}
		if len(kinds) > 0 {
			fmt.Fprint(w, ")")
		}
		fmt.Fprintln(w)
		total += len(s.Resources)
	}
	fmt.Fprintf(w, "  total: %d stacks, %d resources\n", len(a.Stacks), total)
}
