// Package synth turns a validated configuration into a stack assembly.
//
// Synthesis is a pure function of its input: it performs no I/O and keeps no
// state between calls, so concurrent calls are safe and repeated calls with
// the same configuration produce byte-identical output.
package synth

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/capability"
	"github.com/jblukach/domains/pkg/config"
	"github.com/jblukach/domains/pkg/stack"
	"github.com/jblukach/domains/pkg/status"
)

// Options tune a synthesis run.
type Options struct {
	// Account overrides the configured account, e.g. one resolved from the caller identity
	Account string

	// Tags are merged under the configured tags; configured tags win
	Tags map[string]string
}

// SharedContext builds the context handed to every stack builder.
func SharedContext(cfg *config.DomainsConfig, opts Options) stack.SharedContext {
	account := cfg.Account
	if opts.Account != "" {
		account = opts.Account
	}

	tags := make(map[string]string, len(cfg.Tags)+len(opts.Tags))
	for k, v := range opts.Tags {
		tags[k] = v
	}
	for k, v := range cfg.Tags {
		tags[k] = v
	}

	return stack.SharedContext{
		Account:   account,
		Region:    cfg.Region,
		Qualifier: cfg.Qualifier,
		Service:   cfg.Service,
		Tags:      tags,
	}
}

// Synthesize builds one stack per domain, in configuration order, plus the
// shared stack when a shared capability is enabled, and assembles them. Any
// invalid input aborts the whole run.
func Synthesize(ctx context.Context, cfg *config.DomainsConfig, registry *capability.Registry, opts Options) (*stack.Assembly, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "synth.Synthesize")
	defer span.End()

	span.SetAttributes(attribute.Int("synth.domains", len(cfg.Domains)))

	shared := SharedContext(cfg, opts)
	var builders []*stack.Builder

	sharedTarget := capability.Target{Config: cfg}
	var sharedBuilder *stack.Builder
	for _, c := range registry.ForScope(capability.ScopeShared) {
		if !c.Enabled(sharedTarget) {
			continue
		}
		if sharedBuilder == nil {
			sharedBuilder = stack.NewBuilder(config.SharedStackName, shared)
			builders = append(builders, sharedBuilder)
		}
		status.Progressf(ctx, "Declaring %s in %s stack", c.Name(), config.SharedStackName)
		if err := c.Declare(ctx, sharedBuilder, sharedTarget); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("capability %s in stack %s: %w", c.Name(), config.SharedStackName, err)
		}
	}

	domainCaps := registry.ForScope(capability.ScopeDomain)
	for i := range cfg.Domains {
		d := &cfg.Domains[i]
		b := stack.NewBuilder(d.Key, shared)
		target := capability.Target{Config: cfg, Domain: d}

		for _, c := range domainCaps {
			if !c.Enabled(target) {
				continue
			}
			status.Progressf(ctx, "Declaring %s in %s stack", c.Name(), d.Key)
			if err := c.Declare(ctx, b, target); err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("capability %s in stack %s: %w", c.Name(), d.Key, err)
			}
		}
		builders = append(builders, b)
	}

	assembly, err := stack.Assemble(ctx, shared, builders)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("synth.stacks", len(assembly.Stacks)))
	status.Successf(ctx, "Synthesized %d stacks", len(assembly.Stacks))
	return assembly, nil
}
