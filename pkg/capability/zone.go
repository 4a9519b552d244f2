package capability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/binder"
	"github.com/jblukach/domains/pkg/graph"
	"github.com/jblukach/domains/pkg/stack"
)

// Zone declares the public hosted zone of a domain and the exported parameter
// publishing its id under /<service>/<key>.
type Zone struct{}

func (Zone) Name() string          { return "zone" }
func (Zone) Scope() Scope          { return ScopeDomain }
func (Zone) Enabled(_ Target) bool { return true }

func (Zone) Declare(ctx context.Context, b *stack.Builder, t Target) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.Zone.Declare")
	defer span.End()

	d := t.Domain
	span.SetAttributes(
		attribute.String("domain.key", d.Key),
		attribute.String("domain.zone", d.Zone),
	)

	props := map[string]any{
		"zone_name": d.Zone,
		"comment":   d.Comment,
	}
	var refs map[string]binder.Ref
	if d.QueryLoggingEnabled() {
		logs := b.Ref(LogGroupID)
		props["query_logs_log_group_arn"] = logs.Token("arn")
		refs = map[string]binder.Ref{"query_logs": logs}
	}
	zone := b.Declare(ZoneID, graph.KindHostedZone, props, refs)
	b.UseZone(zone, d.Zone, DefaultTTL(d))

	b.Declare(ParameterID, graph.KindParameter, map[string]any{
		"parameter_name": ParameterName(t.Config.Service, d.Key),
		"description":    d.Comment,
		"string_value":   zone.Token("id"),
		"tier":           "Standard",
	}, map[string]binder.Ref{"zone": zone})

	if err := b.Export(ParameterID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to export zone parameter: %w", err)
	}
	return nil
}

// ParameterName returns the name of the parameter holding a zone id.
func ParameterName(service, key string) string {
	return "/" + strings.Trim(service, "/") + "/" + key
}
