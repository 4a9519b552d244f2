package capability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/binder"
	"github.com/jblukach/domains/pkg/config"
	"github.com/jblukach/domains/pkg/graph"
	"github.com/jblukach/domains/pkg/stack"
)

// QueryLogging declares the log group receiving a zone's DNS query logs. The
// log resource policy allowing the DNS service to write is either the shared
// one or a per-domain policy.
type QueryLogging struct{}

func (QueryLogging) Name() string { return "query-logging" }
func (QueryLogging) Scope() Scope { return ScopeDomain }

func (QueryLogging) Enabled(t Target) bool {
	return t.Domain.QueryLoggingEnabled()
}

func (QueryLogging) Declare(ctx context.Context, b *stack.Builder, t Target) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.QueryLogging.Declare")
	defer span.End()

	d := t.Domain
	span.SetAttributes(
		attribute.String("domain.key", d.Key),
		attribute.Bool("shared_policy", t.Config.Shared.QueryLogPolicy),
	)

	var policy binder.Ref
	if t.Config.Shared.QueryLogPolicy {
		b.Import(config.SharedStackName)
		policy = binder.Ref{Stack: config.SharedStackName, ID: SharedLogPolicyID}
	} else {
		policy = b.Declare(LogPolicyID, graph.KindLogResourcePolicy,
			logPolicyProperties(b.Shared(), "Route53LogsPolicy"+pascalZone(d.Zone)), nil)
	}

	b.Declare(LogGroupID, graph.KindLogGroup, map[string]any{
		"log_group_name": LogGroupName(d.Key),
		"retention_days": d.QueryLogging.RetentionDays,
		"removal_policy": "destroy",
	}, map[string]binder.Ref{"policy": policy})

	return nil
}

// SharedLogPolicy declares the single exported log resource policy used by
// every domain with query logging when shared.query_log_policy is set.
type SharedLogPolicy struct{}

func (SharedLogPolicy) Name() string { return "shared-log-policy" }
func (SharedLogPolicy) Scope() Scope { return ScopeShared }

func (SharedLogPolicy) Enabled(t Target) bool {
	return t.Config.Shared.QueryLogPolicy
}

func (SharedLogPolicy) Declare(ctx context.Context, b *stack.Builder, _ Target) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.SharedLogPolicy.Declare")
	defer span.End()

	b.Declare(SharedLogPolicyID, graph.KindLogResourcePolicy, logPolicyProperties(b.Shared(), "Route53LogsPolicy"), nil)
	if err := b.Export(SharedLogPolicyID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to export log resource policy: %w", err)
	}
	return nil
}

// LogGroupName returns the query log group of a domain.
func LogGroupName(key string) string {
	return "/aws/route53/" + key
}

func logPolicyProperties(shared stack.SharedContext, name string) map[string]any {
	return map[string]any{
		"policy_name": name,
		"principal":   "route53.amazonaws.com",
		"actions":     []string{"logs:CreateLogStream", "logs:PutLogEvents"},
		"resources":   []string{fmt.Sprintf("arn:aws:logs:%s:%s:log-group:*", shared.Region, shared.AccountOrToken())},
	}
}

// pascalZone turns "lukach.io" into "LukachIo".
func pascalZone(zone string) string {
	var sb strings.Builder
	for _, label := range strings.FieldsFunc(zone, func(r rune) bool { return r == '.' || r == '-' }) {
		sb.WriteString(strings.ToUpper(label[:1]) + label[1:])
	}
	return sb.String()
}
