package capability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/record"
	"github.com/jblukach/domains/pkg/stack"
)

// Verification declares TXT ownership challenges (site verification, code
// hosting domain claims).
type Verification struct{}

func (Verification) Name() string { return "verification" }
func (Verification) Scope() Scope { return ScopeDomain }

func (Verification) Enabled(t Target) bool {
	return len(t.Domain.Verifications) > 0
}

func (Verification) Declare(ctx context.Context, b *stack.Builder, t Target) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.Verification.Declare")
	defer span.End()

	span.SetAttributes(attribute.Int("verification.count", len(t.Domain.Verifications)))

	for _, v := range t.Domain.Verifications {
		spec := record.Spec{
			Name:   v.Name,
			Type:   record.TypeTXT,
			Values: v.Values,
			TTL:    ttlOr(v.TTL),
		}
		if _, err := b.AddRecord(ZoneRef(b), logicalID("verify", v.Name), spec, nil); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// Delegation declares NS records handing sub-zones to other name servers.
type Delegation struct{}

func (Delegation) Name() string { return "delegation" }
func (Delegation) Scope() Scope { return ScopeDomain }

func (Delegation) Enabled(t Target) bool {
	return len(t.Domain.Delegations) > 0
}

func (Delegation) Declare(ctx context.Context, b *stack.Builder, t Target) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.Delegation.Declare")
	defer span.End()

	span.SetAttributes(attribute.Int("delegation.count", len(t.Domain.Delegations)))

	for _, del := range t.Domain.Delegations {
		spec := record.Spec{
			Name:   del.Name,
			Type:   record.TypeNS,
			Values: del.NameServers,
			TTL:    ttlOr(del.TTL),
		}
		if _, err := b.AddRecord(ZoneRef(b), logicalID("delegate", del.Name), spec, nil); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// CNAME declares plain canonical-name records.
type CNAME struct{}

func (CNAME) Name() string { return "cname" }
func (CNAME) Scope() Scope { return ScopeDomain }

func (CNAME) Enabled(t Target) bool {
	return len(t.Domain.CNAMEs) > 0
}

func (CNAME) Declare(ctx context.Context, b *stack.Builder, t Target) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.CNAME.Declare")
	defer span.End()

	span.SetAttributes(attribute.Int("cname.count", len(t.Domain.CNAMEs)))

	for _, cn := range t.Domain.CNAMEs {
		spec := record.Spec{
			Name:   cn.Name,
			Type:   record.TypeCNAME,
			Values: []string{cn.Target},
			TTL:    ttlOr(cn.TTL),
		}
		if _, err := b.AddRecord(ZoneRef(b), logicalID("cname", cn.Name), spec, nil); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}
