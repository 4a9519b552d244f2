package capability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/record"
	"github.com/jblukach/domains/pkg/stack"
)

// Mail declares the MX, SPF, DKIM and DMARC records of a zone.
type Mail struct{}

func (Mail) Name() string { return "mail" }
func (Mail) Scope() Scope { return ScopeDomain }

func (Mail) Enabled(t Target) bool {
	return t.Domain.Mail != nil
}

func (Mail) Declare(ctx context.Context, b *stack.Builder, t Target) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.Mail.Declare")
	defer span.End()

	m := t.Domain.Mail
	zone := ZoneRef(b)

	span.SetAttributes(
		attribute.String("domain.key", t.Domain.Key),
		attribute.Int("mail.mx", len(m.MX)),
	)

	if len(m.MX) > 0 {
		values := make([]string, 0, len(m.MX))
		for _, mx := range m.MX {
			values = append(values, record.MXValue(mx.Priority, mx.Host))
		}
		if _, err := b.AddRecord(zone, "mx", record.Spec{Type: record.TypeMX, Values: values}, nil); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if len(m.SPF) > 0 {
		if _, err := b.AddRecord(zone, "spf", record.Spec{Type: record.TypeTXT, Values: m.SPF}, nil); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if m.DKIM != nil {
		spec := record.Spec{
			Name:   m.DKIM.Selector + "._domainkey",
			Type:   record.TypeCNAME,
			Values: []string{m.DKIM.Target},
		}
		if _, err := b.AddRecord(zone, "dkim", spec, nil); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if m.DMARC != nil {
		spec := record.Spec{
			Name:   "_dmarc",
			Type:   record.TypeTXT,
			Values: []string{m.DMARC.Value},
			TTL:    ttlOr(m.DMARC.TTL),
		}
		if _, err := b.AddRecord(zone, "dmarc", spec, nil); err != nil {
			span.RecordError(err)
			return err
		}
	}

	return nil
}
