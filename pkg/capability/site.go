package capability

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/binder"
	"github.com/jblukach/domains/pkg/config"
	"github.com/jblukach/domains/pkg/errdefs"
	"github.com/jblukach/domains/pkg/graph"
	"github.com/jblukach/domains/pkg/record"
	"github.com/jblukach/domains/pkg/stack"
)

//go:embed functions/redirect.js
var redirectFunction string

// RedirectFunctionCode returns the viewer-request function attached to sites
// with viewer_redirect enabled.
func RedirectFunctionCode() string {
	return redirectFunction
}

var cachePolicies = map[string]string{
	config.CachePolicyDisabled:  "CachingDisabled",
	config.CachePolicyOptimized: "CachingOptimized",
}

var priceClasses = map[string]string{
	"all": "PriceClass_All",
	"100": "PriceClass_100",
	"200": "PriceClass_200",
}

// Site declares a static website: a DNS-validated certificate, a private
// origin bucket with optional published content, an optional viewer-request
// function, the CDN distribution and one A and one AAAA alias record per
// domain name.
type Site struct{}

func (Site) Name() string { return "site" }
func (Site) Scope() Scope { return ScopeDomain }

func (Site) Enabled(t Target) bool {
	return len(t.Domain.Sites) > 0
}

func (Site) Declare(ctx context.Context, b *stack.Builder, t Target) error {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "capability.Site.Declare")
	defer span.End()

	span.SetAttributes(
		attribute.String("domain.key", t.Domain.Key),
		attribute.Int("site.count", len(t.Domain.Sites)),
	)

	for i := range t.Domain.Sites {
		if err := declareSite(ctx, b, t.Domain, &t.Domain.Sites[i]); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

func declareSite(ctx context.Context, b *stack.Builder, d *config.Domain, s *config.Site) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "capability.declareSite")
	defer span.End()

	span.SetAttributes(attribute.String("site.key", s.Key))

	zone := ZoneRef(b)
	resource := fmt.Sprintf("%s/%s", b.Name(), s.Key)

	hosts := make([]string, 0, len(s.DomainNames))
	for _, name := range s.DomainNames {
		host, err := record.Qualify(name, d.Zone)
		if err != nil || !binder.InZone(record.Normalize(name), d.Zone) {
			return errdefs.Validationf(resource, "domain_names", "%s is not inside zone %s", name, d.Zone)
		}
		hosts = append(hosts, host)
	}

	certNames := []string{record.Normalize(s.Certificate.DomainName)}
	for _, alt := range s.Certificate.AlternativeNames {
		certNames = append(certNames, record.Normalize(alt))
	}
	cert := b.Declare(logicalID(s.Key, "certificate"), graph.KindCertificate, map[string]any{
		"domain_name":               certNames[0],
		"subject_alternative_names": certNames[1:],
		"validation_method":         "DNS",
		"validation_names":          validationNames(certNames),
		"validation_zone_id":        zone.Token("id"),
	}, map[string]binder.Ref{"zone": zone})

	origin := b.Declare(logicalID(s.Key, "bucket"), graph.KindOrigin, map[string]any{
		"encryption":          s.Bucket.Encryption,
		"block_public_access": *s.Bucket.BlockPublicAccess,
		"enforce_ssl":         *s.Bucket.EnforceSSL,
		"versioned":           s.Bucket.Versioned,
		"origin_access":       "origin-access-control",
		"removal_policy":      "destroy",
		"auto_delete_objects": true,
	}, nil)

	refs := map[string]binder.Ref{"certificate": cert, "origin": origin}
	props := map[string]any{
		"comment":                  s.Comment,
		"domain_names":             hosts,
		"certificate_arn":          cert.Token("arn"),
		"origin_domain_name":       origin.Token("regional_domain_name"),
		"viewer_protocol_policy":   "redirect-to-https",
		"cache_policy":             cachePolicies[s.CachePolicy],
		"minimum_protocol_version": s.MinimumProtocolVersion,
		"price_class":              priceClasses[s.PriceClass],
		"http_version":             s.HTTPVersion,
		"ipv6":                     s.IPv6Enabled(),
	}
	if len(s.ErrorResponses) > 0 {
		responses := make([]map[string]any, 0, len(s.ErrorResponses))
		for _, er := range s.ErrorResponses {
			resp := map[string]any{"http_status": er.HTTPStatus}
			if er.ResponseHTTPStatus != 0 {
				resp["response_http_status"] = er.ResponseHTTPStatus
			}
			if er.ResponsePagePath != "" {
				resp["response_page_path"] = er.ResponsePagePath
			}
			responses = append(responses, resp)
		}
		props["error_responses"] = responses
	}

	if s.ViewerRedirect {
		fn := b.Declare(logicalID(s.Key, "function"), graph.KindFunction, map[string]any{
			"function_name": logicalID(d.Key, s.Key, "redirect"),
			"runtime":       "cloudfront-js-2.0",
			"code":          RedirectFunctionCode(),
		}, nil)
		refs["function"] = fn
		props["function_associations"] = []map[string]any{
			{"event_type": "viewer-request", "function_arn": fn.Token("arn")},
		}
	}

	dist := b.Declare(logicalID(s.Key, "distribution"), graph.KindDistribution, props, refs)

	if s.Content != nil {
		b.Declare(logicalID(s.Key, "content"), graph.KindContentDeployment, map[string]any{
			"source":             s.Content.Source,
			"prune":              s.Content.Prune,
			"destination_bucket": origin.Token("name"),
		}, map[string]binder.Ref{"origin": origin})
	}

	for _, host := range hosts {
		label := strings.TrimSuffix(strings.TrimSuffix(host, d.Zone), ".")
		if label == "" {
			label = "apex"
		}
		types := []record.Type{record.TypeA}
		if s.IPv6Enabled() {
			types = append(types, record.TypeAAAA)
		}
		for _, typ := range types {
			spec := record.Spec{Name: host, Type: typ, Alias: dist.Token("domain_name")}
			id := logicalID(s.Key, strings.ToLower(string(typ)), label)
			if _, err := b.AddRecord(zone, id, spec, map[string]binder.Ref{"target": dist}); err != nil {
				span.RecordError(err)
				return err
			}
		}
	}

	span.SetAttributes(attribute.Int("site.hosts", len(hosts)))
	return nil
}

// validationNames returns the names a DNS validation record is created for:
// wildcards collapse onto their base name and duplicates are dropped.
func validationNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimPrefix(n, "*.")
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
