package config

import (
	"context"
	"fmt"
	pathpkg "path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/errdefs"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ParseTTL parses a TTL written as a Go duration ("30m", "5h") or as a bare
// number of seconds. An empty string yields zero.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("TTL must be positive, got %s", s)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid TTL %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("TTL must be positive, got %s", s)
	}
	return d, nil
}

// Validate checks the configuration and fills in defaults. The first problem
// found is returned as a ValidationError; nothing is partially applied to the
// domains after a failure.
func (c *DomainsConfig) Validate(ctx context.Context) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "config.Validate")
	defer span.End()

	if err := c.validate(); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int("config.domains", len(c.Domains)))
	return nil
}

func (c *DomainsConfig) validate() error {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Account != "" {
		if _, err := strconv.ParseUint(c.Account, 10, 64); err != nil || len(c.Account) != 12 {
			return errdefs.Validationf("account", "", "account must be a 12-digit id, got %q", c.Account)
		}
	}
	if !keyPattern.MatchString(c.Service) {
		return errdefs.Validationf("service", "", "service %q must match %s", c.Service, keyPattern)
	}

	if len(c.Domains) == 0 {
		return errdefs.Validationf("domains", "", "at least one domain is required")
	}

	keys := make(map[string]bool, len(c.Domains))
	zones := make(map[string]bool, len(c.Domains))
	for i := range c.Domains {
		d := &c.Domains[i]
		path := fmt.Sprintf("domains[%d]", i)

		if err := d.validate(path); err != nil {
			return err
		}
		if keys[d.Key] {
			return errdefs.Validationf(path, "key", "duplicate domain key %q", d.Key)
		}
		if d.Key == SharedStackName {
			return errdefs.Validationf(path, "key", "%q is reserved for the shared stack", d.Key)
		}
		keys[d.Key] = true
		if zones[d.Zone] {
			return errdefs.Validationf(path, "zone", "duplicate zone %q", d.Zone)
		}
		zones[d.Zone] = true
	}

	if c.HasSites() && c.Region != DefaultRegion {
		return errdefs.Validationf("region", "", "sites need certificates in %s, got region %q", DefaultRegion, c.Region)
	}
	return nil
}

// SharedStackName is the stack holding cross-domain resources.
const SharedStackName = "shared"

func (d *Domain) validate(path string) error {
	if d.Key == "" {
		return errdefs.Validationf(path, "key", "domain key is required")
	}
	if !keyPattern.MatchString(d.Key) {
		return errdefs.Validationf(path, "key", "key %q must match %s", d.Key, keyPattern)
	}

	d.Zone = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d.Zone)), ".")
	if d.Zone == "" || !strings.Contains(d.Zone, ".") {
		return errdefs.Validationf(path, "zone", "zone must be a domain name, got %q", d.Zone)
	}
	if d.Comment == "" {
		d.Comment = d.Zone
	}
	if _, err := ParseTTL(d.DefaultTTL); err != nil {
		return errdefs.Validationf(path, "default_ttl", "%v", err)
	}

	if d.QueryLogging != nil && d.QueryLogging.Enabled {
		if d.QueryLogging.RetentionDays == 0 {
			d.QueryLogging.RetentionDays = DefaultRetentionDays
		}
		if !contains(ValidRetentionDays, d.QueryLogging.RetentionDays) {
			return errdefs.Validationf(path, "query_logging.retention_days", "unsupported retention of %d days", d.QueryLogging.RetentionDays)
		}
	}

	for i, del := range d.Delegations {
		p := fmt.Sprintf("%s.delegations[%d]", path, i)
		if del.Name == "" {
			return errdefs.Validationf(p, "name", "delegated name is required")
		}
		if len(del.NameServers) == 0 {
			return errdefs.Validationf(p, "name_servers", "at least one name server is required")
		}
		if _, err := ParseTTL(del.TTL); err != nil {
			return errdefs.Validationf(p, "ttl", "%v", err)
		}
	}

	if d.Mail != nil {
		if err := d.Mail.validate(path + ".mail"); err != nil {
			return err
		}
	}

	for i, v := range d.Verifications {
		p := fmt.Sprintf("%s.verifications[%d]", path, i)
		if v.Name == "" {
			return errdefs.Validationf(p, "name", "record name is required")
		}
		if len(v.Values) == 0 {
			return errdefs.Validationf(p, "values", "at least one value is required")
		}
		if _, err := ParseTTL(v.TTL); err != nil {
			return errdefs.Validationf(p, "ttl", "%v", err)
		}
	}

	for i, cn := range d.CNAMEs {
		p := fmt.Sprintf("%s.cnames[%d]", path, i)
		if cn.Name == "" || cn.Target == "" {
			return errdefs.Validationf(p, "", "name and target are required")
		}
		if _, err := ParseTTL(cn.TTL); err != nil {
			return errdefs.Validationf(p, "ttl", "%v", err)
		}
	}

	siteKeys := make(map[string]bool, len(d.Sites))
	for i := range d.Sites {
		s := &d.Sites[i]
		p := fmt.Sprintf("%s.sites[%d]", path, i)
		if err := s.validate(p); err != nil {
			return err
		}
		if siteKeys[s.Key] {
			return errdefs.Validationf(p, "key", "duplicate site key %q", s.Key)
		}
		siteKeys[s.Key] = true
	}
	return nil
}

func (m *Mail) validate(path string) error {
	for i, mx := range m.MX {
		p := fmt.Sprintf("%s.mx[%d]", path, i)
		if mx.Host == "" {
			return errdefs.Validationf(p, "host", "mail exchanger host is required")
		}
		if mx.Priority < 0 || mx.Priority > 65535 {
			return errdefs.Validationf(p, "priority", "priority must be between 0 and 65535, got %d", mx.Priority)
		}
	}
	if m.DKIM != nil && (m.DKIM.Selector == "" || m.DKIM.Target == "") {
		return errdefs.Validationf(path+".dkim", "", "selector and target are required")
	}
	if m.DMARC != nil {
		if !strings.HasPrefix(m.DMARC.Value, "v=DMARC1") {
			return errdefs.Validationf(path+".dmarc", "value", "DMARC policy must start with v=DMARC1")
		}
		if _, err := ParseTTL(m.DMARC.TTL); err != nil {
			return errdefs.Validationf(path+".dmarc", "ttl", "%v", err)
		}
	}
	return nil
}

func (s *Site) validate(path string) error {
	if s.Key == "" {
		return errdefs.Validationf(path, "key", "site key is required")
	}
	if !keyPattern.MatchString(s.Key) {
		return errdefs.Validationf(path, "key", "key %q must match %s", s.Key, keyPattern)
	}
	if len(s.DomainNames) == 0 {
		return errdefs.Validationf(path, "domain_names", "at least one domain name is required")
	}
	if s.Certificate.DomainName == "" {
		return errdefs.Validationf(path, "certificate.domain_name", "a certificate is required")
	}
	if s.Comment == "" {
		s.Comment = s.DomainNames[0]
	}

	if s.CachePolicy == "" {
		s.CachePolicy = CachePolicyDisabled
	}
	if !contains(ValidCachePolicies, s.CachePolicy) {
		return errdefs.Validationf(path, "cache_policy", "must be one of %v, got %q", ValidCachePolicies, s.CachePolicy)
	}

	if s.Bucket.Encryption == "" {
		s.Bucket.Encryption = EncryptionS3Managed
	}
	if !contains(ValidEncryptions, s.Bucket.Encryption) {
		return errdefs.Validationf(path, "bucket.encryption", "must be one of %v, got %q", ValidEncryptions, s.Bucket.Encryption)
	}
	if s.Bucket.BlockPublicAccess == nil {
		s.Bucket.BlockPublicAccess = boolPtr(true)
	}
	if s.Bucket.EnforceSSL == nil {
		s.Bucket.EnforceSSL = boolPtr(true)
	}

	if s.PriceClass == "" {
		s.PriceClass = DefaultPriceClass
	}
	if !contains(ValidPriceClasses, s.PriceClass) {
		return errdefs.Validationf(path, "price_class", "must be one of %v, got %q", ValidPriceClasses, s.PriceClass)
	}
	if s.HTTPVersion == "" {
		s.HTTPVersion = DefaultHTTPVersion
	}
	if !contains(ValidHTTPVersions, s.HTTPVersion) {
		return errdefs.Validationf(path, "http_version", "must be one of %v, got %q", ValidHTTPVersions, s.HTTPVersion)
	}
	if s.MinimumProtocolVersion == "" {
		s.MinimumProtocolVersion = DefaultMinimumProtocolVersion
	}
	if !contains(ValidProtocolVersions, s.MinimumProtocolVersion) {
		return errdefs.Validationf(path, "minimum_protocol_version", "must be one of %v, got %q", ValidProtocolVersions, s.MinimumProtocolVersion)
	}

	if s.Content != nil {
		src := strings.TrimSpace(s.Content.Source)
		if src == "" {
			return errdefs.Validationf(path, "content.source", "a source directory is required")
		}
		s.Content.Source = pathpkg.Clean(strings.ReplaceAll(src, "\\", "/"))
	}

	for i := range s.ErrorResponses {
		er := &s.ErrorResponses[i]
		p := fmt.Sprintf("%s.error_responses[%d]", path, i)
		if er.HTTPStatus < 400 || er.HTTPStatus > 599 {
			return errdefs.Validationf(p, "http_status", "must be an error status, got %d", er.HTTPStatus)
		}
		if er.ResponsePagePath != "" && !strings.HasPrefix(er.ResponsePagePath, "/") {
			return errdefs.Validationf(p, "response_page_path", "must start with /, got %q", er.ResponsePagePath)
		}
		if er.ResponsePagePath != "" && er.ResponseHTTPStatus == 0 {
			return errdefs.Validationf(p, "response_http_status", "required with response_page_path")
		}
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}
