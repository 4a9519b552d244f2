// Package record implements the typed DNS record model used by the synthesizer.
//
// Record values are validated against the textual grammar of their type by
// rendering them as zone-file resource records and parsing them with miekg/dns.
// A Record is immutable once constructed.
package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/jblukach/domains/pkg/errdefs"
)

// Type is a DNS record type.
type Type string

const (
	TypeA     Type = "A"
	TypeAAAA  Type = "AAAA"
	TypeMX    Type = "MX"
	TypeTXT   Type = "TXT"
	TypeCNAME Type = "CNAME"
	TypeNS    Type = "NS"
)

// DefaultTTL is used when neither the record nor its zone specifies a TTL.
const DefaultTTL = 30 * time.Minute

// maxTXTChunk is the largest single character-string a TXT value may carry.
const maxTXTChunk = 255

var validTypes = map[Type]bool{
	TypeA:     true,
	TypeAAAA:  true,
	TypeMX:    true,
	TypeTXT:   true,
	TypeCNAME: true,
	TypeNS:    true,
}

// IsValid reports whether t is a recognized record type.
func (t Type) IsValid() bool {
	return validTypes[t]
}

// AllowsMultipleValues reports whether a record set of this type may hold
// more than one value.
func (t Type) AllowsMultipleValues() bool {
	return t.IsValid() && t != TypeCNAME
}

// AllowsAlias reports whether the type can be an alias to a CDN distribution.
func (t Type) AllowsAlias() bool {
	return t == TypeA || t == TypeAAAA
}

// Spec is the declared form of a record before validation.
type Spec struct {
	// Name is relative to the zone ("", "@", "www") or fully qualified ("www.example.com")
	Name string

	Type Type

	Values []string

	// TTL of zero means "use the zone default"
	TTL time.Duration

	// Alias is an opaque reference to an alias target; alias records carry no values or TTL
	Alias string
}

// Record is a validated, immutable DNS record set.
type Record struct {
	name   string
	typ    Type
	values []string
	ttl    time.Duration
	alias  string
}

// New validates spec against zone and returns an immutable Record.
// defaultTTL is applied when spec.TTL is zero; a non-positive defaultTTL falls
// back to DefaultTTL.
func New(zone string, spec Spec, defaultTTL time.Duration) (*Record, error) {
	zone = Normalize(zone)
	resource := fmt.Sprintf("%s %s", spec.Name, spec.Type)

	if !spec.Type.IsValid() {
		return nil, errdefs.Validationf(resource, "type", "unrecognized record type %q", spec.Type)
	}

	name, err := Qualify(spec.Name, zone)
	if err != nil {
		return nil, errdefs.Validationf(resource, "name", "%v", err)
	}
	resource = fmt.Sprintf("%s %s", name, spec.Type)

	if spec.Alias != "" {
		if !spec.Type.AllowsAlias() {
			return nil, errdefs.Validationf(resource, "alias", "%s records cannot be aliases", spec.Type)
		}
		if len(spec.Values) > 0 {
			return nil, errdefs.Validationf(resource, "values", "alias records must not declare values")
		}
		if spec.TTL != 0 {
			return nil, errdefs.Validationf(resource, "ttl", "alias records inherit the target TTL")
		}
		return &Record{name: name, typ: spec.Type, alias: spec.Alias}, nil
	}

	if len(spec.Values) == 0 {
		return nil, errdefs.Validationf(resource, "values", "at least one value is required")
	}
	if len(spec.Values) > 1 && !spec.Type.AllowsMultipleValues() {
		return nil, errdefs.Validationf(resource, "values", "%s records hold exactly one value, got %d", spec.Type, len(spec.Values))
	}

	ttl := spec.TTL
	if ttl == 0 {
		ttl = defaultTTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
	}
	if err := checkTTL(ttl); err != nil {
		return nil, errdefs.Validationf(resource, "ttl", "%v", err)
	}

	values := make([]string, 0, len(spec.Values))
	seen := make(map[string]bool, len(spec.Values))
	for i, v := range spec.Values {
		canonical, err := parseValue(name, spec.Type, v)
		if err != nil {
			return nil, errdefs.Validationf(resource, fmt.Sprintf("values[%d]", i), "%v", err)
		}
		if seen[canonical] {
			return nil, errdefs.Validationf(resource, fmt.Sprintf("values[%d]", i), "duplicate value %q", v)
		}
		seen[canonical] = true
		values = append(values, canonical)
	}

	return &Record{name: name, typ: spec.Type, values: values, ttl: ttl}, nil
}

// Name returns the fully qualified record name without a trailing dot.
func (r *Record) Name() string { return r.name }

// Type returns the record type.
func (r *Record) Type() Type { return r.typ }

// Values returns a copy of the canonical record values.
func (r *Record) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// TTL returns the record TTL. Alias records return zero.
func (r *Record) TTL() time.Duration { return r.ttl }

// Alias returns the alias target reference, or "" for value records.
func (r *Record) Alias() string { return r.alias }

// IsAlias reports whether the record is an alias record.
func (r *Record) IsAlias() bool { return r.alias != "" }

// MXValue renders an MX value in the "priority host" grammar.
func MXValue(priority int, host string) string {
	return fmt.Sprintf("%d %s", priority, Normalize(host))
}

// Normalize lowercases a DNS name and strips the trailing dot.
func Normalize(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// Qualify turns a zone-relative or fully qualified name into a fully qualified
// name inside zone. "" and "@" denote the zone apex.
func Qualify(name, zone string) (string, error) {
	zone = Normalize(zone)
	if _, ok := dns.IsDomainName(dns.Fqdn(zone)); !ok || zone == "" {
		return "", fmt.Errorf("invalid zone name %q", zone)
	}

	name = Normalize(name)
	switch {
	case name == "" || name == "@":
		name = zone
	case name == zone || strings.HasSuffix(name, "."+zone):
	default:
		name = name + "." + zone
	}

	if _, ok := dns.IsDomainName(dns.Fqdn(name)); !ok {
		return "", fmt.Errorf("invalid domain name %q", name)
	}
	if !dns.IsSubDomain(dns.Fqdn(zone), dns.Fqdn(name)) {
		return "", fmt.Errorf("%q is outside zone %q", name, zone)
	}
	return name, nil
}

func checkTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("must be positive, got %s", ttl)
	}
	if ttl%time.Second != 0 {
		return fmt.Errorf("must be a whole number of seconds, got %s", ttl)
	}
	if ttl/time.Second > math.MaxInt32 {
		return fmt.Errorf("exceeds the maximum of %d seconds", math.MaxInt32)
	}
	return nil
}

// parseValue validates value against the grammar of typ and returns its
// canonical text form.
func parseValue(name string, typ Type, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("value must not be empty")
	}

	var rdata string
	switch typ {
	case TypeA:
		if strings.Contains(value, ":") {
			return "", fmt.Errorf("%q is not an IPv4 address", value)
		}
		rdata = value
	case TypeAAAA:
		if !strings.Contains(value, ":") {
			return "", fmt.Errorf("%q is not an IPv6 address", value)
		}
		rdata = value
	case TypeMX:
		fields := strings.Fields(value)
		if len(fields) != 2 {
			return "", fmt.Errorf("MX value %q must be \"priority host\"", value)
		}
		if _, err := strconv.ParseUint(fields[0], 10, 16); err != nil {
			return "", fmt.Errorf("MX priority %q must be an integer between 0 and 65535", fields[0])
		}
		rdata = fields[0] + " " + dns.Fqdn(Normalize(fields[1]))
	case TypeCNAME, TypeNS:
		if strings.ContainsAny(value, " \t") {
			return "", fmt.Errorf("%s value %q must be a single host name", typ, value)
		}
		rdata = dns.Fqdn(Normalize(value))
	case TypeTXT:
		chunks := TXTChunks(value)
		quoted := make([]string, len(chunks))
		for i, c := range chunks {
			quoted[i] = quoteTXT(c)
		}
		rdata = strings.Join(quoted, " ")
	}

	text := fmt.Sprintf("%s 300 IN %s %s", dns.Fqdn(name), typ, rdata)
	zp := dns.NewZoneParser(strings.NewReader(text), "", "")
	rr, ok := zp.Next()
	if err := zp.Err(); err != nil {
		return "", fmt.Errorf("malformed %s value %q: %w", typ, value, err)
	}
	if !ok || rr == nil {
		return "", fmt.Errorf("malformed %s value %q", typ, value)
	}

	switch v := rr.(type) {
	case *dns.A:
		return v.A.String(), nil
	case *dns.AAAA:
		return v.AAAA.String(), nil
	case *dns.MX:
		return MXValue(int(v.Preference), v.Mx), nil
	case *dns.CNAME:
		return Normalize(v.Target), nil
	case *dns.NS:
		return Normalize(v.Ns), nil
	case *dns.TXT:
		if len(v.Txt) != len(TXTChunks(value)) {
			return "", fmt.Errorf("malformed TXT value %q", value)
		}
		// the parsed form keeps zone-file escapes; the declared text is canonical
		return value, nil
	default:
		return "", fmt.Errorf("unexpected %T for %s value", rr, typ)
	}
}

// TXTChunks splits a TXT value into the character-strings it is published as.
// Each chunk holds at most 255 bytes; joining the chunks gives value back.
func TXTChunks(value string) []string {
	var chunks []string
	for len(value) > maxTXTChunk {
		chunks = append(chunks, value[:maxTXTChunk])
		value = value[maxTXTChunk:]
	}
	return append(chunks, value)
}

func quoteTXT(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
