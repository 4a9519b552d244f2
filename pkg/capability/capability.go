// Package capability contains the composable building blocks a domain stack
// is made of. Each capability inspects the domain configuration and declares
// the resources it needs on the stack builder.
package capability

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jblukach/domains/pkg/binder"
	"github.com/jblukach/domains/pkg/config"
	"github.com/jblukach/domains/pkg/stack"
)

// Scope says which kind of stack a capability contributes to.
type Scope int

const (
	// ScopeDomain capabilities run once per configured domain
	ScopeDomain Scope = iota
	// ScopeShared capabilities run once on the shared stack
	ScopeShared
)

func (s Scope) String() string {
	if s == ScopeShared {
		return "shared"
	}
	return "domain"
}

// Logical ids other capabilities reference.
const (
	ZoneID            = "hostzone"
	ParameterID       = "parameter"
	LogGroupID        = "logs"
	LogPolicyID       = "resourcepolicy"
	SharedLogPolicyID = "resourcepolicy"
)

// Target is what a capability declares resources for.
type Target struct {
	Config *config.DomainsConfig

	// Domain is nil for shared-scope capabilities
	Domain *config.Domain
}

// Capability declares one optional group of resources.
type Capability interface {
	// Name is the identifier used in logs and the version listing
	Name() string

	Scope() Scope

	// Enabled reports whether the target asks for this capability
	Enabled(t Target) bool

	// Declare adds the capability's resources to b
	Declare(ctx context.Context, b *stack.Builder, t Target) error
}

// ZoneRef returns the reference to the hosted zone of a domain stack.
func ZoneRef(b *stack.Builder) binder.Ref {
	return b.Ref(ZoneID)
}

// DefaultTTL returns the record TTL configured for the domain, zero when unset.
func DefaultTTL(d *config.Domain) time.Duration {
	ttl, _ := config.ParseTTL(d.DefaultTTL)
	return ttl
}

// ttlOr parses an explicit record TTL. Validation already rejected malformed
// values, so a parse failure falls back to the zone default.
func ttlOr(s string) time.Duration {
	ttl, err := config.ParseTTL(s)
	if err != nil {
		return 0
	}
	return ttl
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9]+`)

// logicalID joins parts into a stable resource id made of [a-z0-9-].
func logicalID(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = nonIDChars.ReplaceAllString(strings.ToLower(p), "-")
		p = strings.Trim(p, "-")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "-")
}
