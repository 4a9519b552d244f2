// Package stack groups resource declarations into deployment units and
// assembles them into an ordered, serializable assembly.
package stack

import (
	"maps"
	"time"

	"github.com/jblukach/domains/pkg/binder"
	"github.com/jblukach/domains/pkg/errdefs"
	"github.com/jblukach/domains/pkg/graph"
	"github.com/jblukach/domains/pkg/record"
)

// AccountToken stands in for the deployment account when it is not known at
// synthesis time.
const AccountToken = "${aws:account}"

// SharedContext carries the deployment-wide settings every stack builder sees.
type SharedContext struct {
	Account   string
	Region    string
	Qualifier string

	// Service is the namespace of exported parameters (/<service>/<key>)
	Service string

	// Tags is the organization-level tagging contract applied to every taggable resource
	Tags map[string]string
}

// AccountOrToken returns the account id or AccountToken when unset.
func (s SharedContext) AccountOrToken() string {
	if s.Account == "" {
		return AccountToken
	}
	return s.Account
}

type zoneRecords struct {
	ref binder.Ref
	set *record.Set
}

type entry struct {
	decl binder.Declaration

	// set for record declarations; properties are rendered from the record set
	// at assembly time so that merged round-robin values are included
	zone     string
	recordID string
}

// Builder accumulates the declarations of one stack.
type Builder struct {
	name    string
	shared  SharedContext
	imports []string
	entries []*entry
	byID    map[string]*entry
	zones   map[string]*zoneRecords
}

// NewBuilder creates a builder for stack name.
func NewBuilder(name string, shared SharedContext) *Builder {
	return &Builder{
		name:   name,
		shared: shared,
		byID:   make(map[string]*entry),
		zones:  make(map[string]*zoneRecords),
	}
}

// Name returns the stack name.
func (b *Builder) Name() string { return b.name }

// Shared returns the shared context the builder was created with.
func (b *Builder) Shared() SharedContext { return b.shared }

// Ref returns a reference to id in this stack.
func (b *Builder) Ref(id string) binder.Ref {
	return binder.Ref{Stack: b.name, ID: id}
}

// Has reports whether id has been declared in this stack.
func (b *Builder) Has(id string) bool {
	_, ok := b.byID[id]
	return ok
}

// Declare adds a resource. Properties may carry a "tags" entry of type
// map[string]string holding per-resource tags. Duplicate ids are reported when
// the stack is assembled.
func (b *Builder) Declare(id string, kind graph.Kind, props map[string]any, refs map[string]binder.Ref) binder.Ref {
	e := &entry{decl: binder.Declaration{
		Stack:      b.name,
		ID:         id,
		Kind:       kind,
		Properties: maps.Clone(props),
		Refs:       maps.Clone(refs),
	}}
	b.entries = append(b.entries, e)
	if _, exists := b.byID[id]; !exists {
		b.byID[id] = e
	}
	return b.Ref(id)
}

// Export makes id referenceable from stacks importing this one.
func (b *Builder) Export(id string) error {
	e, ok := b.byID[id]
	if !ok {
		return errdefs.Validationf(b.name+"/"+id, "export", "cannot export an undeclared resource")
	}
	e.decl.Exported = true
	return nil
}

// Import allows this stack to reference exported resources of stack.
func (b *Builder) Import(stack string) {
	for _, s := range b.imports {
		if s == stack {
			return
		}
	}
	b.imports = append(b.imports, stack)
}

// Imports returns the imported stacks in the order they were added.
func (b *Builder) Imports() []string {
	return append([]string(nil), b.imports...)
}

// UseZone registers zone as a target for AddRecord. zoneName is the DNS name
// records are qualified against.
func (b *Builder) UseZone(zone binder.Ref, zoneName string, defaultTTL time.Duration) {
	key := b.zoneKey(zone)
	if _, ok := b.zones[key]; ok {
		return
	}
	b.zones[key] = &zoneRecords{ref: zone, set: record.NewSet(zoneName, defaultTTL)}
}

// AddRecord validates spec and declares it as a Record resource depending on
// zone and on any extra refs. A record repeating an earlier (name, type) is
// merged into it; the returned ref then points at the earlier declaration.
func (b *Builder) AddRecord(zone binder.Ref, id string, spec record.Spec, refs map[string]binder.Ref) (binder.Ref, error) {
	key := b.zoneKey(zone)
	zr, ok := b.zones[key]
	if !ok {
		return binder.Ref{}, errdefs.Validationf(b.name+"/"+id, "zone", "zone %s is not registered with the stack", key)
	}

	stored, err := zr.set.Add(id, spec)
	if err != nil {
		return binder.Ref{}, err
	}
	if stored != id {
		return b.Ref(stored), nil
	}

	allRefs := maps.Clone(refs)
	if allRefs == nil {
		allRefs = make(map[string]binder.Ref, 1)
	}
	allRefs["zone"] = zone

	e := &entry{
		decl: binder.Declaration{
			Stack: b.name,
			ID:    id,
			Kind:  graph.KindRecord,
			Refs:  allRefs,
		},
		zone:     key,
		recordID: id,
	}
	b.entries = append(b.entries, e)
	if _, exists := b.byID[id]; !exists {
		b.byID[id] = e
	}
	return b.Ref(id), nil
}

// Declarations renders the stack's declarations in declaration order.
func (b *Builder) Declarations() []binder.Declaration {
	records := make(map[string]map[string]*record.Record, len(b.zones))
	for key, zr := range b.zones {
		byID := make(map[string]*record.Record, zr.set.Len())
		for _, e := range zr.set.Entries() {
			byID[e.ID] = e.Record
		}
		records[key] = byID
	}

	decls := make([]binder.Declaration, 0, len(b.entries))
	for _, e := range b.entries {
		d := e.decl
		if e.recordID != "" {
			d.Properties = recordProperties(b.zones[e.zone].ref, records[e.zone][e.recordID])
		}
		decls = append(decls, d)
	}
	return decls
}

func (b *Builder) zoneKey(zone binder.Ref) string {
	stack := zone.Stack
	if stack == "" {
		stack = b.name
	}
	return stack + "/" + zone.ID
}

func recordProperties(zone binder.Ref, rec *record.Record) map[string]any {
	props := map[string]any{
		"hosted_zone_id": zone.Token("id"),
		"record_name":    rec.Name(),
		"record_type":    string(rec.Type()),
	}
	if rec.IsAlias() {
		props["alias_target"] = rec.Alias()
		return props
	}
	props["values"] = rec.Values()
	props["ttl"] = int64(rec.TTL() / time.Second)
	return props
}
