package record

import (
	"fmt"
	"time"

	"github.com/jblukach/domains/pkg/errdefs"
)

// Entry is a record together with the identifier it was first declared under.
type Entry struct {
	ID     string
	Record *Record
}

type setKey struct {
	name string
	typ  Type
}

// Set collects the records of one hosted zone and enforces DNS uniqueness:
// at most one record set per (name, type). A repeated (name, type) declaration
// is merged into the first one when the type is multi-valued and both share the
// same TTL (round-robin); anything else is a ValidationError. A CNAME may not
// coexist with any other type at the same name.
type Set struct {
	zone       string
	defaultTTL time.Duration
	entries    []Entry
	index      map[setKey]int
	ids        map[string]bool
	names      map[string]map[Type]bool
}

// NewSet creates an empty record set for zone.
func NewSet(zone string, defaultTTL time.Duration) *Set {
	return &Set{
		zone:       Normalize(zone),
		defaultTTL: defaultTTL,
		index:      make(map[setKey]int),
		ids:        make(map[string]bool),
		names:      make(map[string]map[Type]bool),
	}
}

// Zone returns the zone name the set belongs to.
func (s *Set) Zone() string { return s.zone }

// DefaultTTL returns the TTL applied to records declared without one.
func (s *Set) DefaultTTL() time.Duration { return s.defaultTTL }

// Add validates spec and adds it under id. It returns the id the record ended
// up stored under, which differs from id when the record was merged into an
// existing round-robin set.
func (s *Set) Add(id string, spec Spec) (string, error) {
	if id == "" {
		return "", errdefs.Validationf(spec.Name, "id", "record id is required")
	}
	if s.ids[id] {
		return "", errdefs.Validationf(id, "id", "record id declared twice in zone %s", s.zone)
	}

	rec, err := New(s.zone, spec, s.defaultTTL)
	if err != nil {
		return "", err
	}

	resource := fmt.Sprintf("%s %s", rec.Name(), rec.Type())
	types := s.names[rec.Name()]
	if rec.Type() == TypeCNAME {
		for other := range types {
			if other != TypeCNAME {
				return "", errdefs.Validationf(resource, "type", "CNAME cannot coexist with %s at the same name", other)
			}
		}
	} else if types[TypeCNAME] {
		return "", errdefs.Validationf(resource, "type", "name already holds a CNAME record")
	}

	key := setKey{name: rec.Name(), typ: rec.Type()}
	if i, exists := s.index[key]; exists {
		merged, err := merge(s.entries[i].Record, rec)
		if err != nil {
			return "", errdefs.Validationf(resource, "values", "%v", err)
		}
		s.entries[i].Record = merged
		s.ids[id] = true
		return s.entries[i].ID, nil
	}

	s.index[key] = len(s.entries)
	s.entries = append(s.entries, Entry{ID: id, Record: rec})
	s.ids[id] = true
	if types == nil {
		types = make(map[Type]bool)
		s.names[rec.Name()] = types
	}
	types[rec.Type()] = true
	return id, nil
}

// Entries returns the records in declaration order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of record sets.
func (s *Set) Len() int { return len(s.entries) }

func merge(existing, added *Record) (*Record, error) {
	if existing.IsAlias() || added.IsAlias() {
		return nil, fmt.Errorf("duplicate alias record set")
	}
	if !existing.Type().AllowsMultipleValues() {
		return nil, fmt.Errorf("duplicate %s record set", existing.Type())
	}
	if existing.TTL() != added.TTL() {
		return nil, fmt.Errorf("round-robin values must share a TTL, got %s and %s", existing.TTL(), added.TTL())
	}

	values := existing.Values()
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		seen[v] = true
	}
	for _, v := range added.values {
		if !seen[v] {
			values = append(values, v)
			seen[v] = true
		}
	}

	return &Record{name: existing.name, typ: existing.typ, values: values, ttl: existing.ttl}, nil
}
