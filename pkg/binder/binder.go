// Package binder resolves resource declarations and their references into a
// dependency graph.
//
// A reference may only target a declaration in the same stack or an exported
// declaration in a stack the referencing stack explicitly imports. Nothing is
// resolved through process-wide state.
package binder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/errdefs"
	"github.com/jblukach/domains/pkg/graph"
)

// Ref points at another declaration. An empty Stack means the referencing
// declaration's own stack.
type Ref struct {
	Stack string `json:"stack,omitempty" yaml:"stack,omitempty"`
	ID    string `json:"id" yaml:"id"`
}

// Token renders a placeholder for an attribute of the referenced resource that
// is only known after the apply engine creates it.
func (r Ref) Token(attr string) string {
	if r.Stack == "" {
		return fmt.Sprintf("${%s.%s}", r.ID, attr)
	}
	return fmt.Sprintf("${%s/%s.%s}", r.Stack, r.ID, attr)
}

// Declaration is a resource as declared by a stack builder.
type Declaration struct {
	Stack      string
	ID         string
	Kind       graph.Kind
	Properties map[string]any

	// Refs maps a role ("zone", "certificate", ...) to the declaration it depends on
	Refs map[string]Ref

	Exported bool
}

// Address returns the graph address of the declaration.
func (d Declaration) Address() graph.Address {
	return graph.Address{Stack: d.Stack, ID: d.ID}
}

// StackScope names a stack and the stacks whose exports it may reference.
type StackScope struct {
	Name    string
	Imports []string
}

// Bind validates the declarations against their scopes and builds the graph.
// Duplicate addresses are a ValidationError, references that cannot be
// resolved an UnresolvedReferenceError, and dependency cycles a
// CyclicDependencyError.
func Bind(ctx context.Context, scopes []StackScope, decls []Declaration) (*graph.Graph, error) {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "binder.Bind")
	defer span.End()

	span.SetAttributes(
		attribute.Int("binder.stacks", len(scopes)),
		attribute.Int("binder.declarations", len(decls)),
	)

	imports, err := indexScopes(scopes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	g := graph.New()
	for _, d := range decls {
		if _, ok := imports[d.Stack]; !ok {
			err := errdefs.Validationf(d.Address().String(), "stack", "stack %q is not declared", d.Stack)
			span.RecordError(err)
			return nil, err
		}
		if _, err := g.AddNode(graph.Node{
			Address:    d.Address(),
			Kind:       d.Kind,
			Properties: d.Properties,
			Exported:   d.Exported,
		}); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	for _, d := range decls {
		for _, role := range sortedRoles(d.Refs) {
			target, err := resolve(g, imports, d, role, d.Refs[role])
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			if err := g.AddEdge(d.Address(), target); err != nil {
				span.RecordError(err)
				return nil, err
			}
		}
	}

	if _, err := g.TopoOrder(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := checkConstraints(g); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("binder.nodes", g.Len()))
	return g, nil
}

func indexScopes(scopes []StackScope) (map[string]map[string]bool, error) {
	imports := make(map[string]map[string]bool, len(scopes))
	for _, s := range scopes {
		if s.Name == "" {
			return nil, errdefs.Validationf("", "stack", "stack name is required")
		}
		if _, exists := imports[s.Name]; exists {
			return nil, errdefs.Validationf(s.Name, "stack", "stack declared twice")
		}
		imports[s.Name] = make(map[string]bool, len(s.Imports))
	}
	for _, s := range scopes {
		for _, imp := range s.Imports {
			if imp == s.Name {
				return nil, errdefs.Validationf(s.Name, "imports", "stack cannot import itself")
			}
			if _, ok := imports[imp]; !ok {
				return nil, errdefs.Validationf(s.Name, "imports", "imported stack %q is not declared", imp)
			}
			imports[s.Name][imp] = true
		}
	}
	return imports, nil
}

func resolve(g *graph.Graph, imports map[string]map[string]bool, d Declaration, role string, ref Ref) (graph.Address, error) {
	from := d.Address().String()
	target := graph.Address{Stack: ref.Stack, ID: ref.ID}
	if target.Stack == "" {
		target.Stack = d.Stack
	}

	if target.Stack != d.Stack && !imports[d.Stack][target.Stack] {
		return graph.Address{}, &errdefs.UnresolvedReferenceError{
			From:   from,
			To:     target.String(),
			Reason: fmt.Sprintf("%s: stack %q is not imported by %q", role, target.Stack, d.Stack),
		}
	}

	node, ok := g.Node(target)
	if !ok {
		return graph.Address{}, &errdefs.UnresolvedReferenceError{
			From:   from,
			To:     target.String(),
			Reason: fmt.Sprintf("%s: no such resource", role),
		}
	}
	if target.Stack != d.Stack && !node.Exported {
		return graph.Address{}, &errdefs.UnresolvedReferenceError{
			From:   from,
			To:     target.String(),
			Reason: fmt.Sprintf("%s: resource is not exported", role),
		}
	}
	return target, nil
}

func sortedRoles(refs map[string]Ref) []string {
	roles := make([]string, 0, len(refs))
	for role := range refs {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// StringList reads a string-list property. Lists decoded from JSON or YAML
// arrive as []any.
func StringList(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// String reads a string property.
func String(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

// Covers reports whether a certificate name covers host: an exact match or a
// wildcard matching exactly one label.
func Covers(certName, host string) bool {
	certName = strings.ToLower(strings.TrimSuffix(certName, "."))
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if certName == host {
		return true
	}
	if suffix, ok := strings.CutPrefix(certName, "*."); ok {
		label, rest, found := strings.Cut(host, ".")
		return found && label != "" && rest == suffix
	}
	return false
}

// InZone reports whether name is the zone apex or lies below it. A leading
// wildcard label is ignored.
func InZone(name, zone string) bool {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(name, "*."), "."))
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	return name == zone || strings.HasSuffix(name, "."+zone)
}

func checkConstraints(g *graph.Graph) error {
	for _, n := range g.Nodes() {
		switch n.Kind {
		case graph.KindDistribution:
			if err := checkDistribution(g, n); err != nil {
				return err
			}
		case graph.KindCertificate:
			if err := checkCertificate(g, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func certificateNames(n *graph.Node) []string {
	names := []string{String(n.Properties, "domain_name")}
	return append(names, StringList(n.Properties, "subject_alternative_names")...)
}

func checkDistribution(g *graph.Graph, n *graph.Node) error {
	hosts := StringList(n.Properties, "domain_names")
	if len(hosts) == 0 {
		return nil
	}

	var certs []*graph.Node
	for _, dep := range g.Dependencies(n.Address) {
		if node, _ := g.Node(dep); node != nil && node.Kind == graph.KindCertificate {
			certs = append(certs, node)
		}
	}
	if len(certs) == 0 {
		return errdefs.Validationf(n.Address.String(), "domain_names", "custom domain names require a certificate")
	}

	for _, host := range hosts {
		covered := false
		for _, cert := range certs {
			for _, name := range certificateNames(cert) {
				if Covers(name, host) {
					covered = true
				}
			}
		}
		if !covered {
			return errdefs.Validationf(n.Address.String(), "domain_names", "%s is not covered by the certificate", host)
		}
	}
	return nil
}

func checkCertificate(g *graph.Graph, n *graph.Node) error {
	if String(n.Properties, "domain_name") == "" {
		return errdefs.Validationf(n.Address.String(), "domain_name", "certificate domain name is required")
	}
	for _, dep := range g.Dependencies(n.Address) {
		zone, _ := g.Node(dep)
		if zone == nil || zone.Kind != graph.KindHostedZone {
			continue
		}
		zoneName := String(zone.Properties, "zone_name")
		for _, name := range certificateNames(n) {
			if !InZone(name, zoneName) {
				return errdefs.Validationf(n.Address.String(), "domain_name", "%s cannot be validated through zone %s", name, zoneName)
			}
		}
	}
	return nil
}
