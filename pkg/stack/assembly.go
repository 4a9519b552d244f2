package stack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/binder"
	"github.com/jblukach/domains/pkg/errdefs"
	"github.com/jblukach/domains/pkg/graph"
)

// FormatVersion is the assembly document version.
const FormatVersion = "1"

// Supported encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Assembly is the synthesized output handed to the apply engine.
type Assembly struct {
	Version   string  `json:"version" yaml:"version"`
	Account   string  `json:"account" yaml:"account"`
	Region    string  `json:"region" yaml:"region"`
	Qualifier string  `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	Service   string  `json:"service" yaml:"service"`
	Stacks    []Stack `json:"stacks" yaml:"stacks"`
}

// Stack is one independently deployable unit.
type Stack struct {
	Name      string     `json:"name" yaml:"name"`
	Imports   []string   `json:"imports,omitempty" yaml:"imports,omitempty"`
	Exports   []string   `json:"exports,omitempty" yaml:"exports,omitempty"`
	Resources []Resource `json:"resources" yaml:"resources"`
}

// Resource is a declared resource in creation order.
type Resource struct {
	ID         string            `json:"id" yaml:"id"`
	Kind       graph.Kind        `json:"kind" yaml:"kind"`
	Properties map[string]any    `json:"properties,omitempty" yaml:"properties,omitempty"`
	DependsOn  []string          `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Tags       map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Stack looks up a stack by name.
func (a *Assembly) Stack(name string) (*Stack, bool) {
	for i := range a.Stacks {
		if a.Stacks[i].Name == name {
			return &a.Stacks[i], true
		}
	}
	return nil, false
}

// Count returns the number of resources of kind across all stacks.
func (a *Assembly) Count(kind graph.Kind) int {
	n := 0
	for _, s := range a.Stacks {
		for _, r := range s.Resources {
			if r.Kind == kind {
				n++
			}
		}
	}
	return n
}

// Resource looks up a resource by id.
func (s *Stack) Resource(id string) (*Resource, bool) {
	for i := range s.Resources {
		if s.Resources[i].ID == id {
			return &s.Resources[i], true
		}
	}
	return nil, false
}

// Assemble binds the declarations of all builders and produces the assembly.
// Stacks are ordered so that imported stacks come first; resources inside a
// stack follow their dependencies. Ties keep declaration order.
func Assemble(ctx context.Context, shared SharedContext, builders []*Builder) (*Assembly, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "stack.Assemble")
	defer span.End()

	span.SetAttributes(attribute.Int("stack.count", len(builders)))

	scopes := make([]binder.StackScope, 0, len(builders))
	var decls []binder.Declaration
	for _, b := range builders {
		scopes = append(scopes, binder.StackScope{Name: b.Name(), Imports: b.Imports()})
		decls = append(decls, b.Declarations()...)
	}

	g, err := binder.Bind(ctx, scopes, decls)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	stackOrder, err := orderStacks(scopes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	byStack, err := orderResources(g)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	assembly := &Assembly{
		Version:   FormatVersion,
		Account:   shared.AccountOrToken(),
		Region:    shared.Region,
		Qualifier: shared.Qualifier,
		Service:   shared.Service,
		Stacks:    make([]Stack, 0, len(stackOrder)),
	}

	for _, scope := range stackOrder {
		st := Stack{
			Name:      scope.Name,
			Imports:   scope.Imports,
			Resources: make([]Resource, 0, len(byStack[scope.Name])),
		}
		for _, n := range byStack[scope.Name] {
			st.Resources = append(st.Resources, buildResource(ctx, shared, g, n))
			if n.Exported {
				st.Exports = append(st.Exports, n.Address.ID)
			}
		}
		assembly.Stacks = append(assembly.Stacks, st)
	}

	span.SetAttributes(attribute.Int("stack.resources", g.Len()))
	return assembly, nil
}

func buildResource(ctx context.Context, shared SharedContext, g *graph.Graph, n *graph.Node) Resource {
	props := maps.Clone(n.Properties)
	resourceTags, _ := props["tags"].(map[string]string)
	delete(props, "tags")
	if len(props) == 0 {
		props = nil
	}

	r := Resource{
		ID:         n.Address.ID,
		Kind:       n.Kind,
		Properties: props,
	}
	for _, dep := range g.Dependencies(n.Address) {
		r.DependsOn = append(r.DependsOn, dep.String())
	}
	if n.Kind.Taggable() {
		r.Tags = MergeTags(ctx, GenerateBaseTags(ctx, shared, n.Address.Stack, n.Kind), resourceTags)
	}
	return r
}

// orderResources orders the resources of each stack by their dependencies
// inside that stack. Cross-stack dependencies are satisfied by stack order.
func orderResources(g *graph.Graph) (map[string][]*graph.Node, error) {
	perStack := make(map[string]*graph.Graph)
	var stacks []string
	for _, n := range g.Nodes() {
		sub, ok := perStack[n.Address.Stack]
		if !ok {
			sub = graph.New()
			perStack[n.Address.Stack] = sub
			stacks = append(stacks, n.Address.Stack)
		}
		if _, err := sub.AddNode(*n); err != nil {
			return nil, err
		}
	}

	out := make(map[string][]*graph.Node, len(stacks))
	for _, name := range stacks {
		sub := perStack[name]
		for _, n := range sub.Nodes() {
			for _, dep := range g.Dependencies(n.Address) {
				if dep.Stack != name {
					continue
				}
				if err := sub.AddEdge(n.Address, dep); err != nil {
					return nil, err
				}
			}
		}
		order, err := sub.TopoOrder()
		if err != nil {
			return nil, err
		}
		out[name] = order
	}
	return out, nil
}

// orderStacks sorts stacks so that every stack follows the stacks it imports.
func orderStacks(scopes []binder.StackScope) ([]binder.StackScope, error) {
	g := graph.New()
	for _, s := range scopes {
		if _, err := g.AddNode(graph.Node{Address: stackAddress(s.Name)}); err != nil {
			return nil, err
		}
	}
	for _, s := range scopes {
		for _, imp := range s.Imports {
			if err := g.AddEdge(stackAddress(s.Name), stackAddress(imp)); err != nil {
				return nil, err
			}
		}
	}

	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]binder.StackScope, len(scopes))
	for _, s := range scopes {
		byName[s.Name] = s
	}
	out := make([]binder.StackScope, 0, len(order))
	for _, n := range order {
		out = append(out, byName[n.Address.ID])
	}
	return out, nil
}

func stackAddress(name string) graph.Address {
	return graph.Address{Stack: "stacks", ID: name}
}

// Encode renders the assembly in format. Identical assemblies encode to
// identical bytes: map keys are always emitted in sorted order.
func (a *Assembly) Encode(format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return nil, fmt.Errorf("failed to encode assembly as JSON: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		data, err := yaml.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode assembly as YAML: %w", err)
		}
		return data, nil
	default:
		return nil, errdefs.Validationf("", "format", "unsupported output format %q", format)
	}
}

// Encode renders a single stack in format.
func (s *Stack) Encode(format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("failed to encode stack %s as JSON: %w", s.Name, err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode stack %s as YAML: %w", s.Name, err)
		}
		return data, nil
	default:
		return nil, errdefs.Validationf(s.Name, "format", "unsupported output format %q", format)
	}
}

// DecodeAssembly parses an assembly previously produced by Encode.
func DecodeAssembly(data []byte, format string) (*Assembly, error) {
	var a Assembly
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to decode assembly JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to decode assembly YAML: %w", err)
		}
	default:
		return nil, errdefs.Validationf("", "format", "unsupported input format %q", format)
	}
	if a.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported assembly version %q", a.Version)
	}
	return &a, nil
}
