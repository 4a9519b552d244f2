// Package graph holds the typed resource dependency graph produced by the binder.
//
// An edge from A to B means A depends on B: B must exist before A is created
// and A must be removed before B is deleted.
package graph

import (
	"container/heap"
	"fmt"

	"github.com/jblukach/domains/pkg/errdefs"
)

// Kind is the resource kind of a node.
type Kind string

const (
	KindHostedZone        Kind = "HostedZone"
	KindRecord            Kind = "Record"
	KindCertificate       Kind = "Certificate"
	KindDistribution      Kind = "Distribution"
	KindOrigin            Kind = "Origin"
	KindParameter         Kind = "Parameter"
	KindLogGroup          Kind = "LogGroup"
	KindLogResourcePolicy Kind = "LogResourcePolicy"
	KindFunction          Kind = "Function"
	KindContentDeployment Kind = "ContentDeployment"
)

var immutableProperties = map[Kind][]string{
	KindHostedZone:        {"zone_name"},
	KindRecord:            {"record_name", "record_type"},
	KindCertificate:       {"domain_name", "subject_alternative_names"},
	KindParameter:         {"parameter_name"},
	KindLogGroup:          {"log_group_name"},
	KindLogResourcePolicy: {"policy_name"},
	KindOrigin:            {"bucket_name"},
	KindFunction:          {"function_name"},
}

// Kinds returns every resource kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindHostedZone,
		KindRecord,
		KindCertificate,
		KindDistribution,
		KindOrigin,
		KindParameter,
		KindLogGroup,
		KindLogResourcePolicy,
		KindFunction,
		KindContentDeployment,
	}
}

// ImmutableProperties returns the properties of kind whose change forces the
// resource to be replaced rather than updated in place.
func ImmutableProperties(kind Kind) []string {
	props := immutableProperties[kind]
	out := make([]string, len(props))
	copy(out, props)
	return out
}

// Taggable reports whether resources of kind carry tags.
func (k Kind) Taggable() bool {
	switch k {
	case KindHostedZone, KindCertificate, KindDistribution, KindOrigin, KindParameter, KindLogGroup:
		return true
	default:
		return false
	}
}

// Address identifies a node by stack and logical id.
type Address struct {
	Stack string
	ID    string
}

func (a Address) String() string {
	return a.Stack + "/" + a.ID
}

// Node is a declared resource.
type Node struct {
	Address    Address
	Kind       Kind
	Properties map[string]any
	Exported   bool

	// Seq is the declaration sequence number, assigned by AddNode
	Seq int
}

// Graph is a directed dependency graph over resource nodes.
type Graph struct {
	nodes      []*Node
	index      map[Address]*Node
	deps       map[Address][]Address
	dependents map[Address][]Address
	edges      map[[2]Address]bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index:      make(map[Address]*Node),
		deps:       make(map[Address][]Address),
		dependents: make(map[Address][]Address),
		edges:      make(map[[2]Address]bool),
	}
}

// AddNode adds n to the graph and assigns its declaration sequence.
func (g *Graph) AddNode(n Node) (*Node, error) {
	if n.Address.Stack == "" || n.Address.ID == "" {
		return nil, errdefs.Validationf(n.Address.String(), "address", "stack and id are required")
	}
	if _, exists := g.index[n.Address]; exists {
		return nil, errdefs.Validationf(n.Address.String(), "id", "resource declared twice")
	}

	node := n
	node.Seq = len(g.nodes)
	g.nodes = append(g.nodes, &node)
	g.index[node.Address] = &node
	return &node, nil
}

// AddEdge records that from depends on to. Repeated edges are ignored.
func (g *Graph) AddEdge(from, to Address) error {
	if _, ok := g.index[from]; !ok {
		return fmt.Errorf("edge source %s is not in the graph", from)
	}
	if _, ok := g.index[to]; !ok {
		return &errdefs.UnresolvedReferenceError{From: from.String(), To: to.String()}
	}

	key := [2]Address{from, to}
	if g.edges[key] {
		return nil
	}
	g.edges[key] = true
	g.deps[from] = append(g.deps[from], to)
	g.dependents[to] = append(g.dependents[to], from)
	return nil
}

// Node looks up a node by address.
func (g *Graph) Node(addr Address) (*Node, bool) {
	n, ok := g.index[addr]
	return n, ok
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Dependencies returns the nodes addr depends on, in the order the edges were added.
func (g *Graph) Dependencies(addr Address) []Address {
	return append([]Address(nil), g.deps[addr]...)
}

// Dependents returns the nodes depending on addr, in the order the edges were added.
func (g *Graph) Dependents(addr Address) []Address {
	return append([]Address(nil), g.dependents[addr]...)
}

// TopoOrder returns the nodes ordered so that every node follows its
// dependencies. Among nodes that are ready at the same time the one declared
// first wins, which makes the order deterministic.
func (g *Graph) TopoOrder() ([]*Node, error) {
	pending := make(map[Address]int, len(g.nodes))
	ready := &seqHeap{}
	for _, n := range g.nodes {
		pending[n.Address] = len(g.deps[n.Address])
		if pending[n.Address] == 0 {
			heap.Push(ready, n)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		order = append(order, n)
		for _, dependent := range g.dependents[n.Address] {
			pending[dependent]--
			if pending[dependent] == 0 {
				heap.Push(ready, g.index[dependent])
			}
		}
	}

	if len(order) != len(g.nodes) {
		cycle := g.FindCycle()
		path := make([]string, len(cycle))
		for i, a := range cycle {
			path[i] = a.String()
		}
		return nil, &errdefs.CyclicDependencyError{Cycle: path}
	}
	return order, nil
}

// FindCycle returns one dependency cycle, starting and ending with the same
// address, or nil when the graph is acyclic.
func (g *Graph) FindCycle() []Address {
	const (
		white = iota
		grey
		black
	)
	color := make(map[Address]int, len(g.nodes))
	var stack []Address
	var cycle []Address

	var visit func(a Address) bool
	visit = func(a Address) bool {
		color[a] = grey
		stack = append(stack, a)
		for _, dep := range g.deps[a] {
			switch color[dep] {
			case grey:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]Address(nil), stack[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[a] = black
		return false
	}

	for _, n := range g.nodes {
		if color[n.Address] == white && visit(n.Address) {
			return cycle
		}
	}
	return nil
}

type seqHeap []*Node

func (h seqHeap) Len() int           { return len(h) }
func (h seqHeap) Less(i, j int) bool { return h[i].Seq < h[j].Seq }
func (h seqHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *seqHeap) Push(x any)        { *h = append(*h, x.(*Node)) }
func (h *seqHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
