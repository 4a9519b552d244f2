package graph

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/jblukach/domains/pkg/errdefs"
)

func addr(id string) Address {
	return Address{Stack: "example", ID: id}
}

func mustAdd(t *testing.T, g *Graph, id string, kind Kind) {
	t.Helper()
	if _, err := g.AddNode(Node{Address: addr(id), Kind: kind}); err != nil {
		t.Fatalf("AddNode(%s) unexpected error: %v", id, err)
	}
}

func TestAddNode_Duplicate(t *testing.T) {
	g := New()
	mustAdd(t, g, "zone", KindHostedZone)

	_, err := g.AddNode(Node{Address: addr("zone"), Kind: KindHostedZone})
	if !errdefs.IsValidation(err) {
		t.Errorf("AddNode() error = %v, want ValidationError", err)
	}
}

func TestAddEdge_UnknownTarget(t *testing.T) {
	g := New()
	mustAdd(t, g, "record", KindRecord)

	err := g.AddEdge(addr("record"), addr("zone"))
	if !errdefs.IsUnresolvedReference(err) {
		t.Errorf("AddEdge() error = %v, want UnresolvedReferenceError", err)
	}
}

func TestTopoOrder(t *testing.T) {
	g := New()
	// declared out of dependency order on purpose
	mustAdd(t, g, "alias-a", KindRecord)
	mustAdd(t, g, "distribution", KindDistribution)
	mustAdd(t, g, "certificate", KindCertificate)
	mustAdd(t, g, "zone", KindHostedZone)
	mustAdd(t, g, "mx", KindRecord)

	edges := [][2]string{
		{"alias-a", "zone"},
		{"alias-a", "distribution"},
		{"distribution", "certificate"},
		{"certificate", "zone"},
		{"mx", "zone"},
	}
	for _, e := range edges {
		if err := g.AddEdge(addr(e[0]), addr(e[1])); err != nil {
			t.Fatalf("AddEdge() unexpected error: %v", err)
		}
	}

	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("TopoOrder() unexpected error: %v", err)
	}

	want := []string{"zone", "certificate", "distribution", "alias-a", "mx"}
	if len(order) != len(want) {
		t.Fatalf("TopoOrder() returned %d nodes, want %d", len(order), len(want))
	}
	for i, n := range order {
		if n.Address.ID != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, n.Address.ID, want[i])
		}
	}
}

func TestTopoOrder_Cycle(t *testing.T) {
	g := New()
	mustAdd(t, g, "certificate", KindCertificate)
	mustAdd(t, g, "validation", KindRecord)
	mustAdd(t, g, "zone", KindHostedZone)

	_ = g.AddEdge(addr("certificate"), addr("validation"))
	_ = g.AddEdge(addr("validation"), addr("zone"))
	_ = g.AddEdge(addr("zone"), addr("certificate"))

	_, err := g.TopoOrder()
	if !errdefs.IsCyclicDependency(err) {
		t.Fatalf("TopoOrder() error = %v, want CyclicDependencyError", err)
	}

	want := "cyclic dependency detected: example/certificate -> example/validation -> example/zone -> example/certificate"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestDependents(t *testing.T) {
	g := New()
	mustAdd(t, g, "zone", KindHostedZone)
	mustAdd(t, g, "a", KindRecord)
	mustAdd(t, g, "b", KindRecord)
	_ = g.AddEdge(addr("a"), addr("zone"))
	_ = g.AddEdge(addr("b"), addr("zone"))
	_ = g.AddEdge(addr("b"), addr("zone"))

	dependents := g.Dependents(addr("zone"))
	if len(dependents) != 2 || dependents[0].ID != "a" || dependents[1].ID != "b" {
		t.Errorf("Dependents() = %v", dependents)
	}
	if deps := g.Dependencies(addr("b")); len(deps) != 1 {
		t.Errorf("Dependencies() = %v, want one entry", deps)
	}
}

func TestImmutableProperties(t *testing.T) {
	props := ImmutableProperties(KindRecord)
	if len(props) != 2 {
		t.Fatalf("ImmutableProperties(Record) = %v", props)
	}
	props[0] = "changed"
	if ImmutableProperties(KindRecord)[0] != "record_name" {
		t.Error("ImmutableProperties returned shared slice")
	}
	if len(ImmutableProperties(KindDistribution)) != 0 {
		t.Error("distributions are updated in place")
	}
}

// Edges only point from a later node to an earlier one, so the graph is acyclic
// by construction and TopoOrder must always succeed.
func TestTopoOrder_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "nodes")
		g := New()
		for i := 0; i < n; i++ {
			if _, err := g.AddNode(Node{Address: addr(fmt.Sprintf("n%d", i)), Kind: KindRecord}); err != nil {
				t.Fatalf("AddNode: %v", err)
			}
		}
		edges := rapid.IntRange(0, n*2).Draw(t, "edges")
		for e := 0; e < edges; e++ {
			from := rapid.IntRange(0, n-1).Draw(t, fmt.Sprintf("from_%d", e))
			if from == 0 {
				continue
			}
			to := rapid.IntRange(0, from-1).Draw(t, fmt.Sprintf("to_%d", e))
			if err := g.AddEdge(addr(fmt.Sprintf("n%d", from)), addr(fmt.Sprintf("n%d", to))); err != nil {
				t.Fatalf("AddEdge: %v", err)
			}
		}

		order, err := g.TopoOrder()
		if err != nil {
			t.Fatalf("TopoOrder: %v", err)
		}
		position := make(map[Address]int, len(order))
		for i, node := range order {
			position[node.Address] = i
		}
		for _, node := range order {
			for _, dep := range g.Dependencies(node.Address) {
				if position[dep] >= position[node.Address] {
					t.Fatalf("%s ordered before its dependency %s", node.Address, dep)
				}
			}
		}
		if g.FindCycle() != nil {
			t.Fatal("FindCycle reported a cycle in an acyclic graph")
		}
	})
}
