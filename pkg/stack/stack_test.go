package stack

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jblukach/domains/pkg/binder"
	"github.com/jblukach/domains/pkg/errdefs"
	"github.com/jblukach/domains/pkg/graph"
	"github.com/jblukach/domains/pkg/record"
)

func testShared() SharedContext {
	return SharedContext{
		Region:    "us-east-1",
		Qualifier: "lukach",
		Service:   "route53",
		Tags:      map[string]string{"Org": "lukach.io", "Alias": "domains"},
	}
}

func buildExample(t *testing.T) []*Builder {
	t.Helper()
	shared := testShared()

	sharedStack := NewBuilder("shared", shared)
	sharedStack.Declare("logspolicy", graph.KindLogResourcePolicy, map[string]any{"policy_name": "Route53LogsPolicy"}, nil)
	if err := sharedStack.Export("logspolicy"); err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}

	b := NewBuilder("example", shared)
	b.Import("shared")
	// declared before the zone on purpose
	b.Declare("logs", graph.KindLogGroup, map[string]any{
		"log_group_name": "/aws/route53/example",
		"tags":           map[string]string{"Org": "override-attempt", "Team": "dns"},
	}, map[string]binder.Ref{"policy": {Stack: "shared", ID: "logspolicy"}})
	zone := b.Declare("hostzone", graph.KindHostedZone, map[string]any{"zone_name": "example.com"}, nil)
	b.UseZone(zone, "example.com", 0)

	if _, err := b.AddRecord(zone, "mx-1", record.Spec{Type: record.TypeMX, Values: []string{"10 mx01.example.net"}}, nil); err != nil {
		t.Fatalf("AddRecord() unexpected error: %v", err)
	}
	ref, err := b.AddRecord(zone, "mx-2", record.Spec{Type: record.TypeMX, Values: []string{"10 mx02.example.net"}}, nil)
	if err != nil {
		t.Fatalf("AddRecord() unexpected error: %v", err)
	}
	if ref.ID != "mx-1" {
		t.Errorf("merged record ref = %q, want mx-1", ref.ID)
	}

	// a domain stack declared before the shared stack it imports
	return []*Builder{b, sharedStack}
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()

	a, err := Assemble(ctx, testShared(), buildExample(t))
	if err != nil {
		t.Fatalf("Assemble() unexpected error: %v", err)
	}

	if a.Account != AccountToken {
		t.Errorf("Account = %q, want %q", a.Account, AccountToken)
	}
	if len(a.Stacks) != 2 || a.Stacks[0].Name != "shared" || a.Stacks[1].Name != "example" {
		t.Fatalf("stack order = %+v, want shared then example", a.Stacks)
	}
	if len(a.Stacks[0].Exports) != 1 || a.Stacks[0].Exports[0] != "logspolicy" {
		t.Errorf("shared exports = %v", a.Stacks[0].Exports)
	}

	example := a.Stacks[1]
	var ids []string
	for _, r := range example.Resources {
		ids = append(ids, r.ID)
	}
	want := []string{"logs", "hostzone", "mx-1"}
	if len(ids) != len(want) {
		t.Fatalf("resource ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("resource[%d] = %s, want %s", i, ids[i], want[i])
		}
	}

	mx, _ := example.Resource("mx-1")
	values, _ := mx.Properties["values"].([]string)
	if len(values) != 2 {
		t.Errorf("merged MX values = %v, want two values", mx.Properties["values"])
	}
	if mx.Tags != nil {
		t.Errorf("records are not taggable, got tags %v", mx.Tags)
	}
	if len(mx.DependsOn) != 1 || mx.DependsOn[0] != "example/hostzone" {
		t.Errorf("mx DependsOn = %v", mx.DependsOn)
	}

	logs, _ := example.Resource("logs")
	if logs.Tags["Org"] != "lukach.io" {
		t.Errorf("base tag Org = %q, want lukach.io", logs.Tags["Org"])
	}
	if logs.Tags["Team"] != "dns" {
		t.Errorf("resource tag Team = %q, want dns", logs.Tags["Team"])
	}
	if logs.Tags[TagStack] != "example" {
		t.Errorf("stack tag = %q, want example", logs.Tags[TagStack])
	}
	if _, ok := logs.Properties["tags"]; ok {
		t.Error("tags property should be lifted out of properties")
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	ctx := context.Background()

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		a, err := Assemble(ctx, testShared(), buildExample(t))
		if err != nil {
			t.Fatalf("Assemble() unexpected error: %v", err)
		}
		for _, format := range []string{FormatJSON, FormatYAML} {
			data, err := a.Encode(format)
			if err != nil {
				t.Fatalf("Encode(%s) unexpected error: %v", format, err)
			}
			outputs = append(outputs, data)
		}
	}

	for i := 2; i < len(outputs); i++ {
		if !bytes.Equal(outputs[i], outputs[i%2]) {
			t.Fatalf("encoding %d differs from the first run", i)
		}
	}
}

func TestDecodeAssembly(t *testing.T) {
	a, err := Assemble(context.Background(), testShared(), buildExample(t))
	if err != nil {
		t.Fatalf("Assemble() unexpected error: %v", err)
	}
	data, err := a.Encode(FormatJSON)
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}

	decoded, err := DecodeAssembly(data, FormatJSON)
	if err != nil {
		t.Fatalf("DecodeAssembly() unexpected error: %v", err)
	}
	again, err := decoded.Encode(FormatJSON)
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("decoded assembly does not re-encode to the same bytes")
	}

	if _, err := DecodeAssembly([]byte(`{"version":"0"}`), FormatJSON); err == nil {
		t.Error("DecodeAssembly() should reject unknown versions")
	}
}

func TestAssemble_ImportCycle(t *testing.T) {
	shared := testShared()
	a := NewBuilder("a", shared)
	b := NewBuilder("b", shared)
	a.Import("b")
	b.Import("a")

	_, err := Assemble(context.Background(), shared, []*Builder{a, b})
	if !errdefs.IsCyclicDependency(err) {
		t.Errorf("Assemble() error = %v, want CyclicDependencyError", err)
	}
}

func TestAssemble_CrossStackCertificateCycle(t *testing.T) {
	shared := testShared()

	declare := func(name, zoneName, other string) *Builder {
		b := NewBuilder(name, shared)
		b.Import(other)
		zone := b.Declare("hostzone", graph.KindHostedZone, map[string]any{"zone_name": zoneName}, nil)
		b.UseZone(zone, zoneName, 0)
		b.Declare("certificate", graph.KindCertificate, map[string]any{"domain_name": zoneName}, map[string]binder.Ref{
			"zone":       zone,
			"validation": {Stack: other, ID: "validation"},
		})
		spec := record.Spec{Name: "_acme", Type: record.TypeCNAME, Values: []string{"_token.acm-validations.aws"}}
		if _, err := b.AddRecord(zone, "validation", spec, map[string]binder.Ref{"certificate": {Stack: other, ID: "certificate"}}); err != nil {
			t.Fatalf("AddRecord() unexpected error: %v", err)
		}
		for _, id := range []string{"certificate", "validation"} {
			if err := b.Export(id); err != nil {
				t.Fatalf("Export(%s) unexpected error: %v", id, err)
			}
		}
		return b
	}

	a := declare("a", "a.example", "b")
	b := declare("b", "b.example", "a")

	_, err := Assemble(context.Background(), shared, []*Builder{a, b})
	if !errdefs.IsCyclicDependency(err) {
		t.Fatalf("Assemble() error = %v, want CyclicDependencyError", err)
	}
	var cycle *errdefs.CyclicDependencyError
	if errors.As(err, &cycle) && len(cycle.Cycle) < 3 {
		t.Errorf("Cycle = %v, want a path through both stacks", cycle.Cycle)
	}
}

func TestBuilder_Errors(t *testing.T) {
	b := NewBuilder("example", testShared())

	if err := b.Export("missing"); !errdefs.IsValidation(err) {
		t.Errorf("Export() error = %v, want ValidationError", err)
	}

	zone := b.Ref("hostzone")
	if _, err := b.AddRecord(zone, "www", record.Spec{Name: "www", Type: record.TypeA, Values: []string{"192.0.2.1"}}, nil); !errdefs.IsValidation(err) {
		t.Errorf("AddRecord() on unregistered zone error = %v, want ValidationError", err)
	}

	b.Declare("hostzone", graph.KindHostedZone, map[string]any{"zone_name": "example.com"}, nil)
	b.UseZone(zone, "example.com", 0)
	if _, err := b.AddRecord(zone, "www", record.Spec{Name: "www", Type: record.TypeA}, nil); !errdefs.IsValidation(err) {
		t.Errorf("AddRecord() with no values error = %v, want ValidationError", err)
	}
}

func TestMergeTags(t *testing.T) {
	ctx := context.Background()
	base := GenerateBaseTags(ctx, testShared(), "example", graph.KindHostedZone)

	merged := MergeTags(ctx, base, map[string]string{TagManagedBy: "someone-else", "Extra": "x"})
	if merged[TagManagedBy] != ManagedByValue {
		t.Errorf("base tags must win, got %q", merged[TagManagedBy])
	}
	if merged["Extra"] != "x" {
		t.Error("resource tag dropped")
	}
	if merged[TagResourceType] != "hostedzone" {
		t.Errorf("resource type tag = %q", merged[TagResourceType])
	}
}
