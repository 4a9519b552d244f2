package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/jblukach/domains/pkg/capability"
	"github.com/jblukach/domains/pkg/graph"
)

const sampleSource = `package config

// Sample is a sample
// over two lines
type Sample struct {
	// Name is required
	Name string ` + "`yaml:\"name\"`" + `

	Tags    map[string]string ` + "`yaml:\"tags,omitempty\"`" + `
	Enabled *bool             ` + "`yaml:\"enabled\"`" + ` // optional pointer
	Items   []Item            ` + "`yaml:\"items,omitempty\"`" + `
	Skipped string            ` + "`yaml:\"-\"`" + `
	Untagged string
}

type Item struct {
	A, B int ` + "`yaml:\"value\"`" + `
}

type NotAStruct string
`

func TestParseStructs(t *testing.T) {
	structs, err := ParseStructs("sample.go", []byte(sampleSource))
	if err != nil {
		t.Fatalf("ParseStructs() unexpected error: %v", err)
	}
	if len(structs) != 2 {
		t.Fatalf("ParseStructs() found %d structs, want 2", len(structs))
	}

	sample := structs["Sample"]
	if sample.Doc != "Sample is a sample over two lines" {
		t.Errorf("Doc = %q", sample.Doc)
	}

	want := []FieldDoc{
		{Name: "Name", GoType: "string", YAMLKey: "name", Doc: "Name is required"},
		{Name: "Tags", GoType: "map[string]string", YAMLKey: "tags", Optional: true},
		{Name: "Enabled", GoType: "*bool", YAMLKey: "enabled", Optional: true, Doc: "optional pointer"},
		{Name: "Items", GoType: "[]Item", YAMLKey: "items", Optional: true},
	}
	if len(sample.Fields) != len(want) {
		t.Fatalf("Fields = %+v, want %d fields", sample.Fields, len(want))
	}
	for i := range want {
		if sample.Fields[i] != want[i] {
			t.Errorf("Fields[%d] = %+v, want %+v", i, sample.Fields[i], want[i])
		}
	}

	if got := len(structs["Item"].Fields); got != 2 {
		t.Errorf("Item fields = %d, want one per name", got)
	}
}

func TestParseStructs_Invalid(t *testing.T) {
	if _, err := ParseStructs("bad.go", []byte("package")); err == nil {
		t.Error("ParseStructs() should fail on invalid source")
	}
}

func TestYAMLType(t *testing.T) {
	tests := map[string]string{
		"string":            "string",
		"*bool":             "boolean",
		"int":               "integer",
		"[]string":          "list of string",
		"[]Site":            "list of [Site](#site)",
		"map[string]string": "map",
		"*Mail":             "[Mail](#mail)",
	}
	for in, want := range tests {
		if got := yamlType(in); got != want {
			t.Errorf("yamlType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateConfigDoc(t *testing.T) {
	var buf bytes.Buffer
	GenerateConfigDoc(&buf, "Mail", "Mail records.", []StructDoc{
		{Name: "DMARC", Doc: "DMARC policy", Fields: []FieldDoc{
			{YAMLKey: "value", GoType: "string", Doc: "p=reject | p=none"},
			{YAMLKey: "ttl", GoType: "string", Optional: true},
		}},
		{Name: "Empty"},
	})
	out := buf.String()

	for _, want := range []string{
		"# Mail\n\nMail records.\n\n",
		"## DMARC\n\nDMARC policy\n\n",
		"| `value` | string | Yes | p=reject \\| p=none |",
		"| `ttl` | string | No |  |",
		"## Empty\n\n_No keys._",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateResourceCatalog(t *testing.T) {
	var buf bytes.Buffer
	GenerateResourceCatalog(&buf, graph.Kinds(), []capability.Capability{capability.Zone{}, capability.SharedLogPolicy{}})
	out := buf.String()

	for _, want := range []string{
		"| HostedZone | Yes | `zone_name` |",
		"| Record | No | `record_name`, `record_type` |",
		"| Distribution | Yes | - |",
		"| zone | domain |",
		"| shared-log-policy | shared |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGenerate(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", configSource))
	if err != nil {
		t.Fatalf("failed to read config source: %v", err)
	}
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, filepath.Join("/repo", configSource), src, 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/repo/go.mod", []byte("module x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if root := findProjectRoot(fs, "/repo/cmd/docgen"); root != "/repo" {
		t.Errorf("findProjectRoot() = %q, want /repo", root)
	}

	written, err := generate(context.Background(), fs, "/repo", "/repo/docs")
	if err != nil {
		t.Fatalf("generate() unexpected error: %v", err)
	}
	if len(written) != len(pages)+2 {
		t.Errorf("generate() wrote %v", written)
	}

	site, err := afero.ReadFile(fs, "/repo/docs/site.md")
	if err != nil {
		t.Fatalf("site.md not written: %v", err)
	}
	if !strings.Contains(string(site), "| `domain_names` | list of string | Yes |") {
		t.Errorf("site.md:\n%s", site)
	}

	index, _ := afero.ReadFile(fs, "/repo/docs/README.md")
	if !strings.Contains(string(index), "(resources.md)") {
		t.Errorf("README.md:\n%s", index)
	}
}

func TestGenerate_MissingSource(t *testing.T) {
	if _, err := generate(context.Background(), afero.NewMemMapFs(), "/nowhere", "/out"); err == nil {
		t.Error("generate() should fail without the config source")
	}
}
