package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jblukach/domains/pkg/capability"
	"github.com/jblukach/domains/pkg/graph"
)

// MarkdownGenerator writes reference documentation.
type MarkdownGenerator struct {
	w io.Writer
}

// NewMarkdownGenerator creates a new markdown generator.
func NewMarkdownGenerator(w io.Writer) *MarkdownGenerator {
	return &MarkdownGenerator{w: w}
}

// printf writes formatted output, ignoring errors (doc generation is best-effort).
func (g *MarkdownGenerator) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(g.w, format, args...)
}

// WriteHeader writes the document header.
func (g *MarkdownGenerator) WriteHeader(title, description string) {
	g.printf("# %s\n\n", title)
	if description != "" {
		g.printf("%s\n\n", description)
	}
	g.printf("> Generated by `go generate ./cmd/docgen`. Do not edit.\n\n")
}

// WriteStruct writes the key table of one struct.
func (g *MarkdownGenerator) WriteStruct(doc StructDoc) {
	g.printf("## %s\n\n", doc.Name)
	if doc.Doc != "" {
		g.printf("%s\n\n", doc.Doc)
	}
	if len(doc.Fields) == 0 {
		g.printf("_No keys._\n\n")
		return
	}

	g.printf("| Key | Type | Required | Description |\n")
	g.printf("|-----|------|----------|-------------|\n")
	for _, f := range doc.Fields {
		required := "Yes"
		if f.Optional {
			required = "No"
		}
		desc := strings.ReplaceAll(f.Doc, "|", "\\|")
		g.printf("| `%s` | %s | %s | %s |\n", f.YAMLKey, yamlType(f.GoType), required, desc)
	}
	g.printf("\n")
}

// yamlType describes a Go field type in file-format terms.
func yamlType(goType string) string {
	goType = strings.TrimPrefix(goType, "*")
	switch {
	case strings.HasPrefix(goType, "[]"):
		return "list of " + yamlType(goType[2:])
	case strings.HasPrefix(goType, "map["):
		return "map"
	}
	switch goType {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	case "int", "int64":
		return "integer"
	default:
		return fmt.Sprintf("[%s](#%s)", goType, strings.ToLower(goType))
	}
}

// GenerateConfigDoc writes the reference page of a group of structs.
func GenerateConfigDoc(w io.Writer, title, description string, docs []StructDoc) {
	gen := NewMarkdownGenerator(w)
	gen.WriteHeader(title, description)
	for _, doc := range docs {
		gen.WriteStruct(doc)
	}
}

// GenerateResourceCatalog writes the resource kinds an assembly may contain
// and the capabilities that declare them.
func GenerateResourceCatalog(w io.Writer, kinds []graph.Kind, capabilities []capability.Capability) {
	gen := NewMarkdownGenerator(w)
	gen.WriteHeader("Resource Catalog", "Resource kinds emitted into an assembly. Changing an immutable property replaces the resource instead of updating it.")

	gen.printf("| Kind | Tagged | Immutable properties |\n")
	gen.printf("|------|--------|----------------------|\n")
	for _, k := range kinds {
		tagged := "No"
		if k.Taggable() {
			tagged = "Yes"
		}
		immutable := graph.ImmutableProperties(k)
		slices.Sort(immutable)
		cell := "-"
		if len(immutable) > 0 {
			cell = "`" + strings.Join(immutable, "`, `") + "`"
		}
		gen.printf("| %s | %s | %s |\n", k, tagged, cell)
	}
	gen.printf("\n## Capabilities\n\n")
	gen.printf("Capabilities run in registration order. Shared capabilities populate the shared stack.\n\n")
	gen.printf("| Capability | Scope |\n")
	gen.printf("|------------|-------|\n")
	for _, c := range capabilities {
		gen.printf("| %s | %s |\n", c.Name(), c.Scope())
	}
	gen.printf("\n")
}
