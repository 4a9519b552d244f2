//go:generate go run . -output docs/reference

// Command docgen generates the markdown reference for domains.yaml and the
// resource catalog of the assembly format.
//
// Usage:
//
//	go run ./cmd/docgen -output docs/reference
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/jblukach/domains/pkg/capability"
	"github.com/jblukach/domains/pkg/graph"
)

const configSource = "pkg/config/config.go"

// page is one generated reference page.
type page struct {
	file        string
	title       string
	description string
	structs     []string
}

var pages = []page{
	{
		file:        "config.md",
		title:       "Configuration",
		description: "Top-level keys of domains.yaml.",
		structs:     []string{"DomainsConfig", "SharedConfig"},
	},
	{
		file:        "domain.md",
		title:       "Domains",
		description: "One entry of `domains`: a hosted zone and the records published in it.",
		structs:     []string{"Domain", "QueryLogging", "Delegation", "Verification", "CNAME"},
	},
	{
		file:        "mail.md",
		title:       "Mail",
		description: "MX, SPF, DKIM and DMARC records of a domain.",
		structs:     []string{"Mail", "MX", "DKIM", "DMARC"},
	},
	{
		file:        "site.md",
		title:       "Sites",
		description: "Static websites served from a private bucket through the CDN.",
		structs:     []string{"Site", "Certificate", "ErrorResponse", "Bucket", "Content"},
	},
}

func main() {
	outputDir := flag.String("output", "docs/reference", "Output directory for generated documentation")
	rootDir := flag.String("root", "", "Root directory of the project (defaults to the enclosing module)")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	if *rootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("Failed to get working directory: %v", err)
		}
		*rootDir = findProjectRoot(afero.NewOsFs(), wd)
	}

	outPath := *outputDir
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(*rootDir, outPath)
	}
	if *verbose {
		log.Printf("Project root: %s", *rootDir)
		log.Printf("Output directory: %s", outPath)
	}

	written, err := generate(context.Background(), afero.NewOsFs(), *rootDir, outPath)
	if err != nil {
		log.Fatalf("Failed to generate documentation: %v", err)
	}
	if *verbose {
		for _, f := range written {
			log.Printf("Wrote %s", f)
		}
	}
	fmt.Printf("Documentation generated successfully in %s\n", outPath)
}

// generate writes every reference page, the resource catalog and an index
// into outPath and returns the written files.
func generate(ctx context.Context, fs afero.Fs, rootDir, outPath string) ([]string, error) {
	srcPath := filepath.Join(rootDir, configSource)
	src, err := afero.ReadFile(fs, srcPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", srcPath, err)
	}
	structs, err := ParseStructs(srcPath, src)
	if err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(outPath, 0750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(outPath, name)
		if err := afero.WriteFile(fs, path, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	for _, p := range pages {
		docs := make([]StructDoc, 0, len(p.structs))
		for _, name := range p.structs {
			doc, ok := structs[name]
			if !ok {
				return nil, fmt.Errorf("struct %s not found in %s", name, configSource)
			}
			docs = append(docs, doc)
		}
		var buf bytes.Buffer
		GenerateConfigDoc(&buf, p.title, p.description, docs)
		if err := write(p.file, buf.Bytes()); err != nil {
			return nil, err
		}
	}

	registry, err := capability.DefaultRegistry(ctx)
	if err != nil {
		return nil, err
	}
	var caps []capability.Capability
	for _, name := range registry.List(ctx) {
		c, err := registry.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	var buf bytes.Buffer
	GenerateResourceCatalog(&buf, graph.Kinds(), caps)
	if err := write("resources.md", buf.Bytes()); err != nil {
		return nil, err
	}

	if err := write("README.md", []byte(index())); err != nil {
		return nil, err
	}
	return written, nil
}

func index() string {
	var buf bytes.Buffer
	buf.WriteString("# Reference\n\n")
	buf.WriteString("> Generated by `go generate ./cmd/docgen`. Do not edit.\n\n")
	for _, p := range pages {
		fmt.Fprintf(&buf, "- [%s](%s) - %s\n", p.title, p.file, p.description)
	}
	buf.WriteString("- [Resource Catalog](resources.md) - resource kinds, tagging and replacement rules\n")
	return buf.String()
}

// findProjectRoot walks up the directory tree to find go.mod.
func findProjectRoot(fs afero.Fs, start string) string {
	dir := start
	for {
		if ok, _ := afero.Exists(fs, filepath.Join(dir, "go.mod")); ok {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}
