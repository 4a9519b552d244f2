package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"
)

// StructDoc documents one configuration struct.
type StructDoc struct {
	Name   string
	Doc    string
	Fields []FieldDoc
}

// FieldDoc documents one YAML key.
type FieldDoc struct {
	Name     string
	GoType   string
	YAMLKey  string
	Optional bool
	Doc      string
}

// ParseStructs extracts every struct declared in src, keyed by name. Fields
// without a yaml tag or tagged "-" are not part of the file format and are
// skipped.
func ParseStructs(filename string, src []byte) (map[string]StructDoc, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	structs := make(map[string]StructDoc)
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			structType, ok := typeSpec.Type.(*ast.StructType)
			if !ok {
				continue
			}

			doc := StructDoc{Name: typeSpec.Name.Name}
			switch {
			case typeSpec.Doc != nil:
				doc.Doc = cleanComment(typeSpec.Doc.Text())
			case genDecl.Doc != nil:
				doc.Doc = cleanComment(genDecl.Doc.Text())
			}
			for _, field := range structType.Fields.List {
				doc.Fields = append(doc.Fields, parseField(field)...)
			}
			structs[doc.Name] = doc
		}
	}
	return structs, nil
}

func parseField(field *ast.Field) []FieldDoc {
	if field.Tag == nil || len(field.Names) == 0 {
		return nil
	}
	key, omitempty := yamlKey(field.Tag.Value)
	if key == "" || key == "-" {
		return nil
	}

	var comment string
	switch {
	case field.Doc != nil:
		comment = cleanComment(field.Doc.Text())
	case field.Comment != nil:
		comment = cleanComment(field.Comment.Text())
	}

	goType := typeToString(field.Type)
	docs := make([]FieldDoc, 0, len(field.Names))
	for _, name := range field.Names {
		docs = append(docs, FieldDoc{
			Name:     name.Name,
			GoType:   goType,
			YAMLKey:  key,
			Optional: omitempty || strings.HasPrefix(goType, "*"),
			Doc:      comment,
		})
	}
	return docs
}

// yamlKey returns the key of a raw struct tag and whether it is omitempty.
func yamlKey(raw string) (string, bool) {
	tag := reflect.StructTag(strings.Trim(raw, "`")).Get("yaml")
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			return parts[0], true
		}
	}
	return parts[0], false
}

func typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeToString(t.X)
	case *ast.ArrayType:
		return "[]" + typeToString(t.Elt)
	case *ast.MapType:
		return "map[" + typeToString(t.Key) + "]" + typeToString(t.Value)
	case *ast.SelectorExpr:
		return typeToString(t.X) + "." + t.Sel.Name
	default:
		return "any"
	}
}

// cleanComment joins a multi-line comment into one line.
func cleanComment(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
