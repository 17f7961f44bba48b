/*
 * Gradient - The gradually-typed programming language
 *
 * Copyright Gradient Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// The gen tool renders the Lawyer's rule manifest, compat_rules.yaml,
// into the checked-in registry table compat_rules.gen.go. The manifest
// is the single place the consultation order and the profile gates are
// written down; the table is never edited by hand.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/token"
	"os"
	"text/template"
	"unicode"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/goccy/go-yaml"
	"golang.org/x/tools/imports"
)

const headerTemplate = `// Code generated from {{ . }}. DO NOT EDIT.
/*
 * Gradient - The gradually-typed programming language
 *
 * Copyright Gradient Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

`

var parsedHeaderTemplate = template.Must(template.New("header").Parse(headerTemplate))

type manifest struct {
	Rules []rule `yaml:"rules"`
}

type rule struct {
	Name   string `yaml:"name"`
	Method string `yaml:"method"`
	Gate   string `yaml:"gate"`
	Doc    string `yaml:"doc"`
}

func (r rule) validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule without a name")
	}
	if r.Method == "" && r.Gate == "" {
		return fmt.Errorf("rule %s has neither a method nor a gate", r.Name)
	}
	return nil
}

func main() {
	rulesPath := flag.String("rules", "compat_rules.yaml", "path to the rule manifest")
	outputPath := flag.String("output", "compat_rules.gen.go", "path to the generated registry")
	flag.Parse()

	data, err := os.ReadFile(*rulesPath)
	if err != nil {
		panic(err)
	}

	var m manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.Strict()); err != nil {
		panic(fmt.Errorf("invalid rule manifest %s: %w", *rulesPath, err))
	}
	if len(m.Rules) == 0 {
		panic(fmt.Errorf("rule manifest %s declares no rules", *rulesPath))
	}
	for _, r := range m.Rules {
		if err := r.validate(); err != nil {
			panic(fmt.Errorf("invalid rule manifest %s: %w", *rulesPath, err))
		}
	}

	var buf bytes.Buffer
	if err := parsedHeaderTemplate.Execute(&buf, *rulesPath); err != nil {
		panic(err)
	}
	if err := decorator.Fprint(&buf, registryFile(&m)); err != nil {
		panic(err)
	}

	formatted, err := imports.Process(*outputPath, buf.Bytes(), nil)
	if err != nil {
		panic(fmt.Errorf("generated registry does not format: %w", err))
	}

	if err := os.WriteFile(*outputPath, formatted, 0o644); err != nil {
		panic(err)
	}
}

func registryFile(m *manifest) *dst.File {
	return &dst.File{
		Name: dst.NewIdent("sema"),
		Decls: []dst.Decl{
			registryDeclaration(m),
		},
	}
}

func registryDeclaration(m *manifest) dst.Decl {
	entries := make([]dst.Expr, 0, len(m.Rules))
	for _, r := range m.Rules {
		entries = append(entries, ruleEntry(r))
	}

	declaration := &dst.GenDecl{
		Tok: token.VAR,
		Specs: []dst.Spec{
			&dst.ValueSpec{
				Names: []*dst.Ident{
					dst.NewIdent("compatRules"),
				},
				Values: []dst.Expr{
					&dst.CompositeLit{
						Type: &dst.ArrayType{
							Len: &dst.Ellipsis{},
							Elt: dst.NewIdent("compatRule"),
						},
						Elts: entries,
					},
				},
			},
		},
	}
	declaration.Decorations().Start.Append(
		"// compatRules is the Lawyer's rule registry, in consultation order.",
	)
	return declaration
}

func ruleEntry(r rule) dst.Expr {
	fields := []dst.Expr{
		registryField("name", stringLit(r.Name)),
	}
	if r.Gate != "" {
		fields = append(fields, registryField("gate", gateFunc(r.Gate)))
	}
	if r.Method != "" {
		fields = append(fields, registryField("apply", methodExpr(r.Method)))
	}

	entry := &dst.CompositeLit{
		Elts: fields,
	}
	entry.Decorations().Before = dst.NewLine
	entry.Decorations().After = dst.NewLine
	if r.Doc != "" {
		entry.Decorations().Start.Append("// " + r.Doc)
	}
	return entry
}

func registryField(name string, value dst.Expr) dst.Expr {
	field := &dst.KeyValueExpr{
		Key:   dst.NewIdent(name),
		Value: value,
	}
	field.Decorations().Before = dst.NewLine
	field.Decorations().After = dst.NewLine
	return field
}

// gateFunc renders a profile flag name from the manifest into a gate
// closure over the matching CompatProfile field.
func gateFunc(flagName string) dst.Expr {
	returnStatement := &dst.ReturnStmt{
		Results: []dst.Expr{
			&dst.SelectorExpr{
				X:   dst.NewIdent("p"),
				Sel: dst.NewIdent(initialUpper(flagName)),
			},
		},
	}
	returnStatement.Decorations().Before = dst.NewLine
	returnStatement.Decorations().After = dst.NewLine

	return &dst.FuncLit{
		Type: &dst.FuncType{
			Params: &dst.FieldList{
				List: []*dst.Field{
					{
						Names: []*dst.Ident{
							dst.NewIdent("p"),
						},
						Type: &dst.StarExpr{
							X: dst.NewIdent("CompatProfile"),
						},
					},
				},
			},
			Results: &dst.FieldList{
				List: []*dst.Field{
					{
						Type: dst.NewIdent("bool"),
					},
				},
			},
		},
		Body: &dst.BlockStmt{
			List: []dst.Stmt{
				returnStatement,
			},
		},
	}
}

func methodExpr(method string) dst.Expr {
	return &dst.SelectorExpr{
		X: &dst.ParenExpr{
			X: &dst.StarExpr{
				X: dst.NewIdent("Lawyer"),
			},
		},
		Sel: dst.NewIdent(method),
	}
}

func stringLit(value string) dst.Expr {
	return &dst.BasicLit{
		Kind:  token.STRING,
		Value: fmt.Sprintf("%q", value),
	}
}

func initialUpper(s string) string {
	if len(s) == 0 {
		return s
	}
	return string(unicode.ToUpper(rune(s[0]))) + s[1:]
}
