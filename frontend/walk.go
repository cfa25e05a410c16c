// Copyright 2016-2024 The cxxclean Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frontend

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cxxclean/cxxclean/driver"
	"github.com/cxxclean/cxxclean/internal/paths"
	"github.com/cxxclean/cxxclean/source"
)

// fileWalk traverses one file's syntax tree in document order.
type fileWalk struct {
	tu   *tuWalk
	id   source.FileID
	path string
	src  []byte

	// enclosing namespace chain at the cursor
	nsStack []string
	// > 0 while inside a class/struct/union body; names declared there
	// are nested types and never forward-declared
	recordDepth int
}

func (fw *fileWalk) text(n *tree_sitter.Node) string {
	return string(fw.src[n.StartByte():n.EndByte()])
}

func (fw *fileWalk) loc(n *tree_sitter.Node) source.Location {
	return source.Location{File: fw.id, Offset: int(n.StartByte())}
}

// lineEnd returns the offset one past the last byte of the line containing
// off, excluding the terminator.
func (fw *fileWalk) lineEnd(off int) int {
	for i := off; i < len(fw.src); i++ {
		if fw.src[i] == '\n' {
			if i > off && fw.src[i-1] == '\r' {
				return i - 1
			}
			return i
		}
	}
	return len(fw.src)
}

func (fw *fileWalk) walk(ctx context.Context, n *tree_sitter.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch n.Kind() {
	case "preproc_include":
		return fw.include(ctx, n)
	case "preproc_def", "preproc_function_def":
		fw.defineMacro(n)
		return nil
	case "preproc_ifdef":
		fw.macroTest(n)
	case "preproc_defined":
		fw.macroTest(n)
	case "namespace_definition":
		return fw.namespaceDefinition(ctx, n)
	case "class_specifier", "struct_specifier", "union_specifier":
		fw.recordSpecifier(n, false)
		return nil
	case "template_declaration":
		fw.templateDeclaration(n)
		return nil
	case "using_declaration":
		fw.usingDeclaration(n)
		return nil
	case "alias_declaration", "type_definition":
		fw.typedefLike(n)
		return nil
	case "enum_specifier":
		fw.enumSpecifier(n)
		return nil
	case "function_definition", "declaration", "field_declaration":
		fw.declaration(n)
		if d := n.ChildByFieldName("declarator"); d != nil {
			fw.scanUses(d)
		}
		if v := n.ChildByFieldName("value"); v != nil {
			fw.scanUses(v)
		}
		if b := n.ChildByFieldName("body"); b != nil {
			for i := uint(0); i < b.ChildCount(); i++ {
				if err := fw.walk(ctx, b.Child(i)); err != nil {
					return err
				}
			}
		}
		return nil
	case "ERROR":
		fw.tu.consumer.Diagnostic(driver.Diagnostic{
			Loc:      fw.loc(n),
			Severity: driver.SeverityError,
			Message:  "syntax error",
		})
	case "identifier":
		fw.identifierUse(n)
		return nil
	case "type_identifier":
		fw.typeUse(n, fw.pointerContext(n))
		return nil
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		if err := fw.walk(ctx, n.Child(i)); err != nil {
			return err
		}
	}
	return nil
}

// include handles one #include directive: report it, resolve it, and
// enter the target unless this TU already did.
func (fw *fileWalk) include(ctx context.Context, n *tree_sitter.Node) error {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return nil
	}
	raw := strings.TrimRight(fw.text(n), "\r\n")
	spelled := fw.text(pathNode)
	angled := pathNode.Kind() == "system_lib_string"
	spelled = strings.Trim(spelled, `"<>`)

	hashLoc := fw.loc(n)
	sr, err := fw.tu.fe.Resolver.FindInclude(paths.Dir(fw.path), spelled, angled)
	if err != nil {
		fw.tu.consumer.Include(driver.IncludeDirective{
			HashLoc: hashLoc,
			LineEnd: fw.lineEnd(hashLoc.Offset),
			RawText: raw,
		})
		fw.tu.consumer.Diagnostic(driver.Diagnostic{
			Loc:      hashLoc,
			Severity: driver.SeverityError,
			Message:  "'" + spelled + "' file not found",
		})
		return nil
	}

	lower := paths.Lower(paths.Normalize(sr.ResolvedPath))
	if _, seen := fw.tu.visited[lower]; seen {
		// guarded re-include: reported, never entered; later references
		// resolve against the symbols of the first entry
		fw.tu.consumer.Include(driver.IncludeDirective{
			HashLoc:      hashLoc,
			LineEnd:      fw.lineEnd(hashLoc.Offset),
			RawText:      raw,
			ResolvedPath: sr.ResolvedPath,
		})
		return nil
	}

	fw.tu.consumer.Include(driver.IncludeDirective{
		HashLoc:      hashLoc,
		LineEnd:      fw.lineEnd(hashLoc.Offset),
		RawText:      raw,
		ResolvedPath: sr.ResolvedPath,
		Entered:      true,
	})
	id := fw.tu.consumer.EnterFile(driver.FileEnter{
		Loc:      hashLoc,
		Path:     sr.ResolvedPath,
		Contents: sr.Contents,
		Reason:   driver.EnterInclude,
	})
	fw.tu.visited[lower] = id
	if err := fw.tu.processFile(ctx, id, sr.ResolvedPath, sr.Contents); err != nil {
		return err
	}
	fw.tu.consumer.ExitFile(id)
	return nil
}

func (fw *fileWalk) defineMacro(n *tree_sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := fw.text(nameNode)
	loc := fw.loc(nameNode)
	if _, exists := fw.tu.macros[name]; !exists {
		fw.tu.macros[name] = loc
	}
	fw.tu.consumer.MacroDefined(driver.MacroEvent{Loc: loc, DefLoc: loc, Name: name})
}

// macroTest reports #ifdef/#ifndef/defined() probes of known macros.
func (fw *fileWalk) macroTest(n *tree_sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c.Kind() == "identifier" {
				nameNode = c
				break
			}
		}
	}
	if nameNode == nil {
		return
	}
	name := fw.text(nameNode)
	if def, ok := fw.tu.macros[name]; ok && def.IsValid() {
		fw.tu.consumer.MacroUsed(driver.MacroEvent{Loc: fw.loc(nameNode), DefLoc: def, Name: name})
	}
}

func (fw *fileWalk) namespaceDefinition(ctx context.Context, n *tree_sitter.Node) error {
	name := ""
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = fw.text(nameNode)
	}
	loc := fw.loc(n)
	if name != "" {
		qualified := strings.Join(append(append([]string{}, fw.nsStack...), name), "::")
		fw.tu.nsDecls[name] = append(fw.tu.nsDecls[name], loc)
		fw.tu.consumer.DeclareNamespace(driver.NamespaceDecl{Loc: loc, Name: qualified})
		fw.nsStack = append(fw.nsStack, name)
		defer func() { fw.nsStack = fw.nsStack[:len(fw.nsStack)-1] }()
	}
	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			if err := fw.walk(ctx, body.Child(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordSpecifier handles class/struct/union declarations and definitions,
// registering the record identity shared by all its redeclarations.
func (fw *fileWalk) recordSpecifier(n *tree_sitter.Node, isTemplate bool) *driver.Record {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || nameNode.Kind() != "type_identifier" {
		// anonymous or specialized name; scan the body for uses and move on
		if body := n.ChildByFieldName("body"); body != nil {
			fw.scanUses(body)
		}
		return nil
	}
	name := fw.text(nameNode)
	loc := fw.loc(nameNode)

	var kind driver.RecordKind
	switch n.Kind() {
	case "struct_specifier":
		kind = driver.Struct
	case "union_specifier":
		kind = driver.Union
	default:
		kind = driver.Class
	}

	key := strings.Join(append(append([]string{}, fw.nsStack...), name), "::") + "#" + kind.String()
	rec, ok := fw.tu.records[key]
	if !ok {
		rec = &driver.Record{
			Kind:                      kind,
			Name:                      name,
			Namespaces:                append([]string{}, fw.nsStack...),
			QualifiedOutsideNamespace: fw.recordDepth > 0,
		}
		fw.tu.records[key] = rec
	}
	rec.Redecls = append(rec.Redecls, loc)
	if !isTemplate {
		if _, exists := fw.tu.symbols[name]; !exists {
			fw.tu.symbols[name] = symbol{loc: loc, rec: rec}
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		fw.recordDepth++
		fw.scanUses(body)
		fw.recordDepth--
	}
	// base-class clauses require complete types
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c.Kind() == "base_class_clause" {
			fw.scanTypeUses(c, false)
		}
	}
	return rec
}

// templateDeclaration registers primary class templates with their
// parameter list so a forward declaration can restore it.
func (fw *fileWalk) templateDeclaration(n *tree_sitter.Node) {
	paramsNode := n.ChildByFieldName("parameters")
	params := ""
	if paramsNode != nil {
		params = "template" + fw.text(paramsNode)
		fw.scanTypeUses(paramsNode, false)
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "class_specifier", "struct_specifier", "union_specifier":
			if rec := fw.recordSpecifier(c, true); rec != nil {
				rec.TemplateParams = params
				if nameNode := c.ChildByFieldName("name"); nameNode != nil {
					name := fw.text(nameNode)
					if _, exists := fw.tu.symbols[name]; !exists {
						fw.tu.symbols[name] = symbol{loc: fw.loc(nameNode), rec: rec}
					}
				}
			}
		case "function_definition", "declaration":
			fw.declaration(c)
			fw.scanUses(c)
		}
	}
}

// usingDeclaration handles `using namespace N;` and `using X::Y;`.
func (fw *fileWalk) usingDeclaration(n *tree_sitter.Node) {
	loc := fw.loc(n)
	hasNamespaceKeyword := false
	var last *tree_sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "namespace":
			hasNamespaceKeyword = true
		case "identifier", "namespace_identifier", "qualified_identifier":
			last = c
		}
	}
	if last == nil {
		return
	}
	name := fw.text(last)
	if hasNamespaceKeyword {
		short := name
		if i := strings.LastIndex(short, "::"); i >= 0 {
			short = short[i+2:]
		}
		fw.tu.consumer.UsingNamespace(driver.UsingNamespace{
			Loc:         loc,
			SpellingLoc: loc,
			Name:        name,
			Redecls:     fw.tu.nsDecls[short],
		})
		return
	}
	short := name
	if i := strings.LastIndex(short, "::"); i >= 0 {
		short = short[i+2:]
	}
	if sym, ok := fw.tu.symbols[short]; ok {
		fw.tu.consumer.UsingDecl(driver.UsingDeclaration{Loc: loc, Target: sym.loc, Name: name})
	}
}

func (fw *fileWalk) typedefLike(n *tree_sitter.Node) {
	if nameNode := firstOfKind(n, "type_identifier"); nameNode != nil {
		// last type_identifier is the declared alias for type_definition;
		// for alias_declaration the declared name is its name field, which
		// is also its first direct type_identifier. Register
		// the declarator name and scan the rest for uses.
		declared := lastOfKind(n, "type_identifier")
		if n.Kind() == "alias_declaration" {
			declared = nameNode
			if nn := n.ChildByFieldName("name"); nn != nil {
				declared = nn
			}
		}
		if declared != nil {
			name := fw.text(declared)
			if _, exists := fw.tu.symbols[name]; !exists {
				fw.tu.symbols[name] = symbol{loc: fw.loc(declared)}
			}
		}
	}
	fw.scanUses(n)
}

func (fw *fileWalk) enumSpecifier(n *tree_sitter.Node) {
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name := fw.text(nameNode)
		if _, exists := fw.tu.symbols[name]; !exists {
			fw.tu.symbols[name] = symbol{loc: fw.loc(nameNode)}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			if c := body.Child(i); c.Kind() == "enumerator" {
				if nameNode := c.ChildByFieldName("name"); nameNode != nil {
					name := fw.text(nameNode)
					if _, exists := fw.tu.symbols[name]; !exists {
						fw.tu.symbols[name] = symbol{loc: fw.loc(nameNode)}
					}
				}
			}
		}
	}
}

// declaration registers declared names (functions, variables) and reports
// the type uses of the declaration, distinguishing pointer/reference
// declarator spellings.
func (fw *fileWalk) declaration(n *tree_sitter.Node) {
	if declName := fw.declaratorName(n); declName != nil {
		name := fw.text(declName)
		if _, exists := fw.tu.symbols[name]; !exists {
			fw.tu.symbols[name] = symbol{loc: fw.loc(declName)}
		}
	}
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	switch typeNode.Kind() {
	case "class_specifier", "struct_specifier", "union_specifier":
		// `class B;` redeclares; `class B b;` / `class B *p;` elaborates a
		// use. Either way the specifier registers the record identity.
		rec := fw.recordSpecifier(typeNode, false)
		if rec != nil && n.ChildByFieldName("declarator") != nil {
			pointerOnly := fw.hasPointerDeclarator(n) && !rec.IsSpecialization && rec.TemplateParams == ""
			fw.tu.consumer.UseRecord(driver.RecordUse{Loc: fw.loc(typeNode), Rec: rec, PointerOnly: pointerOnly})
		}
	default:
		fw.scanTypeUses(typeNode, fw.hasPointerDeclarator(n))
	}
}

// declaratorName digs the declared identifier out of a (possibly nested)
// declarator.
func (fw *fileWalk) declaratorName(n *tree_sitter.Node) *tree_sitter.Node {
	d := n.ChildByFieldName("declarator")
	for d != nil {
		switch d.Kind() {
		case "identifier", "field_identifier":
			return d
		case "function_declarator", "pointer_declarator", "reference_declarator",
			"array_declarator", "init_declarator", "parenthesized_declarator":
			d = d.ChildByFieldName("declarator")
			if d == nil {
				return nil
			}
		case "qualified_identifier":
			return nil // out-of-line definition of a member; skip
		default:
			return nil
		}
	}
	return nil
}

// hasPointerDeclarator reports whether the declaration's declarator chain
// starts with a pointer or reference.
func (fw *fileWalk) hasPointerDeclarator(n *tree_sitter.Node) bool {
	d := n.ChildByFieldName("declarator")
	for d != nil {
		switch d.Kind() {
		case "pointer_declarator", "reference_declarator":
			return true
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		default:
			return false
		}
	}
	return false
}
