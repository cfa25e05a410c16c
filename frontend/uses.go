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
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cxxclean/cxxclean/driver"
)

// scanUses reports every identifier and type reference below n against
// the symbols collected so far.
func (fw *fileWalk) scanUses(n *tree_sitter.Node) {
	switch n.Kind() {
	case "identifier", "field_identifier":
		fw.identifierUse(n)
		return
	case "type_identifier":
		fw.typeUse(n, fw.pointerContext(n))
		return
	case "preproc_include", "comment", "string_literal", "raw_string_literal":
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		fw.scanUses(n.Child(i))
	}
}

// scanTypeUses reports the type references below a type node. pointer
// marks that the enclosing declarator spells a pointer or reference, so a
// record type here needs only a forward declaration — unless it appears as
// a template argument, which conservatively counts as a full use.
func (fw *fileWalk) scanTypeUses(n *tree_sitter.Node, pointer bool) {
	switch n.Kind() {
	case "type_identifier":
		fw.typeUse(n, pointer)
		return
	case "template_type":
		// the template itself and every argument are full uses
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			fw.typeUse(nameNode, false)
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			fw.scanTypeUses(args, false)
		}
		return
	case "identifier":
		fw.identifierUse(n)
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		fw.scanTypeUses(n.Child(i), pointer)
	}
}

// identifierUse reports a reference to a non-type name: a function, a
// variable, an enumerator, or a macro.
func (fw *fileWalk) identifierUse(n *tree_sitter.Node) {
	name := fw.text(n)
	if def, ok := fw.tu.macros[name]; ok {
		if def.IsValid() {
			fw.tu.consumer.MacroUsed(driver.MacroEvent{Loc: fw.loc(n), DefLoc: def, Name: name})
		}
		return
	}
	sym, ok := fw.tu.symbols[name]
	if !ok || !sym.loc.IsValid() {
		return
	}
	if sym.loc == fw.loc(n) {
		return // the declaration itself
	}
	fw.tu.consumer.Use(driver.Use{By: fw.loc(n), Target: sym.loc, Name: name, Kind: driver.UseDecl})
}

// typeUse reports a reference to a type name. Known records flow through
// UseRecord so the analyzer can weigh forward declarations; other types
// (typedefs, enums, template parameters) are plain use edges.
func (fw *fileWalk) typeUse(n *tree_sitter.Node, pointer bool) {
	name := fw.text(n)
	sym, ok := fw.tu.symbols[name]
	if !ok || !sym.loc.IsValid() {
		return
	}
	loc := fw.loc(n)
	if sym.loc == loc {
		return
	}
	if sym.rec != nil {
		pointerOnly := pointer && !sym.rec.IsSpecialization && sym.rec.TemplateParams == ""
		fw.tu.consumer.UseRecord(driver.RecordUse{Loc: loc, Rec: sym.rec, PointerOnly: pointerOnly})
		return
	}
	fw.tu.consumer.Use(driver.Use{By: loc, Target: sym.loc, Name: name, Kind: driver.UseDecl})
}

// pointerContext reports whether a bare type_identifier reached outside a
// declaration sits under a pointer or reference declarator.
func (fw *fileWalk) pointerContext(n *tree_sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "pointer_declarator", "reference_declarator":
			return true
		case "declaration", "field_declaration", "parameter_declaration", "function_definition":
			return fw.hasPointerDeclarator(p)
		case "translation_unit":
			return false
		}
	}
	return false
}

func firstOfKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}

func lastOfKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	var out *tree_sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c.Kind() == kind {
			out = c
		}
	}
	return out
}
