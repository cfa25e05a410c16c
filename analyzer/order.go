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

package analyzer

import (
	"github.com/cxxclean/cxxclean/source"
)

// isAncestor reports whether old is an ancestor of young in the include
// tree, following actual parent links (the main file is an ancestor of
// every other file).
func (a *Analysis) isAncestor(young, old source.FileID) bool {
	for p := a.parent(young); p.IsValid(); p = a.parent(p) {
		if p == old {
			return true
		}
	}
	return false
}

// isAncestorByName reports whether some inclusion instance named like old
// transitively includes a file named like young. Name-keyed, so all
// inclusion instances of the same header agree.
func (a *Analysis) isAncestorByName(young, old source.FileID) bool {
	return a.isAncestorNameByName(a.fset.Lower(young), a.fset.Lower(old))
}

func (a *Analysis) isAncestorNameByName(youngLower, oldLower string) bool {
	if youngLower == oldLower {
		return false
	}
	kids, ok := a.kidsByName[oldLower]
	if !ok {
		return false
	}
	_, ok = kids[youngLower]
	return ok
}

// chainEntry is one hop of a location's ancestor chain: the position the
// location occupies within that ancestor file.
type chainEntry struct {
	file   source.FileID
	offset int
}

// ancestorChain returns the location's position in its own file and in
// every ancestor, innermost first: the location itself, then the #include
// that pulled its file in, and so on up to the main file.
func (a *Analysis) ancestorChain(loc source.Location) []chainEntry {
	chain := []chainEntry{{file: loc.File, offset: loc.Offset}}
	for f := loc.File; ; {
		inc, ok := a.includeLocs[f]
		if !ok || !inc.IsValid() {
			// forced includes hang off the root with no directive; order
			// them before everything written in the root
			if p := a.parent(f); p.IsValid() {
				chain = append(chain, chainEntry{file: p, offset: -1})
				f = p
				continue
			}
			return chain
		}
		chain = append(chain, chainEntry{file: inc.File, offset: inc.Offset})
		f = inc.File
	}
}

// isBefore reports whether location x precedes location y in translation
// order. Cross-file positions are compared by walking both parent chains
// up to the deepest common ancestor file and comparing offsets there; a
// naive offset comparison across files would be meaningless.
func (a *Analysis) isBefore(x, y source.Location) bool {
	if !x.IsValid() || !y.IsValid() {
		return false
	}
	if x.File == y.File {
		return x.Offset < y.Offset
	}

	xc := a.ancestorChain(x)
	yc := a.ancestorChain(y)

	yIndex := make(map[source.FileID]int, len(yc))
	for i, e := range yc {
		yIndex[e.file] = i
	}
	for _, xe := range xc {
		yi, ok := yIndex[xe.file]
		if !ok {
			continue
		}
		ye := yc[yi]
		if xe.offset != ye.offset {
			return xe.offset < ye.offset
		}
		// same #include position: one file is an ancestor of the other;
		// the ancestor's directive position precedes everything in the
		// included file that follows it, so the deeper chain is "inside"
		// and therefore not before
		return xe.file == x.File
	}
	return false
}

// isFileBefore reports whether the #include producing a precedes the one
// producing b in translation order.
func (a *Analysis) isFileBefore(x, y source.FileID) bool {
	return a.isBefore(a.includeLocs[x], a.includeLocs[y])
}

// generateKidsByName computes, for every file name, the set of names it
// transitively includes through any of its inclusion instances. This
// name-keyed closure is what "a contains b in the final graph" means.
func (a *Analysis) generateKidsByName() {
	a.kidsByName = make(map[string]nameSet, len(a.includes))
	for top := range a.includes {
		kids := make(nameSet)
		todo := []string{top}
		for len(todo) > 0 {
			cur := todo[len(todo)-1]
			todo = todo[:len(todo)-1]
			for inc := range a.includes[cur] {
				name := a.fset.Lower(inc)
				if _, done := kids[name]; done {
					continue
				}
				kids[name] = struct{}{}
				todo = append(todo, name)
			}
		}
		delete(kids, top)
		a.kidsByName[top] = kids
	}
}
