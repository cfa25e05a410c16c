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

package history

import "strings"

// TUResult is the output of one translation unit's analysis handed to the
// project-wide aggregate.
type TUResult struct {
	// RootLower is the lower-cased canonical path of the TU's main file.
	RootLower string
	// Files holds one entry per user file seen by the TU, edits or not.
	// The no-edit entries matter: the deletion merge is unanimity-based,
	// and only files the TU actually saw get a vote.
	Files Map
	// Fatal is set when the TU had fatal errors (or too many errors); its
	// edits are discarded and only the error record is kept.
	Fatal bool
}

// MergeInto folds a TU result into the project aggregate. The operation is
// commutative and associative over the set of TU results: deletions
// survive only if every TU seeing the file agrees, forward declarations
// union, replacements must agree up to the include-ancestor preference,
// and fatal TUs contribute nothing but their compile-error record.
func MergeInto(aggregate Map, tu TUResult) {
	if tu.Fatal {
		root := tu.Files[tu.RootLower]
		if root == nil {
			return
		}
		keep := NewFileHistory(root.FileName)
		keep.IsWindowsFormat = root.IsWindowsFormat
		keep.IsSkip = root.IsSkip
		keep.CompileErrors = root.CompileErrors
		if old := aggregate[tu.RootLower]; old != nil {
			// keep any edits contributed by healthy TUs, attach the errors
			old.CompileErrors = root.CompileErrors
			return
		}
		aggregate[tu.RootLower] = keep
		return
	}

	for lower, newFile := range tu.Files {
		old, found := aggregate[lower]
		if !found {
			aggregate[lower] = newFile.Clone()
			continue
		}
		mergeDelLines(old, newFile)
		mergeForwards(old, newFile)
		mergeReplaces(old, newFile)
		mergeAdds(old, newFile)
	}
}

// mergeDelLines keeps a deletion only when the incoming TU also found the
// line unused. One disagreeing TU preserves the line.
func mergeDelLines(old, newFile *FileHistory) {
	for line := range old.DelLines {
		if !newFile.IsLineUnused(line) {
			delete(old.DelLines, line)
		}
	}
}

// mergeForwards unions forward-declaration sets per line.
func mergeForwards(old, newFile *FileHistory) {
	for line, newLine := range newFile.Forwards {
		oldLine, ok := old.Forwards[line]
		if !ok {
			nl := *newLine
			nl.Classes = make(map[string]struct{}, len(newLine.Classes))
			for c := range newLine.Classes {
				nl.Classes[c] = struct{}{}
			}
			old.Forwards[line] = &nl
			continue
		}
		for c := range newLine.Classes {
			oldLine.Classes[c] = struct{}{}
		}
	}
}

// mergeReplaces keeps a replacement only when the TUs agree on its target,
// or when one proposed target is an include-tree ancestor of the other, in
// which case the broader include wins. Anything else drops the line and
// the original text stays.
func mergeReplaces(old, newFile *FileHistory) {
	for line, oldLine := range old.Replaces {
		newLine, ok := newFile.Replaces[line]
		if !ok {
			// the incoming TU needs this #include as written
			delete(old.Replaces, line)
			continue
		}
		a, b := oldLine.ReplaceTo, newLine.ReplaceTo
		switch {
		case pathEq(a.FileName, b.FileName):
			// agreement
		case hasAncestor(b.Ancestors, a.FileName):
			// the existing target sits above the incoming one: keep it
		case hasAncestor(a.Ancestors, b.FileName):
			oldLine.ReplaceTo = b
			oldLine.IsSkip = oldLine.IsSkip || newLine.IsSkip
		default:
			delete(old.Replaces, line)
		}
	}
}

// mergeAdds keeps an addition only when the incoming TU computed the same
// insertion; additions exist to carry a dependency exposed by a deletion,
// so like deletions they require unanimity.
func mergeAdds(old, newFile *FileHistory) {
	for line, oldLine := range old.Adds {
		newLine, ok := newFile.Adds[line]
		if !ok {
			delete(old.Adds, line)
			continue
		}
		oldLine.Adds = intersectAdds(oldLine.Adds, newLine.Adds)
		if len(oldLine.Adds) == 0 {
			delete(old.Adds, line)
		}
	}
}

func intersectAdds(a, b []BeAdd) []BeAdd {
	out := a[:0]
	for _, x := range a {
		for _, y := range b {
			if pathEq(x.FileName, y.FileName) {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

// hasAncestor matches a path against the lower-cased ancestor list. The
// path may be case-preserved (ReplaceTo.FileName keeps the original case
// for diagnostics); comparisons are always case-insensitive.
func hasAncestor(ancestors []string, path string) bool {
	lower := strings.ToLower(path)
	for _, a := range ancestors {
		if a == lower {
			return true
		}
	}
	return false
}

// pathEq compares two stored paths case-insensitively. Two TUs may reach
// the same header through includes spelled with different case.
func pathEq(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Fix enforces the per-line exclusivity invariant after all TUs merged: a
// line may carry a deletion or a replacement, never both. The replacement
// wins because it still carries a dependency some TU needs; deleting would
// break that TU.
func Fix(aggregate Map) {
	for _, h := range aggregate {
		for line := range h.DelLines {
			if h.IsLineReplaced(line) {
				delete(h.DelLines, line)
			}
		}
	}
}
