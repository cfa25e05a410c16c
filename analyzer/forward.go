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
	"strings"

	"github.com/cxxclean/cxxclean/driver"
	"github.com/cxxclean/cxxclean/source"
)

// forwardable applies the conservative policy: only plain class/struct/
// union types qualified by nothing but namespaces may be forward-declared.
// Template specializations and nested types always keep their include.
func forwardable(rec *driver.Record) bool {
	if rec.IsSpecialization || rec.QualifiedOutsideNamespace {
		return false
	}
	return rec.Name != ""
}

// shouldKeepForwardClass reports whether file by still needs a forward
// declaration of rec after minimization: it does not, when any declaration
// of the record already reaches by through its kept includes, a default
// include, or the file itself.
func (a *Analysis) shouldKeepForwardClass(by source.FileID, rec *driver.Record) bool {
	for _, redecl := range rec.Redecls {
		if !redecl.IsValid() {
			continue
		}
		at := redecl.File
		switch {
		case a.contains(by, at):
			a.log.Debug("skip forward: contained", "by", a.fset.Path(by), "record", rec.Name)
			return false
		case a.isAncestorDefaultInclude(at):
			a.log.Debug("skip forward: default included", "by", a.fset.Path(by), "record", rec.Name)
			return false
		case a.fset.SameName(by, at):
			a.log.Debug("skip forward: same file", "by", a.fset.Path(by), "record", rec.Name)
			return false
		}
	}
	return true
}

// generateForwardClass computes the forward declarations each user file
// should gain: pointer-only record uses minus complete-type uses, minus
// anything already reachable, deduplicated along the kept include chains.
func (a *Analysis) generateForwardClass() {
	a.forwardClass = make(map[source.FileID]recordSet)

	// 1. candidates: pointer-only uses that never needed the full type
	for _, by := range sortedKeys(a.fileUsePointers) {
		records := make(recordSet)
		full := a.fileUseRecords[by]
		for rec := range a.fileUsePointers[by] {
			if !forwardable(rec) {
				continue
			}
			if _, needsFull := full[rec]; needsFull {
				continue
			}
			records[rec] = struct{}{}
		}
		if len(records) == 0 {
			continue
		}
		first := a.fset.First(by)
		if s, ok := a.forwardClass[first]; ok {
			for rec := range records {
				s[rec] = struct{}{}
			}
		} else {
			a.forwardClass[first] = records
		}
	}

	// 2. drop duplicates already provided elsewhere
	a.minimizeForwardClass()

	// 3. files that never carry an #include cannot host a forward block;
	// push their declarations up into every file that includes them
	for changed := true; changed; {
		changed = false
		for _, by := range sortedKeys(a.forwardClass) {
			if _, hasIncludes := a.includes[a.fset.Lower(by)]; hasIncludes {
				continue
			}
			records := a.forwardClass[by]
			for at, includes := range a.minInclude {
				if _, ok := includes[by]; !ok {
					continue
				}
				if s, exists := a.forwardClass[at]; exists {
					for rec := range records {
						s[rec] = struct{}{}
					}
				} else {
					a.forwardClass[at] = records
				}
			}
			delete(a.forwardClass, by)
			changed = true
			break
		}
	}

	a.minimizeForwardClass()
}

// minimizeForwardClass removes forward declarations that are unnecessary
// (shouldKeepForwardClass) or already emitted by a file the declaring file
// keeps including.
func (a *Analysis) minimizeForwardClass() {
	for by, records := range a.forwardClass {
		for rec := range records {
			if !a.shouldKeepForwardClass(by, rec) {
				delete(records, rec)
			}
		}
		if len(records) == 0 {
			delete(a.forwardClass, by)
		}
	}

	// collect, per file, every forward declaration visible through its
	// kept include closure
	all := make(fileSet)
	for by := range a.fileUsePointers {
		all[a.fset.First(by)] = struct{}{}
	}
	for by := range a.minInclude {
		all[a.fset.First(by)] = struct{}{}
	}

	bigForwards := make(map[source.FileID]recordSet, len(all))
	for by := range all {
		bigForwards[by] = a.forwardsInKids(by)
	}

	a.forwardClass = make(map[source.FileID]recordSet)

	// a file's own block is what it needs minus what its kept includes
	// already declare
	for _, by := range sortedKeys(bigForwards) {
		small := make(recordSet)
		for rec := range bigForwards[by] {
			small[rec] = struct{}{}
		}
		for minInclude := range a.minInclude[by] {
			for rec := range bigForwards[minInclude] {
				delete(small, rec)
			}
		}
		if len(small) > 0 {
			a.forwardClass[by] = small
		}
	}
}

// forwardsInKids unions the forward declarations of top and of everything
// reachable from top through minimized includes.
func (a *Analysis) forwardsInKids(top source.FileID) recordSet {
	out := make(recordSet)
	if !top.IsValid() {
		return out
	}
	chain := fileSet{top: {}}
	todo := []source.FileID{top}
	for len(todo) > 0 {
		cur := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		for inc := range a.minInclude[cur] {
			if _, done := chain[inc]; done {
				continue
			}
			chain[inc] = struct{}{}
			todo = append(todo, inc)
		}
	}
	for file := range chain {
		for rec := range a.forwardClass[file] {
			out[rec] = struct{}{}
		}
	}
	return out
}

// recordName reconstructs the forward-declaration text of a record, e.g.
// `namespace a { namespace b { class C; } }`, with the template parameter
// list restored for primary class templates.
func recordName(rec *driver.Record) string {
	var b strings.Builder
	if rec.TemplateParams != "" {
		b.WriteString(rec.TemplateParams)
		b.WriteString(" ")
	}
	b.WriteString(rec.Kind.String())
	b.WriteString(" ")
	b.WriteString(rec.Name)
	b.WriteString(";")
	decl := b.String()
	for i := len(rec.Namespaces) - 1; i >= 0; i-- {
		decl = "namespace " + rec.Namespaces[i] + " { " + decl + " }"
	}
	return decl
}
