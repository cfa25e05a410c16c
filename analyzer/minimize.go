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
	"sort"

	"github.com/cxxclean/cxxclean/source"
)

// generateDefaultIncludes records the files that are visible without any
// #include: forced includes and precompiled headers.
func (a *Analysis) generateDefaultIncludes() {
	a.defaultIncludes = make(fileSet)
	for _, id := range a.fset.IDs() {
		if a.isDefaultIncluded(id) {
			a.defaultIncludes[id] = struct{}{}
		}
	}
}

// generateOuterAncestors computes the user-file set and, for every outer
// file, its topmost outer ancestor. An entire third-party subtree
// collapses into that one representative; the cut pass treats it as
// indivisible.
func (a *Analysis) generateOuterAncestors() {
	a.userFiles = make(fileSet)
	for _, id := range a.fset.IDs() {
		if a.isUserFileRaw(id) {
			a.userFiles[id] = struct{}{}
		}
	}

	a.outerAncestor = make(map[source.FileID]source.FileID)
	for _, id := range a.fset.IDs() {
		if !a.isOuterFile(id) {
			continue
		}
		top := id
		for p := a.parent(id); p.IsValid() && a.isOuterFile(p); p = a.parent(p) {
			top = p
		}
		if top != id {
			a.outerAncestor[id] = top
		}
	}
}

// outerFileAncestor maps an outer file to its collapsed representative;
// user files and already-top outer files map to themselves, which makes
// the mapping idempotent.
func (a *Analysis) outerFileAncestor(id source.FileID) source.FileID {
	if top, ok := a.outerAncestor[id]; ok {
		return top
	}
	return id
}

// bestAncestor finds, when file by uses file target, the ancestor of
// target that by can most directly include. Outer targets collapse to
// their outer ancestor unless they live inside by's own include subtree,
// in which case the include chain from by toward target is followed until
// it leaves the user zone.
func (a *Analysis) bestAncestor(by, target source.FileID) source.FileID {
	if !a.isOuterFile(target) {
		return target
	}
	if a.outerFileAncestor(target) == target {
		return target
	}
	if !a.isAncestorByName(target, by) {
		return a.outerFileAncestor(target)
	}

	search := by
	done := make(fileSet)
	searchKid := func(now source.FileID) source.FileID {
		for _, inc := range a.includes[a.fset.Lower(now)].sorted() {
			alreadyDone := false
			for d := range done {
				if a.fset.SameName(d, inc) {
					alreadyDone = true
					break
				}
			}
			if alreadyDone {
				continue
			}
			if a.fset.SameName(target, inc) || a.isAncestorByName(target, inc) {
				return inc
			}
		}
		return source.NoFile
	}
	for search.IsValid() {
		kid := searchKid(search)
		if !kid.IsValid() {
			break
		}
		search = kid
		done[search] = struct{}{}
		if a.isOuterFile(search) {
			break
		}
	}
	if search == by {
		return target
	}
	return search
}

// generateUserUse rewrites every raw use edge whose source is relevant to
// cleaning into a name-keyed map from user file to best-ancestor targets.
func (a *Analysis) generateUserUse() {
	a.userUses = make(map[string]fileSet)

	for _, by := range sortedKeys(a.uses) {
		useList := a.uses[by]
		if a.isAncestorDefaultInclude(by) {
			continue
		}

		byIsOuter := a.isOuterFile(by)
		byAncestor := a.outerFileAncestor(by)

		userUseList := make(fileSet)
		for beUse := range useList {
			// an outer file referring into its own subtree is internal
			// third-party detail, not a dependency of the user's code
			if byIsOuter && a.isAncestorByName(beUse, by) {
				continue
			}
			userUseList[a.bestAncestor(by, beUse)] = struct{}{}
		}

		delete(userUseList, byAncestor)
		if len(userUseList) == 0 {
			continue
		}
		key := a.fset.Lower(byAncestor)
		if s, ok := a.userUses[key]; ok {
			for id := range userUseList {
				s[id] = struct{}{}
			}
		} else {
			a.userUses[key] = userUseList
		}
	}
}

// generateMinInclude computes, per user file, the minimal set of direct
// includes preserving its transitive dependencies: seed with the primary
// instance of every used name, expand the chain downward within the file's
// own descendants, then cut redundant entries to a fixed point.
func (a *Analysis) generateMinInclude() {
	// canonicalize every used instance through the primary FileID of its
	// name, so multiple inclusion instances coalesce
	for key, useFiles := range a.userUses {
		canon := make(fileSet, len(useFiles))
		for beUse := range useFiles {
			if first := a.fset.First(beUse); first.IsValid() {
				canon[first] = struct{}{}
			}
		}
		a.userUses[key] = canon
	}

	a.minInclude = make(map[source.FileID]fileSet)
	for _, topName := range sortedStringKeys(a.userUses) {
		top := a.fset.Primary(topName)
		if !top.IsValid() {
			continue
		}

		chain := make(fileSet)
		todo := []source.FileID{top}
		for len(todo) > 0 {
			cur := todo[len(todo)-1]
			todo = todo[:len(todo)-1]
			for beUse := range a.userUses[a.fset.Lower(cur)] {
				// only expand into the file's own subtree; anything else
				// is a dependency of some other file's include decision
				if !a.isAncestorByName(beUse, top) {
					continue
				}
				if _, done := chain[beUse]; done {
					continue
				}
				chain[beUse] = struct{}{}
				todo = append(todo, beUse)
			}
		}
		delete(chain, top)

		// self-includes through a guarded cycle resolve to the same name;
		// they are never part of a minimal set
		for id := range chain {
			if a.fset.SameName(id, top) {
				delete(chain, id)
			}
		}

		if len(chain) > 0 {
			a.minInclude[top] = chain
		}
	}

	a.minKids = make(map[source.FileID]fileSet, len(a.minInclude))
	for top, kids := range a.minInclude {
		a.minKids[top] = kids.clone()
	}

	a.mergeMinInclude()
}

// contains reports whether, in the final graph, file top still provides
// file kid: directly, through its minimized descendants, or because both
// sit in the same collapsed outer subtree.
func (a *Analysis) contains(top, kid source.FileID) bool {
	if a.isOuterFile(top) && a.isAncestorByName(kid, top) {
		return true
	}
	minKids, ok := a.minKids[top]
	if !ok {
		return false
	}
	if _, ok := minKids[kid]; ok {
		return true
	}
	for minKid := range minKids {
		if a.isOuterFile(minKid) && a.isAncestorByName(kid, minKid) {
			return true
		}
	}
	return false
}

// cutInclude removes one batch of redundant files from kids, preferring to
// keep the earlier-in-translation-order file of a redundant pair. Returns
// true when something was removed and another round is needed.
func (a *Analysis) cutInclude(top source.FileID, done, kids fileSet) bool {
	for _, cur := range kids.sorted() {
		if _, ok := done[cur]; ok {
			continue
		}
		done[cur] = struct{}{}

		erase := make(fileSet)
		for other := range kids {
			if cur == other {
				continue
			}
			switch {
			case a.fset.SameName(cur, other):
				a.log.Debug("cut: same name", "top", a.fset.Path(top), "keep", cur, "erase", other)
				erase[other] = struct{}{}
			case a.contains(cur, other):
				a.log.Debug("cut: contained", "top", a.fset.Path(top), "keep", a.fset.Path(cur), "erase", a.fset.Path(other))
				erase[other] = struct{}{}
			case a.isAncestorDefaultInclude(other):
				a.log.Debug("cut: default included", "top", a.fset.Path(top), "erase", a.fset.Path(other))
				erase[other] = struct{}{}
			}
		}
		if len(erase) > 0 {
			for id := range erase {
				delete(kids, id)
			}
			return true
		}
	}
	return false
}

// mergeMinInclude runs the cut pass to a fixed point on every file's
// minimal set.
func (a *Analysis) mergeMinInclude() {
	for top, kids := range a.minInclude {
		if len(kids) == 0 {
			delete(a.minInclude, top)
		}
	}
	for _, top := range sortedKeys(a.minInclude) {
		kids := a.minInclude[top]
		done := make(fileSet)
		for a.cutInclude(top, done, kids) {
		}
	}
}

func sortedKeys[V any](m map[source.FileID]V) []source.FileID {
	out := make([]source.FileID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedStringKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
