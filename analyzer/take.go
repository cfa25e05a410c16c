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

	"github.com/cxxclean/cxxclean/history"
	"github.com/cxxclean/cxxclean/source"
)

// includeLineNo returns the one-based line of the #include that produced
// the inclusion instance, in its parent's buffer, or 0 for forced includes
// and the main file.
func (a *Analysis) includeLineNo(id source.FileID) int {
	loc := a.includeLocs[id]
	if !loc.IsValid() {
		return 0
	}
	info := a.fset.Info(loc.File)
	if info == nil {
		return 0
	}
	return info.LineOf(loc.Offset)
}

// includeLineText returns the #include directive line as written, without
// its terminator.
func (a *Analysis) includeLineText(id source.FileID) string {
	loc := a.includeLocs[id]
	if !loc.IsValid() {
		return ""
	}
	info := a.fset.Info(loc.File)
	if info == nil {
		return ""
	}
	return info.LineText(info.LineOf(loc.Offset))
}

// includeFullSpan returns the byte range of the directive's full line,
// terminator included.
func (a *Analysis) includeFullSpan(id source.FileID) (beg, end int, ok bool) {
	loc := a.includeLocs[id]
	if !loc.IsValid() {
		return 0, 0, false
	}
	info := a.fset.Info(loc.File)
	if info == nil {
		return 0, 0, false
	}
	return info.FullLineSpan(info.LineOf(loc.Offset))
}

// ancestorLowers returns the lower-cased paths of the instance's ancestor
// chain, nearest first. The merge uses it to compare replacement targets
// across translation units.
func (a *Analysis) ancestorLowers(id source.FileID) []string {
	var out []string
	for p := a.parent(id); p.IsValid(); p = a.parent(p) {
		out = append(out, a.fset.Lower(p))
	}
	return out
}

// takeHistories freezes the per-file cleaning records of every user file
// the TU saw, the no-edit ones included: only files a TU actually saw get
// a vote in the cross-TU deletion merge.
func (a *Analysis) takeHistories() {
	files := make(history.Map)
	for _, top := range a.fset.IDs() {
		lower := a.fset.Lower(top)
		if _, ok := files[lower]; ok {
			continue
		}
		switch {
		case a.IsUserFile(top):
			files[lower] = a.takeHistory(top)
		case a.opts.CanClean != nil && a.opts.CanClean(lower):
			// in the allow-clean set but under a forced-include,
			// precompiled-header or skip rule: reported, never edited
			h := history.NewFileHistory(a.fset.Path(top))
			if info := a.fset.Info(top); info != nil {
				h.IsWindowsFormat = info.IsWindowsFormat()
			}
			h.IsSkip = true
			files[lower] = h
		}
	}

	rec := a.opts.Handler.TakeRecord()
	rootLower := a.fset.Lower(a.root)
	if rootHist, ok := files[rootLower]; ok {
		rootHist.CompileErrors = rec
	} else if a.root.IsValid() && rec.ErrorCount > 0 {
		// the root sits outside the allow-clean set but its errors still
		// belong in the report
		h := history.NewFileHistory(a.fset.Path(a.root))
		h.CompileErrors = rec
		if info := a.fset.Info(a.root); info != nil {
			h.IsWindowsFormat = info.IsWindowsFormat()
		}
		files[rootLower] = h
	}

	a.result = &history.TUResult{
		RootLower: rootLower,
		Files:     files,
		Fatal:     rec.HasFatal(),
	}
}

// takeHistory extracts the cleaning record of one user file from the
// minimization and forward-declaration results.
func (a *Analysis) takeHistory(top source.FileID) *history.FileHistory {
	h := history.NewFileHistory(a.fset.Path(top))
	info := a.fset.Info(top)
	if info != nil {
		h.IsWindowsFormat = info.IsWindowsFormat()
	}
	_, isForced := a.forced[top]
	_, isSkipped := a.skips[top]
	h.IsSkip = a.isPrecompiledHeader(top) || isForced || isSkipped

	topLower := a.fset.Lower(top)
	oldIncludes := a.includes[topLower].clone()
	finalIncludes := a.minInclude[top].clone()

	// a guarded include cycle surfaces as a self-include; it never
	// participates in the decision
	for id := range oldIncludes {
		if a.fset.SameName(id, top) {
			delete(oldIncludes, id)
		}
	}

	// pair off same-named old and new entries: those includes stay
	keeps := make(fileSet)
	for _, fin := range finalIncludes.sorted() {
		finName := a.fset.Lower(fin)
		for _, old := range oldIncludes.sorted() {
			if a.fset.Lower(old) == finName {
				delete(oldIncludes, old)
				delete(finalIncludes, fin)
				keeps[old] = struct{}{}
				break
			}
		}
	}
	dels := oldIncludes
	adds := finalIncludes

	a.takeReplaces(h, top, dels, adds)

	// forced includes have no on-disk directive and are never deleted
	for d := range dels {
		if a.isDefaultIncluded(d) || !a.includeLocs[d].IsValid() {
			delete(dels, d)
		}
	}

	a.takeDels(h, dels)

	insertLine, hasInsert := a.calcInsertLine(keeps, h)
	if hasInsert {
		a.takeForwards(h, top, insertLine, len(keeps) > 0)
		a.takeAdds(h, top, insertLine, adds)
	} else if len(a.forwardClass[top]) > 0 || len(adds) > 0 {
		a.log.Warn("no insertion point for additions", "file", a.fset.Path(top))
	}

	return h
}

// takeReplaces turns del/add pairs where the added file was reachable only
// through the deleted one into replacements: same line, more direct
// target. Forced-included targets yield skip records for the report.
func (a *Analysis) takeReplaces(h *history.FileHistory, top source.FileID, dels, adds fileSet) {
	for _, d := range dels.sorted() {
		var candidates []source.FileID
		for add := range adds {
			if a.isAncestorByName(add, d) {
				candidates = append(candidates, add)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			return a.fset.Lower(candidates[i]) < a.fset.Lower(candidates[j])
		})
		to := candidates[0]

		forced := a.isDefaultIncluded(d) || !a.includeLocs[d].IsValid()
		line := a.includeLineNo(d)
		if !forced && line <= 0 {
			continue
		}

		rl := &history.ReplaceLine{
			IsSkip:  forced,
			OldText: a.includeLineText(d),
			OldFile: a.fset.Lower(d),
		}
		if !forced {
			rl.Beg, rl.End, _ = a.includeFullSpan(d)
		}
		rl.ReplaceTo = history.ReplaceTo{
			FileName:  a.fset.Path(to),
			InFile:    a.fset.Path(a.parent(to)),
			Line:      a.includeLineNo(to),
			OldText:   a.includeLineText(to),
			NewText:   a.opts.SearchDirs.IncludeString(a.fset.Path(top), a.fset.Path(to), a.includeLineText(to)),
			Ancestors: a.ancestorLowers(to),
		}
		h.Replaces[line] = rl

		delete(dels, d)
		delete(adds, to)
	}
}

// takeDels records the unused #include lines.
func (a *Analysis) takeDels(h *history.FileHistory, dels fileSet) {
	for d := range dels {
		line := a.includeLineNo(d)
		if line <= 0 {
			continue
		}
		beg, end, ok := a.includeFullSpan(d)
		if !ok {
			continue
		}
		h.DelLines[line] = &history.DelLine{
			Beg:  beg,
			End:  end,
			Text: a.includeLineText(d),
		}
	}
}

// calcInsertLine picks the line additions and forward declarations attach
// to: the earliest surviving #include, or the last deleted directive's
// line when nothing survives.
func (a *Analysis) calcInsertLine(keeps fileSet, h *history.FileHistory) (int, bool) {
	best := 0
	for keep := range keeps {
		if line := a.includeLineNo(keep); line > 0 && (best == 0 || line < best) {
			best = line
		}
	}
	if best > 0 {
		return best, true
	}
	for line := range h.DelLines {
		if line > best {
			best = line
		}
	}
	for line, rl := range h.Replaces {
		if !rl.IsSkip && line > best {
			best = line
		}
	}
	return best, best > 0
}

// takeForwards records the forward-declaration block of the file,
// immediately above the insertion line when an include survives there, or
// after the last removed directive otherwise.
func (a *Analysis) takeForwards(h *history.FileHistory, top source.FileID, insertLine int, beforeLine bool) {
	records := a.forwardClass[top]
	if len(records) == 0 {
		return
	}
	info := a.fset.Info(top)
	if info == nil {
		return
	}
	var offset int
	if beforeLine {
		beg, _, ok := info.FullLineSpan(insertLine)
		if !ok {
			return
		}
		offset = beg
	} else {
		_, end, ok := info.FullLineSpan(insertLine)
		if !ok {
			return
		}
		offset = end
	}

	fl := &history.ForwardLine{
		Offset:  offset,
		OldText: info.LineText(insertLine),
		Classes: make(map[string]struct{}, len(records)),
	}
	for rec := range records {
		fl.Classes[recordName(rec)] = struct{}{}
	}
	h.Forwards[insertLine] = fl
}

// takeAdds records the #include directives to insert at the end of the
// insertion line, ordered by the canonical path of their targets.
func (a *Analysis) takeAdds(h *history.FileHistory, top source.FileID, insertLine int, adds fileSet) {
	if len(adds) == 0 {
		return
	}
	info := a.fset.Info(top)
	if info == nil {
		return
	}
	_, end, ok := info.FullLineSpan(insertLine)
	if !ok {
		return
	}

	al := &history.AddLine{
		Offset:  end,
		OldText: info.LineText(insertLine),
	}
	targets := adds.sorted()
	sort.Slice(targets, func(i, j int) bool {
		return a.fset.Lower(targets[i]) < a.fset.Lower(targets[j])
	})
	for _, add := range targets {
		al.Adds = append(al.Adds, history.BeAdd{
			FileName: a.fset.Path(add),
			Text:     a.opts.SearchDirs.IncludeString(a.fset.Path(top), a.fset.Path(add), a.includeLineText(add)),
		})
	}
	h.Adds[insertLine] = al
}
