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

// Package history holds the per-file cleaning record produced by each
// translation unit's analysis and the rules for merging records across
// translation units.
//
// Everything in this package is plain data keyed by lower-cased canonical
// paths and line numbers; no analyzer state (FileIDs, record pointers)
// survives into it, which is what makes the cross-TU merge order
// independent.
package history

import (
	"sort"

	"github.com/cxxclean/cxxclean/reporter"
)

// DelLine is an unused #include line to be removed. Beg/End are byte
// offsets of the full line including its terminator.
type DelLine struct {
	Beg  int
	End  int
	Text string // the discarded line, for the report
}

// ForwardLine is a position where forward declarations are inserted.
type ForwardLine struct {
	// Offset is the byte position the block is inserted at (the end of the
	// line holding the first surviving #include).
	Offset  int
	OldText string // the line originally at the insertion point
	// Classes holds the reconstructed declarations, e.g.
	// `namespace ui { class Widget; }`.
	Classes map[string]struct{}
}

// SortedClasses returns the declarations in deterministic output order.
func (f *ForwardLine) SortedClasses() []string {
	out := make([]string, 0, len(f.Classes))
	for c := range f.Classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// BeAdd is one #include to insert.
type BeAdd struct {
	FileName string // canonical path of the target, for ordering and report
	Text     string // the rendered directive, e.g. `#include "util/real.h"`
}

// AddLine is a position where new #include directives are inserted.
type AddLine struct {
	Offset  int
	OldText string
	Adds    []BeAdd
}

// ReplaceTo describes what a replaced #include becomes.
type ReplaceTo struct {
	// FileName is the canonical path of the new target.
	FileName string
	// InFile is the file that originally included the new target.
	InFile string
	// Line is the line of the original #include of the new target.
	Line int
	// OldText is the directive that originally pulled in the new target.
	OldText string
	// NewText is the rendered replacement directive.
	NewText string
	// Ancestors holds the lower-cased canonical paths of the new target's
	// include-tree ancestors in the proposing TU, nearest first. The merge
	// uses it to decide the broader of two conflicting replacements
	// without access to any TU's live include tree.
	Ancestors []string
}

// ReplaceLine is an #include line to be replaced by a more direct include.
type ReplaceLine struct {
	// IsSkip marks replacements of forced-included files: there is no
	// on-disk directive to rewrite, the record exists for reporting only.
	IsSkip    bool
	Beg       int
	End       int
	OldText   string
	OldFile   string // lower-cased canonical path of the replaced target
	ReplaceTo ReplaceTo
}

// FileHistory records the pending edits of one file.
type FileHistory struct {
	FileName        string // canonical path, case preserved
	IsSkip          bool   // precompiled headers are reported, never edited
	IsWindowsFormat bool   // first-line terminator was CRLF

	CompileErrors reporter.Record

	DelLines map[int]*DelLine
	Forwards map[int]*ForwardLine
	Replaces map[int]*ReplaceLine
	Adds     map[int]*AddLine
}

// NewFileHistory returns an empty history for the given canonical path.
func NewFileHistory(fileName string) *FileHistory {
	return &FileHistory{
		FileName: fileName,
		DelLines: make(map[int]*DelLine),
		Forwards: make(map[int]*ForwardLine),
		Replaces: make(map[int]*ReplaceLine),
		Adds:     make(map[int]*AddLine),
	}
}

// NewLine returns the line terminator matching the file's format.
func (h *FileHistory) NewLine() string {
	if h.IsWindowsFormat {
		return "\r\n"
	}
	return "\n"
}

// NeedClean reports whether the history contains any edit.
func (h *FileHistory) NeedClean() bool {
	return len(h.DelLines) > 0 || len(h.Replaces) > 0 || len(h.Forwards) > 0 || len(h.Adds) > 0
}

// IsLineUnused reports whether the given line is marked for deletion.
func (h *FileHistory) IsLineUnused(line int) bool {
	_, ok := h.DelLines[line]
	return ok
}

// IsLineReplaced reports whether the given line is marked for replacement.
func (h *FileHistory) IsLineReplaced(line int) bool {
	_, ok := h.Replaces[line]
	return ok
}

// HasFatal reports whether the owning TU recorded a fatal compile error.
func (h *FileHistory) HasFatal() bool {
	return h.CompileErrors.HasFatal()
}

// Clone returns a deep copy; merges mutate their left operand and the
// per-TU result must stay intact for the report.
func (h *FileHistory) Clone() *FileHistory {
	c := NewFileHistory(h.FileName)
	c.IsSkip = h.IsSkip
	c.IsWindowsFormat = h.IsWindowsFormat
	c.CompileErrors = h.CompileErrors
	for line, d := range h.DelLines {
		dd := *d
		c.DelLines[line] = &dd
	}
	for line, f := range h.Forwards {
		ff := *f
		ff.Classes = make(map[string]struct{}, len(f.Classes))
		for cls := range f.Classes {
			ff.Classes[cls] = struct{}{}
		}
		c.Forwards[line] = &ff
	}
	for line, r := range h.Replaces {
		rr := *r
		rr.ReplaceTo.Ancestors = append([]string(nil), r.ReplaceTo.Ancestors...)
		c.Replaces[line] = &rr
	}
	for line, a := range h.Adds {
		aa := *a
		aa.Adds = append([]BeAdd(nil), a.Adds...)
		c.Adds[line] = &aa
	}
	return c
}

// Map is the cleaning record of a whole run (or of one TU before merging),
// keyed by lower-cased canonical path.
type Map map[string]*FileHistory

// SortedFiles returns the keys in deterministic order.
func (m Map) SortedFiles() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
