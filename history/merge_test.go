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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxclean/cxxclean/reporter"
)

func tuSeeing(root string, files ...*FileHistory) TUResult {
	m := Map{}
	for _, f := range files {
		m[f.FileName] = f
	}
	return TUResult{RootLower: root, Files: m}
}

func withDel(name string, lines ...int) *FileHistory {
	h := NewFileHistory(name)
	for _, line := range lines {
		h.DelLines[line] = &DelLine{Beg: line * 10, End: line*10 + 10, Text: "#include \"x.h\""}
	}
	return h
}

func TestMergeDeletionRequiresUnanimity(t *testing.T) {
	t.Parallel()
	agg := Map{}

	// x.cpp's analysis finds shared.h's include unused
	MergeInto(agg, tuSeeing("/p/x.cpp",
		withDel("/p/x.cpp"),
		withDel("/p/shared.h", 3),
		withDel("/p/util.h")))

	require.True(t, agg["/p/shared.h"].IsLineUnused(3))

	// y.cpp's analysis saw shared.h and needs that line
	MergeInto(agg, tuSeeing("/p/y.cpp",
		withDel("/p/y.cpp"),
		withDel("/p/shared.h"),
		withDel("/p/util.h")))

	assert.False(t, agg["/p/shared.h"].IsLineUnused(3), "one disagreeing TU preserves the line")
	assert.False(t, agg["/p/shared.h"].NeedClean())
}

func TestMergeDeletionAgreement(t *testing.T) {
	t.Parallel()
	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", withDel("/p/shared.h", 3, 5)))
	MergeInto(agg, tuSeeing("/p/y.cpp", withDel("/p/shared.h", 3)))

	assert.True(t, agg["/p/shared.h"].IsLineUnused(3))
	assert.False(t, agg["/p/shared.h"].IsLineUnused(5))
}

func TestMergeFileUnseenByOtherTUKeepsEdits(t *testing.T) {
	t.Parallel()
	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", withDel("/p/only_x.h", 2)))
	// y.cpp never saw only_x.h, so it has no vote
	MergeInto(agg, tuSeeing("/p/y.cpp", withDel("/p/y.cpp")))

	assert.True(t, agg["/p/only_x.h"].IsLineUnused(2))
}

func TestMergeForwardsUnion(t *testing.T) {
	t.Parallel()
	a := NewFileHistory("/p/a.h")
	a.Forwards[4] = &ForwardLine{Offset: 40, Classes: map[string]struct{}{"class B;": {}}}

	b := NewFileHistory("/p/a.h")
	b.Forwards[4] = &ForwardLine{Offset: 40, Classes: map[string]struct{}{"class C;": {}}}

	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", a))
	MergeInto(agg, tuSeeing("/p/y.cpp", b))

	assert.Equal(t, []string{"class B;", "class C;"}, agg["/p/a.h"].Forwards[4].SortedClasses())
}

func replaceTo(target string, ancestors ...string) ReplaceTo {
	return ReplaceTo{FileName: target, NewText: "#include \"" + target + "\"", Ancestors: ancestors}
}

func TestMergeReplaceAgreement(t *testing.T) {
	t.Parallel()
	a := NewFileHistory("/p/a.cpp")
	a.Replaces[1] = &ReplaceLine{OldFile: "/p/wrap.h", ReplaceTo: replaceTo("/p/real.h", "/p/wrap.h", "/p/a.cpp")}
	b := NewFileHistory("/p/a.cpp")
	b.Replaces[1] = &ReplaceLine{OldFile: "/p/wrap.h", ReplaceTo: replaceTo("/p/real.h", "/p/wrap.h", "/p/a.cpp")}

	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", a))
	MergeInto(agg, tuSeeing("/p/y.cpp", b))

	require.Contains(t, agg["/p/a.cpp"].Replaces, 1)
	assert.Equal(t, "/p/real.h", agg["/p/a.cpp"].Replaces[1].ReplaceTo.FileName)
}

func TestMergeReplacePrefersBroaderInclude(t *testing.T) {
	t.Parallel()
	// TU one proposes the deeper target, TU two the broader one that
	// contains it; the broader include must win regardless of order.
	deep := func() *FileHistory {
		h := NewFileHistory("/p/a.cpp")
		h.Replaces[1] = &ReplaceLine{OldFile: "/p/wrap.h", ReplaceTo: replaceTo("/p/deep.h", "/p/mid.h", "/p/wrap.h", "/p/a.cpp")}
		return h
	}
	broad := func() *FileHistory {
		h := NewFileHistory("/p/a.cpp")
		h.Replaces[1] = &ReplaceLine{OldFile: "/p/wrap.h", ReplaceTo: replaceTo("/p/mid.h", "/p/wrap.h", "/p/a.cpp")}
		return h
	}

	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", deep()))
	MergeInto(agg, tuSeeing("/p/y.cpp", broad()))
	require.Contains(t, agg["/p/a.cpp"].Replaces, 1)
	assert.Equal(t, "/p/mid.h", agg["/p/a.cpp"].Replaces[1].ReplaceTo.FileName)

	agg = Map{}
	MergeInto(agg, tuSeeing("/p/y.cpp", broad()))
	MergeInto(agg, tuSeeing("/p/x.cpp", deep()))
	require.Contains(t, agg["/p/a.cpp"].Replaces, 1)
	assert.Equal(t, "/p/mid.h", agg["/p/a.cpp"].Replaces[1].ReplaceTo.FileName)
}

func TestMergeReplaceAgreementIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	// both TUs propose the same logical replacement; one reached the
	// header through an include spelled with different case
	a := NewFileHistory("/p/a.cpp")
	a.Replaces[1] = &ReplaceLine{
		OldFile:   "/p/wrap.h",
		ReplaceTo: ReplaceTo{FileName: "C:/Proj/Real.h", NewText: `#include "real.h"`, Ancestors: []string{"c:/proj/wrap.h"}},
	}
	b := NewFileHistory("/p/a.cpp")
	b.Replaces[1] = &ReplaceLine{
		OldFile:   "/p/wrap.h",
		ReplaceTo: ReplaceTo{FileName: "c:/proj/REAL.H", NewText: `#include "real.h"`, Ancestors: []string{"c:/proj/wrap.h"}},
	}

	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", a))
	MergeInto(agg, tuSeeing("/p/y.cpp", b))

	require.Contains(t, agg["/p/a.cpp"].Replaces, 1, "agreement must not depend on path case")
	assert.Equal(t, "C:/Proj/Real.h", agg["/p/a.cpp"].Replaces[1].ReplaceTo.FileName,
		"the first TU's case-preserved spelling survives for diagnostics")
}

func TestMergeReplaceAncestorMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	deep := NewFileHistory("/p/a.cpp")
	deep.Replaces[1] = &ReplaceLine{
		OldFile:   "/p/wrap.h",
		ReplaceTo: ReplaceTo{FileName: "c:/proj/Deep.h", Ancestors: []string{"c:/proj/mid.h", "c:/proj/wrap.h"}},
	}
	broad := NewFileHistory("/p/a.cpp")
	broad.Replaces[1] = &ReplaceLine{
		OldFile:   "/p/wrap.h",
		ReplaceTo: ReplaceTo{FileName: "C:/Proj/MID.h", Ancestors: []string{"c:/proj/wrap.h"}},
	}

	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", deep))
	MergeInto(agg, tuSeeing("/p/y.cpp", broad))

	require.Contains(t, agg["/p/a.cpp"].Replaces, 1)
	assert.Equal(t, "C:/Proj/MID.h", agg["/p/a.cpp"].Replaces[1].ReplaceTo.FileName,
		"the broader include wins even when its case differs from the ancestor entry")
}

func TestMergeReplaceUnrelatedTargetsDrop(t *testing.T) {
	t.Parallel()
	a := NewFileHistory("/p/a.cpp")
	a.Replaces[1] = &ReplaceLine{OldFile: "/p/wrap.h", ReplaceTo: replaceTo("/p/left.h", "/p/wrap.h")}
	b := NewFileHistory("/p/a.cpp")
	b.Replaces[1] = &ReplaceLine{OldFile: "/p/wrap.h", ReplaceTo: replaceTo("/p/right.h", "/p/wrap.h")}

	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", a))
	MergeInto(agg, tuSeeing("/p/y.cpp", b))

	assert.NotContains(t, agg["/p/a.cpp"].Replaces, 1, "unrelated targets keep the original line")
}

func TestMergeFatalTUContributesOnlyErrors(t *testing.T) {
	t.Parallel()
	agg := Map{}
	MergeInto(agg, tuSeeing("/p/x.cpp", withDel("/p/shared.h", 3)))

	bad := withDel("/p/x2.cpp", 1)
	bad.CompileErrors = reporter.Record{ErrorCount: 1, Fatal: []string{"boom"}, Errors: []string{"boom"}}
	tu := tuSeeing("/p/x2.cpp", bad, withDel("/p/shared.h"))
	tu.Fatal = true
	MergeInto(agg, tu)

	// the fatal TU's edits are discarded, shared.h keeps its earlier vote
	require.Contains(t, agg, "/p/x2.cpp")
	assert.False(t, agg["/p/x2.cpp"].NeedClean())
	assert.True(t, agg["/p/x2.cpp"].HasFatal())
	assert.True(t, agg["/p/shared.h"].IsLineUnused(3), "fatal TU is excluded from the merge")
}

func TestFixDropsDeletionOnReplacedLine(t *testing.T) {
	t.Parallel()
	h := withDel("/p/a.cpp", 2)
	h.Replaces[2] = &ReplaceLine{OldFile: "/p/w.h", ReplaceTo: replaceTo("/p/r.h", "/p/w.h")}
	agg := Map{"/p/a.cpp": h}

	Fix(agg)
	assert.False(t, h.IsLineUnused(2))
	assert.True(t, h.IsLineReplaced(2))
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	h := withDel("/p/a.cpp", 1)
	h.Forwards[2] = &ForwardLine{Classes: map[string]struct{}{"class B;": {}}}
	c := h.Clone()
	c.DelLines[1].Text = "changed"
	c.Forwards[2].Classes["class C;"] = struct{}{}

	assert.Equal(t, "#include \"x.h\"", h.DelLines[1].Text)
	assert.Len(t, h.Forwards[2].Classes, 1)
}
