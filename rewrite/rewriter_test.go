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

package rewrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxclean/cxxclean/history"
)

func TestBufferApply(t *testing.T) {
	t.Parallel()
	src := "#include \"a.h\"\n#include \"b.h\"\nint x;\n"
	buf := NewBuffer("/p/f.cpp", []byte(src))

	// delete the second include, insert above the first
	buf.Remove(15, 30)
	buf.Insert(0, "class B;\n")

	out, err := buf.Apply()
	require.NoError(t, err)
	assert.Equal(t, "class B;\n#include \"a.h\"\nint x;\n", string(out))
}

func TestBufferApplyDeleteThenInsertAtSameOffset(t *testing.T) {
	t.Parallel()
	buf := NewBuffer("/p/f.cpp", []byte("AAA\nBBB\n"))
	buf.Remove(0, 4)
	buf.Insert(0, "X\n")

	out, err := buf.Apply()
	require.NoError(t, err)
	assert.Equal(t, "X\nBBB\n", string(out), "the removal applies before the insertion")
}

func TestBufferApplyInsertOrderAtSameOffset(t *testing.T) {
	t.Parallel()
	buf := NewBuffer("/p/f.cpp", []byte("tail"))
	buf.Insert(0, "first\n")
	buf.Insert(0, "second\n")

	out, err := buf.Apply()
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\ntail", string(out))
}

func TestBufferApplyOverlapFails(t *testing.T) {
	t.Parallel()
	buf := NewBuffer("/p/f.cpp", []byte("0123456789"))
	buf.Remove(0, 5)
	buf.Remove(3, 7)

	_, err := buf.Apply()
	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "/p/f.cpp", inv.Path)
}

func TestBufferApplyOutOfRangeFails(t *testing.T) {
	t.Parallel()
	buf := NewBuffer("/p/f.cpp", []byte("abc"))
	buf.Remove(1, 10)
	_, err := buf.Apply()
	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
}

func TestPlanCRLF(t *testing.T) {
	t.Parallel()
	src := "#include \"a.h\"\r\n#include \"b.h\"\r\n#include \"c.h\"\r\nvoid f();\r\n"
	h := history.NewFileHistory("/p/f.cpp")
	h.IsWindowsFormat = true
	// delete lines 2 and 3, each with its terminator
	h.DelLines[2] = &history.DelLine{Beg: 16, End: 32, Text: `#include "b.h"`}
	h.DelLines[3] = &history.DelLine{Beg: 32, End: 48, Text: `#include "c.h"`}
	h.Forwards[1] = &history.ForwardLine{
		Offset:  0,
		Classes: map[string]struct{}{"class B;": {}},
	}

	buf := NewBuffer("/p/f.cpp", []byte(src))
	Plan(buf, h)
	out, err := buf.Apply()
	require.NoError(t, err)
	assert.Equal(t, "class B;\r\n#include \"a.h\"\r\nvoid f();\r\n", string(out),
		"deletions take their CRLF with them and inserted lines end with CRLF")
}

func TestPlanReplaceAndAdd(t *testing.T) {
	t.Parallel()
	src := "#include \"wrap.h\"\n#include \"keep.h\"\nint x;\n"
	h := history.NewFileHistory("/p/f.cpp")
	h.Replaces[1] = &history.ReplaceLine{
		Beg: 0, End: 18,
		OldFile:   "/p/wrap.h",
		ReplaceTo: history.ReplaceTo{FileName: "/p/real.h", NewText: `#include "real.h"`},
	}
	h.Adds[2] = &history.AddLine{
		Offset: 36,
		Adds: []history.BeAdd{
			{FileName: "/p/extra.h", Text: `#include "extra.h"`},
		},
	}

	buf := NewBuffer("/p/f.cpp", []byte(src))
	Plan(buf, h)
	out, err := buf.Apply()
	require.NoError(t, err)
	assert.Equal(t,
		"#include \"real.h\"\n#include \"keep.h\"\n#include \"extra.h\"\nint x;\n",
		string(out))
}

func TestPlanSkipsForcedReplacement(t *testing.T) {
	t.Parallel()
	src := "int x;\n"
	h := history.NewFileHistory("/p/f.cpp")
	h.Replaces[0] = &history.ReplaceLine{
		IsSkip:    true,
		ReplaceTo: history.ReplaceTo{NewText: `#include "real.h"`},
	}
	buf := NewBuffer("/p/f.cpp", []byte(src))
	Plan(buf, h)
	out, err := buf.Apply()
	require.NoError(t, err)
	assert.Equal(t, src, string(out))
}

func TestOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.cpp")
	require.NoError(t, os.WriteFile(path, []byte("#include \"a.h\"\nint x;\n"), 0o444))

	rw := NewRewriter(nil)
	buf := rw.Add(path, NewBuffer(path, []byte("#include \"a.h\"\nint x;\n")))
	buf.Remove(0, 15)

	res, err := rw.Overwrite(false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Zero(t, res.Failures)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "int x;\n", string(got), "read-only files gain write permission and are replaced")
}

func TestOverwriteDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.cpp")
	original := "#include \"a.h\"\nint x;\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	rw := NewRewriter(nil)
	buf := rw.Add(path, NewBuffer(path, []byte(original)))
	buf.Remove(0, 15)

	res, err := rw.Overwrite(true)
	require.NoError(t, err)
	assert.Zero(t, res.Written)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(got))
}

func TestOverwriteUnchangedBufferNotWritten(t *testing.T) {
	t.Parallel()
	// an edit that reproduces the original bytes must not touch the file;
	// this is what makes a second run of the tool a no-op
	rw := NewRewriter(nil)
	buf := rw.Add("/nonexistent/f.cpp", NewBuffer("/nonexistent/f.cpp", []byte("abc")))
	buf.Replace(0, 3, "abc")

	res, err := rw.Overwrite(false)
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Zero(t, res.Failures, "unchanged buffers never reach the file system")
}

func TestRewriterFirstBufferWins(t *testing.T) {
	t.Parallel()
	rw := NewRewriter(nil)
	first := rw.Add("/p/f.cpp", NewBuffer("/p/f.cpp", []byte("a")))
	second := rw.Add("/p/f.cpp", NewBuffer("/p/f.cpp", []byte("b")))
	assert.Same(t, first, second, "a file is rewritten at most once per run")
}
