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

package include

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirs() *Dirs {
	return NewDirs([]Dir{
		{Path: `/proj/src`, Kind: User},
		{Path: `/proj/third_party/boost`, Kind: System},
		{Path: `/proj/third_party`, Kind: User},
		{Path: `/usr/include`, Kind: System},
	})
}

func TestLongestMatch(t *testing.T) {
	t.Parallel()
	d := testDirs()

	dir, rel, ok := d.LongestMatch(`/proj/third_party/boost/any.hpp`)
	require.True(t, ok)
	assert.Equal(t, `/proj/third_party/boost`, dir.Path)
	assert.Equal(t, `any.hpp`, rel)

	dir, rel, ok = d.LongestMatch(`/proj/third_party/zlib/zlib.h`)
	require.True(t, ok)
	assert.Equal(t, `/proj/third_party`, dir.Path)
	assert.Equal(t, `zlib/zlib.h`, rel)

	// comparisons are case-insensitive
	_, rel, ok = d.LongestMatch(`/Proj/Src/ui/Widget.h`)
	require.True(t, ok)
	assert.Equal(t, `ui/Widget.h`, rel)

	_, _, ok = d.LongestMatch(`/elsewhere/x.h`)
	assert.False(t, ok)
}

func TestQuoted(t *testing.T) {
	t.Parallel()
	d := testDirs()

	q, ok := d.Quoted(`/usr/include/vector`)
	require.True(t, ok)
	assert.Equal(t, `<vector>`, q)

	q, ok = d.Quoted(`/proj/src/ui/widget.h`)
	require.True(t, ok)
	assert.Equal(t, `"ui/widget.h"`, q)

	_, ok = d.Quoted(`/elsewhere/x.h`)
	assert.False(t, ok)
}

func TestIncludeString(t *testing.T) {
	t.Parallel()
	d := testDirs()

	// angled original spelling wins unchanged
	assert.Equal(t, `#include <vector>`,
		d.IncludeString(`/proj/src/a.cpp`, `/usr/include/vector`, `  #include <vector>  `))

	// same directory: bare file name
	assert.Equal(t, `#include "b.h"`,
		d.IncludeString(`/proj/src/a.cpp`, `/proj/src/b.h`, `#include "sub/../b.h"`))

	// search-dir quoting
	assert.Equal(t, `#include "ui/widget.h"`,
		d.IncludeString(`/proj/other/a.cpp`, `/proj/src/ui/widget.h`, `#include "widget.h"`))

	// fallback: relative to the consumer
	assert.Equal(t, `#include "../out/x.h"`,
		d.IncludeString(`/elsewhere/src/a.cpp`, `/elsewhere/out/x.h`, `#include "x.h"`))
}

func TestResolve(t *testing.T) {
	t.Parallel()
	d := testDirs()
	tree := map[string]bool{
		`/proj/src/a.h`:       true,
		`/proj/src/ui/w.h`:    true,
		`/usr/include/vector`: true,
		`/proj/cur/local.h`:   true,
		`/proj/third_party/z`: true,
	}
	exists := func(p string) bool { return tree[p] }

	// quoted resolution prefers the including directory
	p, ok := d.Resolve(`/proj/cur`, `local.h`, false, exists)
	require.True(t, ok)
	assert.Equal(t, `/proj/cur/local.h`, p)

	// then the search path in configured order
	p, ok = d.Resolve(`/proj/cur`, `a.h`, false, exists)
	require.True(t, ok)
	assert.Equal(t, `/proj/src/a.h`, p)

	// angled never probes the including directory
	_, ok = d.Resolve(`/proj/cur`, `local.h`, true, exists)
	assert.False(t, ok)

	p, ok = d.Resolve(`/proj/cur`, `vector`, true, exists)
	require.True(t, ok)
	assert.Equal(t, `/usr/include/vector`, p)

	// absolute spellings resolve directly
	p, ok = d.Resolve(``, `/proj/src/ui/w.h`, false, exists)
	require.True(t, ok)
	assert.Equal(t, `/proj/src/ui/w.h`, p)

	_, ok = d.Resolve(`/proj/cur`, `missing.h`, false, exists)
	assert.False(t, ok)
}

func TestNewDirsDeduplicates(t *testing.T) {
	t.Parallel()
	d := NewDirs([]Dir{
		{Path: `/proj/src/`, Kind: User},
		{Path: `/proj/SRC`, Kind: System}, // duplicate, first kind wins
	})
	require.Len(t, d.Ordered(), 1)
	assert.Equal(t, User, d.Ordered()[0].Kind)

	q, ok := d.Quoted(`/proj/src/a.h`)
	require.True(t, ok)
	assert.Equal(t, `"a.h"`, q)
}
