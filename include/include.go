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

// Package include models the header search configuration and the rules
// for spelling an #include directive for a given absolute target path.
package include

import (
	"sort"
	"strings"

	art "github.com/plar/go-adaptive-radix-tree"

	"github.com/cxxclean/cxxclean/internal/paths"
)

// Kind distinguishes system search directories (spelled <...>) from user
// ones (spelled "...").
type Kind int

const (
	User Kind = iota
	System
)

func (k Kind) String() string {
	if k == System {
		return "system"
	}
	return "user"
}

// Dir is one configured header search directory.
type Dir struct {
	Path string // absolute, normalized
	Kind Kind
}

// Dirs is the header search configuration. Directory lookup is
// longest-match: a file under both /proj and /proj/third_party belongs to
// the latter.
type Dirs struct {
	// configured order, used for include resolution
	ordered []Dir
	// descending directory length, used for quoting
	byLength []Dir
	// lower-cased dir path -> Dir, for exact prefix probes
	tree art.Tree
}

// NewDirs builds the search configuration from dirs in their configured
// order. Paths are normalized; duplicates keep their first kind.
func NewDirs(dirs []Dir) *Dirs {
	d := &Dirs{tree: art.New()}
	seen := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		p := strings.TrimSuffix(paths.Normalize(dir.Path), "/")
		if p == "" {
			continue
		}
		lower := paths.Lower(p)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		entry := Dir{Path: p, Kind: dir.Kind}
		d.ordered = append(d.ordered, entry)
		d.tree.Insert(art.Key(lower), entry)
	}
	d.byLength = append([]Dir(nil), d.ordered...)
	sort.SliceStable(d.byLength, func(i, j int) bool {
		return len(d.byLength[i].Path) > len(d.byLength[j].Path)
	})
	return d
}

// Sorted returns the directories by descending path length.
func (d *Dirs) Sorted() []Dir {
	if d == nil {
		return nil
	}
	return d.byLength
}

// Ordered returns the directories in configured order.
func (d *Dirs) Ordered() []Dir {
	if d == nil {
		return nil
	}
	return d.ordered
}

// LongestMatch finds the longest configured directory containing abs and
// the remainder of abs below it. Each candidate prefix of abs is probed in
// the radix tree, longest first.
func (d *Dirs) LongestMatch(abs string) (Dir, string, bool) {
	if d == nil {
		return Dir{}, "", false
	}
	abs = paths.Normalize(abs)
	lower := paths.Lower(abs)
	for i := len(lower) - 1; i > 0; i-- {
		if lower[i] != '/' {
			continue
		}
		if v, found := d.tree.Search(art.Key(lower[:i])); found {
			return v.(Dir), abs[i+1:], true
		}
	}
	return Dir{}, "", false
}

// Quoted converts an absolute path into the directive spelling its search
// directory dictates: <rel> below a system dir, "rel" below a user dir.
// ok is false when no configured directory contains the path.
func (d *Dirs) Quoted(abs string) (string, bool) {
	dir, rel, ok := d.LongestMatch(abs)
	if !ok {
		return "", false
	}
	if dir.Kind == System {
		return "<" + rel + ">", true
	}
	return `"` + rel + `"`, true
}

// IncludeString renders the #include directive that file fromFile should
// carry to pull in target directly.
//
// The original directive text of the target wins when it was angled (the
// target is a system header; its spelling is already canonical). Otherwise
// the first of these spellings that applies is chosen: a bare file name inside the
// same directory, a search-dir-relative quote, or a path relative to
// fromFile's directory.
func (d *Dirs) IncludeString(fromFile, target, rawTargetDirective string) string {
	raw := strings.TrimSpace(rawTargetDirective)
	if strings.Contains(raw, "<") {
		return raw
	}

	fromFile = paths.Normalize(fromFile)
	target = paths.Normalize(target)

	var spelling string
	switch {
	case paths.SameDir(fromFile, target):
		spelling = `"` + paths.Base(target) + `"`
	default:
		if q, ok := d.Quoted(target); ok {
			spelling = q
		} else {
			spelling = `"` + paths.Relative(fromFile, target) + `"`
		}
	}
	return "#include " + spelling
}

// Resolve finds the absolute path an #include spelling refers to, given
// the directory of the including file. exists probes the filesystem (or a
// fixture). Quoted includes try the including directory first and then the
// search path in configured order; angled includes skip the including
// directory.
func (d *Dirs) Resolve(includerDir, spelling string, angled bool, exists func(abs string) bool) (string, bool) {
	spelling = paths.Normalize(spelling)
	if paths.IsAbs(spelling) {
		if exists(spelling) {
			return spelling, true
		}
		return "", false
	}
	if !angled && includerDir != "" {
		if p := paths.Join(includerDir, spelling); exists(p) {
			return p, true
		}
	}
	for _, dir := range d.Ordered() {
		if p := paths.Join(dir.Path, spelling); exists(p) {
			return p, true
		}
	}
	return "", false
}
