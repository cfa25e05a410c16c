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

// Package paths implements the path rules shared by the resolver and the
// analyzer: forward-slash normalization, dot-segment collapsing that never
// crosses a drive-letter boundary, and case-insensitive comparison with
// case-preserving storage.
package paths

import (
	"path/filepath"
	"strings"
)

// Normalize converts p to the canonical spelling used for all path
// comparisons: forward slashes, no "." segments, ".." resolved without
// crossing a drive letter or the root. Case is preserved. Normalize is a
// fixpoint: Normalize(Normalize(p)) == Normalize(p).
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")

	drive := ""
	rest := p
	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		drive = p[:2]
		rest = p[2:]
	}

	rooted := strings.HasPrefix(rest, "/")
	segs := strings.Split(rest, "/")
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		switch seg {
		case "", ".":
		case "..":
			if n := len(out); n > 0 && out[n-1] != ".." {
				out = out[:n-1]
			} else if !rooted && drive == "" {
				// relative path may keep leading ".." segments
				out = append(out, "..")
			}
			// "../" at a drive or filesystem root is dropped: never
			// cross the boundary
		default:
			out = append(out, seg)
		}
	}

	res := strings.Join(out, "/")
	if rooted {
		res = "/" + res
	}
	res = drive + res
	if res == "" {
		res = "."
	}
	return res
}

// Lower returns the case-folded form of a normalized path, the key used in
// every name-keyed map. Storage elsewhere keeps the original case for
// diagnostics.
func Lower(p string) string {
	return strings.ToLower(p)
}

// Equal compares two paths after normalization, case-insensitively.
func Equal(a, b string) bool {
	return Lower(Normalize(a)) == Lower(Normalize(b))
}

// Dir returns the directory portion of a normalized path, without a
// trailing slash (except for the filesystem root).
func Dir(p string) string {
	p = Normalize(p)
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		if len(p) == 2 && p[1] == ':' && isDriveLetter(p[0]) {
			return p
		}
		return "."
	}
	if i == 0 {
		return "/"
	}
	return p[:i]
}

// Base returns the final path element of a normalized path.
func Base(p string) string {
	p = Normalize(p)
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Stem returns the file name with its extension stripped, lower-cased; it
// backs the precompiled-header stem match.
func Stem(p string) string {
	name := Lower(Base(p))
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// Ext returns the lower-cased extension including the dot, or "".
func Ext(p string) string {
	name := Base(p)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return strings.ToLower(name[i:])
	}
	return ""
}

// SameDir reports whether two normalized absolute paths name files in the
// same immediate directory, case-insensitively.
func SameDir(a, b string) bool {
	return Lower(Dir(a)) == Lower(Dir(b))
}

// HasDirPrefix reports whether path p lies under directory dir
// (case-insensitively, component-aligned), and returns the remainder with
// no leading slash.
func HasDirPrefix(p, dir string) (rel string, ok bool) {
	p = Normalize(p)
	dir = strings.TrimSuffix(Normalize(dir), "/")
	lp, ld := Lower(p), Lower(dir)
	if !strings.HasPrefix(lp, ld) {
		return "", false
	}
	rest := p[len(dir):]
	if rest == "" {
		return "", false
	}
	if rest[0] != '/' {
		return "", false
	}
	return rest[1:], true
}

// Relative returns the relative path from the directory of fromFile to
// toFile, in normalized form. When the two paths live on different drive
// letters there is no relative spelling and toFile is returned unchanged.
func Relative(fromFile, toFile string) string {
	from := Dir(fromFile)
	to := Normalize(toFile)
	if driveOf(from) != driveOf(to) {
		return to
	}
	rel, err := filepath.Rel(filepath.FromSlash(from), filepath.FromSlash(to))
	if err != nil {
		return to
	}
	return Normalize(rel)
}

// IsAbs reports whether the normalized path is absolute (rooted or
// drive-lettered).
func IsAbs(p string) bool {
	p = Normalize(p)
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && p[2] == '/' && isDriveLetter(p[0])
}

// Join joins path elements and normalizes the result.
func Join(elems ...string) string {
	return Normalize(strings.Join(elems, "/"))
}

func driveOf(p string) string {
	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		return strings.ToLower(p[:2])
	}
	return ""
}

func isDriveLetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
