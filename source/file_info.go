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

package source

import (
	"bytes"
	"fmt"
	"sort"
)

// FileInfo contains information about the contents of one source file: its
// raw bytes and the byte offset of every line. The line table is computed
// once at construction, which makes offset→line and line→span queries cheap.
type FileInfo struct {
	// The canonical absolute path of the file, case preserved.
	path string
	// The raw contents of the source buffer.
	data []byte
	// The offsets for each line in the file. The value is the zero-based
	// byte offset at which the line with that index begins, so lines[0] is
	// always zero.
	lines []int
}

// NewFileInfo creates file info for the given path and contents, building
// the line-offset table.
func NewFileInfo(path string, contents []byte) *FileInfo {
	fi := &FileInfo{
		path:  path,
		data:  contents,
		lines: []int{0},
	}
	for off, b := range contents {
		if b == '\n' && off+1 < len(contents) {
			fi.lines = append(fi.lines, off+1)
		}
	}
	return fi
}

// Path returns the canonical absolute path the buffer was loaded from.
func (f *FileInfo) Path() string { return f.path }

// Data returns the raw file contents. Callers must not mutate it.
func (f *FileInfo) Data() []byte { return f.data }

// Size returns the buffer length in bytes.
func (f *FileInfo) Size() int { return len(f.data) }

// LineCount returns the number of lines in the file.
func (f *FileInfo) LineCount() int { return len(f.lines) }

// LineOf returns the one-based line number containing the given byte
// offset. Offsets past the end of the buffer map to the last line.
func (f *FileInfo) LineOf(offset int) int {
	if offset < 0 {
		return 0
	}
	// index of the last line start <= offset
	i := sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > offset })
	return i
}

// LineStart returns the byte offset at which the given one-based line
// begins, or -1 if the line does not exist.
func (f *FileInfo) LineStart(line int) int {
	if line < 1 || line > len(f.lines) {
		return -1
	}
	return f.lines[line-1]
}

// LineSpan returns the byte range [beg, end) of the given one-based line,
// excluding its terminator. Mirrors the "current line" range the rewrite
// planner displays in diagnostics.
func (f *FileInfo) LineSpan(line int) (beg, end int, ok bool) {
	beg = f.LineStart(line)
	if beg < 0 {
		return 0, 0, false
	}
	end = f.lineEnd(line)
	if end > beg && f.data[end-1] == '\n' {
		end--
		if end > beg && f.data[end-1] == '\r' {
			end--
		}
	}
	return beg, end, true
}

// FullLineSpan returns the byte range [beg, end) of the given one-based
// line including its terminator, i.e. [line start, next line start).
// Deletion edits use this range so removing a directive removes its line.
func (f *FileInfo) FullLineSpan(line int) (beg, end int, ok bool) {
	beg = f.LineStart(line)
	if beg < 0 {
		return 0, 0, false
	}
	return beg, f.lineEnd(line), true
}

func (f *FileInfo) lineEnd(line int) int {
	if line < len(f.lines) {
		return f.lines[line]
	}
	return len(f.data)
}

// LineText returns the text of the given one-based line without its
// terminator, for diagnostic display.
func (f *FileInfo) LineText(line int) string {
	beg, end, ok := f.LineSpan(line)
	if !ok {
		return ""
	}
	return string(f.data[beg:end])
}

// TextOf returns the raw text covered by the given offsets, clamped to the
// buffer.
func (f *FileInfo) TextOf(beg, end int) string {
	if beg < 0 {
		beg = 0
	}
	if end > len(f.data) {
		end = len(f.data)
	}
	if beg >= end {
		return ""
	}
	return string(f.data[beg:end])
}

// IsWindowsFormat reports whether the buffer uses CRLF line endings,
// decided by the first line terminator in the file. Files with no
// terminator at all count as LF.
func (f *FileInfo) IsWindowsFormat() bool {
	i := bytes.IndexByte(f.data, '\n')
	return i > 0 && f.data[i-1] == '\r'
}

// NewLine returns the line terminator matching the file's detected format.
func (f *FileInfo) NewLine() string {
	if f.IsWindowsFormat() {
		return "\r\n"
	}
	return "\n"
}

// FileSet owns the FileInfo instances of one translation unit and the
// mapping between FileIDs and canonical paths. It is not safe for
// concurrent use; each TU-analysis owns exactly one FileSet.
type FileSet struct {
	infos  map[FileID]*FileInfo
	paths  map[FileID]string // canonical absolute path, case preserved
	lowers map[FileID]string // lower-cased canonical path
	// earliest-seen FileID per lower path; "the" file when a specific
	// inclusion instance is not needed
	primary map[string]FileID
	next    FileID
}

// NewFileSet returns an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{
		infos:   make(map[FileID]*FileInfo),
		paths:   make(map[FileID]string),
		lowers:  make(map[FileID]string),
		primary: make(map[string]FileID),
	}
}

// Add registers one inclusion instance of the file at path (canonical
// absolute, case preserved; lower is its case-folded form) and returns its
// fresh FileID. The same path may be added many times; each call returns a
// new FileID, and the first one becomes the primary ID for the path.
func (fs *FileSet) Add(path, lower string, info *FileInfo) FileID {
	fs.next++
	id := fs.next
	fs.infos[id] = info
	fs.paths[id] = path
	fs.lowers[id] = lower
	if _, ok := fs.primary[lower]; !ok {
		fs.primary[lower] = id
	}
	return id
}

// Info returns the buffer info for the given inclusion instance, or nil.
func (fs *FileSet) Info(id FileID) *FileInfo { return fs.infos[id] }

// Path returns the canonical absolute path of the inclusion instance.
func (fs *FileSet) Path(id FileID) string { return fs.paths[id] }

// Lower returns the lower-cased canonical path of the inclusion instance.
func (fs *FileSet) Lower(id FileID) string { return fs.lowers[id] }

// Primary returns the earliest-seen FileID for the given lower-cased path,
// or NoFile.
func (fs *FileSet) Primary(lower string) FileID { return fs.primary[lower] }

// First maps any inclusion instance to the primary instance of the same
// file.
func (fs *FileSet) First(id FileID) FileID {
	if p, ok := fs.primary[fs.lowers[id]]; ok {
		return p
	}
	return id
}

// SameName reports whether two inclusion instances resolve to the same
// canonical file, comparing case-insensitively.
func (fs *FileSet) SameName(a, b FileID) bool {
	if !a.IsValid() || !b.IsValid() {
		return false
	}
	return fs.lowers[a] == fs.lowers[b]
}

// Len returns the number of registered inclusion instances.
func (fs *FileSet) Len() int { return len(fs.infos) }

// IDs returns all registered FileIDs in ascending (entry) order.
func (fs *FileSet) IDs() []FileID {
	ids := make([]FileID, 0, len(fs.infos))
	for id := range fs.infos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Check verifies that a location points inside its file's buffer; it is
// used to guard edit construction.
func (fs *FileSet) Check(loc Location) error {
	info := fs.infos[loc.File]
	if info == nil {
		return fmt.Errorf("location %v: unknown file", loc)
	}
	if loc.Offset < 0 || loc.Offset > len(info.data) {
		return fmt.Errorf("location %v: offset outside buffer of size %d", loc, len(info.data))
	}
	return nil
}
