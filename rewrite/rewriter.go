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

// Package rewrite applies a file's planned edits to its source buffer and
// writes changed buffers back to disk.
package rewrite

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Edit replaces Length bytes at Offset with Text. Length zero inserts.
type Edit struct {
	Offset int
	Length int
	Text   string
}

// InvariantError reports a violated rewrite invariant, such as overlapping
// edits. It aborts the whole run: overlapping edits mean the analysis
// produced nonsense and nothing written after that point can be trusted.
type InvariantError struct {
	Path string
	Msg  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("rewrite invariant violated in %s: %s", e.Path, e.Msg)
}

// Buffer is the in-memory working copy of one file plus its pending edits.
type Buffer struct {
	path  string // canonical path, case preserved
	data  []byte
	edits []Edit
}

// NewBuffer seeds a buffer with the original file contents.
func NewBuffer(path string, data []byte) *Buffer {
	return &Buffer{path: path, data: data}
}

// Path returns the buffer's on-disk path.
func (b *Buffer) Path() string { return b.path }

// HasEdits reports whether any edit is pending.
func (b *Buffer) HasEdits() bool { return len(b.edits) > 0 }

// Remove deletes the byte range [beg, end).
func (b *Buffer) Remove(beg, end int) {
	b.edits = append(b.edits, Edit{Offset: beg, Length: end - beg, Text: ""})
}

// Replace substitutes the byte range [beg, end) with text.
func (b *Buffer) Replace(beg, end int, text string) {
	b.edits = append(b.edits, Edit{Offset: beg, Length: end - beg, Text: text})
}

// Insert places text before the byte at off. Repeated inserts at the same
// offset keep their call order in the output.
func (b *Buffer) Insert(off int, text string) {
	b.edits = append(b.edits, Edit{Offset: off, Length: 0, Text: text})
}

// Apply produces the edited contents. Edits are merged per offset, sorted
// by descending offset so each application is local, and checked for
// overlap; overlap returns an InvariantError and no result.
func (b *Buffer) Apply() ([]byte, error) {
	if len(b.edits) == 0 {
		return b.data, nil
	}

	// collapse same-offset insertions in call order so one offset carries
	// at most one insertion
	inserts := make(map[int]int) // offset -> index into merged
	merged := make([]Edit, 0, len(b.edits))
	for _, e := range b.edits {
		if e.Length == 0 {
			if i, ok := inserts[e.Offset]; ok {
				merged[i].Text += e.Text
				continue
			}
			inserts[e.Offset] = len(merged)
		}
		if e.Offset < 0 || e.Offset+e.Length > len(b.data) {
			return nil, &InvariantError{Path: b.path, Msg: fmt.Sprintf("edit [%d,%d) outside buffer of size %d", e.Offset, e.Offset+e.Length, len(b.data))}
		}
		merged = append(merged, e)
	}

	// descending offset; at equal offsets the removal applies before the
	// insertion so inserted text survives
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Offset != merged[j].Offset {
			return merged[i].Offset > merged[j].Offset
		}
		return merged[i].Length > merged[j].Length
	})

	for i := 1; i < len(merged); i++ {
		prev, cur := merged[i-1], merged[i]
		if cur.Offset+cur.Length > prev.Offset {
			return nil, &InvariantError{
				Path: b.path,
				Msg:  fmt.Sprintf("overlapping edits [%d,%d) and [%d,%d)", cur.Offset, cur.Offset+cur.Length, prev.Offset, prev.Offset+prev.Length),
			}
		}
	}

	out := append([]byte(nil), b.data...)
	for _, e := range merged {
		tail := append([]byte(e.Text), out[e.Offset+e.Length:]...)
		out = append(out[:e.Offset], tail...)
	}
	return out, nil
}

// Rewriter collects the buffers of one run and writes the changed ones
// back. The rewriter is the only writer in the system; it never touches a
// file it was not explicitly given a buffer for, which keeps system and
// outer headers safe.
type Rewriter struct {
	log     *slog.Logger
	buffers map[string]*Buffer // lower path -> buffer
	order   []string
}

// NewRewriter creates an empty rewriter.
func NewRewriter(log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.Default()
	}
	return &Rewriter{log: log, buffers: make(map[string]*Buffer)}
}

// Buffer returns the buffer registered under the lower-cased path, or nil.
func (r *Rewriter) Buffer(lower string) *Buffer { return r.buffers[lower] }

// Add registers a buffer. The first registration of a path wins; a file is
// rewritten at most once per run.
func (r *Rewriter) Add(lower string, buf *Buffer) *Buffer {
	if existing, ok := r.buffers[lower]; ok {
		return existing
	}
	r.buffers[lower] = buf
	r.order = append(r.order, lower)
	return buf
}

// Result summarizes an Overwrite call.
type Result struct {
	Written  int
	Failures int
}

// Overwrite applies every buffer's edits and replaces the changed files on
// disk. Per-file write failures are logged and counted but do not stop the
// remaining files; a violated edit invariant aborts immediately. With
// dryRun set the edits are still applied and validated, but nothing is
// written.
func (r *Rewriter) Overwrite(dryRun bool) (Result, error) {
	var res Result
	sort.Strings(r.order)
	for _, lower := range r.order {
		buf := r.buffers[lower]
		if !buf.HasEdits() {
			continue
		}
		out, err := buf.Apply()
		if err != nil {
			return res, err
		}
		if xxhash.Sum64(out) == xxhash.Sum64(buf.data) {
			continue
		}
		if dryRun {
			r.log.Info("dry run: would rewrite", "file", buf.path)
			continue
		}
		if err := overwriteFile(buf.path, out); err != nil {
			r.log.Error("overwrite failed", "file", buf.path, "err", err)
			res.Failures++
			continue
		}
		r.log.Debug("rewrote", "file", buf.path)
		res.Written++
	}
	return res, nil
}

// overwriteFile enables write permission on the target and atomically
// replaces its contents via a temporary file in the same directory.
func overwriteFile(path string, contents []byte) error {
	osPath := filepath.FromSlash(path)
	info, err := os.Stat(osPath)
	if err != nil {
		return err
	}
	mode := info.Mode()
	if mode&0o200 == 0 {
		if err := os.Chmod(osPath, mode|0o200); err != nil {
			return fmt.Errorf("enable write permission: %w", err)
		}
		mode |= 0o200
	}

	dir := filepath.Dir(osPath)
	tmp, err := os.CreateTemp(dir, ".cxxclean-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode.Perm()); err != nil {
		return err
	}
	return os.Rename(tmpName, osPath)
}
