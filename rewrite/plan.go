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
	"sort"
	"strings"

	"github.com/cxxclean/cxxclean/history"
)

// Plan translates one file's merged cleaning record into edits on its
// buffer. Every inserted line uses the file's detected terminator; the
// forward-declaration block precedes additions that land on the same
// offset.
func Plan(buf *Buffer, h *history.FileHistory) {
	newline := h.NewLine()

	lines := make([]int, 0, len(h.Replaces))
	for line := range h.Replaces {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	for _, line := range lines {
		rl := h.Replaces[line]
		if rl.IsSkip || line <= 0 {
			// forced-included: nothing on disk to rewrite
			continue
		}
		buf.Replace(rl.Beg, rl.End, rl.ReplaceTo.NewText+newline)
	}

	lines = lines[:0]
	for line := range h.DelLines {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	for _, line := range lines {
		if line <= 0 {
			continue
		}
		dl := h.DelLines[line]
		buf.Remove(dl.Beg, dl.End)
	}

	lines = lines[:0]
	for line := range h.Forwards {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	for _, line := range lines {
		fl := h.Forwards[line]
		var text strings.Builder
		for _, cls := range fl.SortedClasses() {
			text.WriteString(cls)
			text.WriteString(newline)
		}
		if text.Len() > 0 {
			buf.Insert(fl.Offset, text.String())
		}
	}

	lines = lines[:0]
	for line := range h.Adds {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	for _, line := range lines {
		al := h.Adds[line]
		var text strings.Builder
		for _, add := range al.Adds {
			text.WriteString(add.Text)
			text.WriteString(newline)
		}
		if text.Len() > 0 {
			buf.Insert(al.Offset, text.String())
		}
	}
}
