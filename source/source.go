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

// Package source provides the position model shared by the parse driver and
// the analyzer: file identifiers, byte-offset locations and spans, and
// per-file buffer information with line tables.
//
// A FileID names one inclusion instance of a file within a translation
// unit. The same physical file entered twice yields two distinct FileIDs
// that resolve to the same canonical path; anything that needs to reason
// about "the file" rather than "this inclusion of the file" must key by
// the lower-cased canonical path instead.
package source

import (
	"fmt"
)

// FileID identifies one inclusion instance of a source file within a single
// translation unit. The zero value is invalid. IDs are assigned densely by
// the consumer's FileSet in file-entry order, so comparing IDs of two inclusion
// instances of different files is meaningful only as "entered earlier".
type FileID int32

// NoFile is the invalid FileID.
const NoFile FileID = 0

// IsValid reports whether the FileID names a real inclusion instance.
func (id FileID) IsValid() bool {
	return id > 0
}

func (id FileID) String() string {
	if !id.IsValid() {
		return "<no file>"
	}
	return fmt.Sprintf("file#%d", int32(id))
}

// Location is an opaque position: a byte offset within one inclusion
// instance. Unless stated otherwise, locations carried on events are
// expansion locations (where a macro expansion appears), not spelling
// locations (where the token is literally written).
type Location struct {
	File   FileID
	Offset int
}

// NoLocation is the invalid Location.
var NoLocation = Location{}

// IsValid reports whether the location points into a real file.
func (l Location) IsValid() bool {
	return l.File.IsValid() && l.Offset >= 0
}

func (l Location) String() string {
	if !l.IsValid() {
		return "<no loc>"
	}
	return fmt.Sprintf("%v@%d", l.File, l.Offset)
}

// Span is a half-open byte range [Start.Offset, End) within a single file.
type Span struct {
	Start Location
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start.Offset
}

// IsValid reports whether the span covers a well-formed range.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End >= s.Start.Offset
}

func (s Span) String() string {
	if !s.IsValid() {
		return "<no span>"
	}
	return fmt.Sprintf("%v@[%d,%d)", s.Start.File, s.Start.Offset, s.End)
}
