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

// Package report renders the per-run HTML report: one section per file
// with its unused includes, proposed forward declarations, replacements,
// insertions, and compile errors.
package report

import (
	_ "embed"
	"html/template"
	"io"
	"sort"

	"github.com/cxxclean/cxxclean/history"
)

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// Line is one reported source line.
type Line struct {
	Line int
	Text string
}

// Replace is one reported include replacement.
type Replace struct {
	Line    int
	OldText string
	NewText string
	InFile  string
	Skip    bool
}

// Add is one reported include insertion.
type Add struct {
	Line  int
	Texts []string
}

// Forward is one reported forward-declaration block.
type Forward struct {
	Line    int
	Classes []string
}

// FileSection is the report of one file.
type FileSection struct {
	Name     string
	IsSkip   bool
	Fatal    bool
	Unused   []Line
	Forwards []Forward
	Replaces []Replace
	Adds     []Add
	Errors   []string
}

// Data is the full report model.
type Data struct {
	Title         string
	Files         []FileSection
	FileCount     int
	UnusedCount   int
	ForwardCount  int
	ReplaceCount  int
	ErrorCount    int
	Written       int
	WriteFailures int
	DryRun        bool
}

// Build assembles the report model from the merged histories.
func Build(m history.Map, written, writeFailures int, dryRun bool) Data {
	d := Data{
		Title:         "cxxclean report",
		Written:       written,
		WriteFailures: writeFailures,
		DryRun:        dryRun,
	}
	for _, lower := range m.SortedFiles() {
		h := m[lower]
		if !h.NeedClean() && h.CompileErrors.ErrorCount == 0 {
			continue
		}
		sec := FileSection{
			Name:   h.FileName,
			IsSkip: h.IsSkip,
			Fatal:  h.HasFatal(),
			Errors: h.CompileErrors.Errors,
		}

		for _, line := range sortedLines(h.DelLines) {
			sec.Unused = append(sec.Unused, Line{Line: line, Text: h.DelLines[line].Text})
		}
		for _, line := range sortedLines(h.Forwards) {
			sec.Forwards = append(sec.Forwards, Forward{Line: line, Classes: h.Forwards[line].SortedClasses()})
		}
		for _, line := range sortedLines(h.Replaces) {
			rl := h.Replaces[line]
			sec.Replaces = append(sec.Replaces, Replace{
				Line:    line,
				OldText: rl.OldText,
				NewText: rl.ReplaceTo.NewText,
				InFile:  rl.ReplaceTo.InFile,
				Skip:    rl.IsSkip,
			})
		}
		for _, line := range sortedLines(h.Adds) {
			al := h.Adds[line]
			add := Add{Line: line}
			for _, a := range al.Adds {
				add.Texts = append(add.Texts, a.Text)
			}
			sec.Adds = append(sec.Adds, add)
		}

		d.UnusedCount += len(sec.Unused)
		d.ForwardCount += len(sec.Forwards)
		d.ReplaceCount += len(sec.Replaces)
		d.ErrorCount += len(sec.Errors)
		d.Files = append(d.Files, sec)
	}
	d.FileCount = len(d.Files)
	return d
}

// Write renders the report.
func Write(w io.Writer, d Data) error {
	return tmpl.Execute(w, d)
}

func sortedLines[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for line := range m {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}
