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

// Package analyzer implements the per-translation-unit analysis: it
// ingests parse-driver events into a dependency graph, minimizes each user
// file's include set, promotes pointer-only record uses to forward
// declarations, and extracts the per-file cleaning history.
package analyzer

import (
	"log/slog"
	"sort"

	"github.com/cxxclean/cxxclean/driver"
	"github.com/cxxclean/cxxclean/history"
	"github.com/cxxclean/cxxclean/include"
	"github.com/cxxclean/cxxclean/internal/paths"
	"github.com/cxxclean/cxxclean/reporter"
	"github.com/cxxclean/cxxclean/source"
)

type (
	fileSet   map[source.FileID]struct{}
	nameSet   map[string]struct{}
	recordSet map[*driver.Record]struct{}
)

func (s fileSet) sorted() []source.FileID {
	out := make([]source.FileID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s fileSet) clone() fileSet {
	c := make(fileSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Options configures one TU analysis.
type Options struct {
	// CanClean decides whether a file (lower-cased canonical path) belongs
	// to the allow-clean set.
	CanClean func(lower string) bool
	// Skip matches files excluded from rewriting by --skip patterns.
	// Optional.
	Skip func(lower string) bool
	// PCHStems are the lower-cased file-name stems that mark precompiled
	// headers. Empty means the default ("stdafx").
	PCHStems []string
	// SearchDirs is the header search configuration, longest directory
	// first, used to spell replacement and added includes. May be nil.
	SearchDirs *include.Dirs
	// Handler receives front-end diagnostics. Required.
	Handler *reporter.Handler
	// Logger receives analysis traces. Optional.
	Logger *slog.Logger
}

func (o Options) pchStems() []string {
	if len(o.PCHStems) == 0 {
		return []string{"stdafx"}
	}
	return o.PCHStems
}

// useName records one referenced name for the analysis trace and report.
type useName struct {
	name string
	line int
}

// Analysis is the state of one translation unit's analysis. It implements
// driver.Consumer; after the driver reports Done the result is available
// via Result. An Analysis is single-goroutine, owned by its driver run.
type Analysis struct {
	opts Options
	log  *slog.Logger

	fset *source.FileSet
	root source.FileID

	// raw dependency data, built during event ingestion
	parents     map[source.FileID]source.FileID
	includeLocs map[source.FileID]source.Location // position of the #include producing the entry
	includes    map[string]fileSet                // lower parent path -> directly included instances
	uses        map[source.FileID]fileSet
	useNames    map[source.FileID]map[source.FileID][]useName
	forced      fileSet // entered by configuration, not by a directive
	skips       fileSet // matched a --skip pattern

	// record uses for forward-declaration analysis; pointers die with the TU
	fileUsePointers map[source.FileID]recordSet // pointer/reference-only spellings
	fileUseRecords  map[source.FileID]recordSet // spellings requiring the complete type

	// namespace bookkeeping, report only
	namespaces      map[source.FileID][]string
	usingNamespaces map[source.FileID][]string

	// derived during analysis
	kidsByName      map[string]nameSet // lower path -> descendant lower paths
	defaultIncludes fileSet            // forced includes and precompiled headers
	userFiles       fileSet
	outerAncestor   map[source.FileID]source.FileID
	userUses        map[string]fileSet // lower path of using file -> used instances
	minInclude      map[source.FileID]fileSet
	minKids         map[source.FileID]fileSet
	forwardClass    map[source.FileID]recordSet

	result *history.TUResult
}

// New creates an analysis ready to consume one TU's event stream.
func New(opts Options) *Analysis {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Analysis{
		opts:            opts,
		log:             log,
		fset:            source.NewFileSet(),
		parents:         make(map[source.FileID]source.FileID),
		includeLocs:     make(map[source.FileID]source.Location),
		includes:        make(map[string]fileSet),
		uses:            make(map[source.FileID]fileSet),
		useNames:        make(map[source.FileID]map[source.FileID][]useName),
		forced:          make(fileSet),
		skips:           make(fileSet),
		fileUsePointers: make(map[source.FileID]recordSet),
		fileUseRecords:  make(map[source.FileID]recordSet),
		namespaces:      make(map[source.FileID][]string),
		usingNamespaces: make(map[source.FileID][]string),
	}
}

// FileSet exposes the TU's file table; the report uses it to render
// locations.
func (a *Analysis) FileSet() *source.FileSet { return a.fset }

// Root returns the TU's main file.
func (a *Analysis) Root() source.FileID { return a.root }

var _ driver.Consumer = (*Analysis)(nil)

// EnterFile implements driver.Consumer.
func (a *Analysis) EnterFile(ev driver.FileEnter) source.FileID {
	path := paths.Normalize(ev.Path)
	lower := paths.Lower(path)

	id := a.fset.Add(path, lower, source.NewFileInfo(path, ev.Contents))
	if !a.root.IsValid() {
		a.root = id
	}
	if a.opts.Skip != nil && a.opts.Skip(lower) {
		a.skips[id] = struct{}{}
	}

	switch ev.Reason {
	case driver.EnterInclude:
		if ev.Loc.IsValid() && ev.Loc.File != id {
			a.parents[id] = ev.Loc.File
			a.includeLocs[id] = ev.Loc
			parentLower := a.fset.Lower(ev.Loc.File)
			a.addInclude(parentLower, id)
		}
	case driver.EnterForced:
		if id != a.root {
			a.parents[id] = a.root
			a.forced[id] = struct{}{}
			a.addInclude(a.fset.Lower(a.root), id)
		}
	}
	return id
}

func (a *Analysis) addInclude(parentLower string, id source.FileID) {
	if s, ok := a.includes[parentLower]; ok {
		s[id] = struct{}{}
	} else {
		a.includes[parentLower] = fileSet{id: {}}
	}
}

// ExitFile implements driver.Consumer.
func (a *Analysis) ExitFile(source.FileID) {}

// Include implements driver.Consumer. Directives that enter a file are
// tracked through EnterFile; the rest (guard-suppressed repeats,
// unresolved targets) leave no deletable record, matching the behavior of
// a preprocessor that never re-enters a guarded header.
func (a *Analysis) Include(ev driver.IncludeDirective) {
	if !ev.Entered && ev.ResolvedPath == "" && ev.HashLoc.IsValid() {
		a.log.Debug("include did not resolve", "at", ev.HashLoc, "text", ev.RawText)
	}
}

// MacroDefined implements driver.Consumer.
func (a *Analysis) MacroDefined(driver.MacroEvent) {}

// MacroUsed implements driver.Consumer. Macro uses are ordinary use edges
// apart from their diagnostic label.
func (a *Analysis) MacroUsed(ev driver.MacroEvent) {
	a.use(ev.Loc, ev.DefLoc, ev.Name, driver.UseMacro)
}

// Use implements driver.Consumer.
func (a *Analysis) Use(ev driver.Use) {
	a.use(ev.By, ev.Target, ev.Name, ev.Kind)
}

func (a *Analysis) use(by, target source.Location, name string, kind driver.UseKind) {
	if !by.IsValid() || !target.IsValid() {
		return
	}
	byFile, targetFile := by.File, target.File
	if byFile == targetFile {
		return
	}
	if s, ok := a.uses[byFile]; ok {
		s[targetFile] = struct{}{}
	} else {
		a.uses[byFile] = fileSet{targetFile: {}}
	}
	if name != "" {
		byNames := a.useNames[byFile]
		if byNames == nil {
			byNames = make(map[source.FileID][]useName)
			a.useNames[byFile] = byNames
		}
		info := a.fset.Info(byFile)
		line := 0
		if info != nil {
			line = info.LineOf(by.Offset)
		}
		byNames[targetFile] = append(byNames[targetFile], useName{name: kind.String() + " " + name, line: line})
	}
}

// UseRecord implements driver.Consumer. Pointer-only references to
// forward-declarable records are candidates and produce no use edge;
// everything else is a complete-type reference through the record's
// earliest declaration. A pointer spelling of a record that cannot be
// forward-declared (nested type, specialization) must keep its include,
// so it degrades to a full use.
func (a *Analysis) UseRecord(ev driver.RecordUse) {
	if ev.Rec == nil || !ev.Loc.IsValid() {
		return
	}
	file := ev.Loc.File
	if ev.PointerOnly && forwardable(ev.Rec) {
		if s, ok := a.fileUsePointers[file]; ok {
			s[ev.Rec] = struct{}{}
		} else {
			a.fileUsePointers[file] = recordSet{ev.Rec: {}}
		}
		return
	}
	if s, ok := a.fileUseRecords[file]; ok {
		s[ev.Rec] = struct{}{}
	} else {
		a.fileUseRecords[file] = recordSet{ev.Rec: {}}
	}
	if len(ev.Rec.Redecls) > 0 {
		a.use(ev.Loc, ev.Rec.Redecls[0], ev.Rec.Name, driver.UseDecl)
	}
}

// DeclareNamespace implements driver.Consumer.
func (a *Analysis) DeclareNamespace(ev driver.NamespaceDecl) {
	if !ev.Loc.IsValid() {
		return
	}
	a.namespaces[ev.Loc.File] = append(a.namespaces[ev.Loc.File], ev.Name)
}

// UsingNamespace implements driver.Consumer. Only redeclarations of the
// nominated namespace visible before the directive are considered; one in
// the same file or an ancestor is preferred over any other, and the edge
// goes to the chosen redeclaration.
func (a *Analysis) UsingNamespace(ev driver.UsingNamespace) {
	if !ev.Loc.IsValid() {
		return
	}
	a.usingNamespaces[ev.Loc.File] = append(a.usingNamespaces[ev.Loc.File], ev.Name)

	// one in the directive's own file or an ancestor of it is preferred;
	// among equally preferred ones the latest visible before the directive
	// wins
	var best source.Location
	var bestPreferred bool
	for _, redecl := range ev.Redecls {
		if !redecl.IsValid() || !a.isBefore(redecl, ev.Loc) {
			continue
		}
		preferred := redecl.File == ev.Loc.File || a.isAncestor(ev.Loc.File, redecl.File)
		switch {
		case !best.IsValid(), preferred && !bestPreferred:
			best, bestPreferred = redecl, preferred
		case preferred == bestPreferred && a.isBefore(best, redecl):
			best = redecl
		}
	}
	if best.IsValid() {
		a.use(ev.Loc, best, ev.Name, driver.UseNamespace)
	}
}

// UsingDecl implements driver.Consumer.
func (a *Analysis) UsingDecl(ev driver.UsingDeclaration) {
	a.use(ev.Loc, ev.Target, ev.Name, driver.UseUsing)
}

// Diagnostic implements driver.Consumer.
func (a *Analysis) Diagnostic(ev driver.Diagnostic) {
	if err := a.opts.Handler.HandleDiagnostic(ev); err != nil {
		a.log.Error("diagnostic handler aborted", "err", err)
	}
}

// Done implements driver.Consumer: it runs the analysis pipeline and
// freezes the TU result.
func (a *Analysis) Done() {
	a.generateKidsByName()
	a.generateDefaultIncludes()
	a.generateOuterAncestors()
	a.generateUserUse()
	a.generateMinInclude()
	a.generateForwardClass()
	a.trace()
	a.takeHistories()
}

// Result returns the merged-ready TU result; valid only after Done.
func (a *Analysis) Result() history.TUResult {
	if a.result == nil {
		return history.TUResult{Files: history.Map{}}
	}
	return *a.result
}

// IsUserFile reports whether the inclusion instance belongs to the
// allow-clean set and is not under a forced-include or skip rule.
func (a *Analysis) IsUserFile(id source.FileID) bool {
	_, ok := a.userFiles[id]
	return ok
}

// isUserFileRaw is the membership predicate evaluated once per file when
// the user-file set is generated.
func (a *Analysis) isUserFileRaw(id source.FileID) bool {
	lower := a.fset.Lower(id)
	if a.opts.CanClean == nil || !a.opts.CanClean(lower) {
		return false
	}
	if a.isAncestorDefaultInclude(id) {
		return false
	}
	return !a.isAncestorSkip(id)
}

func (a *Analysis) isOuterFile(id source.FileID) bool {
	if !id.IsValid() {
		return false
	}
	_, user := a.userFiles[id]
	return !user
}

func (a *Analysis) parent(id source.FileID) source.FileID {
	return a.parents[id]
}

func (a *Analysis) isPrecompiledHeader(id source.FileID) bool {
	stem := paths.Stem(a.fset.Lower(id))
	for _, s := range a.opts.pchStems() {
		if len(stem) >= len(s) && stem[:len(s)] == s {
			return true
		}
	}
	return false
}

func (a *Analysis) isDefaultIncluded(id source.FileID) bool {
	if _, ok := a.forced[id]; ok {
		return true
	}
	return a.isPrecompiledHeader(id)
}

// isAncestorDefaultInclude reports whether the file or any same-named
// ancestor of it is default-included; such files are always visible and
// never worth keeping in a minimal include set.
func (a *Analysis) isAncestorDefaultInclude(id source.FileID) bool {
	for def := range a.defaultIncludes {
		if id == def || a.isAncestorByName(id, def) {
			return true
		}
	}
	return false
}

func (a *Analysis) isAncestorSkip(id source.FileID) bool {
	for skip := range a.skips {
		if id == skip || a.isAncestorByName(id, skip) {
			return true
		}
	}
	return false
}
