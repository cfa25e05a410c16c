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

// Package driver defines the event stream a C++ front end delivers to the
// analyzer for one translation unit.
//
// The analyzer never talks to a front end directly; it implements Consumer
// and receives typed events in preprocessing/traversal order. FileIDs are
// assigned by the consumer when a file is entered and are echoed back by
// the driver in every later event that refers to that inclusion instance.
// This keeps the core independent of any particular parser: the shipped
// tree-sitter front end lives in the frontend package, and tests replay
// recorded Scripts.
package driver

import (
	"context"

	"github.com/cxxclean/cxxclean/source"
)

// EnterReason says why a file was entered.
type EnterReason int

const (
	// EnterMain is the root file of the translation unit.
	EnterMain EnterReason = iota
	// EnterInclude is a file entered through an #include directive.
	EnterInclude
	// EnterForced is a file injected by configuration (a compiler
	// -include flag) rather than a directive in source.
	EnterForced
)

func (r EnterReason) String() string {
	switch r {
	case EnterMain:
		return "main"
	case EnterInclude:
		return "include"
	case EnterForced:
		return "forced"
	default:
		return "unknown"
	}
}

// FileEnter announces that the preprocessor entered a file.
type FileEnter struct {
	// Loc is the position of the #include that produced the entry, in the
	// including file. Invalid for the main file and for forced includes.
	Loc source.Location
	// Path is the canonical absolute path of the entered file, case
	// preserved.
	Path string
	// Contents is the raw source buffer of the entered file.
	Contents []byte
	Reason   EnterReason
}

// IncludeDirective reports one #include line as written, whether or not it
// produced a file entry (an include guarded by #pragma once does not).
type IncludeDirective struct {
	// HashLoc is the position of the '#'.
	HashLoc source.Location
	// LineEnd is the byte offset one past the end of the directive's line
	// text (excluding the terminator) in the containing file.
	LineEnd int
	// RawText is the directive as spelled, e.g. `#include "../a.h"`.
	RawText string
	// ResolvedPath is the canonical path the filename resolved to, or ""
	// when resolution failed.
	ResolvedPath string
	// Entered reports whether a FileEnter follows for this directive.
	Entered bool
}

// MacroEvent reports a macro definition or a use of one (expansion,
// #ifdef, #ifndef, defined()).
type MacroEvent struct {
	// Loc is the expansion location of the use, or the definition location
	// for MacroDefined.
	Loc source.Location
	// DefLoc is the location of the #define this use refers to.
	DefLoc source.Location
	Name   string
}

// UseKind labels a use edge for diagnostics. All kinds participate in
// minimization identically.
type UseKind int

const (
	UseDecl UseKind = iota
	UseMacro
	UseNamespace
	UseUsing
)

func (k UseKind) String() string {
	switch k {
	case UseDecl:
		return "decl"
	case UseMacro:
		return "macro"
	case UseNamespace:
		return "namespace"
	case UseUsing:
		return "using"
	default:
		return "unknown"
	}
}

// Use reports that code at By semantically references a declaration at
// Target.
type Use struct {
	By     source.Location
	Target source.Location
	Name   string
	Kind   UseKind
}

// RecordKind is the class-key of a record type.
type RecordKind int

const (
	Class RecordKind = iota
	Struct
	Union
)

func (k RecordKind) String() string {
	switch k {
	case Class:
		return "class"
	case Struct:
		return "struct"
	case Union:
		return "union"
	default:
		return "unknown"
	}
}

// Record describes one class/struct/union type observed during traversal.
// Pointers to Record are stable within a TU and are discarded by the
// analyzer before it emits file histories.
type Record struct {
	Kind RecordKind
	// Name is the unqualified type name.
	Name string
	// Namespaces is the enclosing namespace chain, outermost first.
	Namespaces []string
	// QualifiedOutsideNamespace is true when some enclosing scope is not a
	// namespace (a nested type). Such records are never forward-declared.
	QualifiedOutsideNamespace bool
	// TemplateParams is the parameter list of a primary class template,
	// e.g. "template<typename T>". Empty for non-templates.
	TemplateParams string
	// IsSpecialization marks class-template specializations, which are
	// never forward-declared.
	IsSpecialization bool
	// Redecls holds the locations of every declaration of the record seen
	// in this TU, in translation order.
	Redecls []source.Location
}

// RecordUse reports a reference to a record type.
type RecordUse struct {
	Loc source.Location
	Rec *Record
	// PointerOnly is true when the reference occurs purely as a pointer or
	// reference spelling: no member access, no sizeof, no base-class
	// clause, and the pointee is not a class-template specialization.
	PointerOnly bool
}

// NamespaceDecl reports a namespace declaration.
type NamespaceDecl struct {
	Loc source.Location
	// Name is the full nested spelling, e.g. "A::B".
	Name string
}

// UsingNamespace reports a `using namespace N;` directive. The driver
// supplies every redeclaration location of N it knows about; only the core
// can decide which redeclaration is visible before the directive, because
// that requires the include-tree order.
type UsingNamespace struct {
	Loc source.Location
	// SpellingLoc is where the directive is literally written.
	SpellingLoc source.Location
	Name        string
	Redecls     []source.Location
}

// UsingDeclaration reports a `using X::Y;` declaration referencing the
// target declaration's location.
type UsingDeclaration struct {
	Loc    source.Location
	Target source.Location
	Name   string
}

// Severity grades a front-end diagnostic.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Diagnostic is a front-end diagnostic attributed to a source position.
type Diagnostic struct {
	Loc      source.Location
	Severity Severity
	Message  string
}

// Consumer receives the event stream of one translation unit. Events
// arrive in preprocessing/traversal order on a single goroutine; no
// callback may block on another callback.
type Consumer interface {
	// EnterFile registers an inclusion instance and returns its FileID,
	// which the driver echoes in later events.
	EnterFile(FileEnter) source.FileID
	// ExitFile reports that the preprocessor left the file.
	ExitFile(id source.FileID)
	// Include reports an #include directive as written.
	Include(IncludeDirective)
	// MacroDefined reports a #define.
	MacroDefined(MacroEvent)
	// MacroUsed reports an expansion or #ifdef/#ifndef/defined() test.
	MacroUsed(MacroEvent)
	// Use reports a semantic reference.
	Use(Use)
	// UseRecord reports a reference to a class/struct/union type.
	UseRecord(RecordUse)
	// DeclareNamespace reports a namespace declaration.
	DeclareNamespace(NamespaceDecl)
	// UsingNamespace reports a using-directive.
	UsingNamespace(UsingNamespace)
	// UsingDecl reports a using-declaration.
	UsingDecl(UsingDeclaration)
	// Diagnostic reports a front-end diagnostic.
	Diagnostic(Diagnostic)
	// Done marks the end of the translation unit.
	Done()
}

// Driver runs a front end over one translation unit, streaming events into
// the consumer. Implementations must deliver all events before returning.
type Driver interface {
	Run(ctx context.Context, mainFile string, c Consumer) error
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, mainFile string, c Consumer) error

func (f DriverFunc) Run(ctx context.Context, mainFile string, c Consumer) error {
	return f(ctx, mainFile, c)
}
