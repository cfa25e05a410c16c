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

package driver

import (
	"context"
	"fmt"

	"github.com/cxxclean/cxxclean/source"
)

// Ref names a position inside a scripted translation unit symbolically:
// the Inst-th entered file (1-based, in Enter order) at byte Off. Scripts
// cannot use source.Location directly because FileIDs are assigned by the
// consumer at replay time.
type Ref struct {
	Inst int
	Off  int
}

// NoRef is the invalid Ref, replayed as source.NoLocation.
var NoRef = Ref{}

// RecordSpec describes a record type in a script; Redecls use Refs instead
// of locations. One RecordSpec produces exactly one *Record per replay, so
// identity-based set logic in the consumer behaves as it would live.
type RecordSpec struct {
	Kind                      RecordKind
	Name                      string
	Namespaces                []string
	QualifiedOutsideNamespace bool
	TemplateParams            string
	IsSpecialization          bool
	Redecls                   []Ref
}

type scriptOp struct {
	run func(p *playback) error
}

// Script is a recorded stream of parse-driver events that can be replayed
// into any Consumer. It is how the analyzer's behavior is pinned down in
// tests without a real front end. The frontend package does not build a
// Script; it delivers its events to the consumer directly.
type Script struct {
	ops     []scriptOp
	insts   int
	records []*RecordSpec
}

type playback struct {
	s    *Script
	c    Consumer
	ids  []source.FileID // index by Inst (1-based)
	recs []*Record       // index parallel to s.records
}

func (p *playback) loc(r Ref) source.Location {
	if r.Inst <= 0 {
		return source.NoLocation
	}
	if r.Inst >= len(p.ids) || !p.ids[r.Inst].IsValid() {
		return source.NoLocation
	}
	return source.Location{File: p.ids[r.Inst], Offset: r.Off}
}

func (p *playback) record(i int) *Record {
	if p.recs[i] == nil {
		spec := p.s.records[i]
		rec := &Record{
			Kind:                      spec.Kind,
			Name:                      spec.Name,
			Namespaces:                spec.Namespaces,
			QualifiedOutsideNamespace: spec.QualifiedOutsideNamespace,
			TemplateParams:            spec.TemplateParams,
			IsSpecialization:          spec.IsSpecialization,
		}
		for _, r := range spec.Redecls {
			rec.Redecls = append(rec.Redecls, p.loc(r))
		}
		p.recs[i] = rec
	}
	return p.recs[i]
}

// Enter appends a file-entry event and returns the instance handle used to
// build Refs into the file.
func (s *Script) Enter(from Ref, path string, contents []byte, reason EnterReason) int {
	s.insts++
	inst := s.insts
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		id := p.c.EnterFile(FileEnter{
			Loc:      p.loc(from),
			Path:     path,
			Contents: contents,
			Reason:   reason,
		})
		if !id.IsValid() {
			return fmt.Errorf("script: consumer rejected file %q", path)
		}
		p.ids[inst] = id
		return nil
	}})
	return inst
}

// Exit appends a file-exit event for the given instance.
func (s *Script) Exit(inst int) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.ExitFile(p.ids[inst])
		return nil
	}})
}

// Include appends an #include-directive event.
func (s *Script) Include(hash Ref, lineEnd int, raw, resolved string, entered bool) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.Include(IncludeDirective{
			HashLoc:      p.loc(hash),
			LineEnd:      lineEnd,
			RawText:      raw,
			ResolvedPath: resolved,
			Entered:      entered,
		})
		return nil
	}})
}

// MacroDefined appends a #define event.
func (s *Script) MacroDefined(def Ref, name string) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.MacroDefined(MacroEvent{Loc: p.loc(def), DefLoc: p.loc(def), Name: name})
		return nil
	}})
}

// MacroUsed appends a macro-use event.
func (s *Script) MacroUsed(at, def Ref, name string) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.MacroUsed(MacroEvent{Loc: p.loc(at), DefLoc: p.loc(def), Name: name})
		return nil
	}})
}

// Use appends a generic use edge.
func (s *Script) Use(by, target Ref, name string, kind UseKind) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.Use(Use{By: p.loc(by), Target: p.loc(target), Name: name, Kind: kind})
		return nil
	}})
}

// Record registers a record spec and returns its handle for UseRecord.
func (s *Script) Record(spec RecordSpec) int {
	s.records = append(s.records, &spec)
	return len(s.records) - 1
}

// UseRecord appends a record-use event for a handle returned by Record.
func (s *Script) UseRecord(at Ref, record int, pointerOnly bool) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.UseRecord(RecordUse{Loc: p.loc(at), Rec: p.record(record), PointerOnly: pointerOnly})
		return nil
	}})
}

// DeclareNamespace appends a namespace-declaration event.
func (s *Script) DeclareNamespace(at Ref, name string) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.DeclareNamespace(NamespaceDecl{Loc: p.loc(at), Name: name})
		return nil
	}})
}

// UsingNamespace appends a using-directive event.
func (s *Script) UsingNamespace(at, spelling Ref, name string, redecls ...Ref) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		ev := UsingNamespace{Loc: p.loc(at), SpellingLoc: p.loc(spelling), Name: name}
		for _, r := range redecls {
			ev.Redecls = append(ev.Redecls, p.loc(r))
		}
		p.c.UsingNamespace(ev)
		return nil
	}})
}

// UsingDecl appends a using-declaration event.
func (s *Script) UsingDecl(at, target Ref, name string) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.UsingDecl(UsingDeclaration{Loc: p.loc(at), Target: p.loc(target), Name: name})
		return nil
	}})
}

// Diagnostic appends a diagnostic event.
func (s *Script) Diagnostic(at Ref, sev Severity, msg string) {
	s.ops = append(s.ops, scriptOp{run: func(p *playback) error {
		p.c.Diagnostic(Diagnostic{Loc: p.loc(at), Severity: sev, Message: msg})
		return nil
	}})
}

// Play replays the recorded events into c, ending with Done. Replay stops
// at the first scripting error (a file the consumer rejected).
func (s *Script) Play(c Consumer) error {
	p := &playback{
		s:    s,
		c:    c,
		ids:  make([]source.FileID, s.insts+1),
		recs: make([]*Record, len(s.records)),
	}
	for _, op := range s.ops {
		if err := op.run(p); err != nil {
			return err
		}
	}
	c.Done()
	return nil
}

// Driver adapts the script to the Driver interface; mainFile is ignored
// because the script already fixes the root.
func (s *Script) Driver() Driver {
	return DriverFunc(func(ctx context.Context, _ string, c Consumer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.Play(c)
	})
}
