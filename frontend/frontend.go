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

// Package frontend is the shipped parse-driver implementation: a
// best-effort C++ front end built on tree-sitter-cpp.
//
// It preprocesses naively (includes resolve through the configured
// Resolver, a header enters at most once per translation unit, as if every
// header carried an include guard), collects declarations in traversal
// order, and reports references against the collected symbols. It is
// deliberately conservative: a construct it cannot resolve produces no use
// edge and, where that could matter for correctness, a diagnostic, so the
// analyzer errs toward keeping includes rather than inventing or dropping
// dependencies.
package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"github.com/cxxclean/cxxclean"
	"github.com/cxxclean/cxxclean/driver"
	"github.com/cxxclean/cxxclean/internal/paths"
	"github.com/cxxclean/cxxclean/source"
)

// Frontend implements driver.Driver on tree-sitter-cpp.
type Frontend struct {
	// Resolver loads translation units and resolves #include spellings.
	Resolver cxxclean.Resolver
	// ForceIncludes are header paths injected before the main file's
	// content, in order.
	ForceIncludes []string
	// Predefines are NAME or NAME=VALUE macro definitions from the
	// compiler configuration. Uses of them produce no include dependency.
	Predefines []string
	// Logger receives front-end traces; nil means slog.Default().
	Logger *slog.Logger
}

var _ driver.Driver = (*Frontend)(nil)

// Run parses the translation unit rooted at mainFile and streams events
// into c.
func (f *Frontend) Run(ctx context.Context, mainFile string, c driver.Consumer) error {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	lang := tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	if err := parser.SetLanguage(lang); err != nil {
		return fmt.Errorf("tree-sitter C++ grammar: %w", err)
	}

	tu := &tuWalk{
		fe:       f,
		log:      log,
		parser:   parser,
		consumer: c,
		visited:  make(map[string]source.FileID),
		symbols:  make(map[string]symbol),
		macros:   make(map[string]source.Location),
		records:  make(map[string]*driver.Record),
		nsDecls:  make(map[string][]source.Location),
	}
	for _, def := range f.Predefines {
		name := def
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		if name != "" {
			// predefined macros resolve but carry no location, so their
			// uses never pin an include
			tu.macros[name] = source.NoLocation
		}
	}

	sr, err := f.Resolver.FindFile(mainFile)
	if err != nil {
		return fmt.Errorf("open translation unit: %w", err)
	}
	rootID := c.EnterFile(driver.FileEnter{
		Path:     sr.ResolvedPath,
		Contents: sr.Contents,
		Reason:   driver.EnterMain,
	})
	tu.visited[paths.Lower(paths.Normalize(sr.ResolvedPath))] = rootID

	for _, forced := range f.ForceIncludes {
		if err := ctx.Err(); err != nil {
			return err
		}
		fsr, ferr := f.Resolver.FindFile(forced)
		if ferr != nil {
			fsr, ferr = f.Resolver.FindInclude(paths.Dir(sr.ResolvedPath), forced, false)
		}
		if ferr != nil {
			c.Diagnostic(driver.Diagnostic{
				Loc:      source.Location{File: rootID},
				Severity: driver.SeverityFatal,
				Message:  fmt.Sprintf("forced include %q not found", forced),
			})
			continue
		}
		id := c.EnterFile(driver.FileEnter{
			Path:     fsr.ResolvedPath,
			Contents: fsr.Contents,
			Reason:   driver.EnterForced,
		})
		tu.visited[paths.Lower(paths.Normalize(fsr.ResolvedPath))] = id
		if err := tu.processFile(ctx, id, fsr.ResolvedPath, fsr.Contents); err != nil {
			return err
		}
		c.ExitFile(id)
	}

	if err := tu.processFile(ctx, rootID, sr.ResolvedPath, sr.Contents); err != nil {
		return err
	}
	c.ExitFile(rootID)
	c.Done()
	return nil
}

// symbol is one named declaration visible at file scope. The earliest
// declaration wins: later references prefer edges to the first place a
// name appeared, matching how redeclarations are resolved.
type symbol struct {
	loc source.Location
	rec *driver.Record // non-nil for class/struct/union names
}

type tuWalk struct {
	fe       *Frontend
	log      *slog.Logger
	parser   *tree_sitter.Parser
	consumer driver.Consumer

	// lower path -> FileID; a path enters at most once per TU
	visited map[string]source.FileID
	symbols map[string]symbol
	macros  map[string]source.Location
	// qualified record key -> record identity shared by all redecls
	records map[string]*driver.Record
	nsDecls map[string][]source.Location
}

// processFile parses one file and walks it in document order, entering
// included files at their directive positions.
func (w *tuWalk) processFile(ctx context.Context, id source.FileID, path string, contents []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tree := w.parser.Parse(contents, nil)
	if tree == nil {
		w.consumer.Diagnostic(driver.Diagnostic{
			Loc:      source.Location{File: id},
			Severity: driver.SeverityFatal,
			Message:  "parse produced no tree",
		})
		return nil
	}
	defer tree.Close()

	fw := &fileWalk{tu: w, id: id, path: paths.Normalize(path), src: contents}
	return fw.walk(ctx, tree.RootNode())
}
