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

package cxxclean

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cxxclean/cxxclean/driver"
	"github.com/cxxclean/cxxclean/internal/paths"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptsFor dispatches scripted translation units by main-file path.
func scriptsFor(scripts map[string]*driver.Script) driver.Driver {
	return driver.DriverFunc(func(ctx context.Context, mainFile string, c driver.Consumer) error {
		s, ok := scripts[paths.Lower(paths.Normalize(mainFile))]
		if !ok {
			return fmt.Errorf("no script for %q", mainFile)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.Play(c)
	})
}

func ref(inst int, content, substr string) driver.Ref {
	return driver.Ref{Inst: inst, Off: strings.Index(content, substr)}
}

// writeTree materializes the fixture under a temp dir and returns the
// directory plus a path helper.
func writeTree(t *testing.T, files map[string]string) (string, func(string) string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir, func(name string) string {
		return paths.Normalize(filepath.Join(dir, name))
	}
}

func TestCleanRemovesUnusedInclude(t *testing.T) {
	aCpp := "#include \"b.h\"\n#include \"c.h\"\nvoid f(){ B b; }\n"
	bH := "class B {};\n"
	cH := "class C {};\n"
	dir, at := writeTree(t, map[string]string{
		"a.cpp": aCpp, "b.h": bH, "c.h": cH,
	})

	s := &driver.Script{}
	main := s.Enter(driver.NoRef, at("a.cpp"), []byte(aCpp), driver.EnterMain)
	b := s.Enter(ref(main, aCpp, `#include "b.h"`), at("b.h"), []byte(bH), driver.EnterInclude)
	s.Exit(b)
	c := s.Enter(ref(main, aCpp, `#include "c.h"`), at("c.h"), []byte(cH), driver.EnterInclude)
	s.Exit(c)
	s.Use(ref(main, aCpp, "B b"), ref(b, bH, "class B"), "B", driver.UseDecl)

	cleaner := &Cleaner{
		Config: &Config{
			AllowCleanDir: paths.Normalize(dir),
		},
		Driver:   scriptsFor(map[string]*driver.Script{paths.Lower(at("a.cpp")): s}),
		Resolver: &SourceResolver{},
	}

	res, err := cleaner.Clean(context.Background(), at("a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Zero(t, res.WriteFailures)

	got, err := os.ReadFile(filepath.Join(dir, "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "#include \"b.h\"\nvoid f(){ B b; }\n", string(got))

	// the untouched files stay untouched
	got, err = os.ReadFile(filepath.Join(dir, "c.h"))
	require.NoError(t, err)
	assert.Equal(t, cH, string(got))
}

func TestCleanSecondRunIsNoOp(t *testing.T) {
	// rewriting is idempotent: a TU whose includes are all used produces
	// no edits and no write
	aCpp := "#include \"b.h\"\nvoid f(){ B b; }\n"
	bH := "class B {};\n"
	dir, at := writeTree(t, map[string]string{"a.cpp": aCpp, "b.h": bH})

	s := &driver.Script{}
	main := s.Enter(driver.NoRef, at("a.cpp"), []byte(aCpp), driver.EnterMain)
	b := s.Enter(ref(main, aCpp, `#include "b.h"`), at("b.h"), []byte(bH), driver.EnterInclude)
	s.Exit(b)
	s.Use(ref(main, aCpp, "B b"), ref(b, bH, "class B"), "B", driver.UseDecl)

	cleaner := &Cleaner{
		Config:   &Config{AllowCleanDir: paths.Normalize(dir)},
		Driver:   scriptsFor(map[string]*driver.Script{paths.Lower(at("a.cpp")): s}),
		Resolver: &SourceResolver{},
	}
	res, err := cleaner.Clean(context.Background(), at("a.cpp"))
	require.NoError(t, err)
	assert.Zero(t, res.Written)

	got, err := os.ReadFile(filepath.Join(dir, "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, aCpp, string(got))
}

func TestCleanConflictAcrossTUsPreservesLine(t *testing.T) {
	// In x.cpp's TU nothing in shared.h touches util.h; in y.cpp's TU the
	// template in shared.h is instantiated and calls util(). One
	// disagreeing TU preserves the line.
	sharedH := "#include \"util.h\"\ntemplate<class T> void touch(){ util(); }\nclass S {};\n"
	utilH := "void util();\n"
	xCpp := "#include \"shared.h\"\nvoid fx(){ S s; }\n"
	yCpp := "#include \"shared.h\"\nvoid fy(){ S s; touch<int>(); }\n"
	dir, at := writeTree(t, map[string]string{
		"shared.h": sharedH, "util.h": utilH, "x.cpp": xCpp, "y.cpp": yCpp,
	})

	buildTU := func(mainName, mainContent string, instantiates bool) *driver.Script {
		s := &driver.Script{}
		main := s.Enter(driver.NoRef, at(mainName), []byte(mainContent), driver.EnterMain)
		shared := s.Enter(ref(main, mainContent, `#include "shared.h"`), at("shared.h"), []byte(sharedH), driver.EnterInclude)
		util := s.Enter(ref(shared, sharedH, `#include "util.h"`), at("util.h"), []byte(utilH), driver.EnterInclude)
		s.Exit(util)
		s.Exit(shared)
		s.Use(ref(main, mainContent, "S s"), ref(shared, sharedH, "class S"), "S", driver.UseDecl)
		if instantiates {
			s.Use(ref(main, mainContent, "touch<int>"), ref(shared, sharedH, "template"), "touch", driver.UseDecl)
			s.Use(ref(shared, sharedH, "util()"), ref(util, utilH, "void util"), "util", driver.UseDecl)
		}
		return s
	}

	cleaner := &Cleaner{
		Config: &Config{AllowCleanDir: paths.Normalize(dir)},
		Driver: scriptsFor(map[string]*driver.Script{
			paths.Lower(at("x.cpp")): buildTU("x.cpp", xCpp, false),
			paths.Lower(at("y.cpp")): buildTU("y.cpp", yCpp, true),
		}),
		Resolver:       &SourceResolver{},
		MaxParallelism: 2,
	}

	res, err := cleaner.Clean(context.Background(), at("x.cpp"), at("y.cpp"))
	require.NoError(t, err)
	require.Len(t, res.TUs, 2)

	got, err := os.ReadFile(filepath.Join(dir, "shared.h"))
	require.NoError(t, err)
	assert.Equal(t, sharedH, string(got), "no edit to shared.h: the disagreement preserves the line")
}

func TestCleanDryRunWritesNothing(t *testing.T) {
	aCpp := "#include \"c.h\"\nint main(){}\n"
	cH := "class C {};\n"
	dir, at := writeTree(t, map[string]string{"a.cpp": aCpp, "c.h": cH})

	s := &driver.Script{}
	main := s.Enter(driver.NoRef, at("a.cpp"), []byte(aCpp), driver.EnterMain)
	c := s.Enter(ref(main, aCpp, `#include "c.h"`), at("c.h"), []byte(cH), driver.EnterInclude)
	s.Exit(c)

	cleaner := &Cleaner{
		Config:   &Config{AllowCleanDir: paths.Normalize(dir), DryRun: true},
		Driver:   scriptsFor(map[string]*driver.Script{paths.Lower(at("a.cpp")): s}),
		Resolver: &SourceResolver{},
	}
	res, err := cleaner.Clean(context.Background(), at("a.cpp"))
	require.NoError(t, err)
	assert.Zero(t, res.Written)

	// the edit was still computed for the report
	require.Contains(t, res.Histories, paths.Lower(at("a.cpp")))
	assert.True(t, res.Histories[paths.Lower(at("a.cpp"))].NeedClean())

	got, err := os.ReadFile(filepath.Join(dir, "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, aCpp, string(got))
}

func TestCleanNoTranslationUnits(t *testing.T) {
	cleaner := &Cleaner{Config: &Config{}, Resolver: &SourceResolver{}}
	res, err := cleaner.Clean(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Histories)
	assert.Zero(t, res.Written)
}

func TestCleanFatalTUNotRewritten(t *testing.T) {
	aCpp := "#include \"c.h\"\nthis does not parse\n"
	cH := "class C {};\n"
	dir, at := writeTree(t, map[string]string{"a.cpp": aCpp, "c.h": cH})

	s := &driver.Script{}
	main := s.Enter(driver.NoRef, at("a.cpp"), []byte(aCpp), driver.EnterMain)
	c := s.Enter(ref(main, aCpp, `#include "c.h"`), at("c.h"), []byte(cH), driver.EnterInclude)
	s.Exit(c)
	s.Diagnostic(ref(main, aCpp, "this does not parse"), driver.SeverityFatal, "expected declaration")

	cleaner := &Cleaner{
		Config:   &Config{AllowCleanDir: paths.Normalize(dir)},
		Driver:   scriptsFor(map[string]*driver.Script{paths.Lower(at("a.cpp")): s}),
		Resolver: &SourceResolver{},
	}
	res, err := cleaner.Clean(context.Background(), at("a.cpp"))
	require.NoError(t, err)
	require.Len(t, res.TUs, 1)
	assert.True(t, res.TUs[0].Fatal)
	assert.Zero(t, res.Written, "fatal errors disable rewriting for the TU")

	got, err := os.ReadFile(filepath.Join(dir, "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, aCpp, string(got))

	// the error record survives for the report
	require.Contains(t, res.Histories, paths.Lower(at("a.cpp")))
	assert.True(t, res.Histories[paths.Lower(at("a.cpp"))].HasFatal())
}

func TestConfigCanClean(t *testing.T) {
	cfg := &Config{AllowCleanDir: "/proj"}
	assert.True(t, cfg.CanClean("/proj/a.cpp"))
	assert.True(t, cfg.CanClean("/proj/sub/b.h"))
	assert.False(t, cfg.CanClean("/other/a.cpp"))
	assert.False(t, cfg.CanClean("/proj/readme.md"))

	cfg.OnlyCpp = true
	assert.True(t, cfg.CanClean("/proj/a.cpp"))
	assert.False(t, cfg.CanClean("/proj/sub/b.h"), "--onlycpp leaves headers untouched")

	cfg = &Config{}
	cfg.AllowFile("/Proj/X.CPP")
	assert.True(t, cfg.CanClean("/proj/x.cpp"))
	assert.False(t, cfg.CanClean("/proj/y.cpp"))
}

func TestConfigSkipGlobs(t *testing.T) {
	cfg := &Config{
		AllowCleanDir: "/proj",
		SkipGlobs:     []string{"*_gen.h", "**/vendor/**"},
	}
	assert.True(t, cfg.IsSkipped("/proj/api_gen.h"), "bare patterns match the base name")
	assert.True(t, cfg.IsSkipped("/proj/vendor/lib/x.h"))
	assert.False(t, cfg.IsSkipped("/proj/api.h"))
	assert.False(t, cfg.CanClean("/proj/api_gen.h"), "skipped files are outside the allow-clean set")
}

func TestFileConfigApply(t *testing.T) {
	fc := FileConfig{PCHStems: []string{"Precomp"}, Skip: []string{"*_gen.h"}}
	cfg := &Config{}
	fc.Apply(cfg)
	assert.Equal(t, []string{"precomp"}, cfg.PCHStems)
	assert.Equal(t, []string{"*_gen.h"}, cfg.SkipGlobs)

	// command-line stems win over the file
	cfg2 := &Config{PCHStems: []string{"stdafx"}}
	fc.Apply(cfg2)
	assert.Equal(t, []string{"stdafx"}, cfg2.PCHStems)
}
