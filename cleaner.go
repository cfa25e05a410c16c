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

// Package cxxclean removes unnecessary #include directives from C++
// projects. Given a set of translation units and their effective compiler
// configuration it decides, per user file, which includes are unused,
// which can be replaced by a more direct include, and where forward
// declarations substitute for full definitions, then rewrites the files in
// place.
//
// The analysis of one translation unit is driven by a parse-driver event
// stream (see the driver package); per-TU results merge into a
// project-wide history that drives the rewriter.
package cxxclean

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/cxxclean/cxxclean/analyzer"
	"github.com/cxxclean/cxxclean/driver"
	"github.com/cxxclean/cxxclean/history"
	"github.com/cxxclean/cxxclean/internal/paths"
	"github.com/cxxclean/cxxclean/reporter"
	"github.com/cxxclean/cxxclean/rewrite"
)

// Cleaner orchestrates a cleaning run: it fans translation units out to
// parallel analyses, merges their histories, and applies the resulting
// edits.
type Cleaner struct {
	// Config is the effective run configuration. Required.
	Config *Config
	// Driver runs the C++ front end over one translation unit. Required.
	Driver driver.Driver
	// Resolver loads source files for the rewriter (and usually also
	// backs the Driver). Required.
	Resolver Resolver
	// MaxParallelism bounds concurrent TU analyses. Non-positive means
	// min(NumCPU, GOMAXPROCS).
	MaxParallelism int
	// Reporter receives diagnostics. A nil reporter fails a TU on its
	// first error.
	Reporter reporter.Reporter
	// Logger receives run traces; nil means slog.Default().
	Logger *slog.Logger
}

// TUStatus summarizes one translation unit's analysis.
type TUStatus struct {
	Path  string
	Fatal bool
	Err   error
}

// RunResult is the outcome of a cleaning run.
type RunResult struct {
	// Histories is the merged per-file cleaning record, the input to the
	// report.
	Histories history.Map
	// TUs holds one status per requested translation unit.
	TUs []TUStatus
	// Written and WriteFailures count rewritten files and per-file write
	// errors. Write failures do not fail the run.
	Written       int
	WriteFailures int
}

type tuResult struct {
	path   string
	res    history.TUResult
	err    error
	doneCh chan struct{}
}

// Clean analyzes the given translation units and rewrites the affected
// files (unless the configuration says dry run). The returned error is
// non-nil only for configuration problems, cancellation, or a violated
// rewrite invariant; per-TU parse errors and per-file write failures are
// reported in the result instead.
func (c *Cleaner) Clean(ctx context.Context, tus ...string) (*RunResult, error) {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	if len(tus) == 0 {
		return &RunResult{Histories: history.Map{}}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	par := c.MaxParallelism
	if par <= 0 {
		par = runtime.GOMAXPROCS(-1)
		if cpus := runtime.NumCPU(); par > cpus {
			par = cpus
		}
	}
	sem := semaphore.NewWeighted(int64(par))

	results := make([]*tuResult, len(tus))
	for i, tu := range tus {
		r := &tuResult{path: tu, doneCh: make(chan struct{})}
		results[i] = r
		go func() {
			defer close(r.doneCh)
			if err := sem.Acquire(ctx, 1); err != nil {
				r.err = err
				return
			}
			defer sem.Release(1)
			r.res, r.err = c.analyzeTU(ctx, r.path, log)
		}()
	}

	// the merge runs on this goroutine only, as results stream in; the
	// merge operation is commutative and associative, so arrival order
	// does not matter
	out := &RunResult{Histories: history.Map{}}
	for _, r := range results {
		select {
		case <-r.doneCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		status := TUStatus{Path: r.path, Err: r.err, Fatal: r.res.Fatal}
		out.TUs = append(out.TUs, status)
		if r.err != nil {
			log.Warn("translation unit failed", "tu", r.path, "err", r.err)
			continue
		}
		history.MergeInto(out.Histories, r.res)
	}

	history.Fix(out.Histories)

	res, err := c.applyHistories(out.Histories, log)
	if err != nil {
		return nil, err
	}
	out.Written = res.Written
	out.WriteFailures = res.Failures
	return out, nil
}

// analyzeTU runs the front end over one translation unit and returns its
// mergeable history.
func (c *Cleaner) analyzeTU(ctx context.Context, tu string, log *slog.Logger) (history.TUResult, error) {
	handler := reporter.NewHandler(c.Reporter)
	a := analyzer.New(analyzer.Options{
		CanClean:   c.Config.CanClean,
		Skip:       c.Config.IsSkipped,
		PCHStems:   c.Config.PCHStems,
		SearchDirs: c.Config.SearchDirs,
		Handler:    handler,
		Logger:     log,
	})

	log.Info("analyzing", "tu", tu)
	if err := c.Driver.Run(ctx, tu, a); err != nil {
		return history.TUResult{}, err
	}
	res := a.Result()
	if res.Fatal {
		log.Warn("fatal compile errors; translation unit excluded from rewriting", "tu", tu)
	}
	return res, nil
}

// applyHistories plans and applies the merged edits. Files with fatal
// errors, skip markers, or outside the allow-clean set never reach a
// buffer, so the rewriter cannot touch them.
func (c *Cleaner) applyHistories(m history.Map, log *slog.Logger) (rewrite.Result, error) {
	rw := rewrite.NewRewriter(log)
	for _, lower := range m.SortedFiles() {
		h := m[lower]
		if !h.NeedClean() || h.IsSkip || h.HasFatal() {
			continue
		}
		if !c.Config.CanClean(lower) {
			continue
		}
		if rw.Buffer(lower) != nil {
			// already planned through another name; a file is rewritten
			// at most once per run
			continue
		}
		sr, err := c.Resolver.FindFile(h.FileName)
		if err != nil {
			log.Error("cannot load file for rewriting", "file", h.FileName, "err", err)
			continue
		}
		buf := rw.Add(lower, rewrite.NewBuffer(paths.Normalize(sr.ResolvedPath), sr.Contents))
		rewrite.Plan(buf, h)
	}
	return rw.Overwrite(c.Config.DryRun)
}
