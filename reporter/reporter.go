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

// Package reporter contains the diagnostic plumbing between the front end
// and the rest of the tool: positioned errors, a pluggable Reporter, and a
// per-translation-unit Handler that accumulates the compile-error record
// consumed by the history merge and the HTML report.
package reporter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cxxclean/cxxclean/driver"
	"github.com/cxxclean/cxxclean/source"
)

// ErrInvalidSource is a sentinel error returned by analysis steps when one
// or more errors were reported but the configured Reporter swallowed them
// all (returned nil).
var ErrInvalidSource = errors.New("parse failed: invalid C++ source")

// TooManyErrorsLimit is the number of non-fatal errors after which a
// translation unit is treated as if it had errored fatally. Mirrors the
// front-end bail-out the original tool inherits from its compiler.
const TooManyErrorsLimit = 20

// PosError is a diagnostic annotated with the source position that
// produced it. Pos is an analyzer-internal location (FileID + offset);
// rendering it for users happens in the report, which owns the file
// table.
type PosError struct {
	Pos source.Location
	Err error
}

// Errorf builds a positioned error. It is the only constructor: every
// diagnostic in this tool starts as a formatted message, never as a
// pre-existing error chain.
func Errorf(pos source.Location, format string, args ...interface{}) *PosError {
	return &PosError{Pos: pos, Err: fmt.Errorf(format, args...)}
}

func (e *PosError) Error() string {
	if e.Err == nil {
		return e.Pos.String()
	}
	return e.Pos.String() + ": " + e.Err.Error()
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *PosError) Unwrap() error { return e.Err }

// Reporter is notified of errors and warnings found during analysis.
type Reporter interface {
	// Error is called for each error encountered. If it returns non-nil,
	// the analysis of the owning translation unit aborts immediately.
	// Returning nil suppresses the error and analysis continues.
	Error(*PosError) error
	// Warning is called for each warning.
	Warning(*PosError)
}

// NewReporter builds a Reporter from the two callbacks; either may be nil.
func NewReporter(errs func(*PosError) error, warnings func(*PosError)) Reporter {
	return reporterFuncs{errs: errs, warnings: warnings}
}

type reporterFuncs struct {
	errs     func(*PosError) error
	warnings func(*PosError)
}

func (r reporterFuncs) Error(err *PosError) error {
	if r.errs == nil {
		return err
	}
	return r.errs(err)
}

func (r reporterFuncs) Warning(err *PosError) {
	if r.warnings != nil {
		r.warnings(err)
	}
}

// Handler accumulates the diagnostics of one translation unit and decides
// whether analysis may proceed. It is safe for use from a single TU
// goroutine plus readers after the TU completes.
type Handler struct {
	mu           sync.Mutex
	reporter     Reporter
	errsReported bool
	err          error

	record Record
}

// Record is the data-only summary of a TU's diagnostics, keyed into the
// merged file history under the TU's root file.
type Record struct {
	// ErrorCount is the number of error-or-worse diagnostics.
	ErrorCount int
	// TooMany is set when the error count crossed TooManyErrorsLimit; the
	// TU is then treated as fatally errored.
	TooMany bool
	// Fatal holds the messages of fatal diagnostics.
	Fatal []string
	// Errors holds rendered diagnostics for the report, fatal included.
	Errors []string
}

// HasFatal reports whether the TU must not be rewritten.
func (r Record) HasFatal() bool {
	return len(r.Fatal) > 0 || r.TooMany
}

// NewHandler creates a handler. A nil reporter fails analysis on the first
// error and ignores warnings.
func NewHandler(rep Reporter) *Handler {
	if rep == nil {
		rep = NewReporter(nil, nil)
	}
	return &Handler{reporter: rep}
}

// HandleDiagnostic routes a front-end diagnostic by severity. It returns a
// non-nil error when analysis of the TU should abort.
func (h *Handler) HandleDiagnostic(d driver.Diagnostic) error {
	switch d.Severity {
	case driver.SeverityFatal:
		return h.handleFatal(d.Loc, d.Message)
	case driver.SeverityError:
		return h.HandleErrorWithPos(Errorf(d.Loc, "%s", d.Message))
	case driver.SeverityWarning:
		h.HandleWarningWithPos(Errorf(d.Loc, "%s", d.Message))
		return nil
	default:
		return nil
	}
}

func (h *Handler) handleFatal(loc source.Location, msg string) error {
	h.mu.Lock()
	rendered := fmt.Sprintf("%v: fatal: %s", loc, msg)
	h.record.ErrorCount++
	h.record.Fatal = append(h.record.Fatal, rendered)
	h.record.Errors = append(h.record.Errors, rendered)
	h.errsReported = true
	h.mu.Unlock()
	// fatal diagnostics are not suppressible: the TU is poisoned either
	// way, but analysis continues so the record is complete
	h.reporter.Warning(Errorf(loc, "fatal: %s", msg))
	return nil
}

// HandleErrorf records an error with the given position and message.
func (h *Handler) HandleErrorf(pos source.Location, format string, args ...interface{}) error {
	return h.HandleErrorWithPos(Errorf(pos, format, args...))
}

// HandleErrorWithPos records an error. The returned error is nil when the
// reporter chose to suppress it and analysis should continue.
func (h *Handler) HandleErrorWithPos(err *PosError) error {
	h.mu.Lock()
	if h.err != nil {
		defer h.mu.Unlock()
		return h.err
	}
	h.errsReported = true
	h.record.ErrorCount++
	h.record.Errors = append(h.record.Errors, err.Error())
	if h.record.ErrorCount >= TooManyErrorsLimit {
		h.record.TooMany = true
	}
	h.mu.Unlock()

	if rerr := h.reporter.Error(err); rerr != nil {
		h.mu.Lock()
		h.err = rerr
		h.mu.Unlock()
		return rerr
	}
	return nil
}

// HandleWarningWithPos records a warning; warnings never stop analysis.
func (h *Handler) HandleWarningWithPos(err *PosError) {
	h.reporter.Warning(err)
}

// Err returns the sticky abort error, ErrInvalidSource when errors were
// reported but all suppressed, or nil.
func (h *Handler) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	if h.errsReported {
		return ErrInvalidSource
	}
	return nil
}

// ReportedErrors reports whether any error-severity diagnostic arrived.
func (h *Handler) ReportedErrors() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errsReported
}

// TakeRecord returns a copy of the accumulated diagnostic record.
func (h *Handler) TakeRecord() Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := h.record
	rec.Fatal = append([]string(nil), h.record.Fatal...)
	rec.Errors = append([]string(nil), h.record.Errors...)
	return rec
}
