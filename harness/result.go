// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package harness

import (
	"fmt"
	"sync"

	"github.com/canonical/sysconform/logger"
)

// Status classifies a single check or a whole run.
type Status int

const (
	// Passed means all checked dimensions matched.
	Passed Status = iota
	// Failed means the observed outcome diverged from the expected one.
	Failed
	// Skipped means the primitive is not applicable in this environment.
	Skipped
	// Broken means the case raised an unrecoverable condition.
	Broken
	// Blocked means the preconditions of the run could not be established.
	Blocked
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "PASS"
	case Failed:
		return "FAIL"
	case Skipped:
		return "SKIP"
	case Broken:
		return "BROKEN"
	case Blocked:
		return "BLOCKED"
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// RunLevel marks a Result that concerns the whole run rather than a
// single case.
const RunLevel = -1

// Result is one reported verdict of a run.
type Result struct {
	Suite  string
	Case   int
	Status Status
	Msg    string
}

func (r Result) String() string {
	if r.Case == RunLevel {
		return fmt.Sprintf("%s: %s: %s", r.Suite, r.Status, r.Msg)
	}
	return fmt.Sprintf("%s %d: %s: %s", r.Suite, r.Case, r.Status, r.Msg)
}

// A Reporter consumes the results of a run as they are produced.
type Reporter interface {
	Report(res Result)
}

type logReporter struct{}

func (logReporter) Report(res Result) {
	logger.Noticef("%s", res)
}

// LogReporter reports results through the logger package.
var LogReporter Reporter = logReporter{}

// Recorder is a Reporter that collects all results, for aggregation
// and for tests.
type Recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *Recorder) Report(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Results returns a copy of everything reported so far.
func (r *Recorder) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// Count returns how many results carry the given status.
func (r *Recorder) Count(status Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// MultiReporter fans results out to several reporters.
func MultiReporter(reporters ...Reporter) Reporter {
	return multiReporter(reporters)
}

type multiReporter []Reporter

func (m multiReporter) Report(res Result) {
	for _, r := range m {
		r.Report(res)
	}
}

// Exit status values communicated to the result collector.
const (
	ExitPassed  = 0
	ExitFailed  = 1
	ExitBlocked = 2
	ExitSkipped = 4
)

// ExitCode condenses all recorded results into the process exit
// status: failures dominate, then blocked/broken runs, then an
// all-skipped run; anything else passed.
func (r *Recorder) ExitCode() int {
	switch {
	case r.Count(Failed) > 0:
		return ExitFailed
	case r.Count(Blocked) > 0 || r.Count(Broken) > 0:
		return ExitBlocked
	case r.Count(Passed) == 0 && r.Count(Skipped) > 0:
		return ExitSkipped
	}
	return ExitPassed
}
