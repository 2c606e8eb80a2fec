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

	"github.com/canonical/sysconform/fixture"
)

// Run is the context of one execution of a Spec. It owns everything
// a case may touch: the scratch directory, the fixture set, the
// read-only mount and the reporter. It is created by the runner and
// passed explicitly into the setup, test and cleanup hooks; there is
// no package-level fixture state.
type Run struct {
	spec     *Spec
	dir      string
	fx       *fixture.Set
	reporter Reporter

	mountPoint string
	mounted    bool
	mountErr   error

	caseIdx int

	// Stash carries suite-private state between the setup, test and
	// cleanup hooks of one run.
	Stash interface{}
}

// Dir returns the run-private scratch directory.
func (r *Run) Dir() string {
	return r.dir
}

// BuildFixture declares and builds the fixture set of this run under
// the scratch directory. Build errors are fatal to the run (Blocked).
func (r *Run) BuildFixture(nodes []fixture.Node) error {
	if r.fx == nil {
		r.fx = fixture.NewSet(r.dir, nodes)
	}
	return r.fx.Build()
}

// Fixture returns the fixture set built by BuildFixture, or nil.
func (r *Run) Fixture() *fixture.Set {
	return r.fx
}

// Path is shorthand for Fixture().Path.
func (r *Run) Path(rel string) string {
	return r.fx.Path(rel)
}

// MountPoint returns the path of the read-only mount point requested
// through Requirements.ReadOnlyMount.
func (r *Run) MountPoint() string {
	return r.mountPoint
}

// MountMissing reports why the requested read-only mount is not
// available, or nil if it is.
func (r *Run) MountMissing() error {
	return r.mountErr
}

func (r *Run) report(status Status, format string, args ...interface{}) {
	r.reporter.Report(Result{
		Suite:  r.spec.Name,
		Case:   r.caseIdx,
		Status: status,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// Passf records a passing check for the current case.
func (r *Run) Passf(format string, args ...interface{}) {
	r.report(Passed, format, args...)
}

// Failf records a failing check for the current case; the run
// continues with the remaining cases.
func (r *Run) Failf(format string, args ...interface{}) {
	r.report(Failed, format, args...)
}

// Skipf records that the current case is not applicable here.
func (r *Run) Skipf(format string, args ...interface{}) {
	r.report(Skipped, format, args...)
}

// Brokenf records an unrecoverable condition and aborts the remaining
// cases; cleanup still runs.
func (r *Run) Brokenf(format string, args ...interface{}) {
	r.report(Broken, format, args...)
	panic(brokenError{fmt.Sprintf(format, args...)})
}

// Verdicts reports the classification of one invocation.
func (r *Run) Verdicts(vs []Verdict) {
	for _, v := range vs {
		r.report(v.Status, "%s", v.Msg)
	}
}

// Verdict reports a single classification.
func (r *Run) Verdict(v Verdict) {
	r.report(v.Status, "%s", v.Msg)
}

type brokenError struct {
	msg string
}

func (e brokenError) Error() string {
	return e.msg
}
