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

// Package harness drives conformance runs through a fixed lifecycle:
// requirements check, setup, one isolated test step per declared case,
// and unconditional cleanup. It also captures and classifies syscall
// outcomes and manages re-executed child helper processes.
package harness

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/canonical/sysconform/logger"
	"github.com/canonical/sysconform/osutil/sys"
)

// Requirements declares what a Spec needs from the environment before
// its setup may run. Unmet privilege requirements skip the run, they
// never fail it.
type Requirements struct {
	// Root requires an effective uid of 0.
	Root bool
	// DeviceNodes requires the ability to create char/block nodes.
	DeviceNodes bool
	// ReadOnlyMount makes the runner provide a read-only filesystem
	// mounted at MountPoint (relative to the run directory).
	ReadOnlyMount bool
	// MountPoint names the mount point for ReadOnlyMount.
	MountPoint string
	// ForksChild declares that the spec starts child helper processes.
	ForksChild bool
	// Checkpoint declares that the spec synchronizes with its child
	// through checkpoints.
	Checkpoint bool
}

// Spec describes one conformance suite: its requirements, its case
// count and its lifecycle hooks. Exactly one of Test or TestAll must
// be set.
type Spec struct {
	Name     string
	Requires Requirements

	// Cases is the number of entries in the suite's case table.
	Cases int

	// Setup runs once before any case; a returned error blocks the
	// whole run.
	Setup func(r *Run) error
	// Test runs once per case, isolated from the other cases.
	Test func(r *Run, n int)
	// TestAll runs once for specs without a case table.
	TestAll func(r *Run)
	// Cleanup runs once, always, after the cases.
	Cleanup func(r *Run)
}

// Execute drives the spec through its lifecycle, reporting every
// verdict to the given reporter. It returns only after cleanup has
// been attempted, regardless of earlier failures.
func (spec *Spec) Execute(reporter Reporter) {
	r := &Run{spec: spec, reporter: reporter, caseIdx: RunLevel}

	if msg := spec.Requires.unmet(); msg != "" {
		r.report(Skipped, "%s", msg)
		return
	}

	dir, err := os.MkdirTemp(workDir, "sysconform-"+spec.Name+"-")
	if err != nil {
		r.report(Blocked, "cannot create run directory: %v", err)
		return
	}
	r.dir = dir
	defer r.cleanup()

	if spec.Requires.ReadOnlyMount {
		r.setupMount()
	}

	if spec.Setup != nil {
		if err := spec.Setup(r); err != nil {
			var skip *skipRunError
			if errors.As(err, &skip) {
				r.report(Skipped, "%s", skip.msg)
			} else {
				r.report(Blocked, "setup failed: %v", err)
			}
			return
		}
	}

	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(brokenError); ok {
				// already reported by Brokenf; the deferred
				// cleanup still runs
				return
			}
			// not ours: clean up as well as we can, then re-raise
			r.cleanup()
			panic(v)
		}
	}()

	switch {
	case spec.Test != nil:
		for i := 0; i < spec.Cases; i++ {
			r.caseIdx = i
			if aborted := r.runCase(func() { spec.Test(r, i) }); aborted {
				break
			}
		}
	case spec.TestAll != nil:
		r.caseIdx = 0
		r.runCase(func() { spec.TestAll(r) })
	}
	r.caseIdx = RunLevel
}

// runCase isolates one test step: an unexpected panic inside it is
// recorded as Broken for that case and the remaining cases still run.
// Brokenf aborts the remaining cases, and UnrecoverableError must tear
// the process down.
func (r *Run) runCase(f func()) (aborted bool) {
	defer func() {
		v := recover()
		switch e := v.(type) {
		case nil:
		case brokenError:
			// reported already, skip the remaining cases
			aborted = true
		case sys.UnrecoverableError:
			// the runtime credentials are in an unknown state;
			// best-effort cleanup and out
			r.cleanup()
			panic(e)
		default:
			r.report(Broken, "case panicked: %v", e)
		}
	}()
	f()
	return false
}

// cleanup releases everything the run owns. It is idempotent and
// best-effort: release failures are logged, not escalated.
func (r *Run) cleanup() {
	if r.dir == "" {
		return
	}
	if r.spec.Cleanup != nil {
		func() {
			defer func() {
				if v := recover(); v != nil {
					logger.Noticef("%s: cleanup panicked: %v", r.spec.Name, v)
				}
			}()
			r.spec.Cleanup(r)
		}()
	}
	if r.fx != nil {
		r.fx.Teardown()
		r.fx = nil
	}
	if r.mounted {
		if err := unmount(r.mountPoint); err != nil {
			logger.Noticef("%s: cannot unmount %q: %v", r.spec.Name, r.mountPoint, err)
		}
		r.mounted = false
	}
	if err := os.RemoveAll(r.dir); err != nil {
		logger.Noticef("%s: cannot remove run directory: %v", r.spec.Name, err)
	}
	r.dir = ""
}

// workDir is the parent of all run directories; empty means the
// system default temporary directory.
var workDir = os.Getenv("SYSCONFORM_WORKDIR")

// SetWorkDir changes where run directories are created. Lease suites
// need this when the default temporary directory sits on a filesystem
// without lease support.
func SetWorkDir(dir string) {
	workDir = dir
}

type skipRunError struct {
	msg string
}

func (e *skipRunError) Error() string {
	return e.msg
}

// SkipRunf returns an error that, when returned from Setup, marks the
// whole run as skipped rather than blocked.
func SkipRunf(format string, args ...interface{}) error {
	return &skipRunError{msg: fmt.Sprintf(format, args...)}
}

// unmet returns a skip message if the environment cannot structurally
// satisfy the requirements, or "" if all is well.
func (req *Requirements) unmet() string {
	if (req.Root || req.DeviceNodes || req.ReadOnlyMount) && sys.Geteuid() != 0 {
		return "requires root"
	}
	return ""
}

func (r *Run) setupMount() {
	mp := r.dir + "/" + r.spec.Requires.MountPoint
	if r.spec.Requires.MountPoint == "" {
		mp = r.dir + "/mnt"
	}
	r.mountPoint = mp
	if err := os.MkdirAll(mp, 0755); err != nil {
		r.mountErr = err
		return
	}
	if err := unix.Mount("tmpfs", mp, "tmpfs", unix.MS_RDONLY, ""); err != nil {
		// no mount capability in this environment; cases needing
		// the mount will skip
		r.mountErr = fmt.Errorf("cannot mount read-only tmpfs: %v", err)
		logger.Debugf("%s: %v", r.spec.Name, r.mountErr)
		return
	}
	r.mounted = true
}

func unmount(mp string) error {
	return unix.Unmount(mp, unix.MNT_DETACH)
}
