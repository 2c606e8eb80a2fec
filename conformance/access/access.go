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

// Package access checks the error contract of access(2): invalid mode
// bits, empty and overlong paths, non-directory path components,
// symlink loops and write probes on read-only filesystems.
package access

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/fixture"
	"github.com/canonical/sysconform/harness"
)

type testCase struct {
	desc string
	path func(r *harness.Run) string
	mode uint32
	// ro marks cases that probe the read-only mount.
	ro  bool
	exp harness.Expect
}

var longPath = strings.Repeat("a", unix.PathMax+2)

var cases = []testCase{
	{desc: "invalid mode bits", mode: ^uint32(0),
		path: func(r *harness.Run) string { return r.Path("file") },
		exp:  harness.Expect{Ret: -1, Errno: unix.EINVAL}},
	{desc: "empty path", mode: unix.W_OK,
		path: func(r *harness.Run) string { return "" },
		exp:  harness.Expect{Ret: -1, Errno: unix.ENOENT}},
	{desc: "overlong path", mode: unix.R_OK,
		path: func(r *harness.Run) string { return longPath },
		exp:  harness.Expect{Ret: -1, Errno: unix.ENAMETOOLONG}},
	{desc: "file used as directory component", mode: unix.W_OK,
		path: func(r *harness.Run) string { return r.Path("file/inside") },
		exp:  harness.Expect{Ret: -1, Errno: unix.ENOTDIR}},
	{desc: "symlink loop", mode: unix.R_OK,
		path: func(r *harness.Run) string { return r.Path("loop1") },
		exp:  harness.Expect{Ret: -1, Errno: unix.ELOOP}},
	{desc: "write probe on read-only filesystem", mode: unix.W_OK, ro: true,
		path: func(r *harness.Run) string { return r.MountPoint() },
		exp:  harness.Expect{Ret: -1, Errno: unix.EROFS}},
}

var spec = &harness.Spec{
	Name: "access04",
	Requires: harness.Requirements{
		Root:          true,
		ReadOnlyMount: true,
		MountPoint:    "romount",
	},
	Cases: len(cases),
	Setup: setup,
	Test:  run,
}

func init() {
	conformance.Register(spec)
}

func setup(r *harness.Run) error {
	return r.BuildFixture([]fixture.Node{
		{Path: "file", Kind: fixture.Regular, Mode: 0644},
		{Path: "loop1", Kind: fixture.Symlink, Target: "loop2"},
		{Path: "loop2", Kind: fixture.Symlink, Target: "loop1"},
	})
}

func run(r *harness.Run, n int) {
	tc := &cases[n]
	if tc.ro {
		if err := r.MountMissing(); err != nil {
			r.Skipf("%s: %v", tc.desc, err)
			return
		}
	}

	err := unix.Access(tc.path(r), tc.mode)
	obs := harness.Observe(0, err)
	r.Verdicts(harness.Classify("access(2) with "+tc.desc, tc.exp, obs))
}
