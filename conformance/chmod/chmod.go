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

// Package chmod checks the setgid-stripping rule of chmod(2): when an
// unprivileged caller chmods a directory whose group it does not
// belong to, the call succeeds but the kernel clears S_ISGID from the
// requested mode.
package chmod

import (
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/fixture"
	"github.com/canonical/sysconform/harness"
	"github.com/canonical/sysconform/osutil/sys"
)

// requestedMode asks for sticky, setgid and full permissions; an
// unprivileged owner outside the directory's group must end up with
// strippedMode instead.
const (
	requestedMode = 03777
	strippedMode  = 01777
)

type state struct {
	uid sys.UserID
	gid sys.GroupID
}

var spec = &harness.Spec{
	Name:     "chmod05",
	Requires: harness.Requirements{Root: true},
	Setup:    setup,
	TestAll:  runAll,
}

func init() {
	conformance.Register(spec)
}

func setup(r *harness.Run) error {
	u, err := user.Lookup("nobody")
	if err != nil {
		return harness.SkipRunf("cannot look up the nobody user: %v", err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return err
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return err
	}

	// the scratch directory is born 0700 root-owned; the
	// drop-privilege identity must still be able to traverse it to
	// reach the fixture
	if err := unix.Chmod(r.Dir(), 0711); err != nil {
		return err
	}
	if err := r.BuildFixture([]fixture.Node{
		{Path: "testdir", Kind: fixture.Dir, Mode: 0777},
	}); err != nil {
		return err
	}
	// owned by nobody but grouped with root, so that nobody is the
	// owner yet not a member of the directory's group
	if err := unix.Chown(r.Path("testdir"), int(uid), 0); err != nil {
		return err
	}

	r.Stash = &state{uid: sys.UserID(uid), gid: sys.GroupID(gid)}
	return nil
}

func runAll(r *harness.Run) {
	st := r.Stash.(*state)
	path := r.Path("testdir")

	err := sys.RunAsUidGidGroups(st.uid, st.gid, []sys.GroupID{st.gid}, func() error {
		return unix.Chmod(path, requestedMode)
	})
	obs := harness.Observe(0, err)
	r.Verdicts(harness.Classify("chmod(2)", harness.Expect{Ret: 0}, obs))
	if obs.Ret != 0 {
		return
	}

	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		r.Brokenf("cannot stat %q: %v", path, err)
	}
	switch mode := stat.Mode & 07777; mode {
	case strippedMode:
		r.Passf("chmod(2) cleared the setgid bit, mode is %04o", mode)
	case requestedMode:
		r.Failf("chmod(2) kept the setgid bit for a non-member owner, mode is %04o", mode)
	default:
		r.Failf("chmod(2) left unexpected mode %04o, expected %04o", mode, strippedMode)
	}
}
