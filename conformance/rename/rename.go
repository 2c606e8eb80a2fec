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

// Package rename checks the refusal contracts of rename(2): a
// directory cannot displace a non-empty directory, and a directory
// cannot displace a regular file. In both cases the existing target
// must survive the refused call untouched.
package rename

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/fixture"
	"github.com/canonical/sysconform/harness"
)

var nonEmptySpec = &harness.Spec{
	Name:    "rename04",
	Setup:   setupNonEmpty,
	TestAll: runNonEmpty,
}

var ontoFileSpec = &harness.Spec{
	Name:    "rename07",
	Setup:   setupOntoFile,
	TestAll: runOntoFile,
}

func init() {
	conformance.Register(nonEmptySpec)
	conformance.Register(ontoFileSpec)
}

func setupNonEmpty(r *harness.Run) error {
	return r.BuildFixture([]fixture.Node{
		{Path: "fdir", Kind: fixture.Dir, Mode: 0770},
		{Path: "mdir", Kind: fixture.Dir, Mode: 0770},
		{Path: "mdir/tstfile", Kind: fixture.Regular, Mode: 0600},
	})
}

func runNonEmpty(r *harness.Run) {
	err := unix.Rename(r.Path("fdir"), r.Path("mdir"))
	obs := harness.Observe(0, err)
	// POSIX allows either errno for a non-empty target
	r.Verdicts(harness.Classify("rename(2) onto non-empty directory", harness.Expect{
		Ret:       -1,
		Errno:     unix.ENOTEMPTY,
		AltErrnos: []unix.Errno{unix.EEXIST},
	}, obs))

	if _, err := os.Stat(r.Path("mdir/tstfile")); err != nil {
		r.Failf("refused rename(2) disturbed the target directory: %v", err)
		return
	}
	if _, err := os.Stat(r.Path("fdir")); err != nil {
		r.Failf("refused rename(2) disturbed the source directory: %v", err)
		return
	}
	r.Passf("both directories survived the refused rename(2)")
}

type fileIdentity struct {
	dev uint64
	ino uint64
}

func identityOf(path string) (fileIdentity, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileIdentity{}, err
	}
	return fileIdentity{dev: uint64(st.Dev), ino: st.Ino}, nil
}

func setupOntoFile(r *harness.Run) error {
	if err := r.BuildFixture([]fixture.Node{
		{Path: "fdir", Kind: fixture.Dir, Mode: 0770},
		{Path: "mfile", Kind: fixture.Regular, Mode: 0600},
	}); err != nil {
		return err
	}
	id, err := identityOf(r.Path("mfile"))
	if err != nil {
		return err
	}
	r.Stash = &id
	return nil
}

func runOntoFile(r *harness.Run) {
	before := r.Stash.(*fileIdentity)

	err := unix.Rename(r.Path("fdir"), r.Path("mfile"))
	obs := harness.Observe(0, err)
	r.Verdicts(harness.Classify("rename(2) of directory onto file", harness.Expect{
		Ret:   -1,
		Errno: unix.ENOTDIR,
	}, obs))

	after, err := identityOf(r.Path("mfile"))
	if err != nil {
		r.Failf("refused rename(2) removed the target file: %v", err)
		return
	}
	if after != *before {
		r.Failf("refused rename(2) replaced the target file: dev/ino %d/%d became %d/%d",
			before.dev, before.ino, after.dev, after.ino)
		return
	}
	r.Passf("target file identity unchanged by the refused rename(2)")
}
