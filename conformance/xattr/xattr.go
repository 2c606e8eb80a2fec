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

// Package xattr checks fgetxattr(2) against the full range of
// filesystem object kinds. Regular files, directories and symlink
// targets carry user attributes; fifos, device nodes and sockets
// refuse them with ENODATA (EPERM before kernel 3.0, which changed
// the errno for objects that cannot carry user attributes).
package xattr

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/fixture"
	"github.com/canonical/sysconform/harness"
)

const (
	attrKey   = "user.testkey"
	attrValue = "this is a test value"
)

type testCase struct {
	node string
	desc string
	// backing is the node that carries the attribute when it differs
	// from the node being opened (symlinks).
	backing string
	flags   int
	socket  bool
	exp     harness.Expect
}

// noUserAttrs is the contract for objects that cannot carry user
// attributes.
var noUserAttrs = harness.Expect{
	Ret:   -1,
	Errno: unix.ENODATA,
	Gate:  &harness.KernelGate{Major: 3, Errno: unix.EPERM},
}

var cases = []testCase{
	{node: "file", desc: "regular file", flags: unix.O_RDONLY,
		exp: harness.Expect{Ret: len(attrValue)}},
	{node: "dir", desc: "directory", flags: unix.O_RDONLY | unix.O_DIRECTORY,
		exp: harness.Expect{Ret: len(attrValue)}},
	{node: "symlink", desc: "symlink to regular file", backing: "target", flags: unix.O_RDONLY,
		exp: harness.Expect{Ret: len(attrValue)}},
	{node: "fifo", desc: "fifo", flags: unix.O_RDONLY | unix.O_NONBLOCK, exp: noUserAttrs},
	{node: "chr", desc: "character device", flags: unix.O_RDONLY, exp: noUserAttrs},
	{node: "blk", desc: "block device", flags: unix.O_RDONLY, exp: noUserAttrs},
	{node: "sock", desc: "unix socket", socket: true, exp: noUserAttrs},
}

var spec = &harness.Spec{
	Name: "fgetxattr02",
	Requires: harness.Requirements{
		Root:        true,
		DeviceNodes: true,
	},
	Cases: len(cases),
	Setup: setup,
	Test:  run,
}

func init() {
	conformance.Register(spec)
}

func attrs() map[string][]byte {
	return map[string][]byte{attrKey: []byte(attrValue)}
}

func setup(r *harness.Run) error {
	return r.BuildFixture([]fixture.Node{
		{Path: "file", Kind: fixture.Regular, Mode: 0644, Xattrs: attrs()},
		{Path: "dir", Kind: fixture.Dir, Mode: 0755, Xattrs: attrs()},
		{Path: "target", Kind: fixture.Regular, Mode: 0644, Xattrs: attrs()},
		{Path: "symlink", Kind: fixture.Symlink, Target: "target"},
		{Path: "fifo", Kind: fixture.Fifo, Mode: 0644},
		{Path: "chr", Kind: fixture.CharDevice, Mode: 0600, Dev: unix.Mkdev(1, 3)},
		{Path: "blk", Kind: fixture.BlockDevice, Mode: 0600, Dev: unix.Mkdev(7, 0)},
		{Path: "sock", Kind: fixture.Socket, Mode: 0644},
	})
}

func run(r *harness.Run, n int) {
	tc := &cases[n]
	if err := r.Fixture().Missing(tc.node); err != nil {
		r.Skipf("%s: %v", tc.desc, err)
		return
	}
	if tc.backing != "" {
		if err := r.Fixture().Missing(tc.backing); err != nil {
			r.Skipf("%s: %v", tc.desc, err)
			return
		}
	}

	fd, done, err := openNode(r, tc)
	if err != nil {
		// device nodes can exist but be unopenable (nodev mounts)
		if tc.exp.Ret < 0 {
			r.Skipf("cannot open %s: %v", tc.desc, err)
			return
		}
		r.Brokenf("cannot open %s: %v", tc.desc, err)
	}
	defer done()

	buf := make([]byte, len(attrValue))
	size, err := unix.Fgetxattr(fd, attrKey, buf)
	obs := harness.Observe(size, err)
	r.Verdicts(harness.Classify("fgetxattr(2)", tc.exp, obs))
	if tc.exp.Ret >= 0 && obs.Ret >= 0 {
		r.Verdict(harness.ClassifyPayload("fgetxattr(2)", []byte(attrValue), buf[:obs.Ret]))
	}
}

func openNode(r *harness.Run, tc *testCase) (fd int, done func(), err error) {
	if tc.socket {
		var f *os.File
		f, err = r.Fixture().SocketFile(tc.node)
		if err != nil {
			return -1, nil, err
		}
		return int(f.Fd()), func() { f.Close() }, nil
	}
	fd, err = unix.Open(r.Path(tc.node), tc.flags, 0)
	if err != nil {
		return -1, nil, err
	}
	return fd, func() { unix.Close(fd) }, nil
}
