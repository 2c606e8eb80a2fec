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

package harness_test

import (
	"golang.org/x/sys/unix"
	. "gopkg.in/check.v1"

	"github.com/canonical/sysconform/harness"
	"github.com/canonical/sysconform/release"
)

type outcomeSuite struct{}

var _ = Suite(&outcomeSuite{})

func (s *outcomeSuite) TestObserve(c *C) {
	n, err := unix.Getxattr("/i-do-not-exist", "user.key", nil)
	obs := harness.Observe(n, err)
	c.Check(obs.Ret, Equals, -1)
	c.Check(obs.Errno, Equals, unix.ENOENT)

	obs = harness.Observe(20, nil)
	c.Check(obs.Ret, Equals, 20)
	c.Check(obs.Errno, Equals, unix.Errno(0))

	c.Check(obs.String(), Equals, "20")
	c.Check(harness.Observe(-1, unix.ENODATA).String(), Equals, "-1 (ENODATA)")
}

func (s *outcomeSuite) TestClassifySuccess(c *C) {
	vs := harness.Classify("getxattr(2)", harness.Expect{Ret: 20}, harness.Outcome{Ret: 20})
	c.Assert(vs, HasLen, 1)
	c.Check(vs[0].Status, Equals, harness.Passed)

	vs = harness.Classify("getxattr(2)", harness.Expect{Ret: 20}, harness.Outcome{Ret: 7})
	c.Assert(vs, HasLen, 1)
	c.Check(vs[0].Status, Equals, harness.Failed)
	c.Check(vs[0].Msg, Equals, "getxattr(2) returned 7, expected 20")

	vs = harness.Classify("getxattr(2)", harness.Expect{Ret: 20}, harness.Outcome{Ret: -1, Errno: unix.ENODATA})
	c.Assert(vs, HasLen, 1)
	c.Check(vs[0].Status, Equals, harness.Failed)
}

func (s *outcomeSuite) TestClassifyExpectedFailure(c *C) {
	exp := harness.Expect{Ret: -1, Errno: unix.ENODATA}

	vs := harness.Classify("getxattr(2)", exp, harness.Outcome{Ret: -1, Errno: unix.ENODATA})
	c.Assert(vs, HasLen, 2)
	c.Check(vs[0].Status, Equals, harness.Passed)
	c.Check(vs[1].Status, Equals, harness.Passed)

	// wrong errno: failure verdict on the errno dimension only
	vs = harness.Classify("getxattr(2)", exp, harness.Outcome{Ret: -1, Errno: unix.EACCES})
	c.Assert(vs, HasLen, 2)
	c.Check(vs[0].Status, Equals, harness.Passed)
	c.Check(vs[1].Status, Equals, harness.Failed)
	c.Check(vs[1].Msg, Equals, "getxattr(2) set EACCES, expected ENODATA")

	// unexpected success
	vs = harness.Classify("getxattr(2)", exp, harness.Outcome{Ret: 3})
	c.Assert(vs, HasLen, 1)
	c.Check(vs[0].Status, Equals, harness.Failed)
	c.Check(vs[0].Msg, Equals, "getxattr(2) succeeded unexpectedly with 3")
}

func (s *outcomeSuite) TestClassifyAlternativeErrnos(c *C) {
	exp := harness.Expect{Ret: -1, Errno: unix.ENOTEMPTY, AltErrnos: []unix.Errno{unix.EEXIST}}

	vs := harness.Classify("rename(2)", exp, harness.Outcome{Ret: -1, Errno: unix.EEXIST})
	c.Assert(vs, HasLen, 2)
	c.Check(vs[1].Status, Equals, harness.Passed)

	vs = harness.Classify("rename(2)", exp, harness.Outcome{Ret: -1, Errno: unix.EPERM})
	c.Assert(vs, HasLen, 2)
	c.Check(vs[1].Status, Equals, harness.Failed)
}

func (s *outcomeSuite) TestClassifyNotSupported(c *C) {
	vs := harness.Classify("fgetxattr(2)", harness.Expect{Ret: 20}, harness.Outcome{Ret: -1, Errno: unix.EOPNOTSUPP})
	c.Assert(vs, HasLen, 1)
	c.Check(vs[0].Status, Equals, harness.Skipped)
	c.Check(vs[0].Msg, Equals, "fgetxattr(2) not supported here")

	// unless EOPNOTSUPP is exactly what the contract promises
	vs = harness.Classify("op", harness.Expect{Ret: -1, Errno: unix.EOPNOTSUPP}, harness.Outcome{Ret: -1, Errno: unix.EOPNOTSUPP})
	c.Assert(vs, HasLen, 2)
	c.Check(vs[1].Status, Equals, harness.Passed)
}

func (s *outcomeSuite) TestClassifyKernelGate(c *C) {
	exp := harness.Expect{
		Ret:   -1,
		Errno: unix.ENODATA,
		Gate:  &harness.KernelGate{Major: 3, Minor: 0, Patch: 0, Errno: unix.EPERM},
	}

	restore := release.MockKernelVersion("2.6.39")
	defer restore()
	vs := harness.Classify("fgetxattr(2)", exp, harness.Outcome{Ret: -1, Errno: unix.EPERM})
	c.Assert(vs, HasLen, 2)
	c.Check(vs[1].Status, Equals, harness.Passed)
	vs = harness.Classify("fgetxattr(2)", exp, harness.Outcome{Ret: -1, Errno: unix.ENODATA})
	c.Check(vs[1].Status, Equals, harness.Failed)

	restore = release.MockKernelVersion("3.0.0")
	defer restore()
	vs = harness.Classify("fgetxattr(2)", exp, harness.Outcome{Ret: -1, Errno: unix.ENODATA})
	c.Assert(vs, HasLen, 2)
	c.Check(vs[1].Status, Equals, harness.Passed)
}

func (s *outcomeSuite) TestClassifyPayload(c *C) {
	v := harness.ClassifyPayload("fgetxattr(2)", []byte("abc"), []byte("abc"))
	c.Check(v.Status, Equals, harness.Passed)

	v = harness.ClassifyPayload("fgetxattr(2)", []byte("abc"), []byte("abd"))
	c.Check(v.Status, Equals, harness.Failed)
	c.Check(v.Msg, Equals, `fgetxattr(2) got "abd", expected "abc"`)
}
