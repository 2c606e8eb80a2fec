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

package release_test

import (
	"syscall"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/sysconform/release"
)

func Test(t *testing.T) { TestingT(t) }

type releaseSuite struct{}

var _ = Suite(&releaseSuite{})

func (s *releaseSuite) TestKernelVersion(c *C) {
	ver := release.KernelVersion()
	// Ensure that we got something.
	c.Check(ver, Not(Equals), "")
	c.Check(ver, Not(Equals), "unknown")
}

func (s *releaseSuite) TestGetKernelRelease(c *C) {
	var buf syscall.Utsname
	c.Check(release.GetKernelRelease(&buf), Equals, "")

	buf.Release[0] = 'f'
	buf.Release[1] = 'o'
	buf.Release[2] = 'o'
	buf.Release[3] = 0
	buf.Release[4] = 'u'
	buf.Release[5] = 'n'
	buf.Release[6] = 'u'
	buf.Release[7] = 's'
	buf.Release[8] = 'e'
	buf.Release[9] = 'd'

	c.Check(release.GetKernelRelease(&buf), Equals, "foo")
}

func (s *releaseSuite) TestGetKernelMachine(c *C) {
	var buf syscall.Utsname
	c.Check(release.GetMachineName(&buf), Equals, "")

	buf.Machine[0] = 'a'
	buf.Machine[1] = 'r'
	buf.Machine[2] = 'm'
	buf.Machine[3] = 'v'
	buf.Machine[4] = '7'
	buf.Machine[5] = 'a'
	buf.Machine[6] = 0

	c.Check(release.GetMachineName(&buf), Equals, "armv7a")
}

func (s *releaseSuite) TestParseKernelVersion(c *C) {
	for _, t := range []struct {
		ver                 string
		major, minor, patch int
	}{
		{"5.15.0-91-generic", 5, 15, 0},
		{"3.0.0", 3, 0, 0},
		{"2.6.32-754.el6.x86_64", 2, 6, 32},
		{"6.1", 6, 1, 0},
		{"4", 4, 0, 0},
		{"4.19.0+", 4, 19, 0},
		{"5.4.0-rc1", 5, 4, 0},
	} {
		major, minor, patch, err := release.ParseKernelVersion(t.ver)
		c.Assert(err, IsNil, Commentf("%q", t.ver))
		c.Check(major, Equals, t.major, Commentf("%q", t.ver))
		c.Check(minor, Equals, t.minor, Commentf("%q", t.ver))
		c.Check(patch, Equals, t.patch, Commentf("%q", t.ver))
	}

	_, _, _, err := release.ParseKernelVersion("unknown")
	c.Check(err, ErrorMatches, `cannot parse kernel version "unknown"`)
}

func (s *releaseSuite) TestKernelVersionCompare(c *C) {
	restore := release.MockKernelVersion("3.0.0-12-generic")
	defer restore()

	c.Check(release.KernelVersionCompare(3, 0, 0), Equals, 0)
	c.Check(release.KernelVersionCompare(2, 6, 39), Equals, 1)
	c.Check(release.KernelVersionCompare(3, 0, 1), Equals, -1)
	c.Check(release.KernelVersionCompare(4, 4, 0), Equals, -1)

	restore = release.MockKernelVersion("not-a-version")
	defer restore()
	// unparsable kernels compare as newer
	c.Check(release.KernelVersionCompare(3, 0, 0), Equals, 1)
}
