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

package testutil_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
	. "gopkg.in/check.v1"

	"github.com/canonical/sysconform/testutil"
)

func Test(t *testing.T) { TestingT(t) }

type checkersSuite struct{}

var _ = Suite(&checkersSuite{})

func testCheck(c *C, checker Checker, result bool, error string, params ...interface{}) {
	info := checker.Info()
	if len(params) != len(info.Params) {
		c.Fatalf("unexpected param count in test; expected %d got %d", len(info.Params), len(params))
	}
	names := append([]string{}, info.Params...)
	resultActual, errorActual := checker.Check(params, names)
	if resultActual != result || errorActual != error {
		c.Fatalf("%s.Check(%#v) returned (%#v, %#v) rather than (%#v, %#v)",
			info.Name, params, resultActual, errorActual, result, error)
	}
}

func (s *checkersSuite) TestFilePresent(c *C) {
	d := c.MkDir()
	fname := filepath.Join(d, "foo")
	testCheck(c, testutil.FilePresent, false, fmt.Sprintf(`file %q is absent but should exist`, fname), fname)
	c.Assert(os.WriteFile(fname, nil, 0644), IsNil)
	testCheck(c, testutil.FilePresent, true, "", fname)
}

func (s *checkersSuite) TestFileAbsent(c *C) {
	d := c.MkDir()
	fname := filepath.Join(d, "foo")
	testCheck(c, testutil.FileAbsent, true, "", fname)
	c.Assert(os.WriteFile(fname, nil, 0644), IsNil)
	testCheck(c, testutil.FileAbsent, false, fmt.Sprintf(`file %q is present but should not exist`, fname), fname)
}

func (s *checkersSuite) TestFileEquals(c *C) {
	d := c.MkDir()
	fname := filepath.Join(d, "foo")
	c.Assert(os.WriteFile(fname, []byte("not-so-random"), 0644), IsNil)

	testCheck(c, testutil.FileEquals, true, "", fname, "not-so-random")
	testCheck(c, testutil.FileEquals, true, "", fname, []byte("not-so-random"))
	testCheck(c, testutil.FileEquals, false, "", fname, "random")
	testCheck(c, testutil.FileEquals, false, "contents must be a string or []byte", fname, 42)
}

func (s *checkersSuite) TestErrnoIs(c *C) {
	err := unix.Access("/i-do-not-exist", unix.F_OK)
	testCheck(c, testutil.ErrnoIs, true, "", err, unix.ENOENT)
	testCheck(c, testutil.ErrnoIs, false, `error is "no such file or directory", not "operation not permitted"`, err, unix.EPERM)

	wrapped := fmt.Errorf("cannot frob: %w", unix.ENODATA)
	testCheck(c, testutil.ErrnoIs, true, "", wrapped, unix.ENODATA)

	testCheck(c, testutil.ErrnoIs, false, "error is nil", nil, unix.ENOENT)
	testCheck(c, testutil.ErrnoIs, false, "first argument is int, not an error", 42, unix.ENOENT)
	testCheck(c, testutil.ErrnoIs, false, "second argument is int, not a unix.Errno", err, 42)
}

func (s *checkersSuite) TestContains(c *C) {
	testCheck(c, testutil.Contains, true, "", "haystack with a needle", "needle")
	testCheck(c, testutil.Contains, false, "", "haystack", "needle")
	testCheck(c, testutil.Contains, false, "string containment needs a string elem", "haystack", 42)

	testCheck(c, testutil.Contains, true, "", []string{"a", "b"}, "b")
	testCheck(c, testutil.Contains, false, "", []string{"a", "b"}, "z")
	testCheck(c, testutil.Contains, true, "", map[string]int{"a": 1}, 1)
	testCheck(c, testutil.Contains, false, "int is not a supported container", 42, 1)
}

type baseTestSuite struct {
	testutil.BaseTest
}

var _ = Suite(&baseTestSuite{})

func (s *baseTestSuite) TestCleanupOrder(c *C) {
	var order []int
	s.AddCleanup(func() { order = append(order, 1) })
	s.AddCleanup(func() { order = append(order, 2) })
	s.TearDownTest(c)
	c.Check(order, DeepEquals, []int{2, 1})
	// guard against double invocation
	s.SetUpTest(c)
}
