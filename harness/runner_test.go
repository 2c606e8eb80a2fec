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
	"errors"
	"os"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/sysconform/fixture"
	"github.com/canonical/sysconform/harness"
	"github.com/canonical/sysconform/logger"
	"github.com/canonical/sysconform/testutil"
)

func Test(t *testing.T) { TestingT(t) }

type runnerSuite struct {
	testutil.BaseTest
}

var _ = Suite(&runnerSuite{})

func (s *runnerSuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
	_, restore := logger.MockLogger()
	s.AddCleanup(restore)
}

func statuses(results []harness.Result) []harness.Status {
	out := make([]harness.Status, len(results))
	for i, res := range results {
		out[i] = res.Status
	}
	return out
}

func (s *runnerSuite) TestLifecycleOrder(c *C) {
	var trace []string
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "order",
		Cases: 3,
		Setup: func(r *harness.Run) error {
			trace = append(trace, "setup")
			return nil
		},
		Test: func(r *harness.Run, n int) {
			trace = append(trace, "case")
			r.Passf("case %d fine", n)
		},
		Cleanup: func(r *harness.Run) {
			trace = append(trace, "cleanup")
		},
	}
	spec.Execute(rec)

	c.Check(trace, DeepEquals, []string{"setup", "case", "case", "case", "cleanup"})
	c.Check(rec.Count(harness.Passed), Equals, 3)
	c.Check(rec.ExitCode(), Equals, harness.ExitPassed)
}

func (s *runnerSuite) TestSetupFailureBlocksRun(c *C) {
	cleanedUp := false
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "blocked",
		Cases: 2,
		Setup: func(r *harness.Run) error {
			return errors.New("no fixtures for you")
		},
		Test: func(r *harness.Run, n int) {
			c.Error("case ran despite failed setup")
		},
		Cleanup: func(r *harness.Run) {
			cleanedUp = true
		},
	}
	spec.Execute(rec)

	results := rec.Results()
	c.Assert(results, HasLen, 1)
	c.Check(results[0].Status, Equals, harness.Blocked)
	c.Check(results[0].Case, Equals, harness.RunLevel)
	c.Check(results[0].Msg, Equals, "setup failed: no fixtures for you")
	c.Check(cleanedUp, Equals, true)
	c.Check(rec.ExitCode(), Equals, harness.ExitBlocked)
}

func (s *runnerSuite) TestCaseIsolation(c *C) {
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "isolation",
		Cases: 4,
		Test: func(r *harness.Run, n int) {
			switch n {
			case 0:
				r.Failf("case 0 diverged")
			case 1:
				panic("case 1 exploded")
			case 2:
				r.Skipf("case 2 not applicable")
			case 3:
				r.Passf("case 3 fine")
			}
		},
	}
	spec.Execute(rec)

	c.Check(statuses(rec.Results()), DeepEquals, []harness.Status{
		harness.Failed, harness.Broken, harness.Skipped, harness.Passed,
	})
	c.Check(rec.ExitCode(), Equals, harness.ExitFailed)
}

func (s *runnerSuite) TestBrokenfAbortsRemainingCases(c *C) {
	cleanedUp := false
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "broken",
		Cases: 3,
		Test: func(r *harness.Run, n int) {
			if n == 1 {
				r.Brokenf("cannot go on")
			}
			r.Passf("case %d fine", n)
		},
		Cleanup: func(r *harness.Run) {
			cleanedUp = true
		},
	}
	spec.Execute(rec)

	c.Check(statuses(rec.Results()), DeepEquals, []harness.Status{
		harness.Passed, harness.Broken,
	})
	c.Check(cleanedUp, Equals, true)
}

func (s *runnerSuite) TestSpecIsReusable(c *C) {
	cleanups := 0
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "again",
		Cases: 1,
		Test: func(r *harness.Run, n int) {
			r.Passf("ok")
		},
		Cleanup: func(r *harness.Run) {
			cleanups++
		},
	}
	spec.Execute(rec)
	spec.Execute(rec)

	c.Check(rec.Count(harness.Passed), Equals, 2)
	c.Check(cleanups, Equals, 2)
}

func (s *runnerSuite) TestRunDirIsPrivateAndRemoved(c *C) {
	var dir string
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "dirs",
		Cases: 1,
		Test: func(r *harness.Run, n int) {
			dir = r.Dir()
			c.Check(dir, testutil.FilePresent)
			r.Passf("ok")
		},
	}
	spec.Execute(rec)

	c.Assert(dir, Not(Equals), "")
	c.Check(dir, testutil.FileAbsent)
}

func (s *runnerSuite) TestFixtureLifecycle(c *C) {
	var file string
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "fixtures",
		Cases: 1,
		Setup: func(r *harness.Run) error {
			return r.BuildFixture([]fixture.Node{
				{Path: "file", Kind: fixture.Regular, Mode: 0644, Content: []byte("x")},
			})
		},
		Test: func(r *harness.Run, n int) {
			file = r.Path("file")
			c.Check(file, testutil.FileEquals, "x")
			r.Passf("ok")
		},
	}
	spec.Execute(rec)

	c.Assert(file, Not(Equals), "")
	c.Check(file, testutil.FileAbsent)
	c.Check(rec.Count(harness.Passed), Equals, 1)
}

func (s *runnerSuite) TestTestAll(c *C) {
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name: "single",
		TestAll: func(r *harness.Run) {
			r.Passf("all in one go")
		},
	}
	spec.Execute(rec)

	results := rec.Results()
	c.Assert(results, HasLen, 1)
	c.Check(results[0].Case, Equals, 0)
	c.Check(results[0].Status, Equals, harness.Passed)
}

func (s *runnerSuite) TestRootRequirementSkips(c *C) {
	if os.Geteuid() == 0 {
		c.Skip("test only works without root")
	}
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:     "privileged",
		Requires: harness.Requirements{Root: true},
		Cases:    1,
		Test: func(r *harness.Run, n int) {
			c.Error("case ran without the required privilege")
		},
	}
	spec.Execute(rec)

	results := rec.Results()
	c.Assert(results, HasLen, 1)
	c.Check(results[0].Status, Equals, harness.Skipped)
	c.Check(results[0].Msg, Equals, "requires root")
	c.Check(rec.ExitCode(), Equals, harness.ExitSkipped)
}

func (s *runnerSuite) TestReadOnlyMount(c *C) {
	if os.Geteuid() != 0 {
		c.Skip("test requires root")
	}
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name: "romount",
		Requires: harness.Requirements{
			Root:          true,
			ReadOnlyMount: true,
			MountPoint:    "mnt",
		},
		Cases: 1,
		Test: func(r *harness.Run, n int) {
			if err := r.MountMissing(); err != nil {
				r.Skipf("%v", err)
				return
			}
			err := os.WriteFile(r.MountPoint()+"/probe", nil, 0644)
			if err == nil {
				r.Failf("read-only mount is writable")
				return
			}
			r.Passf("mount is read-only")
		},
	}
	spec.Execute(rec)

	results := rec.Results()
	c.Assert(results, HasLen, 1)
	if results[0].Status != harness.Skipped {
		c.Check(results[0].Status, Equals, harness.Passed)
	}
}

func (s *runnerSuite) TestResultString(c *C) {
	res := harness.Result{Suite: "xattr", Case: 3, Status: harness.Failed, Msg: "boom"}
	c.Check(res.String(), Equals, "xattr 3: FAIL: boom")
	res = harness.Result{Suite: "xattr", Case: harness.RunLevel, Status: harness.Blocked, Msg: "no setup"}
	c.Check(res.String(), Equals, "xattr: BLOCKED: no setup")
}

func (s *runnerSuite) TestMultiReporter(c *C) {
	rec1 := &harness.Recorder{}
	rec2 := &harness.Recorder{}
	m := harness.MultiReporter(rec1, rec2)
	m.Report(harness.Result{Suite: "x", Status: harness.Passed})
	c.Check(rec1.Results(), HasLen, 1)
	c.Check(rec2.Results(), HasLen, 1)
}
