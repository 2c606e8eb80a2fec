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
	"os"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/canonical/sysconform/harness"
	"github.com/canonical/sysconform/harness/checkpoint"
)

func TestMain(m *testing.M) {
	harness.MaybeRunChild()
	os.Exit(m.Run())
}

type echoReport struct {
	Args []string `json:"args"`
	Ret  int      `json:"ret"`
}

func init() {
	harness.RegisterChild("test-echo", func(args []string, cp *checkpoint.Child) error {
		if err := cp.Signal("ready"); err != nil {
			return err
		}
		return cp.Report(&echoReport{Args: args, Ret: 42})
	})
	harness.RegisterChild("test-sluggish", func(args []string, cp *checkpoint.Child) error {
		time.Sleep(10 * time.Second)
		return nil
	})
}

type childSuite struct{}

var _ = Suite(&childSuite{})

func (s *childSuite) TestStartChildRoundTrip(c *C) {
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:     "child",
		Requires: harness.Requirements{ForksChild: true, Checkpoint: true},
		Cases:    1,
		Test: func(r *harness.Run, n int) {
			child, err := r.StartChild("test-echo", "a", "b")
			if err != nil {
				r.Brokenf("cannot start child: %v", err)
			}
			if err := child.Checkpoint().Wait("ready", 10*time.Second); err != nil {
				r.Brokenf("checkpoint: %v", err)
			}
			var report echoReport
			if err := child.Wait(&report, 10*time.Second); err != nil {
				r.Brokenf("wait: %v", err)
			}
			c.Check(report.Args, DeepEquals, []string{"a", "b"})
			c.Check(report.Ret, Equals, 42)
			r.Passf("child reported")
		},
	}
	spec.Execute(rec)

	c.Check(rec.Count(harness.Passed), Equals, 1)
	c.Check(rec.Count(harness.Broken), Equals, 0)
}

func (s *childSuite) TestStartChildUnknownHelper(c *C) {
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:  "child",
		Cases: 1,
		Test: func(r *harness.Run, n int) {
			_, err := r.StartChild("no-such-helper")
			c.Check(err, ErrorMatches, `internal error: child helper "no-such-helper" is not registered`)
			r.Passf("refused as expected")
		},
	}
	spec.Execute(rec)
	c.Check(rec.Count(harness.Passed), Equals, 1)
}

func (s *childSuite) TestChildWaitTimeout(c *C) {
	rec := &harness.Recorder{}
	spec := &harness.Spec{
		Name:     "child",
		Requires: harness.Requirements{ForksChild: true},
		Cases:    1,
		Test: func(r *harness.Run, n int) {
			child, err := r.StartChild("test-sluggish")
			if err != nil {
				r.Brokenf("cannot start child: %v", err)
			}
			err = child.Wait(nil, 100*time.Millisecond)
			c.Check(err, ErrorMatches, "child helper did not exit in time")
			r.Passf("timeout surfaced")
		},
	}
	spec.Execute(rec)
	c.Check(rec.Count(harness.Passed), Equals, 1)
}
