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

// Package lease checks file lease semantics of fcntl(2): a conflicting
// open or truncate from another process must notify the lease holder
// with SIGIO and block until the holder releases the lease, well
// before the lease-break-time safety valve would force it.
package lease

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/fixture"
	"github.com/canonical/sysconform/harness"
	"github.com/canonical/sysconform/harness/checkpoint"
)

const (
	leaseFile = "tfile"

	procLeaseBreakTime = "/proc/sys/fs/lease-break-time"
	noticeDelay        = 5 * time.Second
)

// leaseBreakTime is set far above noticeDelay so that a pass can only
// come from the holder actually releasing the lease, never from the
// kernel timing it out.
var leaseBreakTime = 45 * time.Second

// SetBreakTime overrides the lease-break-time the suite installs for
// its run. Values at or below noticeDelay are rejected, they would let
// the kernel itself unblock the breaker.
func SetBreakTime(d time.Duration) error {
	if d <= noticeDelay {
		return fmt.Errorf("lease break time must be above %v, got %v", noticeDelay, d)
	}
	leaseBreakTime = d
	return nil
}

type testCase struct {
	desc  string
	lease int
	op    string
}

var cases = []testCase{
	{desc: "read lease broken by open for writing", lease: unix.F_RDLCK, op: "open-wronly"},
	{desc: "read lease broken by open for read-write", lease: unix.F_RDLCK, op: "open-rdwr"},
	{desc: "read lease broken by truncate", lease: unix.F_RDLCK, op: "truncate"},
	{desc: "write lease broken by open for reading", lease: unix.F_WRLCK, op: "open-rdonly"},
	{desc: "write lease broken by open for writing", lease: unix.F_WRLCK, op: "open-wronly"},
	{desc: "write lease broken by open for read-write", lease: unix.F_WRLCK, op: "open-rdwr"},
	{desc: "write lease broken by truncate", lease: unix.F_WRLCK, op: "truncate"},
}

type state struct {
	savedBreakTime []byte
	sigio          chan os.Signal
}

var spec = &harness.Spec{
	Name: "fcntl33",
	Requires: harness.Requirements{
		Root:       true,
		ForksChild: true,
		Checkpoint: true,
	},
	Cases:   len(cases),
	Setup:   setup,
	Test:    run,
	Cleanup: cleanup,
}

func init() {
	conformance.Register(spec)
	harness.RegisterChild("lease-breaker", breakLease)
}

func setup(r *harness.Run) error {
	var fs unix.Statfs_t
	if err := unix.Statfs(r.Dir(), &fs); err != nil {
		return err
	}
	switch int64(fs.Type) {
	case unix.NFS_SUPER_MAGIC:
		return harness.SkipRunf("leases are not supported on nfs")
	case unix.RAMFS_MAGIC:
		return harness.SkipRunf("leases are not supported on ramfs")
	case unix.TMPFS_MAGIC:
		return harness.SkipRunf("leases are not supported on tmpfs")
	}

	saved, err := os.ReadFile(procLeaseBreakTime)
	if err != nil {
		return harness.SkipRunf("cannot read %s: %v", procLeaseBreakTime, err)
	}
	breakSecs := fmt.Sprintf("%d", int(leaseBreakTime.Seconds()))
	if err := os.WriteFile(procLeaseBreakTime, []byte(breakSecs), 0644); err != nil {
		return harness.SkipRunf("cannot set %s: %v", procLeaseBreakTime, err)
	}

	st := &state{savedBreakTime: saved, sigio: make(chan os.Signal, 1)}
	signal.Notify(st.sigio, unix.SIGIO)
	r.Stash = st

	return r.BuildFixture([]fixture.Node{
		{Path: leaseFile, Kind: fixture.Regular, Mode: 0644, Content: []byte("lease me\n")},
	})
}

func cleanup(r *harness.Run) {
	st, ok := r.Stash.(*state)
	if !ok {
		return
	}
	signal.Stop(st.sigio)
	value := strings.TrimSpace(string(st.savedBreakTime))
	if err := os.WriteFile(procLeaseBreakTime, []byte(value), 0644); err != nil {
		// not much to do beyond telling the operator
		fmt.Fprintf(os.Stderr, "cannot restore %s to %s: %v\n", procLeaseBreakTime, value, err)
	}
}

func run(r *harness.Run, n int) {
	tc := &cases[n]
	st := r.Stash.(*state)
	drain(st.sigio)

	path := r.Path(leaseFile)
	flags := unix.O_WRONLY
	if tc.lease == unix.F_RDLCK {
		flags = unix.O_RDONLY
	}
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		r.Brokenf("cannot open %q: %v", path, err)
	}
	defer unix.Close(fd)

	ret, err := unix.FcntlInt(uintptr(fd), unix.F_SETLEASE, tc.lease)
	obs := harness.Observe(ret, err)
	if obs.Errno == unix.EINVAL || obs.Errno == unix.EOPNOTSUPP {
		r.Skipf("%s: cannot take a lease here: %v", tc.desc, err)
		return
	}
	r.Verdicts(harness.Classify("fcntl(2) F_SETLEASE", harness.Expect{Ret: 0}, obs))
	if obs.Ret != 0 {
		return
	}

	child, err := r.StartChild("lease-breaker", path, tc.op)
	if err != nil {
		r.Brokenf("%s: cannot start lease breaker: %v", tc.desc, err)
	}
	if err := child.Checkpoint().Wait("ready", 10*time.Second); err != nil {
		child.Kill()
		r.Brokenf("%s: lease breaker never became ready: %v", tc.desc, err)
	}

	notified := false
	select {
	case <-st.sigio:
		notified = true
		r.Passf("%s: holder notified with SIGIO", tc.desc)
	case <-time.After(noticeDelay):
		r.Failf("%s: no SIGIO within %v", tc.desc, noticeDelay)
	}

	// release in any case so the breaker never has to wait out
	// lease-break-time
	ret, err = unix.FcntlInt(uintptr(fd), unix.F_SETLEASE, unix.F_UNLCK)
	r.Verdicts(harness.Classify("fcntl(2) F_UNLCK", harness.Expect{Ret: 0}, harness.Observe(ret, err)))

	var rep breakerReport
	if err := child.Wait(&rep, 15*time.Second); err != nil {
		r.Failf("%s: lease breaker misbehaved: %v", tc.desc, err)
		return
	}
	if rep.Ret != 0 {
		r.Failf("%s: break operation failed: %v", tc.desc, unix.Errno(rep.Errno))
		return
	}
	if !notified {
		return
	}
	if blocked := time.Duration(rep.ElapsedMs) * time.Millisecond; blocked >= noticeDelay {
		r.Failf("%s: break operation stayed blocked for %v after release", tc.desc, blocked)
		return
	}
	r.Passf("%s: break operation completed once the lease was released", tc.desc)
}

func drain(ch chan os.Signal) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

type breakerReport struct {
	Ret       int   `json:"ret"`
	Errno     int   `json:"errno,omitempty"`
	ElapsedMs int64 `json:"elapsed-ms"`
}

// breakLease runs in a separate process. It performs the conflicting
// operation, which blocks until the lease holder releases the lease,
// and reports how long that took.
func breakLease(args []string, cp *checkpoint.Child) error {
	if len(args) != 2 {
		return fmt.Errorf("lease-breaker needs a path and an operation, got %d arguments", len(args))
	}
	path, op := args[0], args[1]

	if err := cp.Signal("ready"); err != nil {
		return err
	}

	start := time.Now()
	var err error
	switch op {
	case "open-rdonly", "open-wronly", "open-rdwr":
		flags := map[string]int{
			"open-rdonly": unix.O_RDONLY,
			"open-wronly": unix.O_WRONLY,
			"open-rdwr":   unix.O_RDWR,
		}[op]
		var fd int
		fd, err = unix.Open(path, flags, 0)
		if err == nil {
			unix.Close(fd)
		}
	case "truncate":
		err = unix.Truncate(path, 0)
	default:
		return fmt.Errorf("unknown lease break operation %q", op)
	}

	rep := breakerReport{ElapsedMs: time.Since(start).Milliseconds()}
	if err != nil {
		rep.Ret = -1
		if errno, ok := err.(unix.Errno); ok {
			rep.Errno = int(errno)
		}
	}
	return cp.Report(&rep)
}
