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

package release

import (
	"syscall"

	"github.com/canonical/sysconform/logger"
)

func getKernelRelease(u *syscall.Utsname) string {
	buf := make([]byte, 0, len(u.Release))
	for _, c := range u.Release {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}

func getMachineName(u *syscall.Utsname) string {
	buf := make([]byte, 0, len(u.Machine))
	for _, c := range u.Machine {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}

func uname(get func(*syscall.Utsname) string) string {
	var u syscall.Utsname
	if err := syscall.Uname(&u); err != nil {
		logger.Noticef("cannot get system information: %v", err)
		return "unknown"
	}
	return get(&u)
}

var kernelVersion = func() string { return uname(getKernelRelease) }
var machineName = func() string { return uname(getMachineName) }

// KernelVersion returns the release of the running kernel as reported
// by uname, e.g. "5.15.0-91-generic".
func KernelVersion() string {
	return kernelVersion()
}

// Machine returns the machine name as reported by uname, e.g. "x86_64".
func Machine() string {
	return machineName()
}

// MockKernelVersion replaces the reported kernel version with the given
// string; use this to make environment-gated expectations deterministic
// in tests.
func MockKernelVersion(version string) (restore func()) {
	old := kernelVersion
	kernelVersion = func() string { return version }
	return func() {
		kernelVersion = old
	}
}
