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

package harness

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/canonical/sysconform/release"
)

// Outcome is the observed result of exactly one syscall invocation:
// the return value and the error code, captured atomically relative
// to the call. All syscalls are made through golang.org/x/sys/unix,
// whose returned error carries the errno directly, so no intervening
// call can perturb it.
type Outcome struct {
	Ret   int
	Errno unix.Errno
}

// Observe builds an Outcome from a (ret, err) pair as returned by the
// unix package. A non-nil error forces ret to -1, matching the raw
// syscall convention.
func Observe(ret int, err error) Outcome {
	if err == nil {
		return Outcome{Ret: ret}
	}
	var errno unix.Errno
	if !errors.As(err, &errno) {
		// not a syscall error at all; surface something diagnosable
		return Outcome{Ret: -1, Errno: unix.EINVAL}
	}
	return Outcome{Ret: -1, Errno: errno}
}

func (o Outcome) String() string {
	if o.Ret == -1 {
		return fmt.Sprintf("-1 (%s)", errnoName(o.Errno))
	}
	return fmt.Sprintf("%d", o.Ret)
}

func errnoName(e unix.Errno) string {
	if name := unix.ErrnoName(e); name != "" {
		return name
	}
	return fmt.Sprintf("errno %d", int(e))
}

// KernelGate shifts an expected error code for kernels predating
// major.minor.patch, where the historical contract differed.
type KernelGate struct {
	Major, Minor, Patch int
	Errno               unix.Errno
}

// Expect is the documented expectation for one invocation.
type Expect struct {
	// Ret is the expected return value; -1 means the call must fail
	// and Errno is checked.
	Ret int
	// Errno is the expected error code when Ret is -1.
	Errno unix.Errno
	// AltErrnos are additionally acceptable error codes, for contracts
	// that leave the implementation a choice.
	AltErrnos []unix.Errno
	// Gate substitutes Errno before classification on old kernels.
	Gate *KernelGate
}

// effectiveErrno resolves the expected error code against the running
// kernel version. The substitution is deterministic: it depends only
// on the gate and on what uname reports.
func (e *Expect) effectiveErrno() unix.Errno {
	if e.Gate != nil && release.KernelVersionCompare(e.Gate.Major, e.Gate.Minor, e.Gate.Patch) < 0 {
		return e.Gate.Errno
	}
	return e.Errno
}

// Verdict is the classification of one checked dimension.
type Verdict struct {
	Status Status
	Msg    string
}

// Classify compares an expectation with an observation and returns one
// verdict per checked dimension (return value, and error code for
// expected failures).
//
// An unexpected "operation not supported" from the primitive itself is
// classified as a single Skipped verdict: it reflects environment
// capability, not correctness.
func Classify(what string, exp Expect, obs Outcome) []Verdict {
	expErrno := exp.effectiveErrno()

	if obs.Ret == -1 && obs.Errno == unix.EOPNOTSUPP && expErrno != unix.EOPNOTSUPP {
		return []Verdict{{Skipped, fmt.Sprintf("%s not supported here", what)}}
	}

	if exp.Ret != -1 {
		if obs.Ret == exp.Ret {
			return []Verdict{{Passed, fmt.Sprintf("%s returned %d", what, obs.Ret)}}
		}
		return []Verdict{{Failed, fmt.Sprintf("%s returned %s, expected %d", what, obs, exp.Ret)}}
	}

	var verdicts []Verdict
	if obs.Ret == -1 {
		verdicts = append(verdicts, Verdict{Passed, fmt.Sprintf("%s failed as expected", what)})
	} else {
		verdicts = append(verdicts, Verdict{Failed, fmt.Sprintf("%s succeeded unexpectedly with %d", what, obs.Ret)})
		return verdicts
	}

	acceptable := append([]unix.Errno{expErrno}, exp.AltErrnos...)
	for _, e := range acceptable {
		if obs.Errno == e {
			verdicts = append(verdicts, Verdict{Passed, fmt.Sprintf("%s set %s", what, errnoName(obs.Errno))})
			return verdicts
		}
	}
	verdicts = append(verdicts, Verdict{Failed, fmt.Sprintf("%s set %s, expected %s", what, errnoName(obs.Errno), errnoName(expErrno))})
	return verdicts
}

// ClassifyPayload compares an expected payload with the retrieved one.
func ClassifyPayload(what string, want, got []byte) Verdict {
	if bytes.Equal(want, got) {
		return Verdict{Passed, fmt.Sprintf("%s got the right value", what)}
	}
	return Verdict{Failed, fmt.Sprintf("%s got %q, expected %q", what, got, want)}
}
