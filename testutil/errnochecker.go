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

package testutil

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
	"gopkg.in/check.v1"
)

type errnoChecker struct {
	*check.CheckerInfo
}

// ErrnoIs verifies that the given error unwraps to the given
// unix.Errno value.
var ErrnoIs check.Checker = &errnoChecker{
	CheckerInfo: &check.CheckerInfo{Name: "ErrnoIs", Params: []string{"error", "errno"}},
}

func (c *errnoChecker) Check(params []interface{}, names []string) (result bool, errMsg string) {
	if params[0] == nil {
		return false, "error is nil"
	}
	err, ok := params[0].(error)
	if !ok {
		return false, fmt.Sprintf("first argument is %T, not an error", params[0])
	}
	errno, ok := params[1].(unix.Errno)
	if !ok {
		return false, fmt.Sprintf("second argument is %T, not a unix.Errno", params[1])
	}
	if !errors.Is(err, errno) {
		return false, fmt.Sprintf("error is %q, not %q", err, errno)
	}
	return true, ""
}
