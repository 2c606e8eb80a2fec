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
	"fmt"
	"strconv"
	"strings"
)

// parseKernelVersion extracts the leading major.minor.patch triple from
// a kernel release string. Distribution suffixes ("-91-generic",
// "+", ".el8") are ignored; missing components default to zero.
func parseKernelVersion(ver string) (major, minor, patch int, err error) {
	nums := [3]int{}
	for i, comp := range strings.SplitN(ver, ".", 4) {
		if i == 3 {
			break
		}
		// stop at the first non-digit character of the component
		end := 0
		for end < len(comp) && comp[end] >= '0' && comp[end] <= '9' {
			end++
		}
		if end == 0 {
			if i == 0 {
				return 0, 0, 0, fmt.Errorf("cannot parse kernel version %q", ver)
			}
			break
		}
		n, err := strconv.Atoi(comp[:end])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("cannot parse kernel version %q: %v", ver, err)
		}
		nums[i] = n
		if end != len(comp) {
			break
		}
	}
	return nums[0], nums[1], nums[2], nil
}

// KernelVersionCompare compares the running kernel version against
// major.minor.patch and returns -1, 0 or 1 if the running kernel is
// older than, equal to, or newer than the given one.
//
// An unparsable running version compares as newer, so that expectations
// gated on historical kernels fall back to the current contract.
func KernelVersionCompare(major, minor, patch int) int {
	a, b, c, err := parseKernelVersion(KernelVersion())
	if err != nil {
		return 1
	}
	running := [3]int{a, b, c}
	wanted := [3]int{major, minor, patch}
	for i := range running {
		if running[i] < wanted[i] {
			return -1
		}
		if running[i] > wanted[i] {
			return 1
		}
	}
	return 0
}
