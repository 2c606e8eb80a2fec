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

package sys

import (
	"syscall"
)

// FlagID can be passed to chown-ish functions to mean "no change",
// and can be returned from getuid-ish functions to mean "not found".
const FlagID = 1<<32 - 1

// UserID is the type of the system's user identifiers (in C, uid_t).
//
// We have a special type for this rather than using int (as Go's
// syscall and os packages do) because we support 32-bit systems, where
// uid_t is unsigned 32 bits, meaning it won't fit in an int.
type UserID uint32

// GroupID is the type of the system's group identifiers (in C, gid_t).
type GroupID uint32

// Getuid returns the real user id of the calling process.
func Getuid() UserID {
	return UserID(syscall.Getuid())
}

// Geteuid returns the effective user id of the calling process.
func Geteuid() UserID {
	return UserID(syscall.Geteuid())
}

// Getgid returns the real group id of the calling process.
func Getgid() GroupID {
	return GroupID(syscall.Getgid())
}

// Getegid returns the effective group id of the calling process.
func Getegid() GroupID {
	return GroupID(syscall.Getegid())
}

// Getgroups returns the list of the supplementary group ids of the
// calling process.
func Getgroups() ([]GroupID, error) {
	gids, err := syscall.Getgroups()
	if err != nil {
		return nil, err
	}
	out := make([]GroupID, len(gids))
	for i, gid := range gids {
		out[i] = GroupID(gid)
	}
	return out, nil
}
