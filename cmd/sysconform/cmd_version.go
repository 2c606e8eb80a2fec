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

package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/canonical/sysconform/release"
)

var shortVersionHelp = "Show version details"
var longVersionHelp = `
The version command displays the version of sysconform and of the
kernel it would test.`

type cmdVersion struct{}

func init() {
	addCommand("version", shortVersionHelp, longVersionHelp, func() flags.Commander { return &cmdVersion{} })
}

func (c *cmdVersion) Execute(args []string) error {
	fmt.Fprintf(Stdout, "sysconform\t%s\n", version)
	fmt.Fprintf(Stdout, "kernel\t%s (%s)\n", release.KernelVersion(), release.Machine())
	return nil
}
