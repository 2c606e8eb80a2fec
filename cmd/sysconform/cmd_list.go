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
	"strings"
	"text/tabwriter"

	"github.com/jessevdk/go-flags"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/harness"
)

var shortListHelp = "List the available conformance suites"
var longListHelp = `
The list command displays every registered conformance suite together
with its case count and the privileges it needs.`

type cmdList struct{}

func init() {
	addCommand("list", shortListHelp, longListHelp, func() flags.Commander { return &cmdList{} })
}

func describeRequirements(req *harness.Requirements) string {
	var needs []string
	if req.Root {
		needs = append(needs, "root")
	}
	if req.DeviceNodes {
		needs = append(needs, "device-nodes")
	}
	if req.ReadOnlyMount {
		needs = append(needs, "ro-mount")
	}
	if req.ForksChild {
		needs = append(needs, "child")
	}
	if req.Checkpoint {
		needs = append(needs, "checkpoint")
	}
	if len(needs) == 0 {
		return "-"
	}
	return strings.Join(needs, ",")
}

func (c *cmdList) Execute(args []string) error {
	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Suite\tCases\tNeeds\n")
	for _, spec := range conformance.All() {
		cases := spec.Cases
		if cases == 0 {
			cases = 1
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", spec.Name, cases, describeRequirements(&spec.Requires))
	}
	return nil
}
