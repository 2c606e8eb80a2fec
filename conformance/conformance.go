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

// Package conformance keeps the registry of all known conformance
// suites. Suite packages register themselves from init, the CLI pulls
// them in with blank imports.
package conformance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/canonical/sysconform/harness"
)

var (
	mu    sync.Mutex
	specs = make(map[string]*harness.Spec)
)

// Register adds a suite to the registry. Registering two suites with
// the same name is a programming error.
func Register(spec *harness.Spec) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := specs[spec.Name]; ok {
		panic(fmt.Sprintf("internal error: conformance suite %q registered twice", spec.Name))
	}
	specs[spec.Name] = spec
}

// All returns the registered suites sorted by name.
func All() []*harness.Spec {
	mu.Lock()
	defer mu.Unlock()
	all := make([]*harness.Spec, 0, len(specs))
	for _, spec := range specs {
		all = append(all, spec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Find returns the suite with the given name, or nil.
func Find(name string) *harness.Spec {
	mu.Lock()
	defer mu.Unlock()
	return specs[name]
}
