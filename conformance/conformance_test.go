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

package conformance_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/sysconform/conformance"
	"github.com/canonical/sysconform/harness"
)

func Test(t *testing.T) { TestingT(t) }

type registrySuite struct{}

var _ = Suite(&registrySuite{})

func (s *registrySuite) TestRegisterFindAll(c *C) {
	b := &harness.Spec{Name: "bbb01"}
	a := &harness.Spec{Name: "aaa01"}
	conformance.Register(b)
	conformance.Register(a)

	c.Check(conformance.Find("aaa01"), Equals, a)
	c.Check(conformance.Find("zzz99"), IsNil)

	all := conformance.All()
	c.Assert(len(all) >= 2, Equals, true)
	for i := 1; i < len(all); i++ {
		c.Check(all[i-1].Name < all[i].Name, Equals, true)
	}
}

func (s *registrySuite) TestRegisterTwicePanics(c *C) {
	conformance.Register(&harness.Spec{Name: "dup01"})
	c.Check(func() { conformance.Register(&harness.Spec{Name: "dup01"}) }, PanicMatches,
		`internal error: conformance suite "dup01" registered twice`)
}
