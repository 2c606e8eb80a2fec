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
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/check.v1"
)

type containsChecker struct {
	*check.CheckerInfo
}

// Contains is a Checker that looks for a substring inside a string or
// for an element inside a slice, array or map (comparing with ==).
var Contains check.Checker = &containsChecker{
	&check.CheckerInfo{Name: "Contains", Params: []string{"container", "elem"}},
}

func (c *containsChecker) Check(params []interface{}, names []string) (result bool, error string) {
	defer func() {
		if v := recover(); v != nil {
			result = false
			error = fmt.Sprint(v)
		}
	}()

	if s, ok := params[0].(string); ok {
		if elem, ok := params[1].(string); ok {
			return strings.Contains(s, elem), ""
		}
		return false, "string containment needs a string elem"
	}

	container := reflect.ValueOf(params[0])
	elem := params[1]
	switch container.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < container.Len(); i++ {
			if container.Index(i).Interface() == elem {
				return true, ""
			}
		}
		return false, ""
	case reflect.Map:
		for _, key := range container.MapKeys() {
			if container.MapIndex(key).Interface() == elem {
				return true, ""
			}
		}
		return false, ""
	}
	return false, fmt.Sprintf("%T is not a supported container", params[0])
}
