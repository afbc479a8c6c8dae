/*
Copyright © 2019 the picamr authors.
This file is part of picamr.

picamr is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

picamr is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with picamr.  If not, see <http://www.gnu.org/licenses/>.
*/

package mesh

import (
	"fmt"
	"strings"
)

// ConfigError reports a violated configuration invariant. These are not
// recoverable: continuing with an inconsistent layout would silently
// corrupt results, so callers are expected to stop the run.
type ConfigError struct {
	// Invariant names the violated rule.
	Invariant string
	// Field is the offending field, if any.
	Field string
	// Level is the refinement level, or -1.
	Level int
	// Requested and Available guard cell widths, if HasGuards is set.
	Requested, Available IntVect
	HasGuards            bool
	Detail               string
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, "field "+e.Field)
	}
	if e.Level >= 0 {
		parts = append(parts, fmt.Sprintf("level %d", e.Level))
	}
	if e.HasGuards {
		parts = append(parts, fmt.Sprintf("requested guard cells %v, available %v", e.Requested, e.Available))
	}
	msg := "picamr: " + e.Invariant
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return msg
}

// NewConfigError returns a ConfigError with no level or guard information.
func NewConfigError(invariant, field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Invariant: invariant, Field: field, Level: -1, Detail: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	_, ok := err.(*ConfigError)
	return ok
}

// CheckGuardCells returns an error if f has fewer guard cells than
// required along any axis, or if any box is not larger than its guard
// region along an axis that has guards.
func CheckGuardCells(f *Field, required IntVect, level int) error {
	for a := 0; a < 3; a++ {
		if f.NGrow[a] < required[a] {
			return &ConfigError{
				Invariant: "insufficient guard cells",
				Field:     f.Name,
				Level:     level,
				Requested: required,
				Available: f.NGrow,
				HasGuards: true,
			}
		}
	}
	for i, b := range f.BA {
		s := b.Convert(CellType).Size()
		for a := 0; a < 3; a++ {
			if f.NGrow[a] > 0 && f.NGrow[a] >= s[a] {
				return &ConfigError{
					Invariant: "guard cells must be smaller than the valid region",
					Field:     f.Name,
					Level:     level,
					Requested: f.NGrow,
					Available: s,
					HasGuards: true,
					Detail:    fmt.Sprintf("box %d %v has %d cells along axis %d", i, b, s[a], a),
				}
			}
		}
	}
	return nil
}
