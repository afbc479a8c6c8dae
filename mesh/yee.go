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

// Kind identifies a physical quantity for staggering purposes.
type Kind int

// Quantities on the Yee mesh.
const (
	KindE Kind = iota
	KindB
	KindJ
	KindRho
)

// YeeType returns the staggering of component comp of quantity kind.
// E and J are nodal except along their own axis; B is nodal only along
// its own axis; rho is nodal. Inactive axes are always cell-centered.
func YeeType(kind Kind, comp int, dim Dimensionality) IndexType {
	var t IndexType
	for a := 0; a < 3; a++ {
		if !dim.Active(a) {
			continue
		}
		switch kind {
		case KindE, KindJ:
			if a != comp {
				t[a] = 1
			}
		case KindB:
			if a == comp {
				t[a] = 1
			}
		case KindRho:
			t[a] = 1
		}
	}
	return t
}
