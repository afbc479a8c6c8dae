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

// Package phys holds physical constants in SI units.
package phys

// Physical constants [SI].
const (
	C        = 299792458.0            // speed of light [m/s]
	Epsilon0 = 8.8541878128e-12       // vacuum permittivity [F/m]
	Mu0      = 1 / (Epsilon0 * C * C) // vacuum permeability [H/m]
	Q        = 1.602176634e-19        // elementary charge [C]
	Me       = 9.1093837015e-31       // electron mass [kg]
	Mp       = 1.67262192369e-27      // proton mass [kg]
)
