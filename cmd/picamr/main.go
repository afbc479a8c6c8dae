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

// Command picamr is a command-line interface for the picamr adaptive-mesh
// particle-in-cell code.
package main

import (
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/picamr/picamrutil"
)

func main() {
	if err := picamrutil.Root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
