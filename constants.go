/*
Copyright © 2021 the Pace authors.
This file is part of Pace.

Pace is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Pace is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Pace.  If not, see <http://www.gnu.org/licenses/>.
*/

package pace

const (
	// Physical constants
	radius = 6.3712e6 // Earth radius [m]
	grav   = 9.80665  // gravitational acceleration [m s-2]
	rdgas  = 287.05   // gas constant for dry air [J kg-1 K-1]
	rvgas  = 461.50   // gas constant for water vapor [J kg-1 K-1]
	cpAir  = 1004.6   // heat capacity of dry air at constant pressure [J kg-1 K-1]
	cvAir  = cpAir - rdgas
	cvVap  = 3.0 * rvgas // heat capacity of water vapor at constant volume
	cLiq   = 4185.5      // heat capacity of liquid water [J kg-1 K-1]
	cIce   = 1972.0      // heat capacity of ice [J kg-1 K-1]

	// κ is the Exner exponent rdgas/cpAir.
	κ = rdgas / cpAir

	// zvir is the virtual-temperature factor rvgas/rdgas - 1.
	zvir = rvgas/rdgas - 1.0

	// secPerDay converts the Rayleigh friction time scale, which is
	// configured in days, to seconds.
	secPerDay = 86400.
)
