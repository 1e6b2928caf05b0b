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

// Package pace implements the time-stepping core of a finite-volume
// atmospheric dynamical model on a cubed-sphere grid.
//
// The central type is DynamicalCore, which advances a DycoreState by
// one model timestep per StepDynamics call using the split-explicit
// scheme: an outer loop of vertical-remapping iterations, each
// containing an inner loop of acoustic substeps, followed by tracer
// transport through the accumulated mass fluxes and a conservative
// remap back onto the reference vertical coordinate. The step
// finishes with a negative-tracer adjustment and the lat-lon wind
// diagnostics.
//
// One DynamicalCore serves one rank of the domain decomposition; the
// six cube faces (or a single doubly-periodic face for idealized
// runs) exchange halo data through a Communicator, either in-process
// (LocalTopology) or across processes (ClusterCommunicator).
package pace

// Version gives the model version number.
const Version = "0.1.0"
