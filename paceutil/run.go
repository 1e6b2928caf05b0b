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

package paceutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/twicki/pace"
)

// Run performs a model run: it assembles the grid, initial state,
// communicator, and checkpointer described by the configuration,
// steps the dynamical core NumTimesteps times, and writes the
// configured diagnostics.
func Run(c *RunConfig, log logrus.FieldLogger) error {
	grid, shape, err := loadGrid(c)
	if err != nil {
		return err
	}
	state, err := loadState(c, grid, shape)
	if err != nil {
		return err
	}
	if state.Shape != shape {
		return fmt.Errorf("pace: initial conditions have shape %+v but the grid has %+v",
			state.Shape, shape)
	}

	comm, closeComm, err := buildCommunicator(c, log)
	if err != nil {
		return err
	}
	defer closeComm()

	check, err := buildCheckpointer(c)
	if err != nil {
		return err
	}

	core, err := pace.NewDynamicalCore(comm, c.DynCore, grid, c.Dt, state, check, log)
	if err != nil {
		return err
	}

	timer := pace.NewTimer()
	for step := 1; step <= c.NumTimesteps; step++ {
		if err := core.StepDynamics(state, timer); err != nil {
			return fmt.Errorf("pace: step %d: %v", step, err)
		}
		if c.OutputEvery > 0 && step%c.OutputEvery == 0 && step != c.NumTimesteps {
			if err := writeOutput(c, state, step); err != nil {
				return err
			}
		}
	}
	if err := writeOutput(c, state, c.NumTimesteps); err != nil {
		return err
	}

	if c.RestartFile != "" {
		w, err := os.Create(c.RestartFile)
		if err != nil {
			return fmt.Errorf("pace: creating restart file: %v", err)
		}
		defer w.Close()
		if err := state.Save(w); err != nil {
			return err
		}
	}

	fields := logrus.Fields{"steps": c.NumTimesteps}
	for _, name := range timer.Names() {
		fields[name] = timer.Total(name).String()
	}
	log.WithFields(fields).Info("run finished")
	return nil
}

// loadGrid reads the grid metrics from GridFile, or builds the
// uniform test grid when no file is configured.
func loadGrid(c *RunConfig) (*pace.GridData, pace.GridShape, error) {
	if c.GridFile == "" {
		ak, bk := testCoordinate(c.Shape.Nz)
		return pace.RegularGridData(c.Shape, ak, bk, c.GridDx, c.GridDy), c.Shape, nil
	}
	r, err := os.Open(c.GridFile)
	if err != nil {
		return nil, pace.GridShape{}, fmt.Errorf("pace: opening grid file: %v", err)
	}
	defer r.Close()
	grid, shape, err := pace.ReadGridData(r)
	if err != nil {
		return nil, shape, err
	}
	return grid, shape, nil
}

// loadState reads the initial conditions, or builds the resting
// isothermal state when no file is configured.
func loadState(c *RunConfig, grid *pace.GridData, shape pace.GridShape) (*pace.DycoreState, error) {
	if c.InitialConditions == "" {
		return pace.IsothermalState(grid, shape, c.DynCore.PRef, c.InitialTemperature)
	}
	r, err := os.Open(c.InitialConditions)
	if err != nil {
		return nil, fmt.Errorf("pace: opening initial conditions: %v", err)
	}
	defer r.Close()
	return pace.ReadState(r)
}

// buildCommunicator returns the configured communicator and a
// function releasing it.
func buildCommunicator(c *RunConfig, log logrus.FieldLogger) (pace.Communicator, func(), error) {
	if c.CommAddress == "" {
		topo, err := pace.NewLocalTopology(1)
		if err != nil {
			return nil, nil, err
		}
		comm, err := topo.Communicator(0)
		if err != nil {
			return nil, nil, err
		}
		return comm, func() {}, nil
	}
	comm, err := pace.DialCluster(c.CommAddress, c.CommRank, c.CommSize, log)
	if err != nil {
		return nil, nil, err
	}
	return comm, func() { comm.Close() }, nil
}

// buildCheckpointer returns the configured checkpoint sink.
func buildCheckpointer(c *RunConfig) (pace.Checkpointer, error) {
	switch c.CheckpointMode {
	case "snapshot":
		if err := os.MkdirAll(c.CheckpointDir, 0755); err != nil {
			return nil, fmt.Errorf("pace: creating checkpoint directory: %v", err)
		}
		return pace.NewSnapshotCheckpointer(c.CheckpointDir), nil
	case "validate":
		if c.CheckpointThresholds == "" {
			return nil, fmt.Errorf("pace: checkpoint validation requires Checkpoint.Thresholds")
		}
		r, err := os.Open(c.CheckpointThresholds)
		if err != nil {
			return nil, fmt.Errorf("pace: opening validation thresholds: %v", err)
		}
		defer r.Close()
		t, err := pace.LoadValidationThresholds(r)
		if err != nil {
			return nil, err
		}
		return pace.NewValidationCheckpointer(c.CheckpointDir, t), nil
	default:
		return pace.NullCheckpointer{}, nil
	}
}

// writeOutput evaluates the output expressions and writes them to
// the output path with [step] replaced by the step number.
func writeOutput(c *RunConfig, state *pace.DycoreState, step int) error {
	fname := strings.Replace(c.OutputFile, "[step]", strconv.Itoa(step), -1)
	o, err := pace.NewOutputter(fname, c.OutputAllLayers, c.OutputVariables, nil)
	if err != nil {
		return err
	}
	return o.Output(state)
}
