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

import (
	"fmt"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// DynamicalCore advances the atmospheric state on one rank of the
// cubed sphere with the split-explicit nonhydrostatic scheme: an outer
// loop of k_split vertical-remapping iterations, each driving n_split
// acoustic substeps, tracer transport through the accumulated mass
// fluxes, and a conservative remap back onto the reference coordinate.
// A core is bound at construction to one grid shape and configuration;
// changing either requires constructing a new core.
type DynamicalCore struct {
	comm  Communicator
	cfg   DynamicalCoreConfig
	grid  *GridData
	shape GridShape
	plan  *loopPlan
	log   logrus.FieldLogger

	dtAtmos float64
	pfull   []float64

	acoustics *acousticDynamics
	tracers   *tracerAdvection
	remap     *lagrangianToEulerian
	diffuse   *hyperdiffusion
	negadj    *negativeTracerAdjustment
	c2l       *cubedToLatLon

	check       Checkpointer
	omgaUpdater *HaloUpdater

	// Step scratch, allocated once and reused every step. dp1 holds
	// zvir·qvapor during the preamble and the pre-iteration layer
	// thickness inside the outer loop.
	dp1, cvm *sparse.DenseArray
	wsd      *sparse.DenseArray
}

// NewDynamicalCore builds a core bound to the shape of state. The
// configuration and grid are validated here; physics combinations that
// are only rejected once stepping begins (hydrostatic mode, energy
// conservation, slow Rayleigh damping, adiabatic temperature remap)
// are checked by the step preamble instead. A nil checkpointer
// disables checkpointing and a nil logger uses the process-wide
// default; either way only rank 0 emits log output.
func NewDynamicalCore(comm Communicator, cfg DynamicalCoreConfig, grid *GridData,
	dtAtmos float64, state *DycoreState, check Checkpointer,
	log logrus.FieldLogger) (*DynamicalCore, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("pace: initial state is required")
	}
	shape := state.Shape
	if err := grid.Check(shape); err != nil {
		return nil, err
	}
	if dtAtmos <= 0 {
		return nil, fmt.Errorf("pace: timestep must be positive, got %g s", dtAtmos)
	}
	if cfg.C2lOrd == 4 && shape.NHalo < 2 {
		return nil, fmt.Errorf("pace: c2l_ord 4 needs a halo at least 2 wide, have %d", shape.NHalo)
	}
	if cfg.NfOmega > shape.NHalo {
		return nil, fmt.Errorf("pace: nf_omega = %d exceeds the halo width %d",
			cfg.NfOmega, shape.NHalo)
	}
	plan, err := compiledPlan(planSpec{
		Shape:       shape,
		Hydrostatic: cfg.Hydrostatic,
		ZTracer:     cfg.ZTracer,
		NSplit:      cfg.NSplit,
		Nwat:        cfg.Nwat,
		C2lOrd:      cfg.C2lOrd,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = rankLogger(log, comm.Rank())
	if check == nil {
		check = NullCheckpointer{}
	}

	pfull := initPfull(grid.Ak, grid.Bk, cfg.PRef)
	dtSubstep := dtAtmos / float64(cfg.KSplit*cfg.NSplit)
	ray := newRayleighDamping(pfull, grid.Ptop, cfg.Tau, cfg.RfCutoff, dtSubstep)

	d := &DynamicalCore{
		comm:        comm,
		cfg:         cfg,
		grid:        grid,
		shape:       shape,
		plan:        plan,
		log:         log,
		dtAtmos:     dtAtmos,
		pfull:       pfull,
		acoustics:   newAcousticDynamics(plan, grid, comm, ray, cfg.NSplit),
		tracers:     newTracerAdvection(plan, grid, comm),
		remap:       newLagrangianToEulerian(plan, grid, cfg),
		diffuse:     newHyperdiffusion(plan, grid),
		negadj:      newNegativeTracerAdjustment(plan, log, cfg.CheckNegative),
		c2l:         newCubedToLatLon(plan, grid, comm),
		check:       check,
		omgaUpdater: NewHaloUpdater(comm, "omga", shape.NHalo),
		dp1:         shape.zeros3(),
		cvm:         shape.zeros3(),
		wsd:         shape.zeros2(),
	}
	d.log.WithFields(logrus.Fields{
		"nx": shape.Nx, "ny": shape.Ny, "nz": shape.Nz,
		"k_split": cfg.KSplit, "n_split": cfg.NSplit,
		"ranks": comm.Size(),
	}).Info("initialized dynamical core")
	return d, nil
}

// checkpointFields is the field set emitted at the step boundaries, in
// emission order.
var checkpointFields = []string{"u", "v", "w", "delz", "ua", "va", "uc", "vc", "qvapor"}

// StepDynamics advances the state by one timestep. The state is
// mutated in place; this is the only operation callers invoke per
// model timestep. A nil timer disables section timing.
func (d *DynamicalCore) StepDynamics(state *DycoreState, timer *Timer) error {
	if state.Shape != d.shape {
		return fmt.Errorf("pace: state shape %+v does not match the core's %+v",
			state.Shape, d.shape)
	}
	if err := d.checkpoint(CheckpointIn, state); err != nil {
		return err
	}
	if err := d.compute(state, timer); err != nil {
		return err
	}
	return d.checkpoint(CheckpointOut, state)
}

// checkpoint hands the step-boundary field set to the checkpoint sink.
// A sink failure aborts the step.
func (d *DynamicalCore) checkpoint(tag string, state *DycoreState) error {
	byName := state.fieldsByName()
	fields := make([]Field, len(checkpointFields))
	for i, name := range checkpointFields {
		fields[i] = Field{Name: name, Units: fieldUnits[name], Data: byName[name]}
	}
	if err := d.check.Check(tag, fields); err != nil {
		return fmt.Errorf("pace: checkpoint %s: %v", tag, err)
	}
	return nil
}

// compute runs the preamble, the outer split loop, and the wrapup.
func (d *DynamicalCore) compute(s *DycoreState, timer *Timer) error {
	if err := d.computePreamble(s); err != nil {
		return err
	}
	dtSplit := d.dtAtmos / float64(d.cfg.KSplit)
	for k := 1; k <= d.cfg.KSplit; k++ {
		lastStep := k == d.cfg.KSplit
		copy(d.dp1.Elements, s.Delp.Elements)

		timer.Start(sectionDynCore)
		err := d.acoustics.Step(s, d.wsd, dtSplit)
		timer.Stop(sectionDynCore)
		if err != nil {
			return err
		}

		if d.cfg.ZTracer {
			timer.Start(sectionTracerAdvection)
			err = d.tracers.Advect(s, d.dp1)
			timer.Stop(sectionTracerAdvection)
			if err != nil {
				return err
			}
		}

		// Shallow configurations stay on their Lagrangian surfaces.
		if d.shape.Nz > 4 {
			timer.Start(sectionRemapping)
			d.remap.Remap(s)
			if lastStep {
				ptRestore(d.plan, s, d.cvm, d.dp1)
				err = d.postRemap(s)
			}
			timer.Stop(sectionRemapping)
			if err != nil {
				return err
			}
		}
	}
	return d.wrapup(s)
}

// computePreamble rejects the unsupported physics combinations and
// prepares the moist fields for the outer loop.
func (d *DynamicalCore) computePreamble(s *DycoreState) error {
	if d.cfg.Hydrostatic {
		return fmt.Errorf("pace: the hydrostatic solver is %w", ErrNotImplemented)
	}
	if d.cfg.ConsvTe > 0 {
		return fmt.Errorf("pace: total-energy conservation (consv_te = %g) is %w",
			d.cfg.ConsvTe, ErrNotImplemented)
	}
	if d.cfg.Tau != 0 && !d.cfg.RfFast {
		return fmt.Errorf("pace: Rayleigh damping without rf_fast is %w", ErrNotImplemented)
	}
	if d.cfg.Adiabatic && d.cfg.KordTm > 0 {
		return fmt.Errorf("pace: adiabatic mode with kord_tm > 0 is %w", ErrNotImplemented)
	}
	moistSetup(d.plan, s, d.cvm, d.dp1)
	ptAdjust(d.plan, s, d.dp1)
	return nil
}

// postRemap recomputes the vertical pressure velocity diagnostic after
// the final remap and smooths it when configured:
// omga = delp/delz·w, then nf_omega hyperdiffusion rounds with
// coefficient 0.18·da_min over exchanged halos.
func (d *DynamicalCore) postRemap(s *DycoreState) error {
	p := d.plan
	for k := 0; k < p.shape.Nz; k++ {
		for j := p.js; j < p.je; j++ {
			for i := p.is; i < p.ie; i++ {
				n := p.idx(k, j, i)
				s.Omga.Elements[n] = s.Delp.Elements[n] / s.Delz.Elements[n] * s.W.Elements[n]
			}
		}
	}
	if d.cfg.NfOmega > 0 {
		if err := d.omgaUpdater.Update(s.Omga); err != nil {
			return fmt.Errorf("pace: omega halo update: %v", err)
		}
		d.diffuse.Damp(s.Omga, 0.18*d.grid.DaMin, d.cfg.NfOmega)
	}
	return nil
}

// wrapup finishes the step: the negative-tracer adjustment and the
// lat-lon wind diagnostics.
func (d *DynamicalCore) wrapup(s *DycoreState) error {
	d.negadj.Adjust(s)
	return d.c2l.Compute(s)
}
