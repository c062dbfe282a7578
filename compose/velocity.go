package compose

import (
	"github.com/viterin/vek/vek32"

	"github.com/hkarvila/komppi"
)

// shapeVelocities rescales the velocities of the active steps so their mean
// lands on an energy-dependent target, keeping the relative accents the
// placement passes wrote. The whole buffer is processed as one vector.
func shapeVelocities(steps []komppi.Step, energy float64) {
	vel := make([]float32, len(steps))
	for i := range steps {
		if steps[i].Active {
			vel[i] = float32(steps[i].Velocity)
		}
	}
	active := vek32.GtNumber_Into(make([]bool, len(vel)), vel, 0)
	sounding := vek32.Select_Into(make([]float32, len(vel)), vel, active)
	if len(sounding) == 0 {
		return
	}
	mean := vek32.Mean(sounding)
	if mean <= 0 {
		return
	}
	target := float32(0.55 + 0.35*energy)
	vek32.MulNumber_Inplace(vel, target/mean)
	for i := range steps {
		if !steps[i].Active {
			continue
		}
		v := float64(vel[i])
		if v > 1 {
			v = 1
		} else if v < 0.05 {
			v = 0.05
		}
		steps[i].Velocity = v
	}
}
