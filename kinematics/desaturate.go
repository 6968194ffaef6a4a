package kinematics

import "math"

func maxAbsSpeed(states *[NumModules]ModuleState) float64 {
	var top float64
	for _, s := range states {
		top = math.Max(top, math.Abs(s.Speed))
	}
	return top
}

// Desaturate scales every module speed by the same factor so that none exceeds maxSpeed.
// Speed ratios between modules are preserved.
func Desaturate(states *[NumModules]ModuleState, maxSpeed float64) {
	top := maxAbsSpeed(states)
	if top == 0 || top <= maxSpeed {
		return
	}
	scale := maxSpeed / top
	for i := range states {
		states[i].Speed *= scale
	}
}

// DesaturateChassis additionally honors translational and rotational chassis limits: the
// fastest module runs at maxModuleSpeed times the larger of the two limit fractions used
// by speeds. Speeds are never scaled up.
func DesaturateChassis(states *[NumModules]ModuleState, speeds ChassisSpeeds, maxModuleSpeed, maxLinear, maxOmega float64) {
	top := maxAbsSpeed(states)
	if top == 0 || maxLinear <= 0 || maxOmega <= 0 {
		return
	}

	k := math.Max(math.Hypot(speeds.Vx, speeds.Vy)/maxLinear, math.Abs(speeds.Omega)/maxOmega)
	scale := math.Min(k*maxModuleSpeed/top, 1)
	for i := range states {
		states[i].Speed *= scale
	}
}
