package kinematics

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NumModules is the number of swerve modules on the chassis.
const NumModules = 4

// rankTolerance is the smallest singular value of the layout matrix that still counts
// as full rank.
const rankTolerance = 1e-9

// ErrDegenerateLayout is returned for module layouts that cannot determine a chassis velocity.
var ErrDegenerateLayout = errors.New("degenerate module layout")

// Layout holds the lever arm of each module from the chassis center, in meters. The order
// is top left, top right, bottom left, bottom right and must match the module array.
type Layout [NumModules]r2.Point

// Kinematics converts between chassis speeds and module states for a fixed layout.
type Kinematics struct {
	layout Layout
	// forward is the 3 x 2N pseudo-inverse of the inverse kinematics matrix.
	forward *mat.Dense
}

// New returns the kinematics for layout, or an error wrapping ErrDegenerateLayout when the
// layout is unusable.
func New(layout Layout) (*Kinematics, error) {
	for i, p := range layout {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, errors.Wrapf(ErrDegenerateLayout, "module %d has a non-finite offset", i)
		}
		for j := 0; j < i; j++ {
			if layout[j] == p {
				return nil, errors.Wrapf(ErrDegenerateLayout, "modules %d and %d share offset %v", j, i, p)
			}
		}
	}

	inverse := mat.NewDense(2*NumModules, 3, nil)
	for i, p := range layout {
		inverse.SetRow(2*i, []float64{1, 0, -p.Y})
		inverse.SetRow(2*i+1, []float64{0, 1, p.X})
	}

	var svd mat.SVD
	if !svd.Factorize(inverse, mat.SVDThin) {
		return nil, errors.Wrap(ErrDegenerateLayout, "layout matrix factorization failed")
	}
	values := svd.Values(nil)
	if values[len(values)-1] < rankTolerance {
		return nil, errors.Wrap(ErrDegenerateLayout, "layout cannot resolve rotation")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	inv := make([]float64, len(values))
	for i, s := range values {
		inv[i] = 1 / s
	}

	var vs mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))
	forward := &mat.Dense{}
	forward.Mul(&vs, u.T())

	return &Kinematics{layout: layout, forward: forward}, nil
}

// Layout returns the module lever arms.
func (k *Kinematics) Layout() Layout {
	return k.layout
}

// ToModuleStates computes the module states that realize speeds. Modules that end up with
// zero speed keep the angle in current, so stopping never re-steers the wheels.
func (k *Kinematics) ToModuleStates(speeds ChassisSpeeds, current [NumModules]ModuleState) [NumModules]ModuleState {
	var states [NumModules]ModuleState
	for i, p := range k.layout {
		vx := speeds.Vx - speeds.Omega*p.Y
		vy := speeds.Vy + speeds.Omega*p.X
		speed := math.Hypot(vx, vy)
		if speed == 0 {
			states[i] = ModuleState{Angle: current[i].Angle}
			continue
		}
		states[i] = ModuleState{Speed: speed, Angle: NormalizeAngle(math.Atan2(vy, vx))}
	}
	return states
}

// ToChassisSpeeds returns the least-squares chassis velocity for measured module states.
func (k *Kinematics) ToChassisSpeeds(states [NumModules]ModuleState) ChassisSpeeds {
	var vectors [NumModules]r2.Point
	for i, s := range states {
		vectors[i] = r2.Point{X: s.Speed * math.Cos(s.Angle), Y: s.Speed * math.Sin(s.Angle)}
	}
	x, y, theta := k.solve(vectors)
	return ChassisSpeeds{Vx: x, Vy: y, Omega: theta}
}

// ToTwist returns the least-squares chassis displacement for per-module distance deltas.
// Each delta's Angle is the module heading over the interval.
func (k *Kinematics) ToTwist(deltas [NumModules]ModulePosition) Twist {
	var vectors [NumModules]r2.Point
	for i, d := range deltas {
		vectors[i] = r2.Point{X: d.Distance * math.Cos(d.Angle), Y: d.Distance * math.Sin(d.Angle)}
	}
	x, y, theta := k.solve(vectors)
	return Twist{Dx: x, Dy: y, Dtheta: theta}
}

func (k *Kinematics) solve(vectors [NumModules]r2.Point) (float64, float64, float64) {
	in := mat.NewVecDense(2*NumModules, nil)
	for i, v := range vectors {
		in.SetVec(2*i, v.X)
		in.SetVec(2*i+1, v.Y)
	}
	var out mat.VecDense
	out.MulVec(k.forward, in)
	return out.AtVec(0), out.AtVec(1), out.AtVec(2)
}
