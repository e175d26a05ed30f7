package lattice

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// KeyPrecision is the number of decimal places kept when a pose is
// quantized into a lattice key.
const KeyPrecision = 3

// Pose is a raw 6-DoF configuration: a base position in metres and a
// base rotation in degrees, one component per axis.
type Pose struct {
	Position [3]float64
	Rotation [3]float64
}

// NewPose builds a Pose from its six components in x, y, z, rx, ry, rz
// order.
func NewPose(x, y, z, rx, ry, rz float64) Pose {
	return Pose{Position: [3]float64{x, y, z}, Rotation: [3]float64{rx, ry, rz}}
}

// Key is the quantized identity of a pose: each component rounded to
// KeyPrecision decimal places. Two poses collapse to the same node
// exactly when their keys are equal, so Key is used both as the map key
// for bulk results and as the stored coordinate values.
type Key struct {
	X, Y, Z    float64
	RX, RY, RZ float64
}

// Quantize rounds p to KeyPrecision decimal places per component and
// returns the resulting key. Rounding is half away from zero, so
// 0.0625 becomes 0.063 and -0.0625 becomes -0.063. A negative zero is
// canonicalized to +0 so that equal keys always hash and compare equal.
//
// Any NaN or infinite component fails with ErrInvalidPose.
func Quantize(p Pose) (Key, error) {
	comps := [6]struct {
		name string
		v    float64
	}{
		{"x", p.Position[0]}, {"y", p.Position[1]}, {"z", p.Position[2]},
		{"rx", p.Rotation[0]}, {"ry", p.Rotation[1]}, {"rz", p.Rotation[2]},
	}
	var out [6]float64
	for i, c := range comps {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return Key{}, fmt.Errorf("%w: non-finite %s: %v", ErrInvalidPose, c.name, c.v)
		}
		r := scalar.Round(c.v, KeyPrecision)
		if r == 0 {
			r = 0 // drop the sign of -0
		}
		out[i] = r
	}
	return Key{X: out[0], Y: out[1], Z: out[2], RX: out[3], RY: out[4], RZ: out[5]}, nil
}

// Pose converts the key back to a Pose with the quantized components.
func (k Key) Pose() Pose {
	return NewPose(k.X, k.Y, k.Z, k.RX, k.RY, k.RZ)
}

// Less orders keys lexicographically over (x, y, z, rx, ry, rz).
func (k Key) Less(o Key) bool {
	switch {
	case k.X != o.X:
		return k.X < o.X
	case k.Y != o.Y:
		return k.Y < o.Y
	case k.Z != o.Z:
		return k.Z < o.Z
	case k.RX != o.RX:
		return k.RX < o.RX
	case k.RY != o.RY:
		return k.RY < o.RY
	default:
		return k.RZ < o.RZ
	}
}

func (k Key) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g, %g, %g)", k.X, k.Y, k.Z, k.RX, k.RY, k.RZ)
}
