package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a 3D position and quaternion orientation, as carried by map origins.
type Pose struct {
	Position    r3.Vector
	Orientation quat.Number
}

// NewPlanarPose returns a pose at (x, y, 0) rotated by yaw about Z.
func NewPlanarPose(x, y, yaw float64) Pose {
	return Pose{Position: r3.Vector{X: x, Y: y}, Orientation: YawToQuaternion(yaw)}
}

// Yaw returns the rotation of the pose about the Z axis.
func (p Pose) Yaw() float64 {
	return QuaternionToYaw(p.Orientation)
}

// QuaternionToYaw extracts the yaw (rotation about Z) of a quaternion. This is not just the Z
// component of the quaternion.
func QuaternionToYaw(q quat.Number) float64 {
	if q == (quat.Number{}) {
		return 0
	}
	q = quat.Scale(1/quat.Abs(q), q)
	sinYaw := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosYaw := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(sinYaw, cosYaw)
}

// YawToQuaternion returns the unit quaternion rotating by yaw about Z.
func YawToQuaternion(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}
