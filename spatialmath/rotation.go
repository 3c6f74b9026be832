package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// RotationMatrix returns the 2x2 counter-clockwise rotation by theta.
func RotationMatrix(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(2, 2, []float64{
		c, -s,
		s, c,
	})
}

// ToRobotFrame expresses the world point p in the frame of a robot at pose. X is forward and Y is
// to the left of the robot. Rotation matrices are orthogonal, so the inverse is the transpose.
func ToRobotFrame(pose Configuration, p r2.Point) r2.Point {
	rot := RotationMatrix(pose.Theta)
	delta := mat.NewVecDense(2, []float64{p.X - pose.X, p.Y - pose.Y})
	var local mat.VecDense
	local.MulVec(rot.T(), delta)
	return r2.Point{X: local.AtVec(0), Y: local.AtVec(1)}
}
