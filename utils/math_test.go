package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestRadToDeg(t *testing.T) {
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90)
	test.That(t, RadToDeg(-math.Pi), test.ShouldAlmostEqual, -180)
}
