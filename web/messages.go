package web

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/gridnav/spatialmath"
)

// PoseMessage is a pose on the source, target and goal feeds and on pose streams. A missing
// heading means the pose is position only.
type PoseMessage struct {
	Position []float64 `json:"position"`
	Heading  *float64  `json:"heading,omitempty"`
}

// NewPoseMessage converts a configuration into its wire form.
func NewPoseMessage(c spatialmath.Configuration) PoseMessage {
	msg := PoseMessage{Position: []float64{c.X, c.Y}}
	if c.HasTheta {
		theta := c.Theta
		msg.Heading = &theta
	}
	return msg
}

// Configuration converts the message back into a configuration.
func (m PoseMessage) Configuration() (spatialmath.Configuration, error) {
	if len(m.Position) != 2 {
		return spatialmath.Configuration{}, errors.Errorf("position needs 2 values, got %d", len(m.Position))
	}
	if m.Heading == nil {
		return spatialmath.NewPosition(m.Position[0], m.Position[1]), nil
	}
	return spatialmath.NewConfiguration(m.Position[0], m.Position[1], *m.Heading), nil
}

// PlanRequestMessage is the body of a synchronous plan request. Each side is [x, y] or
// [x, y, theta].
type PlanRequestMessage struct {
	Source []float64 `json:"source"`
	Target []float64 `json:"target"`
}

// PlanMessage carries a plan as a list of [x, y, theta] waypoints.
type PlanMessage struct {
	Plan [][]float64 `json:"plan"`
}

// NewPlanMessage converts a plan into its wire form.
func NewPlanMessage(plan []spatialmath.Configuration) PlanMessage {
	return PlanMessage{Plan: lo.Map(plan, func(c spatialmath.Configuration, _ int) []float64 {
		return c.Flatten()
	})}
}

// Configurations converts the message back into a plan.
func (m PlanMessage) Configurations() ([]spatialmath.Configuration, error) {
	plan := make([]spatialmath.Configuration, 0, len(m.Plan))
	for i, vals := range m.Plan {
		c, err := spatialmath.ConfigurationFromSlice(vals)
		if err != nil {
			return nil, errors.Wrapf(err, "waypoint %d", i)
		}
		plan = append(plan, c)
	}
	return plan, nil
}
