package replan

import (
	"sync"

	"go.viam.com/gridnav/spatialmath"
)

// update carries whichever of source and target arrived. A nil field is left untouched.
type update struct {
	source *spatialmath.Configuration
	target *spatialmath.Configuration
	// promoteTarget makes the previous target the new source before target is applied.
	promoteTarget bool
}

// snapshot is a consistent copy of the state taken by reconcile.
type snapshot struct {
	source, target               spatialmath.Configuration
	hasSource, hasTarget         bool
	sourceUpdated, targetUpdated bool
}

func (s snapshot) shouldReplan() bool {
	return (s.sourceUpdated || s.targetUpdated) && s.hasSource && s.hasTarget
}

// state is the source/target pair and its updated flags. All access goes through apply and
// snapshotAndClear.
type state struct {
	mu   sync.Mutex
	snap snapshot
}

func (s *state) apply(u update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.promoteTarget && s.snap.hasTarget {
		s.snap.source = s.snap.target
		s.snap.hasSource = true
		s.snap.sourceUpdated = true
	}
	if u.source != nil {
		s.snap.source = *u.source
		s.snap.hasSource = true
		s.snap.sourceUpdated = true
	}
	if u.target != nil {
		s.snap.target = *u.target
		s.snap.hasTarget = true
		s.snap.targetUpdated = true
	}
}

func (s *state) snapshotAndClear() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snap
	s.snap.sourceUpdated = false
	s.snap.targetUpdated = false
	return snap
}
