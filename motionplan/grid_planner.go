package motionplan

import (
	"context"
	"math"

	"github.com/beefsack/go-astar"
	"github.com/pkg/errors"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/spatialmath"
)

// Planning modes.
const (
	// ModeAStar validates every lattice edge while neighbors are expanded.
	ModeAStar = "astar"
	// ModeLazyAStar only validates lattice nodes during search. Edges of a found path are checked
	// afterwards and the search is rerun without the edges that failed.
	ModeLazyAStar = "astar_lazy"
)

const (
	defaultMaxLazyRounds = 50
	defaultMaxNodes      = 1 << 20
)

// GridPlannerConfig configures a GridPlanner.
type GridPlannerConfig struct {
	Mode              string
	LatticeResolution float64
	MaxLazyRounds     int
	MaxNodes          int
}

// GridPlanner searches an 8-connected lattice anchored at the source configuration.
type GridPlanner struct {
	validator Validator
	cfg       GridPlannerConfig
	logger    logging.Logger
}

// NewGridPlanner returns a lattice planner that checks nodes and edges with validator.
func NewGridPlanner(validator Validator, cfg GridPlannerConfig, logger logging.Logger) (*GridPlanner, error) {
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeAStar
	case ModeAStar, ModeLazyAStar:
	default:
		return nil, NewUnsupportedAlgorithmError(cfg.Mode)
	}
	if cfg.LatticeResolution <= 0 {
		return nil, errors.Errorf("lattice resolution must be positive, got %v", cfg.LatticeResolution)
	}
	if cfg.MaxLazyRounds <= 0 {
		cfg.MaxLazyRounds = defaultMaxLazyRounds
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = defaultMaxNodes
	}
	return &GridPlanner{validator: validator, cfg: cfg, logger: logger}, nil
}

// Plan returns position-only waypoints from source to target. Headings are assigned by the caller.
func (gp *GridPlanner) Plan(ctx context.Context, source, target spatialmath.Configuration) ([]spatialmath.Configuration, error) {
	start := spatialmath.NewPosition(source.X, source.Y)
	end := spatialmath.NewPosition(target.X, target.Y)

	s := newLatticeSearch(ctx, gp, start, end)
	if s.goalKey == (latticeKey{}) {
		if gp.validator.ValidateEdge(start, end) {
			return []spatialmath.Configuration{start, end}, nil
		}
		return nil, NewPlannerFailedError()
	}

	rounds := 1
	if gp.cfg.Mode == ModeLazyAStar {
		rounds = gp.cfg.MaxLazyRounds
	}
	for round := 0; round < rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, ok := s.search()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ok {
			gp.logger.CDebugw(ctx, "lattice search exhausted", "round", round, "nodes", len(s.nodes))
			return nil, NewPlannerFailedError()
		}
		if gp.cfg.Mode == ModeAStar {
			return positions(found), nil
		}
		if bad := s.firstInvalidEdge(found); bad >= 0 {
			s.block(found[bad].key, found[bad+1].key)
			continue
		}
		gp.logger.CDebugw(ctx, "lazy search converged", "rounds", round+1, "blocked", len(s.blocked))
		return positions(found), nil
	}
	return nil, NewPlannerFailedError()
}

type latticeKey struct {
	i, j int
}

type edgeKey struct {
	a, b latticeKey
}

func newEdgeKey(a, b latticeKey) edgeKey {
	if b.i < a.i || (b.i == a.i && b.j < a.j) {
		a, b = b, a
	}
	return edgeKey{a, b}
}

var neighborOffsets = [8]latticeKey{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// latticeSearch holds the nodes of one Plan call. astar keys its bookkeeping on Pather identity,
// so every lattice point must map to exactly one *latticeNode.
type latticeSearch struct {
	ctx     context.Context
	planner *GridPlanner
	source  spatialmath.Configuration
	target  spatialmath.Configuration
	goalKey latticeKey
	nodes   map[latticeKey]*latticeNode
	blocked map[edgeKey]struct{}
}

func newLatticeSearch(ctx context.Context, gp *GridPlanner, source, target spatialmath.Configuration) *latticeSearch {
	step := gp.cfg.LatticeResolution
	return &latticeSearch{
		ctx:     ctx,
		planner: gp,
		source:  source,
		target:  target,
		goalKey: latticeKey{
			i: int(math.Round((target.X - source.X) / step)),
			j: int(math.Round((target.Y - source.Y) / step)),
		},
		nodes:   map[latticeKey]*latticeNode{},
		blocked: map[edgeKey]struct{}{},
	}
}

func (s *latticeSearch) node(key latticeKey) *latticeNode {
	if n, ok := s.nodes[key]; ok {
		return n
	}
	pos := s.target
	if key != s.goalKey {
		step := s.planner.cfg.LatticeResolution
		pos = spatialmath.NewPosition(s.source.X+float64(key.i)*step, s.source.Y+float64(key.j)*step)
	}
	n := &latticeNode{key: key, pos: pos, search: s}
	n.valid = key == (latticeKey{}) || s.planner.validator.ValidateConfiguration(pos)
	s.nodes[key] = n
	return n
}

func (s *latticeSearch) search() ([]*latticeNode, bool) {
	path, _, found := astar.Path(s.node(latticeKey{}), s.node(s.goalKey))
	if !found {
		return nil, false
	}
	// astar returns the path from the goal back to the start.
	ordered := make([]*latticeNode, 0, len(path))
	for i := len(path) - 1; i >= 0; i-- {
		ordered = append(ordered, path[i].(*latticeNode))
	}
	return ordered, true
}

func (s *latticeSearch) block(a, b latticeKey) {
	s.blocked[newEdgeKey(a, b)] = struct{}{}
}

func (s *latticeSearch) isBlocked(a, b latticeKey) bool {
	_, ok := s.blocked[newEdgeKey(a, b)]
	return ok
}

// firstInvalidEdge returns the index of the first edge of path that fails validation, or -1.
func (s *latticeSearch) firstInvalidEdge(path []*latticeNode) int {
	for i := 0; i+1 < len(path); i++ {
		if !s.planner.validator.ValidateEdge(path[i].pos, path[i+1].pos) {
			return i
		}
	}
	return -1
}

type latticeNode struct {
	key    latticeKey
	pos    spatialmath.Configuration
	valid  bool
	search *latticeSearch
}

// PathNeighbors returns the valid 8-connected neighbors. An exhausted node budget or a cancelled
// context ends the search by reporting no neighbors.
func (n *latticeNode) PathNeighbors() []astar.Pather {
	s := n.search
	if s.ctx.Err() != nil || len(s.nodes) > s.planner.cfg.MaxNodes {
		return nil
	}
	eager := s.planner.cfg.Mode == ModeAStar
	neighbors := make([]astar.Pather, 0, len(neighborOffsets))
	for _, off := range neighborOffsets {
		nb := s.node(latticeKey{n.key.i + off.i, n.key.j + off.j})
		if !nb.valid || s.isBlocked(n.key, nb.key) {
			continue
		}
		if eager && !s.planner.validator.ValidateEdge(n.pos, nb.pos) {
			s.block(n.key, nb.key)
			continue
		}
		neighbors = append(neighbors, nb)
	}
	return neighbors
}

// PathNeighborCost is the straight-line distance to a neighbor.
func (n *latticeNode) PathNeighborCost(to astar.Pather) float64 {
	return n.pos.DistanceTo(to.(*latticeNode).pos)
}

// PathEstimatedCost is the straight-line distance to the goal, which never overestimates.
func (n *latticeNode) PathEstimatedCost(to astar.Pather) float64 {
	return n.pos.DistanceTo(to.(*latticeNode).pos)
}

func positions(path []*latticeNode) []spatialmath.Configuration {
	out := make([]spatialmath.Configuration, 0, len(path))
	for _, n := range path {
		out = append(out, n.pos)
	}
	return out
}
