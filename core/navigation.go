package core

import (
	"math"
	"math/rand"

	"github.com/crowdsignals/stadium-simulator/model"
)

// slideMinFraction is the smallest axis component, as a fraction of the
// full step, that still counts as progress for the slide strategy.
const slideMinFraction = 0.1

// NavConfig holds the tunable movement parameters. All thresholds are
// explicit configuration rather than per-call-site literals.
type NavConfig struct {
	// Speed is the distance an agent covers per tick.
	Speed float64
	// ExitSpeedFactor scales Speed while walking to an exit gate.
	ExitSpeedFactor float64
	// SeatArrivalRadius declares arrival at a seat.
	SeatArrivalRadius float64
	// WaypointArrivalRadius declares arrival at stairs, gates, and
	// facility service points; looser than the seat radius.
	WaypointArrivalRadius float64
	// EscapeJitterSigma bounds the Gaussian perturbation applied to a
	// fully blocked agent. Zero disables the escape.
	EscapeJitterSigma float64
}

// DefaultNavConfig mirrors observed crowd movement: one distance unit per
// tick, 20% faster on the way out, loose waypoint arrival.
func DefaultNavConfig() NavConfig {
	return NavConfig{
		Speed:                 1.0,
		ExitSpeedFactor:       1.2,
		SeatArrivalRadius:     3.0,
		WaypointArrivalRadius: 5.0,
		EscapeJitterSigma:     2.0,
	}
}

// StepResult describes what a navigation step did.
type StepResult int

const (
	// StepMoved means the agent advanced via one of the strategies.
	StepMoved StepResult = iota
	// StepArrived means the agent was already within arrival range; the
	// position is unchanged.
	StepArrived
	// StepStalled means every strategy, including the jitter escape, was
	// blocked this tick.
	StepStalled
)

// NavigationEngine computes one agent's position update per tick against
// a walkability predicate. It holds no per-agent state; "waiting" is a
// countdown on the agent, never a suspended goroutine.
type NavigationEngine struct {
	cfg    NavConfig
	oracle SpatialOracle
	rng    *rand.Rand
}

// NewNavigationEngine builds an engine over the given oracle. The seed
// only drives the last-resort escape jitter.
func NewNavigationEngine(cfg NavConfig, oracle SpatialOracle, seed int64) *NavigationEngine {
	return &NavigationEngine{
		cfg:    cfg,
		oracle: oracle,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Config returns the engine's movement parameters.
func (n *NavigationEngine) Config() NavConfig { return n.cfg }

// Step advances the agent toward its destination by at most speed units,
// trying in order: the direct step, an axis-aligned slide along x then y,
// an orbital step around the level centre, and finally a bounded random
// escape. The agent's position is updated in place.
func (n *NavigationEngine) Step(a *model.Agent, speed float64) StepResult {
	to := VecBetween(a.Position, a.Destination)
	dist := to.Norm()
	if dist < 1.0 {
		return StepArrived
	}

	step := to.Normalize().Scale(min(speed, dist))

	// 1. Direct step.
	if n.tryMove(a, step) {
		return StepMoved
	}

	// 2. Slide along one axis so the agent tracks an obstacle edge
	// instead of stalling against it. A slide whose component is a tiny
	// fraction of the step is no real progress: accepting it keeps an
	// agent whose goal lies just past an obstacle edge oscillating at
	// the edge instead of falling through to the orbital strategy.
	minSlide := slideMinFraction * step.Norm()
	if math.Abs(step.X) >= minSlide && n.tryMove(a, Vec2{X: step.X}) {
		return StepMoved
	}
	if math.Abs(step.Y) >= minSlide && n.tryMove(a, Vec2{Y: step.Y}) {
		return StepMoved
	}

	// 3. Orbital fallback: walk the tangent around the level centre,
	// rotating in the sense that closes the angular gap to the goal.
	// The sense must derive from the agent-goal angle, not the step
	// direction: for a near-diametric goal the step-based sign flips
	// every tick and the agent dithers in place instead of circling.
	centre := n.oracle.Centre(a.Level)
	fromCentre := VecBetween(centre, a.Position)
	if fromCentre.Norm() > 0 {
		tangent := fromCentre.Perp().Normalize()
		if fromCentre.Cross(VecBetween(centre, a.Destination)) < 0 {
			tangent = tangent.Scale(-1)
		}
		orbital := tangent.Scale(min(speed, dist))
		if n.tryMove(a, orbital) {
			return StepMoved
		}
	}

	// 4. Fully blocked. Best-effort bounded escape; applies to every
	// stalled agent, not a single diagnostic one.
	if n.cfg.EscapeJitterSigma > 0 {
		jitter := Vec2{
			X: n.rng.NormFloat64() * n.cfg.EscapeJitterSigma,
			Y: n.rng.NormFloat64() * n.cfg.EscapeJitterSigma,
		}
		if n.tryMove(a, jitter) {
			return StepMoved
		}
	}

	return StepStalled
}

// ArrivedAtSeat reports whether the agent is within seat-arrival range of
// its destination.
func (n *NavigationEngine) ArrivedAtSeat(a *model.Agent) bool {
	return Distance(a.Position, a.Destination) < n.cfg.SeatArrivalRadius
}

// ArrivedAtWaypoint reports whether the agent is within waypoint-arrival
// range (stairs, gates, facility service points) of its destination.
func (n *NavigationEngine) ArrivedAtWaypoint(a *model.Agent) bool {
	return Distance(a.Position, a.Destination) < n.cfg.WaypointArrivalRadius
}

func (n *NavigationEngine) tryMove(a *model.Agent, v Vec2) bool {
	p := Translate(a.Position, v)
	if !n.oracle.IsWalkable(p.X, p.Y, a.Level) {
		return false
	}
	a.Position = p
	return true
}
