package core

import (
	"testing"

	"github.com/crowdsignals/stadium-simulator/model"
)

// gridOracle is a minimal oracle whose walkability is an arbitrary
// predicate, letting tests stage exact obstacle shapes.
type gridOracle struct {
	walkable func(x, y float64) bool
	centre   model.Position
}

func (g *gridOracle) IsWalkable(x, y float64, _ int) bool { return g.walkable(x, y) }
func (g *gridOracle) Centre(int) model.Position           { return g.centre }

func (g *gridOracle) NearestGate(model.Position, int) (*model.Gate, bool) { return nil, false }
func (g *gridOracle) NearestFacility(model.FacilityKind, model.Position, int) (*model.Facility, bool) {
	return nil, false
}
func (g *gridOracle) NearestStairs(model.Position, int, int) (*model.Stairs, bool) {
	return nil, false
}
func (g *gridOracle) RandomSeatInZone(string) (model.Position, bool) {
	return model.Position{}, false
}

func openOracle() *gridOracle {
	return &gridOracle{
		walkable: func(x, y float64) bool { return true },
		centre:   model.Position{X: 0, Y: 0},
	}
}

func TestStepMovesDirectlyTowardDestination(t *testing.T) {
	nav := NewNavigationEngine(DefaultNavConfig(), openOracle(), 1)
	a := &model.Agent{
		Position:    model.Position{X: 0, Y: 0},
		Destination: model.Position{X: 10, Y: 0},
	}

	before := Distance(a.Position, a.Destination)
	if got := nav.Step(a, 1.0); got != StepMoved {
		t.Fatalf("Step = %v, want StepMoved", got)
	}
	after := Distance(a.Position, a.Destination)
	if after >= before {
		t.Fatalf("distance did not shrink: %.2f -> %.2f", before, after)
	}
	if a.Position.Y != 0 {
		t.Fatalf("direct step drifted off axis: %+v", a.Position)
	}
}

func TestStepArrivesWithinUnitDistance(t *testing.T) {
	nav := NewNavigationEngine(DefaultNavConfig(), openOracle(), 1)
	a := &model.Agent{
		Position:    model.Position{X: 9.5, Y: 0},
		Destination: model.Position{X: 10, Y: 0},
	}

	if got := nav.Step(a, 1.0); got != StepArrived {
		t.Fatalf("Step = %v, want StepArrived", got)
	}
	if a.Position.X != 9.5 {
		t.Fatalf("arrival mutated position to %+v", a.Position)
	}
}

func TestStepSlidesAlongBlockedAxis(t *testing.T) {
	// A wall blocks any increase in y, but x stays open. An agent heading
	// diagonally must slide along x rather than stall.
	oracle := openOracle()
	oracle.walkable = func(x, y float64) bool { return y <= 0 }

	nav := NewNavigationEngine(DefaultNavConfig(), oracle, 1)
	a := &model.Agent{
		Position:    model.Position{X: 0, Y: 0},
		Destination: model.Position{X: 10, Y: 10},
	}

	if got := nav.Step(a, 1.0); got != StepMoved {
		t.Fatalf("Step = %v, want StepMoved via axis slide", got)
	}
	if a.Position.X <= 0 || a.Position.Y != 0 {
		t.Fatalf("expected x-slide, got %+v", a.Position)
	}
}

func TestStepFallsBackToOrbital(t *testing.T) {
	// Walkable only on a thin ring around the centre: direct and axis
	// steps leave the ring, so only the tangent works.
	centre := model.Position{X: 0, Y: 0}
	oracle := &gridOracle{
		centre: centre,
		walkable: func(x, y float64) bool {
			r := Distance(model.Position{X: x, Y: y}, centre)
			return r >= 99.5 && r <= 100.5
		},
	}

	cfg := DefaultNavConfig()
	cfg.EscapeJitterSigma = 0
	nav := NewNavigationEngine(cfg, oracle, 1)

	a := &model.Agent{
		Position:    model.Position{X: 100, Y: 0},
		Destination: model.Position{X: -100, Y: 0},
	}

	if got := nav.Step(a, 1.0); got != StepMoved {
		t.Fatalf("Step = %v, want StepMoved via orbital fallback", got)
	}
	r := Distance(a.Position, centre)
	if r < 99.5 || r > 100.5 {
		t.Fatalf("orbital step left the ring: %+v (r=%.2f)", a.Position, r)
	}
}

func TestStepRoundsThePitchToCentreAlignedGoal(t *testing.T) {
	// The destination lies directly across the pitch exclusion zone, in
	// line with the centre. At the pitch edge the direct step and the
	// x-slide are blocked and the y component of the step is microscopic;
	// the agent must fall through to the orbital strategy and walk around
	// the pitch instead of nibbling at the edge forever.
	centre := model.Position{X: 500, Y: 400}
	oracle := &gridOracle{
		centre: centre,
		walkable: func(x, y float64) bool {
			r := Distance(model.Position{X: x, Y: y}, centre)
			return r >= 150 && r <= 600
		},
	}

	cfg := DefaultNavConfig()
	cfg.EscapeJitterSigma = 0 // arrival must not depend on the escape
	nav := NewNavigationEngine(cfg, oracle, 1)

	a := &model.Agent{
		Position:    model.Position{X: 300, Y: 400},
		Destination: model.Position{X: 680, Y: 400},
	}

	for i := 0; i < 5000; i++ {
		if nav.ArrivedAtWaypoint(a) {
			return
		}
		if got := nav.Step(a, 1.0); got == StepStalled {
			t.Fatalf("stalled at %+v after %d ticks", a.Position, i)
		}
	}
	t.Fatalf("agent never arrived; pinned at %+v", a.Position)
}

func TestStepStallsWhenFullyBlocked(t *testing.T) {
	// Nothing around the agent is walkable; with the jitter escape
	// disabled the step must report a stall and leave the agent in place.
	oracle := openOracle()
	start := model.Position{X: 5, Y: 5}
	oracle.walkable = func(x, y float64) bool { return x == start.X && y == start.Y }

	cfg := DefaultNavConfig()
	cfg.EscapeJitterSigma = 0
	nav := NewNavigationEngine(cfg, oracle, 1)

	a := &model.Agent{Position: start, Destination: model.Position{X: 50, Y: 5}}
	if got := nav.Step(a, 1.0); got != StepStalled {
		t.Fatalf("Step = %v, want StepStalled", got)
	}
	if a.Position != start {
		t.Fatalf("stalled step moved the agent to %+v", a.Position)
	}
}

func TestArrivalRadii(t *testing.T) {
	nav := NewNavigationEngine(DefaultNavConfig(), openOracle(), 1)
	a := &model.Agent{
		Position:    model.Position{X: 0, Y: 0},
		Destination: model.Position{X: 4, Y: 0},
	}

	// Four units out: inside the waypoint radius, outside the seat radius.
	if !nav.ArrivedAtWaypoint(a) {
		t.Fatalf("ArrivedAtWaypoint = false at distance 4, want true")
	}
	if nav.ArrivedAtSeat(a) {
		t.Fatalf("ArrivedAtSeat = true at distance 4, want false")
	}

	a.Destination = model.Position{X: 2, Y: 0}
	if !nav.ArrivedAtSeat(a) {
		t.Fatalf("ArrivedAtSeat = false at distance 2, want true")
	}
}

func TestExitSpeedCoversMoreGround(t *testing.T) {
	nav := NewNavigationEngine(DefaultNavConfig(), openOracle(), 1)
	walk := &model.Agent{Destination: model.Position{X: 100, Y: 0}}
	exit := &model.Agent{Destination: model.Position{X: 100, Y: 0}}

	cfg := nav.Config()
	nav.Step(walk, cfg.Speed)
	nav.Step(exit, cfg.Speed*cfg.ExitSpeedFactor)

	if exit.Position.X <= walk.Position.X {
		t.Fatalf("exit step %.2f not faster than walk step %.2f", exit.Position.X, walk.Position.X)
	}
}
