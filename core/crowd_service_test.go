package core

import (
	"context"
	"testing"

	"github.com/crowdsignals/stadium-simulator/model"
)

type gateRecord struct {
	gateID  string
	agentID int
	dir     GateDirection
}

// captureEmitter records gate passages and drops everything else.
type captureEmitter struct {
	NoopEmitter
	gates []gateRecord
}

func (c *captureEmitter) GateEvent(gateID string, agentID int, dir GateDirection) {
	c.gates = append(c.gates, gateRecord{gateID: gateID, agentID: agentID, dir: dir})
}

func (c *captureEmitter) exits() []gateRecord {
	var out []gateRecord
	for _, g := range c.gates {
		if g.dir == GateExit {
			out = append(out, g)
		}
	}
	return out
}

func newCrowdHarness(cfg BehaviorConfig) (*CrowdService, *StadiumMap, *FacilityService, *captureEmitter) {
	stadium := SyntheticLayout(1)
	emitter := &captureEmitter{}
	facilities := NewFacilityService(stadium, emitter, 2)
	nav := NewNavigationEngine(DefaultNavConfig(), stadium, 3)
	crowd := NewCrowdService(cfg, DefaultTimeline(), stadium, nav, facilities, emitter, nil, 4)
	return crowd, stadium, facilities, emitter
}

// runUntil ticks the crowd at simulated time t until the agent reaches
// the wanted state, bounded so a regression fails instead of hanging.
func runUntil(t *testing.T, crowd *CrowdService, a *model.Agent, tick int64, want model.AgentState) {
	t.Helper()
	for i := 0; i < 3000; i++ {
		if a.State == want {
			return
		}
		crowd.UpdateAgents(context.Background(), tick)
	}
	t.Fatalf("agent %d stuck in %s, want %s", a.ID, a.State, want)
}

func TestSetupPlacesCrowdAtGates(t *testing.T) {
	crowd, stadium, _, emitter := newCrowdHarness(DefaultBehaviorConfig())

	placed := crowd.Setup(context.Background(), 50, stadium.ZonesOnLevel(0), stadium.ZonesOnLevel(1))
	if placed != 50 {
		t.Fatalf("placed %d agents, want 50", placed)
	}
	if crowd.Skipped() != 0 {
		t.Fatalf("skipped %d agents on a complete layout", crowd.Skipped())
	}
	if len(emitter.gates) != 50 {
		t.Fatalf("emitted %d gate events, want 50 entries", len(emitter.gates))
	}

	for _, a := range crowd.Agents() {
		if a.Level != 0 {
			t.Fatalf("agent %d starts on level %d, everyone enters on the ground floor", a.ID, a.Level)
		}
		switch a.State {
		case model.StateWalkingToSeat:
			if a.Destination != a.Seat {
				t.Fatalf("ground agent %d heading to %v, want its seat %v", a.ID, a.Destination, a.Seat)
			}
		case model.StateEnteringToStairs:
			if a.Destination == a.Seat {
				t.Fatalf("upper agent %d heading straight to its seat, want stairs first", a.ID)
			}
		default:
			t.Fatalf("agent %d in state %s after setup", a.ID, a.State)
		}
		if a.EntryGate == "" {
			t.Fatalf("agent %d has no entry gate", a.ID)
		}
	}

	levels := crowd.LevelCounts()
	if levels[0] != 50 {
		t.Fatalf("level counts = %v, want all 50 on level 0", levels)
	}
}

func TestSetupWithoutUpperZonesStaysGrounded(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.UpperLevelShare = 1.0
	crowd, stadium, _, _ := newCrowdHarness(cfg)

	crowd.Setup(context.Background(), 20, stadium.ZonesOnLevel(0), nil)
	for _, a := range crowd.Agents() {
		if a.State != model.StateWalkingToSeat {
			t.Fatalf("agent %d in state %s without upper zones, want WALKING_TO_SEAT", a.ID, a.State)
		}
	}
}

func TestSetupSkipsUnresolvableZones(t *testing.T) {
	crowd, _, _, _ := newCrowdHarness(DefaultBehaviorConfig())

	placed := crowd.Setup(context.Background(), 10, []string{"NOWHERE"}, nil)
	if placed != 0 {
		t.Fatalf("placed %d agents in an unknown zone, want 0", placed)
	}
	if crowd.Skipped() != 10 {
		t.Fatalf("skipped = %d, want 10", crowd.Skipped())
	}
}

func TestGroundAgentWalksToSeatAndSits(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.UpperLevelShare = 0
	crowd, stadium, _, _ := newCrowdHarness(cfg)

	crowd.Setup(context.Background(), 1, stadium.ZonesOnLevel(0), nil)
	a := crowd.Agents()[0]

	runUntil(t, crowd, a, 0, model.StateSeated)
	if VecBetween(a.Position, a.Seat).Norm() > DefaultNavConfig().SeatArrivalRadius {
		t.Fatalf("seated agent is %.1f units from its seat", VecBetween(a.Position, a.Seat).Norm())
	}

	// Pre-game seated agents stay put.
	crowd.UpdateAgents(context.Background(), 0)
	if a.State != model.StateSeated {
		t.Fatalf("seated agent changed state to %s before the match", a.State)
	}
}

func TestUpperAgentClimbsStairsToItsLevel(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.UpperLevelShare = 1.0
	crowd, stadium, _, _ := newCrowdHarness(cfg)

	crowd.Setup(context.Background(), 1, stadium.ZonesOnLevel(0), stadium.ZonesOnLevel(1))
	a := crowd.Agents()[0]
	if a.State != model.StateEnteringToStairs {
		t.Fatalf("upper agent starts in %s, want ENTERING_TO_STAIRS", a.State)
	}

	runUntil(t, crowd, a, 0, model.StateAscending)
	if a.Level != 0 {
		t.Fatalf("agent changed level to %d before finishing the climb", a.Level)
	}

	// The climb is a fixed countdown.
	for i := 0; i < cfg.StairTicks; i++ {
		crowd.UpdateAgents(context.Background(), 0)
	}
	if a.Level != 1 {
		t.Fatalf("agent on level %d after %d stair ticks, want 1", a.Level, cfg.StairTicks)
	}
	if a.State != model.StateWalkingToSeat {
		t.Fatalf("agent in state %s at the top of the stairs, want WALKING_TO_SEAT", a.State)
	}
	if a.Destination != a.Seat {
		t.Fatalf("agent heading to %v after the climb, want its seat %v", a.Destination, a.Seat)
	}
}

func TestSeatedAgentVisitsFacilityAndReturns(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.UpperLevelShare = 0
	cfg.InPlayFacilityProb = 1.0
	cfg.BarBias = 1.0
	crowd, stadium, facilities, _ := newCrowdHarness(cfg)

	crowd.Setup(context.Background(), 1, stadium.ZonesOnLevel(0), nil)
	a := crowd.Agents()[0]
	runUntil(t, crowd, a, 0, model.StateSeated)

	// First in-play tick: the certain draw sends the agent to a bar.
	crowd.UpdateAgents(context.Background(), 300)
	if a.State != model.StateWalkingToService {
		t.Fatalf("agent in state %s after an in-play draw, want WALKING_TO_SERVICE", a.State)
	}
	if a.TargetFacility != "BAR_L0" {
		t.Fatalf("target facility = %q, want BAR_L0 (bar bias 1.0 on level 0)", a.TargetFacility)
	}

	runUntil(t, crowd, a, 300, model.StateInService)
	if a.ServiceTicks <= 0 {
		t.Fatalf("in-service agent has no countdown (%d ticks)", a.ServiceTicks)
	}
	if bound, ok := facilities.BoundFacility(a.ID); !ok || bound != "BAR_L0" {
		t.Fatalf("in-service agent bound to %q, want BAR_L0", bound)
	}

	runUntil(t, crowd, a, 300, model.StateReturningToSeat)
	if a.TargetFacility != "" {
		t.Fatalf("returning agent still targets %q", a.TargetFacility)
	}
	if _, ok := facilities.BoundFacility(a.ID); ok {
		t.Fatalf("returning agent still bound to a facility")
	}

	runUntil(t, crowd, a, 0, model.StateSeated)
}

func TestPostGameExitIsTerminal(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.UpperLevelShare = 0
	cfg.ExitProb = 1.0
	crowd, stadium, _, emitter := newCrowdHarness(cfg)

	crowd.Setup(context.Background(), 1, stadium.ZonesOnLevel(0), nil)
	a := crowd.Agents()[0]
	runUntil(t, crowd, a, 0, model.StateSeated)

	crowd.UpdateAgents(context.Background(), 2100)
	if a.State != model.StateWalkingToExitGate {
		t.Fatalf("agent in state %s after the final whistle, want WALKING_TO_EXIT_GATE", a.State)
	}
	if a.Destination != a.EntryGateLoc {
		t.Fatalf("ground agent exiting via %v, want its entry gate %v", a.Destination, a.EntryGateLoc)
	}

	runUntil(t, crowd, a, 2100, model.StateExited)

	exits := emitter.exits()
	if len(exits) != 1 {
		t.Fatalf("emitted %d exit events, want exactly 1", len(exits))
	}
	if exits[0].gateID != a.EntryGate || exits[0].agentID != a.ID {
		t.Fatalf("exit recorded at %q for agent %d, want %q for %d",
			exits[0].gateID, exits[0].agentID, a.EntryGate, a.ID)
	}

	// Exited is terminal: further ticks change nothing.
	for i := 0; i < 10; i++ {
		crowd.UpdateAgents(context.Background(), 2100)
	}
	if a.State != model.StateExited {
		t.Fatalf("exited agent moved to %s", a.State)
	}
	if len(emitter.exits()) != 1 {
		t.Fatalf("exited agent emitted another gate event")
	}
}

func TestQueuedAgentIsAdmittedWhenCapacityFrees(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.UpperLevelShare = 0
	cfg.InPlayFacilityProb = 1.0
	cfg.BarBias = 1.0
	crowd, stadium, facilities, _ := newCrowdHarness(cfg)

	// Shrink the bar to one slot and fill it with a placeholder so the
	// arriving agent has to queue.
	bar := facilities.Facility("BAR_L0")
	bar.Capacity = 1
	const blocker = 9999
	if _, err := facilities.RequestService(blocker, "BAR_L0"); err != nil {
		t.Fatalf("blocking request: %v", err)
	}

	crowd.Setup(context.Background(), 1, stadium.ZonesOnLevel(0), nil)
	a := crowd.Agents()[0]
	runUntil(t, crowd, a, 0, model.StateSeated)

	crowd.UpdateAgents(context.Background(), 300)
	runUntil(t, crowd, a, 300, model.StateQueuedAtService)
	if !a.InQueue {
		t.Fatalf("queued agent not flagged as in queue")
	}
	if bar.QueueLen() != 1 {
		t.Fatalf("bar queue length = %d, want 1", bar.QueueLen())
	}

	// Freeing the slot admits the waiter on the next facility pass.
	if err := facilities.Release(blocker, "BAR_L0"); err != nil {
		t.Fatalf("release: %v", err)
	}
	crowd.UpdateAgents(context.Background(), 300)
	if a.State != model.StateInService {
		t.Fatalf("agent in state %s after the slot freed, want IN_SERVICE", a.State)
	}
	if a.InQueue {
		t.Fatalf("admitted agent still flagged as in queue")
	}
	if a.ServiceTicks <= 0 {
		t.Fatalf("admitted agent has no service countdown (%d)", a.ServiceTicks)
	}
	if bar.Occupancy != 1 {
		t.Fatalf("bar occupancy = %d after admission, want 1", bar.Occupancy)
	}
}

func TestHazardEvacuationClearsQueuesOnTheLevel(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.UpperLevelShare = 0
	cfg.InPlayFacilityProb = 1.0
	cfg.BarBias = 1.0
	crowd, stadium, facilities, _ := newCrowdHarness(cfg)

	bar := facilities.Facility("BAR_L0")
	bar.Capacity = 1
	const blocker = 9999
	if _, err := facilities.RequestService(blocker, "BAR_L0"); err != nil {
		t.Fatalf("blocking request: %v", err)
	}

	crowd.Setup(context.Background(), 1, stadium.ZonesOnLevel(0), nil)
	a := crowd.Agents()[0]
	runUntil(t, crowd, a, 0, model.StateSeated)
	crowd.UpdateAgents(context.Background(), 300)
	runUntil(t, crowd, a, 300, model.StateQueuedAtService)

	// A hazard on the other level leaves the queue alone.
	if n := crowd.EvacuateQueues(context.Background(), 1); n != 0 {
		t.Fatalf("evacuated %d agents from the wrong level, want 0", n)
	}
	if a.State != model.StateQueuedAtService {
		t.Fatalf("agent left the queue for a hazard on another level (%s)", a.State)
	}

	if n := crowd.EvacuateQueues(context.Background(), 0); n != 1 {
		t.Fatalf("evacuated %d agents, want 1", n)
	}
	if a.State != model.StateReturningToSeat {
		t.Fatalf("evacuated agent in state %s, want RETURNING_TO_SEAT", a.State)
	}
	if a.InQueue || a.TargetFacility != "" {
		t.Fatalf("evacuated agent still carries queue bookkeeping: inQueue=%v target=%q", a.InQueue, a.TargetFacility)
	}
	if a.Destination != a.Seat {
		t.Fatalf("evacuated agent heading to %v, want its seat %v", a.Destination, a.Seat)
	}
	if _, bound := facilities.BoundFacility(a.ID); bound {
		t.Fatalf("evacuated agent still bound to a facility")
	}
	if bar.QueueLen() != 0 {
		t.Fatalf("bar queue length = %d after evacuation, want 0", bar.QueueLen())
	}

	// The occupant in service is unaffected and keeps its slot.
	if bound, ok := facilities.BoundFacility(blocker); !ok || bound != "BAR_L0" {
		t.Fatalf("in-service occupant bound to %q after evacuation, want BAR_L0", bound)
	}
	if bar.Occupancy != 1 {
		t.Fatalf("bar occupancy = %d after evacuation, want 1", bar.Occupancy)
	}

	runUntil(t, crowd, a, 0, model.StateSeated)
}

func TestSetupReplaysIdenticallyForTheSameSeed(t *testing.T) {
	place := func() []*model.Agent {
		crowd, stadium, _, _ := newCrowdHarness(DefaultBehaviorConfig())
		crowd.Setup(context.Background(), 40, stadium.ZonesOnLevel(0), stadium.ZonesOnLevel(1))
		return crowd.Agents()
	}

	first, second := place(), place()
	if len(first) != len(second) {
		t.Fatalf("replay placed %d vs %d agents", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.ZoneID != b.ZoneID || a.Seat != b.Seat || a.EntryGate != b.EntryGate || a.State != b.State {
			t.Fatalf("agent %d diverged between seeded replays: %+v vs %+v", a.ID, a, b)
		}
	}
}

func TestStateCountsCoverTheWholeCrowd(t *testing.T) {
	crowd, stadium, _, _ := newCrowdHarness(DefaultBehaviorConfig())
	placed := crowd.Setup(context.Background(), 30, stadium.ZonesOnLevel(0), stadium.ZonesOnLevel(1))

	total := 0
	for _, n := range crowd.StateCounts() {
		total += n
	}
	if total != placed {
		t.Fatalf("state counts sum to %d, want %d", total, placed)
	}
}
