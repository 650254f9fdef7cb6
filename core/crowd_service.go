package core

import (
	"context"
	"math/rand"

	"github.com/crowdsignals/stadium-simulator/internal/logging"
	"github.com/crowdsignals/stadium-simulator/model"
)

// BehaviorConfig names every probabilistic rate and countdown of the
// seated-behavior policy. Exact constants vary between deployments, so
// none of them are baked into the state machine.
type BehaviorConfig struct {
	// ExitProb is the per-tick chance a seated agent starts leaving
	// after the match ends.
	ExitProb float64
	// HalfTimeFacilityProb is the per-tick chance a seated agent visits
	// a facility during the interval.
	HalfTimeFacilityProb float64
	// InPlayFacilityProb is the (much lower) equivalent during play.
	InPlayFacilityProb float64
	// BarBias is the probability a facility visit targets a bar rather
	// than a toilet.
	BarBias float64
	// StairTicks is the fixed duration of a stair traversal.
	StairTicks int
	// UpperLevelShare is the fraction of agents assigned level-1 seats.
	UpperLevelShare float64
}

// DefaultBehaviorConfig mirrors the observed congestion dynamics: rare
// in-play visits, a half-time surge, gradual post-game egress.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		ExitProb:             0.05,
		HalfTimeFacilityProb: 0.05,
		InPlayFacilityProb:   0.01,
		BarBias:              0.6,
		StairTicks:           40,
		UpperLevelShare:      0.3,
	}
}

// CrowdService owns every agent and its state transitions. One call to
// UpdateAgents advances the whole crowd by a single tick; agents are
// visited in ID order so runs with the same seed replay identically.
type CrowdService struct {
	cfg      BehaviorConfig
	timeline Timeline

	oracle     SpatialOracle
	nav        *NavigationEngine
	facilities *FacilityService
	emitter    Emitter
	log        logging.Logger
	rng        *rand.Rand

	agents []*model.Agent
	byID   map[int]*model.Agent
	// skipped counts agents whose setup could not resolve a waypoint.
	skipped int
	// stalls counts navigation steps where every strategy was blocked,
	// surfaced as a liveness diagnostic.
	stalls int
}

// NewCrowdService wires the state machine over its collaborators.
func NewCrowdService(
	cfg BehaviorConfig,
	timeline Timeline,
	oracle SpatialOracle,
	nav *NavigationEngine,
	facilities *FacilityService,
	emitter Emitter,
	log logging.Logger,
	seed int64,
) *CrowdService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &CrowdService{
		cfg:        cfg,
		timeline:   timeline,
		oracle:     oracle,
		nav:        nav,
		facilities: facilities,
		emitter:    emitter,
		log:        log,
		rng:        rand.New(rand.NewSource(seed)),
		byID:       make(map[int]*model.Agent),
	}
}

// Setup creates n agents with assigned seats and entry gates, drawing
// seating zones from the provided per-level candidate lists. Agents
// whose gate or stairs cannot be resolved are dropped with a warning;
// the run proceeds with a reduced crowd rather than aborting.
func (cs *CrowdService) Setup(ctx context.Context, n int, zonesL0, zonesL1 []string) int {
	placed := 0
	for i := 0; i < n; i++ {
		a, ok := cs.placeAgent(ctx, i, zonesL0, zonesL1)
		if !ok {
			cs.skipped++
			continue
		}
		cs.agents = append(cs.agents, a)
		cs.byID[a.ID] = a
		cs.emitter.GateEvent(a.EntryGate, a.ID, GateEntry)
		placed++
	}

	cs.log.Info(ctx, "crowd configured",
		logging.Int("agents", placed),
		logging.Int("skipped", cs.skipped),
	)
	return placed
}

func (cs *CrowdService) placeAgent(ctx context.Context, id int, zonesL0, zonesL1 []string) (*model.Agent, bool) {
	level := 0
	if len(zonesL1) > 0 && cs.rng.Float64() < cs.cfg.UpperLevelShare {
		level = 1
	}

	zones := zonesL0
	if level == 1 {
		zones = zonesL1
	}
	if len(zones) == 0 {
		cs.log.Warn(ctx, "no seating zones on level", logging.Int("agent", id), logging.Int("level", level))
		return nil, false
	}
	zoneID := zones[cs.rng.Intn(len(zones))]

	seat, ok := cs.oracle.RandomSeatInZone(zoneID)
	if !ok {
		cs.log.Warn(ctx, "zone cannot produce a seat", logging.Int("agent", id), logging.String("zone", zoneID))
		return nil, false
	}

	a := &model.Agent{
		ID:     id,
		Seat:   seat,
		ZoneID: zoneID,
		Level:  0, // everyone enters on the ground floor
	}

	// The route is derived backwards from the seat: upper-level agents
	// enter through the gate closest to their stairs, ground-level
	// agents through the gate closest to their seat.
	if level == 1 {
		stairs, ok := cs.oracle.NearestStairs(seat, 1, 0)
		if !ok {
			cs.log.Warn(ctx, "no stairs reachable from seat", logging.Int("agent", id), logging.String("zone", zoneID))
			return nil, false
		}
		gate, ok := cs.oracle.NearestGate(stairs.Location, 0)
		if !ok {
			cs.log.Warn(ctx, "no gate near stairs", logging.Int("agent", id), logging.String("stairs", stairs.ID))
			return nil, false
		}
		a.Position = gate.Location
		a.EntryGate = gate.ID
		a.EntryGateLoc = gate.Location
		a.State = model.StateEnteringToStairs
		a.Destination = stairs.Location
		return a, true
	}

	gate, ok := cs.oracle.NearestGate(seat, 0)
	if !ok {
		cs.log.Warn(ctx, "no gate near seat", logging.Int("agent", id), logging.String("zone", zoneID))
		return nil, false
	}
	a.Position = gate.Location
	a.EntryGate = gate.ID
	a.EntryGateLoc = gate.Location
	a.State = model.StateWalkingToSeat
	a.Destination = seat
	return a, true
}

// UpdateAgents advances every agent by one tick using the phase at t,
// then admits queued agents into freed facility capacity in FIFO order.
// The phase is resolved once and holds for the whole tick.
func (cs *CrowdService) UpdateAgents(ctx context.Context, t int64) {
	phase := cs.timeline.PhaseAt(t)
	for _, a := range cs.agents {
		cs.updateAgent(ctx, a, phase)
	}
	cs.tickFacilities(ctx)
}

func (cs *CrowdService) updateAgent(ctx context.Context, a *model.Agent, phase Phase) {
	switch a.State {
	case model.StateEnteringToStairs:
		cs.step(a, cs.nav.Config().Speed)
		if cs.nav.ArrivedAtWaypoint(a) {
			a.State = model.StateAscending
			a.StairTicks = cs.cfg.StairTicks
		}

	case model.StateAscending:
		a.StairTicks--
		if a.StairTicks <= 0 {
			a.Level = 1
			a.Destination = a.Seat
			a.State = model.StateWalkingToSeat
		}

	case model.StateWalkingToSeat, model.StateReturningToSeat:
		cs.step(a, cs.nav.Config().Speed)
		if cs.nav.ArrivedAtSeat(a) {
			a.State = model.StateSeated
		}

	case model.StateSeated:
		cs.seatedPolicy(ctx, a, phase)

	case model.StateWalkingToService:
		cs.step(a, cs.nav.Config().Speed)
		if cs.nav.ArrivedAtWaypoint(a) {
			cs.arriveAtFacility(ctx, a)
		}

	case model.StateQueuedAtService:
		// Waiting in line; admission happens in the facility pass.

	case model.StateInService:
		a.ServiceTicks--
		if a.ServiceTicks <= 0 {
			if err := cs.facilities.Release(a.ID, a.TargetFacility); err != nil {
				cs.log.Warn(ctx, "release failed", logging.Int("agent", a.ID), logging.Err(err))
			}
			a.TargetFacility = ""
			a.Destination = a.Seat
			a.State = model.StateReturningToSeat
		}

	case model.StateWalkingToExitGate:
		cs.step(a, cs.nav.Config().Speed*cs.nav.Config().ExitSpeedFactor)
		if cs.nav.ArrivedAtWaypoint(a) {
			if a.Level == 1 {
				// Destination was the stairs down.
				a.State = model.StateDescending
				a.StairTicks = cs.cfg.StairTicks
			} else {
				a.State = model.StateExited
				cs.emitter.GateEvent(a.EntryGate, a.ID, GateExit)
			}
		}

	case model.StateDescending:
		a.StairTicks--
		if a.StairTicks <= 0 {
			a.Level = 0
			a.Destination = a.EntryGateLoc
			a.State = model.StateWalkingToExitGate
		}

	case model.StateExited:
		// Terminal; the agent no longer consumes movement ticks.
	}
}

// seatedPolicy evaluates the per-tick probabilistic decisions of a
// seated agent. Draws are independent per agent per tick.
func (cs *CrowdService) seatedPolicy(ctx context.Context, a *model.Agent, phase Phase) {
	switch phase {
	case PhasePostGame:
		if cs.rng.Float64() < cs.cfg.ExitProb {
			cs.initiateExit(ctx, a)
		}
	case PhaseHalfTime:
		if cs.rng.Float64() < cs.cfg.HalfTimeFacilityProb {
			cs.goToFacility(ctx, a)
		}
	case PhaseFirstHalf, PhaseSecondHalf:
		if cs.rng.Float64() < cs.cfg.InPlayFacilityProb {
			cs.goToFacility(ctx, a)
		}
	}
}

func (cs *CrowdService) initiateExit(ctx context.Context, a *model.Agent) {
	if a.Level == 1 {
		stairs, ok := cs.oracle.NearestStairs(a.Position, 1, 0)
		if !ok {
			// No way down this tick; stay seated and retry.
			cs.log.Warn(ctx, "no stairs for exit", logging.Int("agent", a.ID))
			return
		}
		a.Destination = stairs.Location
	} else {
		a.Destination = a.EntryGateLoc
	}
	a.State = model.StateWalkingToExitGate
}

func (cs *CrowdService) goToFacility(ctx context.Context, a *model.Agent) {
	kind := model.FacilityToilet
	if cs.rng.Float64() < cs.cfg.BarBias {
		kind = model.FacilityBar
	}
	f, ok := cs.oracle.NearestFacility(kind, a.Position, a.Level)
	if !ok {
		// Nothing of that kind on this level; stay seated.
		return
	}
	a.TargetFacility = f.ID
	a.Destination = f.Location
	a.State = model.StateWalkingToService
}

func (cs *CrowdService) arriveAtFacility(ctx context.Context, a *model.Agent) {
	adm, err := cs.facilities.RequestService(a.ID, a.TargetFacility)
	if err != nil {
		// Facility vanished or bookkeeping broke; walk back to the seat.
		cs.log.Warn(ctx, "service request failed", logging.Int("agent", a.ID), logging.Err(err))
		a.TargetFacility = ""
		a.Destination = a.Seat
		a.State = model.StateReturningToSeat
		return
	}
	if adm.Admitted {
		a.ServiceTicks = adm.ServiceTicks
		a.State = model.StateInService
		return
	}
	a.InQueue = true
	a.State = model.StateQueuedAtService
}

// EvacuateQueues sends every agent queued at a facility on the given
// level back to its seat, unbinding it so the remaining waiters keep
// their FIFO order. Agents already in service finish normally. Returns
// the number of agents evacuated.
func (cs *CrowdService) EvacuateQueues(ctx context.Context, level int) int {
	evacuated := 0
	for _, a := range cs.agents {
		if a.State != model.StateQueuedAtService || a.Level != level {
			continue
		}
		cs.facilities.Unbind(a.ID)
		a.InQueue = false
		a.TargetFacility = ""
		a.Destination = a.Seat
		a.State = model.StateReturningToSeat
		evacuated++
	}
	if evacuated > 0 {
		cs.log.Info(ctx, "queues evacuated",
			logging.Int("level", level),
			logging.Int("agents", evacuated),
		)
	}
	return evacuated
}

// tickFacilities moves queue heads into freed capacity.
func (cs *CrowdService) tickFacilities(ctx context.Context) {
	for _, id := range cs.facilities.FacilityIDs() {
		admitted, err := cs.facilities.Tick(id)
		if err != nil {
			cs.log.Warn(ctx, "facility tick failed", logging.String("facility", id), logging.Err(err))
			continue
		}
		for agentID, adm := range admitted {
			a := cs.agent(agentID)
			if a == nil {
				continue
			}
			a.InQueue = false
			a.ServiceTicks = adm.ServiceTicks
			a.State = model.StateInService
		}
	}
}

func (cs *CrowdService) step(a *model.Agent, speed float64) {
	if cs.nav.Step(a, speed) == StepStalled {
		cs.stalls++
	}
}

func (cs *CrowdService) agent(id int) *model.Agent { return cs.byID[id] }

// Agents exposes the agent collection for post-tick consumers. The slice
// must only be read between ticks.
func (cs *CrowdService) Agents() []*model.Agent { return cs.agents }

// Skipped reports how many agents were dropped during setup.
func (cs *CrowdService) Skipped() int { return cs.skipped }

// Stalls reports cumulative fully-blocked navigation steps.
func (cs *CrowdService) Stalls() int { return cs.stalls }

// StateCounts tallies agents by state for metrics and reports.
func (cs *CrowdService) StateCounts() map[model.AgentState]int {
	counts := make(map[model.AgentState]int)
	for _, a := range cs.agents {
		counts[a.State]++
	}
	return counts
}

// LevelCounts tallies agents by floor level.
func (cs *CrowdService) LevelCounts() map[int]int {
	counts := make(map[int]int)
	for _, a := range cs.agents {
		counts[a.Level]++
	}
	return counts
}
