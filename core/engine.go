package core

import (
	"context"
	"math/rand"
	"sort"

	"github.com/crowdsignals/stadium-simulator/internal/logging"
	"github.com/crowdsignals/stadium-simulator/model"
	"github.com/crowdsignals/stadium-simulator/timectrl"
)

// EngineConfig controls the tick loop's periodic work and the scripted
// hazard.
type EngineConfig struct {
	// DurationTicks is the total run length in ticks; one tick is one
	// simulated second.
	DurationTicks int64
	// DensityEvery emits density snapshots every N ticks; 0 disables.
	DensityEvery int64
	// ReportEvery logs an aggregate population report every N ticks;
	// 0 disables.
	ReportEvery int64
	// HazardTick fires a scripted fire alert at this simulated time;
	// negative disables.
	HazardTick int64
}

// DefaultEngineConfig matches a 2200-tick scripted event with snapshots
// every 10 ticks, reports every minute, and a second-half fire drill.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DurationTicks: 2200,
		DensityEvery:  10,
		ReportEvery:   60,
		HazardTick:    1400,
	}
}

// SimulationEngine drives the single-threaded cooperative tick loop:
// resolve the phase, update every agent, admit queued agents, then emit
// periodic telemetry. Within a tick there is a single writer; consumers
// read the post-tick snapshot only.
type SimulationEngine struct {
	cfg      EngineConfig
	timeline Timeline
	crowd    *CrowdService
	oracle   SpatialOracle
	emitter  Emitter
	log      logging.Logger

	rng           *rand.Rand
	hazardFired   bool
	tickListeners []func(tick int64)
}

// NewSimulationEngine assembles the loop over its collaborators.
func NewSimulationEngine(
	cfg EngineConfig,
	timeline Timeline,
	crowd *CrowdService,
	oracle SpatialOracle,
	emitter Emitter,
	log logging.Logger,
	seed int64,
) *SimulationEngine {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &SimulationEngine{
		cfg:      cfg,
		timeline: timeline,
		crowd:    crowd,
		oracle:   oracle,
		emitter:  emitter,
		log:      log,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// RegisterTickListener adds a callback invoked after each completed tick,
// when the simulation state is consistent and read-only.
func (se *SimulationEngine) RegisterTickListener(fn func(tick int64)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Crowd exposes the crowd service for snapshot consumers.
func (se *SimulationEngine) Crowd() *CrowdService { return se.crowd }

// Timeline returns the scripted phase boundaries.
func (se *SimulationEngine) Timeline() Timeline { return se.timeline }

// Step advances the simulation by exactly one tick at simulated time t.
func (se *SimulationEngine) Step(ctx context.Context, t int64) {
	se.crowd.UpdateAgents(ctx, t)

	if se.cfg.HazardTick >= 0 && t == se.cfg.HazardTick && !se.hazardFired {
		se.triggerFire(ctx)
		se.hazardFired = true
	}

	if se.cfg.DensityEvery > 0 && t%se.cfg.DensityEvery == 0 {
		for level := 0; level <= 1; level++ {
			se.emitter.DensitySnapshot(level, BinDensity(se.crowd.Agents(), level, DensityGridStep))
		}
	}

	if se.cfg.ReportEvery > 0 && t%se.cfg.ReportEvery == 0 {
		se.report(ctx, t)
	}

	for _, fn := range se.tickListeners {
		fn(t)
	}
}

// Run drives the loop through the controller until the configured duration
// elapses or the context is cancelled. Cancellation lands on a tick
// boundary, so agents freeze in a fully consistent state.
func (se *SimulationEngine) Run(ctx context.Context, ctrl *timectrl.Controller) error {
	if err := ctrl.Run(ctx, se.cfg.DurationTicks, se.Step); err != nil {
		se.log.Info(ctx, "run cancelled", logging.Int64("tick", ctrl.CurrentTick()))
		return err
	}
	return nil
}

// triggerFire raises a scripted fire alert in a random seating zone's
// sector, just inside its seating ring.
func (se *SimulationEngine) triggerFire(ctx context.Context) {
	zones := se.zoneList()
	if len(zones) == 0 {
		return
	}
	z := zones[se.rng.Intn(len(zones))]

	ang := (z.AngleStart + z.AngleEnd) / 2
	loc := PointOnRing(se.oracle.Centre(z.Level), ang, z.InnerRadius+20)

	se.emitter.HazardEvent("FIRE_TEST", loc, []string{z.Sector}, z.Level, "critical")
	evacuated := se.crowd.EvacuateQueues(ctx, z.Level)
	se.log.Warn(ctx, "fire alert triggered",
		logging.String("sector", z.Sector),
		logging.Int("level", z.Level),
		logging.Int("evacuated", evacuated),
	)
}

func (se *SimulationEngine) report(ctx context.Context, t int64) {
	states := se.crowd.StateCounts()
	levels := se.crowd.LevelCounts()
	seated := states[model.StateSeated]
	inService := states[model.StateInService]
	queued := states[model.StateQueuedAtService]
	exited := states[model.StateExited]
	moving := len(se.crowd.Agents()) - seated - inService - queued - exited

	se.log.Info(ctx, "population report",
		logging.Int("minute", int(t/60)),
		logging.String("phase", se.timeline.PhaseAt(t).String()),
		logging.Int("level0", levels[0]),
		logging.Int("level1", levels[1]),
		logging.Int("seated", seated),
		logging.Int("in_service", inService),
		logging.Int("queued", queued),
		logging.Int("moving", moving),
		logging.Int("exited", exited),
	)
}

// zoneList fetches zones when the oracle backend exposes them; hazards
// are skipped otherwise.
func (se *SimulationEngine) zoneList() []*model.SeatingZone {
	type zoner interface {
		ZonesOnLevel(level int) []string
		Zone(id string) *model.SeatingZone
	}
	z, ok := se.oracle.(zoner)
	if !ok {
		return nil
	}
	var out []*model.SeatingZone
	for level := 0; level <= 1; level++ {
		ids := z.ZonesOnLevel(level)
		sort.Strings(ids)
		for _, id := range ids {
			if zone := z.Zone(id); zone != nil {
				out = append(out, zone)
			}
		}
	}
	return out
}
