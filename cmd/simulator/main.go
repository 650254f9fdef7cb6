package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crowdsignals/stadium-simulator/core"
	"github.com/crowdsignals/stadium-simulator/internal/events"
	"github.com/crowdsignals/stadium-simulator/internal/logging"
	"github.com/crowdsignals/stadium-simulator/internal/mapservice"
	"github.com/crowdsignals/stadium-simulator/internal/observability"
	"github.com/crowdsignals/stadium-simulator/internal/persistence"
	"github.com/crowdsignals/stadium-simulator/internal/viz"
	"github.com/crowdsignals/stadium-simulator/model"
	"github.com/crowdsignals/stadium-simulator/timectrl"
)

func main() {
	// Optional .env for local runs; environment always wins.
	_ = godotenv.Load()

	population := flag.Int("population", 1000, "number of spectators to simulate")
	durationTicks := flag.Int64("duration-ticks", 2200, "run length in ticks (one tick = one simulated second)")
	seed := flag.Int64("seed", 42, "master random seed; identical seeds replay identical runs")
	layoutPath := flag.String("layout", "", "path to a stadium layout JSON file")
	mapServiceURL := flag.String("map-service", "", "base URL of the venue map service (overrides -layout)")
	accelerated := flag.Bool("accelerated", true, "run as fast as possible (vs real-time pacing)")
	tick := flag.Duration("tick", time.Second, "wall-clock tick interval in real-time mode")
	amqpURL := flag.String("amqp", "", "AMQP broker URL for telemetry (empty disables the bus)")
	dbPath := flag.String("db", "", "SQLite path for run recording (empty disables recording)")
	listenAddr := flag.String("listen", ":8080", "observation server address (empty disables it)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fatal(ctx, log, "init tracing", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCrowdCollector(nil)
	if err != nil {
		fatal(ctx, log, "register metrics", err)
	}

	var stadium *core.StadiumMap
	if err := observability.WithSpan(ctx, "stadium.load", func(ctx context.Context) error {
		var err error
		stadium, err = buildStadiumMap(ctx, *layoutPath, *mapServiceURL, *seed, log)
		return err
	}); err != nil {
		fatal(ctx, log, "build stadium map", err)
	}

	// Telemetry sinks: metrics always, broker and recorder when configured.
	sinks := core.FanoutEmitter{&metricsEmitter{c: collector}}

	if *amqpURL != "" {
		bus, err := events.Dial(events.Config{URL: *amqpURL, Seed: *seed}, log, collector)
		if err != nil {
			fatal(ctx, log, "connect telemetry bus", err)
		}
		defer bus.Close()
		sinks = append(sinks, bus)
	}

	var recorder *persistence.Recorder
	if *dbPath != "" {
		recorder, err = persistence.Open(*dbPath)
		if err != nil {
			fatal(ctx, log, "open run database", err)
		}
		defer recorder.Close()
		if err := recorder.BeginRun(*seed, *population, *durationTicks); err != nil {
			fatal(ctx, log, "begin run", err)
		}
		sinks = append(sinks, recorder)
	}

	timeline := core.DefaultTimeline()
	facilities := core.NewFacilityService(stadium, sinks, *seed+1)
	nav := core.NewNavigationEngine(core.DefaultNavConfig(), stadium, *seed+2)
	crowd := core.NewCrowdService(core.DefaultBehaviorConfig(), timeline, stadium, nav, facilities, sinks, log, *seed+3)

	var placed int
	_ = observability.WithSpan(ctx, "crowd.setup", func(ctx context.Context) error {
		placed = crowd.Setup(ctx, *population, stadium.ZonesOnLevel(0), stadium.ZonesOnLevel(1))
		return nil
	})
	log.Info(ctx, "crowd placed",
		logging.Int("requested", *population),
		logging.Int("placed", placed),
		logging.Int("skipped", crowd.Skipped()),
	)

	engineCfg := core.DefaultEngineConfig()
	engineCfg.DurationTicks = *durationTicks
	engine := core.NewSimulationEngine(engineCfg, timeline, crowd, stadium, sinks, log, *seed+4)

	var server *viz.Server
	if *listenAddr != "" {
		server = viz.NewServer(log, collector.Handler())
		go func() {
			if err := server.Start(*listenAddr); err != nil {
				log.Error(ctx, "observation server failed", logging.Err(err))
			}
		}()
	}

	engine.RegisterTickListener(func(t int64) {
		states := crowd.StateCounts()
		levels := crowd.LevelCounts()
		collector.SetPopulation(stateLabels(states), levels)
		for _, id := range facilities.FacilityIDs() {
			if f := facilities.Facility(id); f != nil {
				collector.SetFacility(f.ID, string(f.Kind), f.Occupancy, f.QueueLen())
			}
		}

		if recorder != nil {
			recorder.SetTick(t)
			if engineCfg.ReportEvery > 0 && t%engineCfg.ReportEvery == 0 {
				recorder.RecordTickStats(tickStats(t, timeline, crowd, states, levels))
			}
		}
		if server != nil {
			server.Publish(viz.BuildSnapshot(t, timeline, crowd, facilities))
		}
	})

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	ctrl := timectrl.New(timectrl.Config{Mode: mode, Interval: *tick})

	log.Info(ctx, "simulation starting",
		logging.Int64("duration_ticks", *durationTicks),
		logging.Int64("seed", *seed),
		logging.String("pacing", pacingLabel(mode, *tick)),
	)

	runErr := observability.WithSpan(ctx, "simulation.run", func(ctx context.Context) error {
		return ctrl.Run(ctx, *durationTicks, func(ctx context.Context, t int64) {
			start := time.Now()
			engine.Step(ctx, t)
			collector.ObserveTick(t, time.Since(start))
		})
	})

	if recorder != nil {
		if err := recorder.FinishRun(); err != nil {
			log.Warn(ctx, "finish run record failed", logging.Err(err))
		}
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn(ctx, "observation server shutdown failed", logging.Err(err))
		}
	}

	if runErr != nil {
		log.Info(ctx, "simulation interrupted", logging.Err(runErr))
		return
	}
	log.Info(ctx, "simulation complete",
		logging.Int("exited", crowd.StateCounts()[model.StateExited]),
		logging.Int("stalls", crowd.Stalls()),
	)
}

// buildStadiumMap prefers the live map service, then a layout file, then
// the synthetic fallback geometry. An unreachable map service degrades to
// the next source instead of aborting the run.
func buildStadiumMap(ctx context.Context, layoutPath, serviceURL string, seed int64, log logging.Logger) (*core.StadiumMap, error) {
	if serviceURL != "" {
		m, err := mapservice.NewClient(serviceURL, log).FetchStadiumMap(ctx, seed)
		if err == nil {
			return m, nil
		}
		log.Warn(ctx, "map service unavailable; falling back",
			logging.String("url", serviceURL),
			logging.Err(err),
		)
	}
	if layoutPath != "" {
		data, err := os.ReadFile(layoutPath)
		if err != nil {
			return nil, fmt.Errorf("read layout %q: %w", layoutPath, err)
		}
		geom, err := core.ReadLayoutGeometry(data)
		if err != nil {
			return nil, err
		}
		m := core.NewStadiumMap(geom.Centre, geom.FieldRadius, geom.OuterRadius, seed)
		f, err := os.Open(layoutPath)
		if err != nil {
			return nil, fmt.Errorf("open layout %q: %w", layoutPath, err)
		}
		defer f.Close()
		layout, err := core.LoadStadiumLayout(m, f)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "stadium layout loaded",
			logging.String("path", layoutPath),
			logging.Int("gates", len(layout.GateIDs)),
			logging.Int("facilities", len(layout.FacilityIDs)),
			logging.Int("zones", len(layout.ZoneIDs)),
		)
		return m, nil
	}
	log.Info(ctx, "no layout source configured; using synthetic geometry")
	return core.SyntheticLayout(seed), nil
}

// metricsEmitter bridges gate telemetry into the Prometheus counters.
// Facility and population gauges are refreshed per tick instead, where
// the full state is in hand.
type metricsEmitter struct {
	c *observability.CrowdCollector
}

func (m *metricsEmitter) GateEvent(gateID string, _ int, direction core.GateDirection) {
	m.c.CountGate(gateID, direction == core.GateEntry)
}

func (m *metricsEmitter) QueueEvent(model.FacilityKind, string, model.Position, int, int, int) {}
func (m *metricsEmitter) FacilityEvent(string, int, int)                                       {}
func (m *metricsEmitter) DensitySnapshot(int, []core.DensityCell)                              {}
func (m *metricsEmitter) HazardEvent(string, model.Position, []string, int, string)            {}

func stateLabels(states map[model.AgentState]int) map[string]int {
	out := make(map[string]int, len(states))
	for state, n := range states {
		out[state.String()] = n
	}
	return out
}

func tickStats(t int64, tl core.Timeline, crowd *core.CrowdService, states map[model.AgentState]int, levels map[int]int) persistence.TickStats {
	seated := states[model.StateSeated]
	inService := states[model.StateInService]
	queued := states[model.StateQueuedAtService]
	exited := states[model.StateExited]
	moving := len(crowd.Agents()) - seated - inService - queued - exited

	return persistence.TickStats{
		Tick:      t,
		Phase:     tl.PhaseAt(t).String(),
		Level0:    levels[0],
		Level1:    levels[1],
		Seated:    seated,
		InService: inService,
		Queued:    queued,
		Moving:    moving,
		Exited:    exited,
	}
}

func pacingLabel(mode timectrl.Mode, tick time.Duration) string {
	if mode == timectrl.Accelerated {
		return "accelerated"
	}
	return fmt.Sprintf("realtime (%s/tick)", tick)
}

func fatal(ctx context.Context, log logging.Logger, msg string, err error) {
	log.Error(ctx, msg, logging.Err(err))
	os.Exit(1)
}
