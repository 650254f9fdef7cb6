package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/crowdsignals/stadium-simulator/core"
	"github.com/crowdsignals/stadium-simulator/internal/logging"
	"github.com/crowdsignals/stadium-simulator/internal/persistence"
	"github.com/crowdsignals/stadium-simulator/model"
	"github.com/crowdsignals/stadium-simulator/timectrl"
)

// TestIntegration_ShortRecordedRun wires the stack the way main does and
// runs a short accelerated match, checking that the recorder captured it.
func TestIntegration_ShortRecordedRun(t *testing.T) {
	ctx := context.Background()
	log := logging.Noop()

	recorder, err := persistence.Open(filepath.Join(t.TempDir(), "run.db"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	defer recorder.Close()
	if err := recorder.BeginRun(7, 20, 120); err != nil {
		t.Fatalf("begin run: %v", err)
	}

	stadium := core.SyntheticLayout(7)
	sinks := core.FanoutEmitter{recorder}
	timeline := core.DefaultTimeline()
	facilities := core.NewFacilityService(stadium, sinks, 8)
	nav := core.NewNavigationEngine(core.DefaultNavConfig(), stadium, 9)
	crowd := core.NewCrowdService(core.DefaultBehaviorConfig(), timeline, stadium, nav, facilities, sinks, log, 10)

	placed := crowd.Setup(ctx, 20, stadium.ZonesOnLevel(0), stadium.ZonesOnLevel(1))
	if placed != 20 {
		t.Fatalf("placed %d agents, want 20", placed)
	}

	engineCfg := core.EngineConfig{DurationTicks: 120, DensityEvery: 10, ReportEvery: 60, HazardTick: -1}
	engine := core.NewSimulationEngine(engineCfg, timeline, crowd, stadium, sinks, log, 11)

	ticks := 0
	engine.RegisterTickListener(func(tk int64) {
		ticks++
		recorder.SetTick(tk)
		if tk%engineCfg.ReportEvery == 0 {
			recorder.RecordTickStats(tickStats(tk, timeline, crowd, crowd.StateCounts(), crowd.LevelCounts()))
		}
	})

	ctrl := timectrl.New(timectrl.Config{Mode: timectrl.Accelerated})
	if err := engine.Run(ctx, ctrl); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := recorder.FinishRun(); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	if ticks != 120 {
		t.Fatalf("ran %d ticks, want 120", ticks)
	}

	stats, err := recorder.RunTickStats(recorder.RunID())
	if err != nil {
		t.Fatalf("load tick stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("recorded %d stat rows over 120 ticks, want 2 (ticks 0 and 60)", len(stats))
	}
	for _, s := range stats {
		sum := s.Seated + s.InService + s.Queued + s.Moving + s.Exited
		if sum != 20 {
			t.Fatalf("tick %d stats sum to %d agents, want 20", s.Tick, sum)
		}
		if s.Phase != "PRE_GAME" {
			t.Fatalf("tick %d phase = %q, want PRE_GAME", s.Tick, s.Phase)
		}
	}
}

func TestBuildStadiumMapSyntheticFallback(t *testing.T) {
	m, err := buildStadiumMap(context.Background(), "", "", 1, logging.Noop())
	if err != nil {
		t.Fatalf("buildStadiumMap: %v", err)
	}
	gates, facilities, stairs, zones := m.Counts()
	if gates != 8 || facilities != 4 || stairs != 4 || zones != 8 {
		t.Fatalf("synthetic fallback counts = %d/%d/%d/%d, want 8/4/4/8", gates, facilities, stairs, zones)
	}
}

func TestBuildStadiumMapFromLayoutFile(t *testing.T) {
	m, err := buildStadiumMap(context.Background(), "../../configs/stadium_layout.json", "", 1, logging.Noop())
	if err != nil {
		t.Fatalf("buildStadiumMap: %v", err)
	}
	gates, facilities, stairs, zones := m.Counts()
	if gates != 8 || facilities != 4 || stairs != 4 || zones != 8 {
		t.Fatalf("layout file counts = %d/%d/%d/%d, want 8/4/4/8", gates, facilities, stairs, zones)
	}
}

func TestBuildStadiumMapDegradesWhenServiceUnreachable(t *testing.T) {
	// A dead endpoint: the server is closed before the fetch, so the
	// connection is refused and the builder must fall back.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	m, err := buildStadiumMap(context.Background(), "", srv.URL, 1, logging.Noop())
	if err != nil {
		t.Fatalf("unreachable map service aborted the run: %v", err)
	}
	gates, _, _, zones := m.Counts()
	if gates != 8 || zones != 8 {
		t.Fatalf("fallback counts = %d gates / %d zones, want synthetic 8/8", gates, zones)
	}
}

func TestTickStatsPartitionsTheCrowd(t *testing.T) {
	states := map[model.AgentState]int{
		model.StateSeated:          5,
		model.StateInService:       2,
		model.StateQueuedAtService: 1,
		model.StateWalkingToSeat:   3,
		model.StateExited:          4,
	}
	levels := map[int]int{0: 11, 1: 4}

	stadium := core.SyntheticLayout(1)
	facilities := core.NewFacilityService(stadium, nil, 2)
	nav := core.NewNavigationEngine(core.DefaultNavConfig(), stadium, 3)
	crowd := core.NewCrowdService(core.DefaultBehaviorConfig(), core.DefaultTimeline(), stadium, nav, facilities, nil, nil, 4)
	crowd.Setup(context.Background(), 15, stadium.ZonesOnLevel(0), stadium.ZonesOnLevel(1))

	s := tickStats(1000, core.DefaultTimeline(), crowd, states, levels)
	if s.Phase != "HALF_TIME" {
		t.Fatalf("phase at tick 1000 = %q, want HALF_TIME", s.Phase)
	}
	if s.Moving != 3 {
		t.Fatalf("moving = %d, want 3", s.Moving)
	}
	if s.Level0 != 11 || s.Level1 != 4 {
		t.Fatalf("levels = %d/%d, want 11/4", s.Level0, s.Level1)
	}
}

func TestPacingLabel(t *testing.T) {
	if got := pacingLabel(timectrl.Accelerated, time.Second); got != "accelerated" {
		t.Fatalf("pacingLabel = %q", got)
	}
	if got := pacingLabel(timectrl.RealTime, 500*time.Millisecond); got != "realtime (500ms/tick)" {
		t.Fatalf("pacingLabel = %q", got)
	}
}
