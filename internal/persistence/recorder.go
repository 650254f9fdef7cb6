// Package persistence records simulation runs to SQLite so finished runs
// can be inspected and compared offline.
package persistence

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/crowdsignals/stadium-simulator/core"
	"github.com/crowdsignals/stadium-simulator/model"
)

// Recorder wraps a SQLite connection holding one or more recorded runs.
// It also implements core.Emitter, persisting discrete telemetry events
// under the run it was opened for.
type Recorder struct {
	conn  *sqlx.DB
	runID int64

	// currentTick is advanced by the tick listener so emitter callbacks
	// can stamp events without plumbing the tick through every call.
	currentTick atomic.Int64
}

// Open opens or creates the run database at path.
func Open(path string) (*Recorder, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	r := &Recorder{conn: conn}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	return r.conn.Close()
}

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		population INTEGER NOT NULL,
		duration_ticks INTEGER NOT NULL,
		finished_at TEXT
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		run_id INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		phase TEXT NOT NULL,
		level0 INTEGER NOT NULL,
		level1 INTEGER NOT NULL,
		seated INTEGER NOT NULL,
		in_service INTEGER NOT NULL,
		queued INTEGER NOT NULL,
		moving INTEGER NOT NULL,
		exited INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tick_stats_run ON tick_stats(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// BeginRun registers a new run and scopes all subsequent writes to it.
func (r *Recorder) BeginRun(seed int64, population int, durationTicks int64) error {
	res, err := r.conn.Exec(
		"INSERT INTO runs (started_at, seed, population, duration_ticks) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339), seed, population, durationTicks,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	r.runID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	return nil
}

// FinishRun stamps the run's completion time.
func (r *Recorder) FinishRun() error {
	_, err := r.conn.Exec(
		"UPDATE runs SET finished_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), r.runID,
	)
	return err
}

// SetTick advances the event timestamp; wire it as a tick listener.
func (r *Recorder) SetTick(tick int64) {
	r.currentTick.Store(tick)
}

// TickStats is one row of the per-report population breakdown.
type TickStats struct {
	Tick      int64  `db:"tick"`
	Phase     string `db:"phase"`
	Level0    int    `db:"level0"`
	Level1    int    `db:"level1"`
	Seated    int    `db:"seated"`
	InService int    `db:"in_service"`
	Queued    int    `db:"queued"`
	Moving    int    `db:"moving"`
	Exited    int    `db:"exited"`
}

// RecordTickStats stores one population report row.
func (r *Recorder) RecordTickStats(s TickStats) error {
	_, err := r.conn.Exec(`INSERT OR REPLACE INTO tick_stats
		(run_id, tick, phase, level0, level1, seated, in_service, queued, moving, exited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, s.Tick, s.Phase, s.Level0, s.Level1, s.Seated, s.InService, s.Queued, s.Moving, s.Exited,
	)
	if err != nil {
		return fmt.Errorf("insert tick stats: %w", err)
	}
	return nil
}

// RunTickStats returns all recorded report rows for a run in tick order.
func (r *Recorder) RunTickStats(runID int64) ([]TickStats, error) {
	var rows []TickStats
	err := r.conn.Select(&rows,
		`SELECT tick, phase, level0, level1, seated, in_service, queued, moving, exited
		 FROM tick_stats WHERE run_id = ? ORDER BY tick`, runID)
	return rows, err
}

// RecordedEvent is one persisted telemetry event.
type RecordedEvent struct {
	Tick      int64  `db:"tick"`
	EventType string `db:"event_type"`
	Payload   string `db:"payload_json"`
}

// EventsByType returns a run's events of one type in insertion order.
func (r *Recorder) EventsByType(runID int64, eventType string) ([]RecordedEvent, error) {
	var rows []RecordedEvent
	err := r.conn.Select(&rows,
		`SELECT tick, event_type, payload_json FROM events
		 WHERE run_id = ? AND event_type = ? ORDER BY id`, runID, eventType)
	return rows, err
}

// RunID returns the identifier of the active run.
func (r *Recorder) RunID() int64 { return r.runID }

func (r *Recorder) recordEvent(eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	// Failed inserts are dropped; recording must not stall the run.
	r.conn.Exec(
		"INSERT INTO events (run_id, tick, event_type, payload_json) VALUES (?, ?, ?, ?)",
		r.runID, r.currentTick.Load(), eventType, string(raw),
	)
}

func (r *Recorder) GateEvent(gateID string, agentID int, direction core.GateDirection) {
	r.recordEvent("gate_passage", map[string]any{
		"gate_id":   gateID,
		"person_id": agentID,
		"direction": string(direction),
	})
}

func (r *Recorder) QueueEvent(kind model.FacilityKind, facilityID string, loc model.Position, queueLen, capacity, level int) {
	r.recordEvent("queue_update", map[string]any{
		"location_type": string(kind),
		"location_id":   facilityID,
		"x":             loc.X,
		"y":             loc.Y,
		"level":         level,
		"queue_length":  queueLen,
		"capacity":      capacity,
	})
}

func (r *Recorder) FacilityEvent(facilityID string, occupancy, capacity int) {
	r.recordEvent("facility_status", map[string]any{
		"facility_id": facilityID,
		"occupancy":   occupancy,
		"capacity":    capacity,
	})
}

func (r *Recorder) DensitySnapshot(level int, cells []core.DensityCell) {
	total := 0
	for _, c := range cells {
		total += c.Count
	}
	r.recordEvent("crowd_density", map[string]any{
		"level":        level,
		"cells":        len(cells),
		"total_people": total,
	})
}

func (r *Recorder) HazardEvent(kind string, loc model.Position, affectedZones []string, level int, severity string) {
	r.recordEvent("hazard_alert", map[string]any{
		"hazard_kind":    kind,
		"x":              loc.X,
		"y":              loc.Y,
		"affected_zones": affectedZones,
		"level":          level,
		"severity":       severity,
	})
}
