package viz

import (
	"github.com/crowdsignals/stadium-simulator/core"
	"github.com/crowdsignals/stadium-simulator/model"
)

// Snapshot is the per-tick view served to dashboards. It is assembled on
// the tick loop and swapped in whole, so readers never see a half-updated
// tick.
type Snapshot struct {
	Tick   int64          `json:"tick"`
	Phase  string         `json:"phase"`
	Counts map[string]int `json:"counts"`
	Levels map[string]int `json:"levels"`

	Agents     []AgentView    `json:"agents"`
	Facilities []FacilityView `json:"facilities"`

	Skipped int `json:"skipped"`
	Stalls  int `json:"stalls"`
}

// AgentView is one agent's drawable state.
type AgentView struct {
	ID    int     `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Level int     `json:"level"`
	State string  `json:"state"`
}

// FacilityView is one facility's live load.
type FacilityView struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Level       int     `json:"level"`
	Occupancy   int     `json:"occupancy"`
	Capacity    int     `json:"capacity"`
	QueueLength int     `json:"queue_length"`
}

// BuildSnapshot reads the crowd and facility state after a tick. Call it
// from a tick listener; the services are not safe for concurrent reads
// while a tick is in flight.
func BuildSnapshot(tick int64, tl core.Timeline, crowd *core.CrowdService, facilities *core.FacilityService) Snapshot {
	s := Snapshot{
		Tick:    tick,
		Phase:   tl.PhaseAt(tick).String(),
		Counts:  make(map[string]int),
		Levels:  make(map[string]int),
		Skipped: crowd.Skipped(),
		Stalls:  crowd.Stalls(),
	}

	for state, n := range crowd.StateCounts() {
		s.Counts[state.String()] = n
	}
	for level, n := range crowd.LevelCounts() {
		s.Levels[levelLabel(level)] = n
	}

	for _, a := range crowd.Agents() {
		if a.State == model.StateExited {
			continue
		}
		s.Agents = append(s.Agents, AgentView{
			ID:    a.ID,
			X:     a.Position.X,
			Y:     a.Position.Y,
			Level: a.Level,
			State: a.State.String(),
		})
	}

	for _, id := range facilities.FacilityIDs() {
		f := facilities.Facility(id)
		if f == nil {
			continue
		}
		s.Facilities = append(s.Facilities, FacilityView{
			ID:          f.ID,
			Kind:        string(f.Kind),
			X:           f.Location.X,
			Y:           f.Location.Y,
			Level:       f.Level,
			Occupancy:   f.Occupancy,
			Capacity:    f.Capacity,
			QueueLength: f.QueueLen(),
		})
	}

	return s
}

func levelLabel(level int) string {
	if level == 1 {
		return "level1"
	}
	return "level0"
}
