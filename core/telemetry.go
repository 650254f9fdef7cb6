package core

import "github.com/crowdsignals/stadium-simulator/model"

// GateDirection tags a gate passage event.
type GateDirection string

const (
	GateEntry GateDirection = "entry"
	GateExit  GateDirection = "exit"
)

// DensityCell is one occupied cell of a density snapshot grid.
type DensityCell struct {
	X     float64
	Y     float64
	Count int
}

// Emitter receives notifications of simulation events. Delivery is
// fire-and-forget: implementations must never block the tick loop and
// must swallow transport failures.
type Emitter interface {
	GateEvent(gateID string, agentID int, direction GateDirection)
	QueueEvent(kind model.FacilityKind, facilityID string, loc model.Position, queueLen, capacity, level int)
	FacilityEvent(facilityID string, occupancy, capacity int)
	DensitySnapshot(level int, cells []DensityCell)
	HazardEvent(kind string, loc model.Position, affectedZones []string, level int, severity string)
}

// NoopEmitter drops every event.
type NoopEmitter struct{}

func (NoopEmitter) GateEvent(string, int, GateDirection)                                    {}
func (NoopEmitter) QueueEvent(model.FacilityKind, string, model.Position, int, int, int)    {}
func (NoopEmitter) FacilityEvent(string, int, int)                                          {}
func (NoopEmitter) DensitySnapshot(int, []DensityCell)                                      {}
func (NoopEmitter) HazardEvent(string, model.Position, []string, int, string)               {}

// FanoutEmitter forwards each event to every child emitter.
type FanoutEmitter []Emitter

func (f FanoutEmitter) GateEvent(gateID string, agentID int, dir GateDirection) {
	for _, e := range f {
		e.GateEvent(gateID, agentID, dir)
	}
}

func (f FanoutEmitter) QueueEvent(kind model.FacilityKind, id string, loc model.Position, queueLen, capacity, level int) {
	for _, e := range f {
		e.QueueEvent(kind, id, loc, queueLen, capacity, level)
	}
}

func (f FanoutEmitter) FacilityEvent(id string, occupancy, capacity int) {
	for _, e := range f {
		e.FacilityEvent(id, occupancy, capacity)
	}
}

func (f FanoutEmitter) DensitySnapshot(level int, cells []DensityCell) {
	for _, e := range f {
		e.DensitySnapshot(level, cells)
	}
}

func (f FanoutEmitter) HazardEvent(kind string, loc model.Position, zones []string, level int, severity string) {
	for _, e := range f {
		e.HazardEvent(kind, loc, zones, level, severity)
	}
}
