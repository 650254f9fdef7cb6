package model

// FacilityKind distinguishes the two service point types.
type FacilityKind string

const (
	FacilityBar    FacilityKind = "BAR"
	FacilityToilet FacilityKind = "TOILET"
)

// Facility is a capacity-bounded service point (bar or toilet).
// Occupancy and the queue are mutated only by the facility service.
type Facility struct {
	ID       string
	Kind     FacilityKind
	Location Position
	Level    int

	// Capacity is the maximum number of concurrently served agents.
	Capacity int
	// Occupancy is the number of agents currently in service. Always
	// 0 <= Occupancy <= Capacity.
	Occupancy int
	// Queue holds waiting agent IDs in arrival order, no duplicates.
	Queue []int

	// Service duration bounds in ticks; an admission samples uniformly
	// from [MinServiceTicks, MaxServiceTicks).
	MinServiceTicks int
	MaxServiceTicks int
}

// QueueLen returns the number of waiting agents.
func (f *Facility) QueueLen() int { return len(f.Queue) }

// Gate is an entry/exit gate on the ground floor.
type Gate struct {
	ID       string
	Number   int
	Location Position
	Level    int
	Sector   string
}

// Stairs connects the two seating levels at a fixed location.
type Stairs struct {
	ID       string
	Location Position
	Levels   []int
}
