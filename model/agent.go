package model

// AgentState enumerates the lifecycle of one simulated spectator.
type AgentState int

const (
	StateEnteringToStairs AgentState = iota
	StateAscending
	StateWalkingToSeat
	StateSeated
	StateWalkingToService
	StateQueuedAtService
	StateInService
	StateReturningToSeat
	StateDescending
	StateWalkingToExitGate
	StateExited
)

// String returns a short human-readable name for logs and snapshots.
func (s AgentState) String() string {
	switch s {
	case StateEnteringToStairs:
		return "ENTERING_TO_STAIRS"
	case StateAscending:
		return "ASCENDING"
	case StateWalkingToSeat:
		return "WALKING_TO_SEAT"
	case StateSeated:
		return "SEATED"
	case StateWalkingToService:
		return "WALKING_TO_SERVICE"
	case StateQueuedAtService:
		return "QUEUED_AT_SERVICE"
	case StateInService:
		return "IN_SERVICE"
	case StateReturningToSeat:
		return "RETURNING_TO_SEAT"
	case StateDescending:
		return "DESCENDING"
	case StateWalkingToExitGate:
		return "WALKING_TO_EXIT_GATE"
	case StateExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// Position is a point on a floor plan, in layout distance units.
type Position struct {
	X float64
	Y float64
}

// Agent is one simulated person. Created once at setup and mutated every
// tick by the crowd service; never destroyed. StateExited is terminal.
type Agent struct {
	ID    int
	State AgentState

	Position    Position
	Level       int // 0 or 1
	Destination Position

	// Assigned at setup.
	Seat         Position
	ZoneID       string
	EntryGate    string
	EntryGateLoc Position

	// TargetFacility is set while the agent is bound to a bar or toilet
	// and cleared when it walks away from it.
	TargetFacility string
	InQueue        bool

	// ServiceTicks counts down remaining service time while in service.
	ServiceTicks int
	// StairTicks counts down a stair traversal while ascending/descending.
	StairTicks int
}
