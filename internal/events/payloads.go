package events

// Wire payloads for the telemetry bus. Consumers downstream key off
// event_type, so every payload carries the common envelope fields.

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type gatePassage struct {
	EventID          string         `json:"event_id"`
	EventType        string         `json:"event_type"`
	Timestamp        string         `json:"timestamp"`
	GateID           string         `json:"gate_id"`
	PersonID         string         `json:"person_id"`
	Direction        string         `json:"direction"`
	CurrentCount     int            `json:"current_count"`
	ThroughputPerMin float64        `json:"throughput_per_min"`
	Metadata         map[string]any `json:"metadata"`
}

type queueUpdate struct {
	EventID          string         `json:"event_id"`
	EventType        string         `json:"event_type"`
	Timestamp        string         `json:"timestamp"`
	LocationType     string         `json:"location_type"`
	LocationID       string         `json:"location_id"`
	Location         position       `json:"location"`
	Level            int            `json:"level"`
	QueueLength      int            `json:"queue_length"`
	Capacity         int            `json:"capacity"`
	OccupancyRate    float64        `json:"occupancy_rate"`
	EstimatedWaitMin float64        `json:"estimated_wait_min"`
	Metadata         map[string]any `json:"metadata"`
}

type facilityStatus struct {
	EventID    string  `json:"event_id"`
	EventType  string  `json:"event_type"`
	Timestamp  string  `json:"timestamp"`
	FacilityID string  `json:"facility_id"`
	Occupancy  int     `json:"occupancy"`
	Capacity   int     `json:"capacity"`
	LoadRate   float64 `json:"load_rate"`
}

type densityCell struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Count int     `json:"count"`
}

type crowdDensity struct {
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	Timestamp   string         `json:"timestamp"`
	Level       int            `json:"level"`
	GridData    []densityCell  `json:"grid_data"`
	TotalPeople int            `json:"total_people"`
	Metadata    map[string]any `json:"metadata"`
}

type hazardAlert struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	Timestamp     string         `json:"timestamp"`
	HazardKind    string         `json:"hazard_kind"`
	Location      position       `json:"location"`
	AffectedZones []string       `json:"affected_zones"`
	Level         int            `json:"level"`
	Severity      string         `json:"severity"`
	Metadata      map[string]any `json:"metadata"`
}
