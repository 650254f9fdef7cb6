package core

import "github.com/crowdsignals/stadium-simulator/model"

// SpatialOracle answers walkability and nearest-point-of-interest queries
// for the stadium floor plans. The crowd service consumes it but does not
// assume a particular backend: layouts can come from a JSON file, the
// synthetic generator, or the map service.
//
// Nearest* lookups return ok=false when nothing matches; callers skip the
// affected agent rather than failing the run.
type SpatialOracle interface {
	// IsWalkable reports whether the point is outside forbidden areas
	// (the pitch, the outer boundary) on the given level.
	IsWalkable(x, y float64, level int) bool

	// NearestGate resolves the closest gate to the position on a level.
	NearestGate(pos model.Position, level int) (*model.Gate, bool)

	// NearestFacility resolves the closest bar or toilet on a level.
	NearestFacility(kind model.FacilityKind, pos model.Position, level int) (*model.Facility, bool)

	// NearestStairs resolves the closest stairs connecting two levels.
	NearestStairs(pos model.Position, fromLevel, toLevel int) (*model.Stairs, bool)

	// RandomSeatInZone samples a seat coordinate inside the zone.
	RandomSeatInZone(zoneID string) (model.Position, bool)

	// Centre returns the geometric centre of a level, used by the
	// navigation engine's orbital fallback.
	Centre(level int) model.Position
}
