package core

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/crowdsignals/stadium-simulator/model"
)

var (
	ErrGateExists     = errors.New("gate already exists")
	ErrFacilityExists = errors.New("facility already exists")
	ErrStairsExists   = errors.New("stairs already exists")
	ErrZoneExists     = errors.New("zone already exists")
	ErrZoneNotFound   = errors.New("zone not found")
	ErrBadInput       = errors.New("invalid map input")
)

// StadiumMap stores the static stadium geometry: gates, facilities,
// stairs, and seating zones, plus the forbidden-area parameters used by
// the walkability check. It implements SpatialOracle.
//
// The map is concurrency-safe via an internal RWMutex so it can be read
// by the observation server while a loader populates it, as long as all
// access goes through these methods.
type StadiumMap struct {
	mu sync.RWMutex

	gates      map[string]*model.Gate
	facilities map[string]*model.Facility
	stairs     map[string]*model.Stairs
	zones      map[string]*model.SeatingZone

	centre      model.Position
	fieldRadius float64 // pitch exclusion radius around the centre
	outerRadius float64 // everything beyond this is out of bounds

	rng *rand.Rand
}

// NewStadiumMap creates an empty map with the given forbidden-area
// geometry. The seed drives seat sampling and makes runs replayable.
func NewStadiumMap(centre model.Position, fieldRadius, outerRadius float64, seed int64) *StadiumMap {
	return &StadiumMap{
		gates:       make(map[string]*model.Gate),
		facilities:  make(map[string]*model.Facility),
		stairs:      make(map[string]*model.Stairs),
		zones:       make(map[string]*model.SeatingZone),
		centre:      centre,
		fieldRadius: fieldRadius,
		outerRadius: outerRadius,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

//
// ---------- Population ----------
//

func (m *StadiumMap) AddGate(g *model.Gate) error {
	if g == nil || g.ID == "" {
		return fmt.Errorf("%w: nil or empty gate", ErrBadInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.gates[g.ID]; exists {
		return fmt.Errorf("%w: %q", ErrGateExists, g.ID)
	}
	m.gates[g.ID] = g
	return nil
}

func (m *StadiumMap) AddFacility(f *model.Facility) error {
	if f == nil || f.ID == "" {
		return fmt.Errorf("%w: nil or empty facility", ErrBadInput)
	}
	if f.Kind != model.FacilityBar && f.Kind != model.FacilityToilet {
		return fmt.Errorf("%w: facility %q has unknown kind %q", ErrBadInput, f.ID, f.Kind)
	}
	if f.Capacity <= 0 {
		return fmt.Errorf("%w: facility %q capacity must be positive", ErrBadInput, f.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.facilities[f.ID]; exists {
		return fmt.Errorf("%w: %q", ErrFacilityExists, f.ID)
	}
	m.facilities[f.ID] = f
	return nil
}

func (m *StadiumMap) AddStairs(s *model.Stairs) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: nil or empty stairs", ErrBadInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stairs[s.ID]; exists {
		return fmt.Errorf("%w: %q", ErrStairsExists, s.ID)
	}
	m.stairs[s.ID] = s
	return nil
}

func (m *StadiumMap) AddZone(z *model.SeatingZone) error {
	if z == nil || z.ID == "" {
		return fmt.Errorf("%w: nil or empty zone", ErrBadInput)
	}
	if z.OuterRadius <= z.InnerRadius {
		return fmt.Errorf("%w: zone %q radii inverted", ErrBadInput, z.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.zones[z.ID]; exists {
		return fmt.Errorf("%w: %q", ErrZoneExists, z.ID)
	}
	m.zones[z.ID] = z
	return nil
}

//
// ---------- Lookups ----------
//

// Gate returns a gate by ID, or nil if missing.
func (m *StadiumMap) Gate(id string) *model.Gate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gates[id]
}

// Facility returns a facility by ID, or nil if missing.
func (m *StadiumMap) Facility(id string) *model.Facility {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.facilities[id]
}

// Zone returns a zone by ID, or nil if missing.
func (m *StadiumMap) Zone(id string) *model.SeatingZone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zones[id]
}

// Facilities returns all facilities of one kind. Any kind matches when
// kind is empty.
func (m *StadiumMap) Facilities(kind model.FacilityKind) []*model.Facility {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Facility, 0, len(m.facilities))
	for _, f := range m.facilities {
		if kind == "" || f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Gates returns every gate.
func (m *StadiumMap) Gates() []*model.Gate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Gate, 0, len(m.gates))
	for _, g := range m.gates {
		out = append(out, g)
	}
	return out
}

// ZonesOnLevel returns the IDs of seating zones on the given level, in a
// stable order. Callers feed the slice to seeded draws, so map iteration
// order must not leak through.
func (m *StadiumMap) ZonesOnLevel(level int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for id, z := range m.zones {
		if z.Level == level {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Counts reports the number of gates, facilities, stairs, and zones.
func (m *StadiumMap) Counts() (gates, facilities, stairs, zones int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.gates), len(m.facilities), len(m.stairs), len(m.zones)
}

//
// ---------- SpatialOracle ----------
//

// IsWalkable excludes the pitch and anything beyond the outer boundary.
// The full navmesh lives in the map service; this check is deliberately
// coarse and cheap since it runs for every agent every tick.
func (m *StadiumMap) IsWalkable(x, y float64, level int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dx := x - m.centre.X
	dy := y - m.centre.Y
	d := math.Sqrt(dx*dx + dy*dy)
	return d >= m.fieldRadius && d <= m.outerRadius
}

// NearestGate returns the closest gate on the level, or ok=false when the
// level has none.
func (m *StadiumMap) NearestGate(pos model.Position, level int) (*model.Gate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.Gate
	bestDist := math.Inf(1)
	for _, g := range m.gates {
		if g.Level != level {
			continue
		}
		if d := Distance(pos, g.Location); d < bestDist {
			bestDist = d
			best = g
		}
	}
	return best, best != nil
}

// NearestFacility returns the closest bar or toilet on the level.
func (m *StadiumMap) NearestFacility(kind model.FacilityKind, pos model.Position, level int) (*model.Facility, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.Facility
	bestDist := math.Inf(1)
	for _, f := range m.facilities {
		if f.Kind != kind || f.Level != level {
			continue
		}
		if d := Distance(pos, f.Location); d < bestDist {
			bestDist = d
			best = f
		}
	}
	return best, best != nil
}

// NearestStairs returns the closest stairs serving both levels.
func (m *StadiumMap) NearestStairs(pos model.Position, fromLevel, toLevel int) (*model.Stairs, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.Stairs
	bestDist := math.Inf(1)
	for _, s := range m.stairs {
		if !servesLevel(s, fromLevel) || !servesLevel(s, toLevel) {
			continue
		}
		if d := Distance(pos, s.Location); d < bestDist {
			bestDist = d
			best = s
		}
	}
	return best, best != nil
}

// RandomSeatInZone samples a uniformly random angle/radius point inside
// the zone's sector.
func (m *StadiumMap) RandomSeatInZone(zoneID string) (model.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.zones[zoneID]
	if !ok {
		return model.Position{}, false
	}

	angle := z.AngleStart + m.rng.Float64()*(z.AngleEnd-z.AngleStart)
	radius := z.InnerRadius + m.rng.Float64()*(z.OuterRadius-z.InnerRadius)
	return PointOnRing(m.centre, angle, radius), true
}

// Centre returns the geometric centre of a level. Both floor plans share
// one centre in the current layouts.
func (m *StadiumMap) Centre(level int) model.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.centre
}

func servesLevel(s *model.Stairs, level int) bool {
	for _, l := range s.Levels {
		if l == level {
			return true
		}
	}
	return false
}
