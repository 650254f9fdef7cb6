package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/crowdsignals/stadium-simulator/model"
)

// StadiumLayout is a small summary of what was loaded from JSON. It's
// mainly useful for logging from main().
type StadiumLayout struct {
	GateIDs     []string
	FacilityIDs []string
	StairIDs    []string
	ZoneIDs     []string
}

// internal JSON shapes – kept unexported so we're free to evolve them.
type stadiumLayoutJSON struct {
	Centre      positionJSON   `json:"centre"`
	FieldRadius float64        `json:"field_radius"`
	OuterRadius float64        `json:"outer_radius"`
	Gates       []gateJSON     `json:"gates"`
	Facilities  []facilityJSON `json:"facilities"`
	Stairs      []stairsJSON   `json:"stairs"`
	Zones       []zoneJSON     `json:"zones"`
}

type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type gateJSON struct {
	ID       string       `json:"id"`
	Number   int          `json:"number"`
	Location positionJSON `json:"location"`
	Level    int          `json:"level"`
	Sector   string       `json:"sector"`
}

type facilityJSON struct {
	ID              string       `json:"id"`
	Kind            string       `json:"kind"` // "bar" | "toilet"
	Location        positionJSON `json:"location"`
	Level           int          `json:"level"`
	Capacity        int          `json:"capacity"`
	MinServiceTicks int          `json:"min_service_ticks"`
	MaxServiceTicks int          `json:"max_service_ticks"`
}

type stairsJSON struct {
	ID       string       `json:"id"`
	Location positionJSON `json:"location"`
	Levels   []int        `json:"levels"`
}

type zoneJSON struct {
	ID          string  `json:"id"`
	Level       int     `json:"level"`
	Sector      string  `json:"sector"`
	AngleStart  float64 `json:"angle_start"`
	AngleEnd    float64 `json:"angle_end"`
	InnerRadius float64 `json:"inner_radius"`
	OuterRadius float64 `json:"outer_radius"`
	Capacity    int     `json:"capacity"`
}

// LayoutGeometry carries the forbidden-area parameters parsed from a
// layout before a StadiumMap exists to hold them.
type LayoutGeometry struct {
	Centre      model.Position
	FieldRadius float64
	OuterRadius float64
}

// ReadLayoutGeometry decodes only the geometry header of a layout so the
// caller can construct the StadiumMap, then load the rest into it.
func ReadLayoutGeometry(data []byte) (LayoutGeometry, error) {
	var payload stadiumLayoutJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return LayoutGeometry{}, fmt.Errorf("ReadLayoutGeometry: decode failed: %w", err)
	}
	if payload.FieldRadius <= 0 || payload.OuterRadius <= payload.FieldRadius {
		return LayoutGeometry{}, fmt.Errorf("ReadLayoutGeometry: bad radii (field=%.1f outer=%.1f)",
			payload.FieldRadius, payload.OuterRadius)
	}
	return LayoutGeometry{
		Centre:      model.Position{X: payload.Centre.X, Y: payload.Centre.Y},
		FieldRadius: payload.FieldRadius,
		OuterRadius: payload.OuterRadius,
	}, nil
}

// LoadStadiumLayout reads a JSON layout from r, populates the StadiumMap
// with gates, facilities, stairs, and zones, and returns a summary of
// what was loaded.
//
// It fails on JSON / structural errors and on the first Add*() rejection;
// partial population of the map is not rolled back.
func LoadStadiumLayout(m *StadiumMap, r io.Reader) (*StadiumLayout, error) {
	if m == nil {
		return nil, fmt.Errorf("LoadStadiumLayout: map is nil")
	}

	var payload stadiumLayoutJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadStadiumLayout: decode failed: %w", err)
	}

	result := &StadiumLayout{
		GateIDs:     make([]string, 0, len(payload.Gates)),
		FacilityIDs: make([]string, 0, len(payload.Facilities)),
		StairIDs:    make([]string, 0, len(payload.Stairs)),
		ZoneIDs:     make([]string, 0, len(payload.Zones)),
	}

	for _, jg := range payload.Gates {
		if jg.ID == "" {
			return nil, fmt.Errorf("LoadStadiumLayout: gate with empty id")
		}
		if err := m.AddGate(&model.Gate{
			ID:       jg.ID,
			Number:   jg.Number,
			Location: model.Position{X: jg.Location.X, Y: jg.Location.Y},
			Level:    jg.Level,
			Sector:   jg.Sector,
		}); err != nil {
			return nil, err
		}
		result.GateIDs = append(result.GateIDs, jg.ID)
	}

	for _, jf := range payload.Facilities {
		if jf.ID == "" {
			return nil, fmt.Errorf("LoadStadiumLayout: facility with empty id")
		}
		minTicks, maxTicks := jf.MinServiceTicks, jf.MaxServiceTicks
		if minTicks <= 0 {
			minTicks = DefaultMinServiceTicks
		}
		if maxTicks <= minTicks {
			maxTicks = DefaultMaxServiceTicks
		}
		if err := m.AddFacility(&model.Facility{
			ID:              jf.ID,
			Kind:            facilityKindFromString(jf.Kind),
			Location:        model.Position{X: jf.Location.X, Y: jf.Location.Y},
			Level:           jf.Level,
			Capacity:        jf.Capacity,
			MinServiceTicks: minTicks,
			MaxServiceTicks: maxTicks,
		}); err != nil {
			return nil, err
		}
		result.FacilityIDs = append(result.FacilityIDs, jf.ID)
	}

	for _, js := range payload.Stairs {
		if js.ID == "" {
			return nil, fmt.Errorf("LoadStadiumLayout: stairs with empty id")
		}
		levels := js.Levels
		if len(levels) == 0 {
			levels = []int{0, 1}
		}
		if err := m.AddStairs(&model.Stairs{
			ID:       js.ID,
			Location: model.Position{X: js.Location.X, Y: js.Location.Y},
			Levels:   levels,
		}); err != nil {
			return nil, err
		}
		result.StairIDs = append(result.StairIDs, js.ID)
	}

	for _, jz := range payload.Zones {
		if jz.ID == "" {
			return nil, fmt.Errorf("LoadStadiumLayout: zone with empty id")
		}
		if err := m.AddZone(&model.SeatingZone{
			ID:          jz.ID,
			Level:       jz.Level,
			Sector:      jz.Sector,
			AngleStart:  jz.AngleStart,
			AngleEnd:    jz.AngleEnd,
			InnerRadius: jz.InnerRadius,
			OuterRadius: jz.OuterRadius,
			Capacity:    jz.Capacity,
		}); err != nil {
			return nil, err
		}
		result.ZoneIDs = append(result.ZoneIDs, jz.ID)
	}

	return result, nil
}

// Default service-time bounds in ticks, matching observed bar/toilet
// dwell times of 30–120 simulated seconds.
const (
	DefaultMinServiceTicks = 30
	DefaultMaxServiceTicks = 120
)

// facilityKindFromString maps the JSON "kind" string to a FacilityKind.
//
// We keep this tolerant: "food" counts as a bar and "restroom" as a
// toilet, matching the map service's node types.
func facilityKindFromString(s string) model.FacilityKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar", "food":
		return model.FacilityBar
	case "toilet", "restroom", "wc":
		return model.FacilityToilet
	default:
		return model.FacilityBar
	}
}
