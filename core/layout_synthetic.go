package core

import (
	"fmt"
	"strings"

	"github.com/crowdsignals/stadium-simulator/model"
)

// Default geometry for the synthetic layout, matching the map service's
// coordinate system (centre 500,400; pitch radius 150).
const (
	syntheticFieldRadius = 150
	syntheticOuterRadius = 600
	concourseRadius      = 180
	gateRadius           = 200
	seatInnerRadius      = 160
	seatOuterRadius      = 240
)

var syntheticSectors = []string{"Norte", "Este", "Sul", "Oeste"}

// SyntheticLayout builds a self-contained stadium map used when no layout
// file is given and the map service is unreachable: four seating sectors
// per level, eight gates, four stairs, and a bar and toilet per level.
// Runs degrade to this layout instead of aborting.
func SyntheticLayout(seed int64) *StadiumMap {
	centre := model.Position{X: 500, Y: 400}
	m := NewStadiumMap(centre, syntheticFieldRadius, syntheticOuterRadius, seed)

	for i, sector := range syntheticSectors {
		start := float64(i * 90)
		end := float64((i + 1) * 90)
		for level := 0; level <= 1; level++ {
			zone := &model.SeatingZone{
				ID:          fmt.Sprintf("%s_L%d", strings.ToUpper(sector), level),
				Level:       level,
				Sector:      sector,
				AngleStart:  start,
				AngleEnd:    end,
				InnerRadius: seatInnerRadius,
				OuterRadius: seatOuterRadius,
				Capacity:    2000,
			}
			// Population is synthetic; Add errors can only be duplicate IDs.
			if err := m.AddZone(zone); err != nil {
				panic(err)
			}
		}
	}

	for i := 1; i <= 8; i++ {
		angle := float64((i - 1) * 45)
		g := &model.Gate{
			ID:       fmt.Sprintf("GATE_%d", i),
			Number:   i,
			Location: PointOnRing(centre, angle, gateRadius),
			Level:    0,
			Sector:   sectorForAngle(angle),
		}
		if err := m.AddGate(g); err != nil {
			panic(err)
		}
	}

	for i, sector := range syntheticSectors {
		angle := float64(i*90 + 45)
		s := &model.Stairs{
			ID:       fmt.Sprintf("STAIRS_%s", strings.ToUpper(sector)),
			Location: PointOnRing(centre, angle, concourseRadius),
			Levels:   []int{0, 1},
		}
		if err := m.AddStairs(s); err != nil {
			panic(err)
		}
	}

	for level := 0; level <= 1; level++ {
		bar := &model.Facility{
			ID:              fmt.Sprintf("BAR_L%d", level),
			Kind:            model.FacilityBar,
			Location:        PointOnRing(centre, 0, concourseRadius),
			Level:           level,
			Capacity:        10,
			MinServiceTicks: DefaultMinServiceTicks,
			MaxServiceTicks: DefaultMaxServiceTicks,
		}
		wc := &model.Facility{
			ID:              fmt.Sprintf("WC_L%d", level),
			Kind:            model.FacilityToilet,
			Location:        PointOnRing(centre, 180, concourseRadius),
			Level:           level,
			Capacity:        10,
			MinServiceTicks: DefaultMinServiceTicks,
			MaxServiceTicks: DefaultMaxServiceTicks,
		}
		if err := m.AddFacility(bar); err != nil {
			panic(err)
		}
		if err := m.AddFacility(wc); err != nil {
			panic(err)
		}
	}

	return m
}

func sectorForAngle(deg float64) string {
	switch {
	case deg >= 45 && deg < 135:
		return "Norte"
	case deg >= 135 && deg < 225:
		return "Este"
	case deg >= 225 && deg < 315:
		return "Sul"
	default:
		return "Oeste"
	}
}
