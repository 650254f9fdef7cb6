package core

import "github.com/crowdsignals/stadium-simulator/model"

// DensityGridStep is the cell size of the density snapshot grid; 50
// layout units is roughly five metres on the floor plans.
const DensityGridStep = 50.0

// BinDensity bins the positions of the level's active agents onto a
// regular grid and returns the occupied cells, keyed by cell centre.
// Exited agents are excluded; they no longer occupy the concourse.
func BinDensity(agents []*model.Agent, level int, step float64) []DensityCell {
	if step <= 0 {
		step = DensityGridStep
	}

	type cellKey struct{ ix, iy int }
	counts := make(map[cellKey]int)
	for _, a := range agents {
		if a.Level != level || a.State == model.StateExited {
			continue
		}
		counts[cellKey{int(a.Position.X / step), int(a.Position.Y / step)}]++
	}

	cells := make([]DensityCell, 0, len(counts))
	for k, c := range counts {
		cells = append(cells, DensityCell{
			X:     (float64(k.ix) + 0.5) * step,
			Y:     (float64(k.iy) + 0.5) * step,
			Count: c,
		})
	}
	return cells
}
