package model

// SeatingZone is a named seating region described as an angular sector of
// an annulus around the level centre. Seat coordinates are sampled inside
// it. Capacity is soft: reported in telemetry, never enforced.
type SeatingZone struct {
	ID     string
	Level  int
	Sector string

	// Angular sector in degrees, measured from the level centre.
	// AngleEnd may exceed 360 when the sector wraps through zero.
	AngleStart float64
	AngleEnd   float64

	// Radial band of the seating ring.
	InnerRadius float64
	OuterRadius float64

	Capacity int
}
