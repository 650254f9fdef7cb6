package core

import "fmt"

// Phase is a named interval of simulated time.
type Phase int

const (
	PhasePreGame Phase = iota
	PhaseFirstHalf
	PhaseHalfTime
	PhaseSecondHalf
	PhasePostGame
)

func (p Phase) String() string {
	switch p {
	case PhasePreGame:
		return "PRE_GAME"
	case PhaseFirstHalf:
		return "FIRST_HALF"
	case PhaseHalfTime:
		return "HALF_TIME"
	case PhaseSecondHalf:
		return "SECOND_HALF"
	case PhasePostGame:
		return "POST_GAME"
	default:
		return "UNKNOWN"
	}
}

// Timeline holds the phase boundaries of a scripted event as simulated-time
// offsets in ticks. Boundaries must be strictly increasing.
type Timeline struct {
	MatchStart int64
	HalfTime   int64
	Resume     int64
	MatchEnd   int64
}

// DefaultTimeline mirrors a 30-minute compressed run: five minutes of
// entry, ten-minute halves, a ten-minute interval.
func DefaultTimeline() Timeline {
	return Timeline{
		MatchStart: 300,
		HalfTime:   900,
		Resume:     1500,
		MatchEnd:   2100,
	}
}

// Validate rejects non-monotonic boundaries.
func (tl Timeline) Validate() error {
	if tl.MatchStart < 0 {
		return fmt.Errorf("timeline: match start %d before t=0", tl.MatchStart)
	}
	if tl.HalfTime <= tl.MatchStart || tl.Resume <= tl.HalfTime || tl.MatchEnd <= tl.Resume {
		return fmt.Errorf("timeline: boundaries must be strictly increasing (%d, %d, %d, %d)",
			tl.MatchStart, tl.HalfTime, tl.Resume, tl.MatchEnd)
	}
	return nil
}

// PhaseAt maps a simulated time to exactly one phase. Pure function; the
// caller must query it once per tick and use the result for the whole tick.
func (tl Timeline) PhaseAt(t int64) Phase {
	switch {
	case t < tl.MatchStart:
		return PhasePreGame
	case t < tl.HalfTime:
		return PhaseFirstHalf
	case t < tl.Resume:
		return PhaseHalfTime
	case t < tl.MatchEnd:
		return PhaseSecondHalf
	default:
		return PhasePostGame
	}
}
