package core

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/crowdsignals/stadium-simulator/model"
)

var (
	ErrFacilityNotFound = errors.New("facility not found")
	ErrAlreadyBound     = errors.New("agent already bound to a facility")
	ErrOverAdmission    = errors.New("facility occupancy would exceed capacity")
)

// Admission reports the outcome of a service request.
type Admission struct {
	// Admitted is true when the agent went straight into service.
	Admitted bool
	// ServiceTicks is the sampled service duration when Admitted.
	ServiceTicks int
	// QueuePosition is the agent's place in line when queued (0-based).
	QueuePosition int
}

// FacilityService is the sole mutator of facility occupancy and queues.
// It enforces the capacity invariant, FIFO admission order, and the
// rule that an agent is bound to at most one facility at a time.
//
// Agent updates run sequentially within a tick, so the service needs no
// internal locking; a parallel caller must serialize its mutation pass.
type FacilityService struct {
	facilities map[string]*model.Facility
	// boundTo maps agent ID -> facility ID for every queued or
	// in-service agent.
	boundTo map[int]string

	emitter Emitter
	rng     *rand.Rand
}

// NewFacilityService indexes the facilities of a stadium map.
func NewFacilityService(m *StadiumMap, emitter Emitter, seed int64) *FacilityService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	fs := &FacilityService{
		facilities: make(map[string]*model.Facility),
		boundTo:    make(map[int]string),
		emitter:    emitter,
		rng:        rand.New(rand.NewSource(seed)),
	}
	for _, f := range m.Facilities("") {
		fs.facilities[f.ID] = f
	}
	return fs
}

// Facility returns a facility by ID, or nil.
func (fs *FacilityService) Facility(id string) *model.Facility {
	return fs.facilities[id]
}

// FacilityIDs returns all facility IDs in a stable order.
func (fs *FacilityService) FacilityIDs() []string {
	ids := make([]string, 0, len(fs.facilities))
	for id := range fs.facilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RequestService admits the agent immediately when there is capacity,
// otherwise appends it to the FIFO queue. The agent must not be bound to
// any facility when it arrives; the state machine clears its previous
// binding before requesting a new one.
func (fs *FacilityService) RequestService(agentID int, facilityID string) (Admission, error) {
	f, ok := fs.facilities[facilityID]
	if !ok {
		return Admission{}, fmt.Errorf("%w: %q", ErrFacilityNotFound, facilityID)
	}
	if prev, bound := fs.boundTo[agentID]; bound {
		return Admission{}, fmt.Errorf("%w: agent %d still bound to %q", ErrAlreadyBound, agentID, prev)
	}

	if f.Occupancy < f.Capacity {
		ticks, err := fs.admit(f, agentID)
		if err != nil {
			return Admission{}, err
		}
		fs.emitQueue(f)
		return Admission{Admitted: true, ServiceTicks: ticks}, nil
	}

	f.Queue = append(f.Queue, agentID)
	fs.boundTo[agentID] = f.ID
	fs.emitQueue(f)
	return Admission{QueuePosition: len(f.Queue) - 1}, nil
}

// Tick admits queued agents into any freed capacity, in FIFO order, and
// returns the admissions keyed by agent ID. Call once per facility per
// simulated step.
func (fs *FacilityService) Tick(facilityID string) (map[int]Admission, error) {
	f, ok := fs.facilities[facilityID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFacilityNotFound, facilityID)
	}

	var admitted map[int]Admission
	for len(f.Queue) > 0 && f.Occupancy < f.Capacity {
		agentID := f.Queue[0]
		f.Queue = f.Queue[1:]
		ticks, err := fs.admit(f, agentID)
		if err != nil {
			return admitted, err
		}
		if admitted == nil {
			admitted = make(map[int]Admission)
		}
		admitted[agentID] = Admission{Admitted: true, ServiceTicks: ticks}
	}

	if len(admitted) > 0 {
		// Remaining waiters moved up; refresh the queue snapshot.
		fs.emitQueue(f)
	}
	return admitted, nil
}

// Release frees the capacity held by an in-service agent whose countdown
// expired and unbinds it from the facility. Occupancy is floored at zero.
func (fs *FacilityService) Release(agentID int, facilityID string) error {
	f, ok := fs.facilities[facilityID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFacilityNotFound, facilityID)
	}

	if f.Occupancy > 0 {
		f.Occupancy--
	}
	delete(fs.boundTo, agentID)
	fs.emitter.FacilityEvent(f.ID, f.Occupancy, f.Capacity)
	if len(f.Queue) > 0 {
		fs.emitQueue(f)
	}
	return nil
}

// Unbind removes any facility association for the agent without touching
// occupancy, used when a queued agent abandons the line (e.g. a hazard
// evacuation). It is a no-op for unbound agents.
func (fs *FacilityService) Unbind(agentID int) {
	facilityID, bound := fs.boundTo[agentID]
	if !bound {
		return
	}
	if f, ok := fs.facilities[facilityID]; ok {
		for i, id := range f.Queue {
			if id == agentID {
				f.Queue = append(f.Queue[:i], f.Queue[i+1:]...)
				fs.emitQueue(f)
				break
			}
		}
	}
	delete(fs.boundTo, agentID)
}

// BoundFacility reports which facility the agent is queued at or served
// by, if any.
func (fs *FacilityService) BoundFacility(agentID int) (string, bool) {
	id, ok := fs.boundTo[agentID]
	return id, ok
}

func (fs *FacilityService) admit(f *model.Facility, agentID int) (int, error) {
	if f.Occupancy >= f.Capacity {
		// The service is the sole occupancy mutator; reaching this is a
		// programming error, not an operational condition.
		return 0, fmt.Errorf("%w: %q", ErrOverAdmission, f.ID)
	}
	f.Occupancy++
	fs.boundTo[agentID] = f.ID

	span := f.MaxServiceTicks - f.MinServiceTicks
	ticks := f.MinServiceTicks
	if span > 0 {
		ticks += fs.rng.Intn(span)
	}
	fs.emitter.FacilityEvent(f.ID, f.Occupancy, f.Capacity)
	return ticks, nil
}

func (fs *FacilityService) emitQueue(f *model.Facility) {
	fs.emitter.QueueEvent(f.Kind, f.ID, f.Location, len(f.Queue), f.Capacity, f.Level)
}
