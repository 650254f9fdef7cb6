package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CrowdCollector bundles Prometheus metrics for a simulation run and
// provides a ready-to-serve /metrics handler.
type CrowdCollector struct {
	gatherer prometheus.Gatherer

	AgentsByState *prometheus.GaugeVec
	AgentsByLevel *prometheus.GaugeVec

	FacilityOccupancy *prometheus.GaugeVec
	FacilityQueue     *prometheus.GaugeVec

	GateEntries *prometheus.CounterVec
	GateExits   *prometheus.CounterVec

	EventsPublished *prometheus.CounterVec
	TickDuration    prometheus.Histogram
	CurrentTick     prometheus.Gauge
}

// NewCrowdCollector registers the simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCrowdCollector(reg prometheus.Registerer) (*CrowdCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	byState, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crowd_agents",
		Help: "Current number of agents per behavioural state.",
	}, []string{"state"}), "crowd_agents")
	if err != nil {
		return nil, err
	}
	byLevel, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crowd_agents_level",
		Help: "Current number of active agents per stadium level.",
	}, []string{"level"}), "crowd_agents_level")
	if err != nil {
		return nil, err
	}

	occupancy, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "facility_occupancy",
		Help: "Agents currently being served inside a facility.",
	}, []string{"facility", "kind"}), "facility_occupancy")
	if err != nil {
		return nil, err
	}
	queue, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "facility_queue_length",
		Help: "Agents currently waiting in a facility queue.",
	}, []string{"facility", "kind"}), "facility_queue_length")
	if err != nil {
		return nil, err
	}

	entries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_entries_total",
		Help: "Total agents that entered through each gate.",
	}, []string{"gate"}), "gate_entries_total")
	if err != nil {
		return nil, err
	}
	exits, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_exits_total",
		Help: "Total agents that left through each gate.",
	}, []string{"gate"}), "gate_exits_total")
	if err != nil {
		return nil, err
	}

	published, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_events_total",
		Help: "Telemetry events published, labeled by event type and outcome.",
	}, []string{"type", "outcome"}), "telemetry_events_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_duration_seconds",
		Help:    "Wall-clock time spent computing one simulation tick.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	currentTick, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulation_tick",
		Help: "Most recently completed simulation tick.",
	}), "simulation_tick")
	if err != nil {
		return nil, err
	}

	return &CrowdCollector{
		gatherer:          gatherer,
		AgentsByState:     byState,
		AgentsByLevel:     byLevel,
		FacilityOccupancy: occupancy,
		FacilityQueue:     queue,
		GateEntries:       entries,
		GateExits:         exits,
		EventsPublished:   published,
		TickDuration:      tickDuration,
		CurrentTick:       currentTick,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CrowdCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records the duration of one tick computation and advances the
// current-tick gauge.
func (c *CrowdCollector) ObserveTick(tick int64, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(elapsed.Seconds())
	}
	if c.CurrentTick != nil {
		c.CurrentTick.Set(float64(tick))
	}
}

// SetPopulation replaces the per-state and per-level agent gauges with the
// counts the crowd service reports after a tick. The vecs are reset first:
// the counts omit states nobody is in, and a gauge left over from an
// earlier tick would otherwise keep reporting a drained state forever.
func (c *CrowdCollector) SetPopulation(byState map[string]int, byLevel map[int]int) {
	if c == nil {
		return
	}
	if c.AgentsByState != nil {
		c.AgentsByState.Reset()
		for state, n := range byState {
			c.AgentsByState.WithLabelValues(state).Set(float64(n))
		}
	}
	if c.AgentsByLevel != nil {
		c.AgentsByLevel.Reset()
		for level, n := range byLevel {
			c.AgentsByLevel.WithLabelValues(fmt.Sprintf("%d", level)).Set(float64(n))
		}
	}
}

// SetFacility updates occupancy and queue gauges for one facility.
func (c *CrowdCollector) SetFacility(id, kind string, occupancy, queueLen int) {
	if c == nil {
		return
	}
	if c.FacilityOccupancy != nil {
		c.FacilityOccupancy.WithLabelValues(id, kind).Set(float64(occupancy))
	}
	if c.FacilityQueue != nil {
		c.FacilityQueue.WithLabelValues(id, kind).Set(float64(queueLen))
	}
}

// CountGate increments the entry or exit counter for a gate.
func (c *CrowdCollector) CountGate(gateID string, entry bool) {
	if c == nil {
		return
	}
	if entry {
		if c.GateEntries != nil {
			c.GateEntries.WithLabelValues(gateID).Inc()
		}
		return
	}
	if c.GateExits != nil {
		c.GateExits.WithLabelValues(gateID).Inc()
	}
}

// CountEvent increments the published-events counter.
func (c *CrowdCollector) CountEvent(eventType, outcome string) {
	if c == nil || c.EventsPublished == nil {
		return
	}
	c.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
