// Package mapservice builds a stadium map from the venue map service,
// which exposes the surveyed gate, facility, stairs, and seat nodes over
// HTTP.
package mapservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crowdsignals/stadium-simulator/core"
	"github.com/crowdsignals/stadium-simulator/internal/logging"
	"github.com/crowdsignals/stadium-simulator/model"
)

// Default forbidden-area geometry the map service assumes: its coordinate
// system is centred on the pitch at (500, 400).
const (
	defaultCentreX     = 500
	defaultCentreY     = 400
	defaultFieldRadius = 150
	defaultOuterRadius = 600
)

// node is one surveyed map feature as the service returns it.
type node struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Level      int     `json:"level"`
	Block      string  `json:"block"`
	Name       string  `json:"name"`
	NumServers int     `json:"num_servers"`
}

// Client fetches stadium geometry from the map service.
type Client struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// NewClient constructs a client for the service at baseURL.
func NewClient(baseURL string, log logging.Logger) *Client {
	if log == nil {
		log = logging.Noop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// FetchStadiumMap downloads the node list and assembles a StadiumMap.
// Seating zones are derived from seat nodes grouped by block; a zone's
// annular sector is the bounding wedge of its seats.
func (c *Client) FetchStadiumMap(ctx context.Context, seed int64) (*core.StadiumMap, error) {
	nodes, err := c.fetchNodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("map service returned no nodes")
	}

	centre := model.Position{X: defaultCentreX, Y: defaultCentreY}
	m := core.NewStadiumMap(centre, defaultFieldRadius, defaultOuterRadius, seed)

	seatsByZone := make(map[string][]node)
	for _, n := range nodes {
		switch n.Type {
		case "gate":
			if err := c.addGate(m, centre, n); err != nil {
				return nil, err
			}
		case "bar", "food":
			if err := addFacility(m, n, model.FacilityBar); err != nil {
				return nil, err
			}
		case "restroom":
			if err := addFacility(m, n, model.FacilityToilet); err != nil {
				return nil, err
			}
		case "stairs", "ramp":
			if err := m.AddStairs(&model.Stairs{
				ID:       n.ID,
				Location: model.Position{X: n.X, Y: n.Y},
				Levels:   []int{0, 1},
			}); err != nil {
				return nil, fmt.Errorf("add stairs %s: %w", n.ID, err)
			}
		case "seat":
			if zoneID := zoneIDForBlock(n.Block); zoneID != "" {
				seatsByZone[zoneID] = append(seatsByZone[zoneID], n)
			}
		}
	}

	if err := addZones(m, centre, seatsByZone); err != nil {
		return nil, err
	}

	gates, facilities, stairs, zones := m.Counts()
	c.log.Info(ctx, "stadium map fetched",
		logging.String("base_url", c.baseURL),
		logging.Int("gates", gates),
		logging.Int("facilities", facilities),
		logging.Int("stairs", stairs),
		logging.Int("zones", zones),
	)
	return m, nil
}

func (c *Client) fetchNodes(ctx context.Context) ([]node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/nodes", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fetch nodes: status %d: %s", resp.StatusCode, body)
	}

	var nodes []node
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return nodes, nil
}

func (c *Client) addGate(m *core.StadiumMap, centre model.Position, n node) error {
	num := gateNumber(n.ID)
	angle := core.AngleFrom(centre, model.Position{X: n.X, Y: n.Y})

	sector := "Oeste"
	switch {
	case angle >= 45 && angle < 135:
		sector = "Norte"
	case angle >= 135 && angle < 225:
		sector = "Este"
	case angle >= 225 && angle < 315:
		sector = "Sul"
	}

	err := m.AddGate(&model.Gate{
		ID:       fmt.Sprintf("GATE_%d", num),
		Number:   num,
		Location: model.Position{X: n.X, Y: n.Y},
		Level:    n.Level,
		Sector:   sector,
	})
	if err != nil {
		return fmt.Errorf("add gate %s: %w", n.ID, err)
	}
	return nil
}

func addFacility(m *core.StadiumMap, n node, kind model.FacilityKind) error {
	capacity := 20
	if n.NumServers > 0 {
		capacity = n.NumServers * 5
	}
	err := m.AddFacility(&model.Facility{
		ID:              n.ID,
		Kind:            kind,
		Location:        model.Position{X: n.X, Y: n.Y},
		Level:           n.Level,
		Capacity:        capacity,
		MinServiceTicks: core.DefaultMinServiceTicks,
		MaxServiceTicks: core.DefaultMaxServiceTicks,
	})
	if err != nil {
		return fmt.Errorf("add facility %s: %w", n.ID, err)
	}
	return nil
}

// addZones derives one annular-sector zone per seat block: the radii span
// the seats' min and max distance from the centre, and the angle span is
// the complement of the largest angular gap between seats, which stays
// correct for blocks that straddle the 0/360 wrap.
func addZones(m *core.StadiumMap, centre model.Position, seatsByZone map[string][]node) error {
	ids := make([]string, 0, len(seatsByZone))
	for id := range seatsByZone {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		seats := seatsByZone[id]

		angles := make([]float64, 0, len(seats))
		minR, maxR := -1.0, 0.0
		for _, s := range seats {
			p := model.Position{X: s.X, Y: s.Y}
			r := core.Distance(centre, p)
			if minR < 0 || r < minR {
				minR = r
			}
			if r > maxR {
				maxR = r
			}
			angles = append(angles, core.AngleFrom(centre, p))
		}

		if maxR <= minR {
			// A single seat row collapses the annulus; give it depth.
			maxR = minR + 1
		}

		start, end := boundingWedge(angles)
		level := seats[0].Level
		sector := sectorFromZoneID(id)

		err := m.AddZone(&model.SeatingZone{
			ID:          id,
			Level:       level,
			Sector:      sector,
			AngleStart:  start,
			AngleEnd:    end,
			InnerRadius: minR,
			OuterRadius: maxR,
			Capacity:    len(seats),
		})
		if err != nil {
			return fmt.Errorf("add zone %s: %w", id, err)
		}
	}
	return nil
}

// boundingWedge returns the start/end angles of the smallest wedge
// containing all sample angles. The end may exceed 360 when the wedge
// crosses the wrap.
func boundingWedge(angles []float64) (float64, float64) {
	if len(angles) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), angles...)
	sort.Float64s(sorted)

	maxGap, gapEnd := 0.0, sorted[0]
	for i := range sorted {
		curr := sorted[i]
		next := sorted[(i+1)%len(sorted)]
		diff := next - curr
		if diff < 0 {
			diff += 360
		}
		if diff > maxGap {
			maxGap = diff
			gapEnd = next
		}
	}

	start := gapEnd
	end := start + (360 - maxGap)
	return start, end
}

// zoneIDForBlock maps a service block label like "Norte-T0" to the
// simulator's zone naming, e.g. "NORTE_L0".
func zoneIDForBlock(block string) string {
	parts := strings.Split(block, "-")
	if len(parts) < 2 {
		return ""
	}
	suffix := "L0"
	if strings.EqualFold(parts[1], "T1") {
		suffix = "L1"
	}
	return strings.ToUpper(parts[0]) + "_" + suffix
}

func sectorFromZoneID(id string) string {
	base := strings.SplitN(id, "_", 2)[0]
	if base == "" {
		return ""
	}
	return strings.ToUpper(base[:1]) + strings.ToLower(base[1:])
}

func gateNumber(id string) int {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return 0
	}
	num, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return num
}
