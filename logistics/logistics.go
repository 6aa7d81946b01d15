// Package logistics estimates shipping cost and transit time for a quoted
// order. The RoutePlanner selects from a fixed carrier table: cheapest
// carrier that meets the deadline, else the fastest available.
package logistics

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/procuremesh/protocol"
)

// packagingFactor inflates the raw part weight for boxes and padding.
const packagingFactor = 1.2

// defaultItemWeightKG is assumed per unit for parts not in the weight table.
const defaultItemWeightKG = 0.05

// Carrier is one row of the carrier table.
type Carrier struct {
	ID            string
	Name          string
	TransportType string
	Regions       []string
	BaseCost      float64
	CostPerKG     float64
	SpeedDays     int
}

// ServesRoute reports whether the carrier covers both endpoints.
func (c Carrier) ServesRoute(origin, dest string) bool {
	return c.servesRegion(origin) && c.servesRegion(dest)
}

func (c Carrier) servesRegion(region string) bool {
	for _, r := range c.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

// Request describes one shipment to plan.
type Request struct {
	Items        []protocol.QuoteItem
	OriginRegion string
	DestRegion   string
	// TransportType restricts carrier selection when set ("air", "sea",
	// "ground"); empty considers every transport type on the route.
	TransportType string
	DeadlineDays  int
}

// Planner produces a shipping plan for a request.
type Planner interface {
	Plan(ctx context.Context, req Request) (protocol.LogisticsPlan, error)
}

// RoutePlanner is a deterministic Planner over a fixed carrier table.
type RoutePlanner struct {
	carriers []Carrier
	weights  map[string]float64
}

// Options configure a RoutePlanner.
type Options struct {
	// Carriers replaces the default carrier table.
	Carriers []Carrier
	// WeightsKG maps lowercase part-name substrings to per-unit weight.
	WeightsKG map[string]float64
}

// NewRoutePlanner constructs a planner with the default carrier table and
// weight estimates unless overridden.
func NewRoutePlanner(optFns ...func(o *Options)) *RoutePlanner {
	opts := Options{
		Carriers: DefaultCarriers(),
		WeightsKG: map[string]float64{
			"battery":   0.18,
			"motor":     0.032,
			"frame":     0.12,
			"case":      0.9,
			"enclosure": 0.3,
			"panel":     0.25,
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RoutePlanner{carriers: opts.Carriers, weights: opts.WeightsKG}
}

// DefaultCarriers returns the built-in carrier table.
func DefaultCarriers() []Carrier {
	return []Carrier{
		{ID: "dhl-express", Name: "DHL Express", TransportType: "air", Regions: []string{"EU", "US", "APAC"}, BaseCost: 45, CostPerKG: 12.5, SpeedDays: 3},
		{ID: "fedex-intl", Name: "FedEx International", TransportType: "air", Regions: []string{"EU", "US", "APAC"}, BaseCost: 52, CostPerKG: 11.0, SpeedDays: 4},
		{ID: "maersk-line", Name: "Maersk Line", TransportType: "sea", Regions: []string{"EU", "US", "APAC"}, BaseCost: 20, CostPerKG: 1.8, SpeedDays: 28},
		{ID: "db-schenker", Name: "DB Schenker", TransportType: "ground", Regions: []string{"EU"}, BaseCost: 15, CostPerKG: 3.2, SpeedDays: 5},
	}
}

// EstimateWeight returns the packaged shipment weight in kilograms.
func (p *RoutePlanner) EstimateWeight(items []protocol.QuoteItem) float64 {
	var kg float64
	for _, it := range items {
		unit := defaultItemWeightKG
		name := strings.ToLower(it.PartName)
		for substr, w := range p.weights {
			if strings.Contains(name, substr) {
				unit = w
				break
			}
		}
		kg += unit * float64(it.Quantity)
	}
	return kg * packagingFactor
}

// Plan implements Planner. Among carriers serving the route (and transport
// type, when requested) it picks the cheapest one meeting the deadline; if
// none meets it, the fastest available, with MeetsDeadline false. No carrier
// on the route at all is an error: the option cannot be shipped.
func (p *RoutePlanner) Plan(ctx context.Context, req Request) (protocol.LogisticsPlan, error) {
	if err := ctx.Err(); err != nil {
		return protocol.LogisticsPlan{}, err
	}

	var eligible []Carrier
	for _, c := range p.carriers {
		if !c.ServesRoute(req.OriginRegion, req.DestRegion) {
			continue
		}
		if req.TransportType != "" && !strings.EqualFold(c.TransportType, req.TransportType) {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return protocol.LogisticsPlan{}, fmt.Errorf(
			"no carrier serves route %s -> %s (transport %q)", req.OriginRegion, req.DestRegion, req.TransportType)
	}

	kg := p.EstimateWeight(req.Items)

	var pick *Carrier
	var pickCost float64
	for i := range eligible {
		c := eligible[i]
		cost := c.BaseCost + c.CostPerKG*kg
		meets := req.DeadlineDays <= 0 || c.SpeedDays <= req.DeadlineDays
		if !meets {
			continue
		}
		if pick == nil || cost < pickCost || (cost == pickCost && c.ID < pick.ID) {
			pick, pickCost = &eligible[i], cost
		}
	}
	if pick == nil {
		// Nothing meets the deadline: degrade to the fastest option.
		for i := range eligible {
			c := eligible[i]
			if pick == nil || c.SpeedDays < pick.SpeedDays ||
				(c.SpeedDays == pick.SpeedDays && c.ID < pick.ID) {
				pick = &eligible[i]
			}
		}
		pickCost = pick.BaseCost + pick.CostPerKG*kg
	}

	return protocol.LogisticsPlan{
		Provider:      pick.Name,
		TransportType: pick.TransportType,
		ShippingCost:  pickCost,
		TotalDays:     pick.SpeedDays,
		MeetsDeadline: req.DeadlineDays <= 0 || pick.SpeedDays <= req.DeadlineDays,
	}, nil
}
