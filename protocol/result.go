package protocol

// ComplianceStatus is the overall verdict of a compliance check.
type ComplianceStatus string

const (
	// CompliancePassed means no regulatory issues were found.
	CompliancePassed ComplianceStatus = "passed"
	// ComplianceWarning means the order is shippable with caveats.
	ComplianceWarning ComplianceStatus = "warning"
	// ComplianceFailed means at least one blocker prevents shipment as-is.
	ComplianceFailed ComplianceStatus = "failed"
)

// Rank orders statuses for recommendation ranking: passed before warning
// before failed. Unknown statuses sort last.
func (s ComplianceStatus) Rank() int {
	switch s {
	case CompliancePassed:
		return 0
	case ComplianceWarning:
		return 1
	case ComplianceFailed:
		return 2
	default:
		return 3
	}
}

// ComplianceResult is the verdict returned by the compliance collaborator.
type ComplianceResult struct {
	Status   ComplianceStatus `json:"status"`
	Blockers []string         `json:"blockers,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Details  string           `json:"details,omitempty"`
}

// LogisticsPlan is the shipping estimate returned by the logistics
// collaborator for a single origin/destination pair.
type LogisticsPlan struct {
	Provider      string  `json:"provider"`
	TransportType string  `json:"transport_type"`
	ShippingCost  float64 `json:"shipping_cost"`
	TotalDays     int     `json:"total_days"`
	MeetsDeadline bool    `json:"meets_deadline"`
}

// RankedOption is one procurement option in the final recommendation.
// TotalCost is the landed cost (item cost plus shipping); HasLogistics is
// false when the logistics pass failed for this supplier, in which case
// shipping cost and delivery days are absent rather than zero-valued facts.
// Costs are compared as-is during ranking: every supplier in a run is
// expected to quote in the buyer's currency, no conversion is applied.
type RankedOption struct {
	SupplierID   string           `json:"supplier_id"`
	SupplierName string           `json:"supplier_name"`
	Region       string           `json:"region,omitempty"`
	ItemCost     float64          `json:"item_cost"`
	ShippingCost float64          `json:"shipping_cost"`
	TotalCost    float64          `json:"total_cost"`
	TotalDays    int              `json:"total_days"`
	HasLogistics bool             `json:"has_logistics"`
	Compliance   ComplianceStatus `json:"compliance_status"`
	DiscountPct  float64          `json:"discount_pct,omitempty"`
}

// Recommendation is the ranked outcome of a procurement run. Options holds
// every viable option in rank order; Recommended points at the top-ranked
// one and is nil when no supplier produced a usable quote.
type Recommendation struct {
	Options       []RankedOption `json:"options"`
	Recommended   *RankedOption  `json:"recommended,omitempty"`
	Justification string         `json:"justification"`
}
