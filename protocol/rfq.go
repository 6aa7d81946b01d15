package protocol

import (
	"fmt"
	"math"
)

// priceEpsilon bounds the rounding error tolerated when checking monetary
// invariants computed from float64 arithmetic.
const priceEpsilon = 1e-6

// BOMItem is a single line of a bill of materials.
type BOMItem struct {
	PartName    string `json:"part_name"`
	Category    string `json:"category,omitempty"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
}

// BOM is the structured bill of materials derived from a free-text need.
type BOM struct {
	Product string    `json:"product"`
	Items   []BOMItem `json:"items"`
}

// Categories returns the distinct item categories in first-seen order,
// falling back to the part name for uncategorized items.
func (b BOM) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range b.Items {
		cat := it.Category
		if cat == "" {
			cat = it.PartName
		}
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	return out
}

// RFQItem is a requested part and quantity within an RFQ.
type RFQItem struct {
	PartName string `json:"part_name"`
	Category string `json:"category,omitempty"`
	Quantity int    `json:"quantity"`
}

// RFQ is a request for quotation sent to a single supplier.
type RFQ struct {
	ID             string    `json:"rfq_id"`
	BuyerID        string    `json:"buyer_id,omitempty"`
	SupplierID     string    `json:"supplier_id"`
	Items          []RFQItem `json:"items"`
	DeadlineDays   int       `json:"deadline_days,omitempty"`
	Budget         float64   `json:"budget,omitempty"`
	DiscountAskPct float64   `json:"discount_ask_pct,omitempty"`
}

// QuoteItem is a priced line of a supplier quote.
type QuoteItem struct {
	PartName      string  `json:"part_name"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	ExtendedPrice float64 `json:"extended_price"`
	LeadTimeDays  int     `json:"lead_time_days"`
	InStock       bool    `json:"in_stock"`
}

// Quote is a supplier's priced response to an RFQ. Subtotal is the sum of
// extended prices before discount; Total is the payable amount after the
// granted discount; LeadTimeDays is the maximum item lead time.
type Quote struct {
	SupplierID   string      `json:"supplier_id"`
	Items        []QuoteItem `json:"items"`
	Subtotal     float64     `json:"subtotal"`
	DiscountPct  float64     `json:"discount_pct"`
	Total        float64     `json:"total"`
	Currency     string      `json:"currency"`
	LeadTimeDays int         `json:"lead_time_days"`
}

// NewQuote assembles a quote whose aggregates are consistent with its items
// by construction: extended prices, subtotal, discounted total and the
// max-lead-time invariant are all computed here.
func NewQuote(supplierID, currency string, discountPct float64, items []QuoteItem) Quote {
	q := Quote{SupplierID: supplierID, Currency: currency, DiscountPct: discountPct}
	for _, it := range items {
		it.ExtendedPrice = it.UnitPrice * float64(it.Quantity)
		q.Subtotal += it.ExtendedPrice
		if it.LeadTimeDays > q.LeadTimeDays {
			q.LeadTimeDays = it.LeadTimeDays
		}
		q.Items = append(q.Items, it)
	}
	q.Total = q.Subtotal * (1 - discountPct/100)
	return q
}

// Validate checks the quote's data-integrity invariants: each extended price
// equals unit price times quantity, the subtotal equals the sum of extended
// prices, and the total reflects the declared discount. A violation is a
// programming or data corruption error, not a business outcome.
func (q Quote) Validate() error {
	var sum float64
	for i, it := range q.Items {
		if want := it.UnitPrice * float64(it.Quantity); math.Abs(it.ExtendedPrice-want) > priceEpsilon {
			return &IntegrityError{
				Subject: fmt.Sprintf("quote %s item %d (%s)", q.SupplierID, i, it.PartName),
				Reason:  fmt.Sprintf("extended price %.4f != unit price %.4f * quantity %d", it.ExtendedPrice, it.UnitPrice, it.Quantity),
			}
		}
		sum += it.ExtendedPrice
	}
	if math.Abs(q.Subtotal-sum) > priceEpsilon {
		return &IntegrityError{
			Subject: "quote " + q.SupplierID,
			Reason:  fmt.Sprintf("subtotal %.4f != sum of extended prices %.4f", q.Subtotal, sum),
		}
	}
	if want := q.Subtotal * (1 - q.DiscountPct/100); math.Abs(q.Total-want) > priceEpsilon {
		return &IntegrityError{
			Subject: "quote " + q.SupplierID,
			Reason:  fmt.Sprintf("total %.4f != subtotal %.4f after %.1f%% discount", q.Total, q.Subtotal, q.DiscountPct),
		}
	}
	return nil
}
