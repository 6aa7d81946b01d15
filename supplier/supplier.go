// Package supplier implements the supplier-side agent: a priced catalog
// that answers RFQs with quotes and negotiates discounts up to a declared
// ceiling.
package supplier

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/procuremesh/protocol"
)

// DefaultCounterRatio is the fraction of a discount ask a supplier grants
// when countering instead of accepting outright.
const DefaultCounterRatio = 0.6

// CatalogItem is one sellable part in a supplier's catalog.
type CatalogItem struct {
	PartName     string  `json:"part_name"`
	Category     string  `json:"category,omitempty"`
	UnitPrice    float64 `json:"unit_price"`
	LeadTimeDays int     `json:"lead_time_days"`
	InStock      bool    `json:"in_stock"`
}

// Options configure a supplier Agent.
type Options struct {
	// ID is the agent identifier; generated when empty.
	ID string
	// Region and Country describe where the supplier ships from.
	Region  string
	Country string
	// Currency the supplier quotes in. Defaults to USD.
	Currency string
	// MaxDiscountPct is the ceiling on any granted discount.
	MaxDiscountPct float64
	// CounterRatio is the fraction of an ask granted when the ask exceeds
	// what the supplier accepts outright. Defaults to DefaultCounterRatio.
	CounterRatio float64
	// AcceptThresholdPct is the largest ask granted in full. Asks above it
	// draw a counter at CounterRatio (capped at MaxDiscountPct). Defaults
	// to half the maximum discount.
	AcceptThresholdPct float64
	// Capabilities the supplier advertises for discovery. Defaults to the
	// distinct catalog categories.
	Capabilities []string
	// Certifications held by the supplier.
	Certifications []protocol.Certification
}

// Agent is an in-process supplier. Its catalog is fixed at construction, so
// concurrent RFQs need no locking.
type Agent struct {
	id      string
	name    string
	catalog []CatalogItem
	opts    Options
}

// New constructs a supplier agent with the given catalog.
func New(name string, catalog []CatalogItem, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Currency:     "USD",
		CounterRatio: DefaultCounterRatio,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = protocol.NewAgentID()
	}
	if opts.AcceptThresholdPct == 0 {
		opts.AcceptThresholdPct = opts.MaxDiscountPct / 2
	}
	if len(opts.Capabilities) == 0 {
		seen := map[string]bool{}
		for _, it := range catalog {
			if it.Category != "" && !seen[it.Category] {
				seen[it.Category] = true
				opts.Capabilities = append(opts.Capabilities, it.Category)
			}
		}
	}
	return &Agent{
		id:      opts.ID,
		name:    name,
		catalog: append([]CatalogItem(nil), catalog...),
		opts:    opts,
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Record returns the registry record advertising this supplier. Lead time
// is the worst in-stock catalog lead time, which is what a full-BOM order
// would experience.
func (a *Agent) Record() protocol.AgentRecord {
	lead := 0
	for _, it := range a.catalog {
		if it.LeadTimeDays > lead {
			lead = it.LeadTimeDays
		}
	}
	return protocol.AgentRecord{
		ID:              a.id,
		Name:            a.name,
		Role:            protocol.RoleSupplier,
		Region:          a.opts.Region,
		Country:         a.opts.Country,
		Currency:        a.opts.Currency,
		Capabilities:    append([]string(nil), a.opts.Capabilities...),
		Certifications:  append([]protocol.Certification(nil), a.opts.Certifications...),
		AvgLeadTimeDays: lead,
		MaxDiscountPct:  a.opts.MaxDiscountPct,
	}
}

// RequestQuote prices an RFQ against the catalog. Requested parts are
// matched exactly first, then by substring, category and shared words, so a
// BOM's "brushless motor 2207" finds a catalog's "brushless motor". Parts
// the supplier cannot source are omitted from the quote; an RFQ with no
// sourceable part at all is an error. The granted discount follows the
// accept/counter policy declared in Options.
func (a *Agent) RequestQuote(ctx context.Context, rfq protocol.RFQ) (protocol.Quote, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Quote{}, err
	}
	if len(rfq.Items) == 0 {
		return protocol.Quote{}, &protocol.ValidationError{Field: "items", Message: "rfq has no items"}
	}

	var items []protocol.QuoteItem
	for _, want := range rfq.Items {
		ci, ok := a.match(want)
		if !ok {
			continue
		}
		items = append(items, protocol.QuoteItem{
			PartName:     want.PartName,
			Quantity:     want.Quantity,
			UnitPrice:    ci.UnitPrice,
			LeadTimeDays: ci.LeadTimeDays,
			InStock:      ci.InStock,
		})
	}
	if len(items) == 0 {
		return protocol.Quote{}, fmt.Errorf("supplier %s: no requested part available", a.id)
	}

	granted := a.grantDiscount(rfq.DiscountAskPct)
	return protocol.NewQuote(a.id, a.opts.Currency, granted, items), nil
}

// Decide classifies the supplier's response to a discount ask without
// pricing a quote, mirroring the policy RequestQuote applies.
func (a *Agent) Decide(askPct float64) (granted float64, accepted bool) {
	granted = a.grantDiscount(askPct)
	return granted, askPct <= a.opts.AcceptThresholdPct || granted >= askPct
}

func (a *Agent) grantDiscount(askPct float64) float64 {
	if askPct <= 0 {
		return 0
	}
	granted := askPct
	if askPct > a.opts.AcceptThresholdPct {
		granted = askPct * a.opts.CounterRatio
	}
	if granted > a.opts.MaxDiscountPct {
		granted = a.opts.MaxDiscountPct
	}
	return granted
}

func (a *Agent) match(want protocol.RFQItem) (CatalogItem, bool) {
	wantName := strings.ToLower(want.PartName)

	for _, ci := range a.catalog {
		if strings.ToLower(ci.PartName) == wantName {
			return ci, true
		}
	}
	for _, ci := range a.catalog {
		have := strings.ToLower(ci.PartName)
		if strings.Contains(wantName, have) || strings.Contains(have, wantName) {
			return ci, true
		}
	}
	if want.Category != "" {
		for _, ci := range a.catalog {
			if strings.EqualFold(ci.Category, want.Category) {
				return ci, true
			}
		}
	}
	for _, ci := range a.catalog {
		if sharesWord(wantName, strings.ToLower(ci.PartName)) {
			return ci, true
		}
	}
	return CatalogItem{}, false
}

// sharesWord reports whether two part names share a token longer than three
// characters, which keeps fillers like "set" or "kit" from matching.
func sharesWord(a, b string) bool {
	bw := map[string]bool{}
	for _, w := range strings.Fields(b) {
		if len(w) > 3 {
			bw[w] = true
		}
	}
	for _, w := range strings.Fields(a) {
		if len(w) > 3 && bw[w] {
			return true
		}
	}
	return false
}

// Handle answers an A2A envelope. RFQ messages produce quotation replies;
// anything else is rejected.
func (a *Agent) Handle(ctx context.Context, msg protocol.Message) (protocol.Message, error) {
	if msg.Type != protocol.MessageRFQ {
		return protocol.Message{}, fmt.Errorf("supplier %s: unsupported message type %q", a.id, msg.Type)
	}
	var rfq protocol.RFQ
	if err := msg.Decode(&rfq); err != nil {
		return protocol.Message{}, fmt.Errorf("supplier %s: decode rfq: %w", a.id, err)
	}
	quote, err := a.RequestQuote(ctx, rfq)
	if err != nil {
		return protocol.Message{}, err
	}
	return msg.Reply(protocol.MessageQuotation, quote)
}
