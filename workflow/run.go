package workflow

import (
	"time"

	"github.com/hupe1980/procuremesh/protocol"
)

// Stage identifies where a run is in the pipeline.
type Stage string

const (
	StageInit           Stage = "INIT"
	StageDiscovery      Stage = "DISCOVERY"
	StageNegotiation    Stage = "NEGOTIATION"
	StageCompliance     Stage = "COMPLIANCE"
	StageLogistics      Stage = "LOGISTICS"
	StageRecommendation Stage = "RECOMMENDATION"
	StageDone           Stage = "DONE"
	StageFailed         Stage = "FAILED"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// StepStatus classifies a step log entry.
type StepStatus string

const (
	StepInfo    StepStatus = "info"
	StepSuccess StepStatus = "success"
	StepWarning StepStatus = "warning"
	StepError   StepStatus = "error"
)

// Step is one entry in a run's append-only step log. Seq increases by one
// per step within a run, so consumers can detect gaps after a reconnect.
type Step struct {
	Seq       int        `json:"seq"`
	Stage     Stage      `json:"stage"`
	Actor     string     `json:"actor"`
	Message   string     `json:"message"`
	Status    StepStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// Request describes what the buyer wants procured.
type Request struct {
	// Text is the free-form description of the need.
	Text string `json:"text"`
	// Budget caps the acceptable landed cost; zero means unbounded.
	Budget float64 `json:"budget,omitempty"`
	// DeadlineDays is the delivery deadline. Defaults to 7.
	DeadlineDays int `json:"deadline_days,omitempty"`
	// DestinationRegion is where the order ships to. Defaults to EU.
	DestinationRegion string `json:"destination_region,omitempty"`
	// TransportType restricts logistics planning when set.
	TransportType string `json:"transport_type,omitempty"`
	// BuyerID identifies the requesting agent.
	BuyerID string `json:"buyer_id,omitempty"`
}

func (r Request) withDefaults() Request {
	if r.DeadlineDays == 0 {
		r.DeadlineDays = 7
	}
	if r.DestinationRegion == "" {
		r.DestinationRegion = "EU"
	}
	if r.TransportType == "" {
		r.TransportType = "air"
	}
	return r
}

// QuoteResult is the per-supplier outcome of the negotiation stage. Err is
// set when the supplier timed out, errored or returned an invalid quote; a
// failed supplier stays in the run record so partial failure is visible.
type QuoteResult struct {
	SupplierID    string          `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	Region        string          `json:"region,omitempty"`
	Quote         *protocol.Quote `json:"quote,omitempty"`
	DiscountAsked float64         `json:"discount_asked_pct"`
	Err           string          `json:"error,omitempty"`
}

// OK reports whether the supplier produced a usable quote.
func (q QuoteResult) OK() bool { return q.Quote != nil && q.Err == "" }

// Run is the full record of one procurement workflow execution.
type Run struct {
	ID             string                               `json:"run_id"`
	Request        Request                              `json:"request"`
	Stage          Stage                                `json:"stage"`
	BOM            protocol.BOM                         `json:"bom"`
	Candidates     []protocol.AgentRecord               `json:"candidates,omitempty"`
	Quotes         []QuoteResult                        `json:"quotes,omitempty"`
	Compliance     map[string]protocol.ComplianceResult `json:"compliance,omitempty"`
	Logistics      map[string]protocol.LogisticsPlan    `json:"logistics,omitempty"`
	Recommendation *protocol.Recommendation             `json:"recommendation,omitempty"`
	Steps          []Step                               `json:"steps"`
	Error          string                               `json:"error,omitempty"`
	Started        time.Time                            `json:"started"`
	Finished       time.Time                            `json:"finished,omitempty"`
}

// Clone returns a deep copy safe for independent mutation.
func (r *Run) Clone() *Run {
	c := *r
	c.Candidates = make([]protocol.AgentRecord, len(r.Candidates))
	for i, rec := range r.Candidates {
		c.Candidates[i] = rec.Clone()
	}
	c.Quotes = append([]QuoteResult(nil), r.Quotes...)
	for i, q := range c.Quotes {
		if q.Quote != nil {
			qc := *q.Quote
			qc.Items = append([]protocol.QuoteItem(nil), q.Quote.Items...)
			c.Quotes[i].Quote = &qc
		}
	}
	if r.Compliance != nil {
		c.Compliance = make(map[string]protocol.ComplianceResult, len(r.Compliance))
		for k, v := range r.Compliance {
			v.Blockers = append([]string(nil), v.Blockers...)
			v.Warnings = append([]string(nil), v.Warnings...)
			c.Compliance[k] = v
		}
	}
	if r.Logistics != nil {
		c.Logistics = make(map[string]protocol.LogisticsPlan, len(r.Logistics))
		for k, v := range r.Logistics {
			c.Logistics[k] = v
		}
	}
	if r.Recommendation != nil {
		rec := *r.Recommendation
		rec.Options = append([]protocol.RankedOption(nil), r.Recommendation.Options...)
		if r.Recommendation.Recommended != nil {
			top := *r.Recommendation.Recommended
			rec.Recommended = &top
		}
		c.Recommendation = &rec
	}
	c.Steps = append([]Step(nil), r.Steps...)
	return &c
}
