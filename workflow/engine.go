package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/procuremesh/bandit"
	"github.com/hupe1980/procuremesh/bom"
	"github.com/hupe1980/procuremesh/compliance"
	"github.com/hupe1980/procuremesh/internal/util"
	"github.com/hupe1980/procuremesh/logging"
	"github.com/hupe1980/procuremesh/logistics"
	"github.com/hupe1980/procuremesh/protocol"
	"github.com/hupe1980/procuremesh/registry"
)

// AgentRegistry is the discovery surface the engine needs from the agent
// registry.
type AgentRegistry interface {
	Discover(f registry.Filter) []protocol.AgentRecord
	Get(id string) (protocol.AgentRecord, error)
}

// SupplierClient answers RFQs. In-process supplier agents implement it
// directly; remote suppliers are wrapped by a transport adapter.
type SupplierClient interface {
	RequestQuote(ctx context.Context, rfq protocol.RFQ) (protocol.Quote, error)
}

// SupplierDirectory resolves a registered supplier id to a client.
type SupplierDirectory interface {
	Supplier(id string) (SupplierClient, bool)
}

// Directory is a concurrent in-process SupplierDirectory.
type Directory struct {
	mu      sync.RWMutex
	clients map[string]SupplierClient
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{clients: make(map[string]SupplierClient)}
}

// Add registers a client under the given supplier id.
func (d *Directory) Add(id string, c SupplierClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[id] = c
}

// Supplier implements SupplierDirectory.
func (d *Directory) Supplier(id string) (SupplierClient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.clients[id]
	return c, ok
}

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Registry answers supplier discovery queries.
	Registry AgentRegistry
	// Bandit picks discount asks and learns from negotiation outcomes.
	Bandit *bandit.NegotiationBandit
	// Generator turns request text into a bill of materials.
	Generator bom.Generator
	// Suppliers resolves supplier ids to quote clients.
	Suppliers SupplierDirectory
	// Compliance evaluates regulatory feasibility of quoted orders.
	Compliance compliance.Checker
	// Logistics plans shipping for quoted orders.
	Logistics logistics.Planner
	// Store persists run state at each stage transition.
	Store RunStore
	// Logger receives structured engine logs.
	Logger logging.Logger
	// NegotiationTimeout bounds each supplier RFQ round trip.
	NegotiationTimeout time.Duration
	// RunDeadline bounds a whole run; zero means no bound.
	RunDeadline time.Duration
	// StrictCompliance excludes options with a failed compliance verdict
	// from the recommendation instead of carrying them flagged.
	StrictCompliance bool
	// StepBufferSize sets channel buffering for streamed steps.
	StepBufferSize int
}

// Engine runs procurement workflows. Public methods are safe for
// concurrent use.
type Engine struct {
	registry   AgentRegistry
	bandit     *bandit.NegotiationBandit
	generator  bom.Generator
	suppliers  SupplierDirectory
	compliance compliance.Checker
	logistics  logistics.Planner
	store      RunStore
	logger     logging.Logger

	negotiationTimeout time.Duration
	runDeadline        time.Duration
	strictCompliance   bool
	stepBufferSize     int

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs an Engine with optional overrides. Registry, Generator and
// Suppliers have no useful zero defaults and must be supplied.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Bandit:             bandit.New(),
		Compliance:         compliance.NewRuleChecker(),
		Logistics:          logistics.NewRoutePlanner(),
		Store:              NewInMemoryRunStore(),
		Logger:             logging.NoOpLogger{},
		NegotiationTimeout: 10 * time.Second,
		StepBufferSize:     64,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		registry:           opts.Registry,
		bandit:             opts.Bandit,
		generator:          opts.Generator,
		suppliers:          opts.Suppliers,
		compliance:         opts.Compliance,
		logistics:          opts.Logistics,
		store:              opts.Store,
		logger:             opts.Logger,
		negotiationTimeout: opts.NegotiationTimeout,
		runDeadline:        opts.RunDeadline,
		strictCompliance:   opts.StrictCompliance,
		stepBufferSize:     opts.StepBufferSize,
		activeRuns:         make(map[string]context.CancelFunc),
	}
}

// Execute runs a procurement workflow synchronously and returns the final
// run record. The record is returned even on failure so callers can inspect
// the step log and partial results.
func (e *Engine) Execute(ctx context.Context, req Request) (*Run, error) {
	run := e.newRun(req)
	err := e.execute(ctx, run, nil)
	return run, err
}

// ExecuteStream starts a workflow asynchronously and streams its step log.
// The step channel is closed when the run reaches a terminal stage; a fatal
// error is delivered on the error channel before both close. Use Cancel to
// abort by run id.
func (e *Engine) ExecuteStream(ctx context.Context, req Request) (string, <-chan Step, <-chan error, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, nil, err
	}
	run := e.newRun(req)

	stepsCh := make(chan Step, e.stepBufferSize)
	errorsCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.activeRuns[run.ID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.activeRuns, run.ID)
			e.mu.Unlock()
			cancel()
			close(stepsCh)
			close(errorsCh)
		}()
		if err := e.execute(ctx, run, stepsCh); err != nil {
			errorsCh <- err
		}
	}()

	return run.ID, stepsCh, errorsCh, nil
}

// Cancel aborts a running workflow by id. The run is marked failed and its
// partial state persisted.
func (e *Engine) Cancel(runID string) error {
	e.mu.RLock()
	cancel, ok := e.activeRuns[runID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()
	return nil
}

// Get returns the persisted state of a run.
func (e *Engine) Get(runID string) (*Run, error) {
	return e.store.Get(runID)
}

func (e *Engine) newRun(req Request) *Run {
	return &Run{
		ID:      util.NewID(),
		Request: req.withDefaults(),
		Stage:   StageInit,
		Started: time.Now().UTC(),
	}
}

// execute drives a run through the pipeline. stepsCh may be nil for
// synchronous execution; the step log on the run is always populated.
func (e *Engine) execute(ctx context.Context, run *Run, stepsCh chan<- Step) (err error) {
	// The run deadline bounds the suspending stages (BOM generation and
	// negotiation). When it expires, outstanding negotiations are treated
	// as per-supplier failures and the pipeline proceeds with whatever
	// quotes completed; only explicit cancellation aborts the run.
	runCtx := ctx
	if e.runDeadline > 0 {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithTimeout(ctx, e.runDeadline)
		defer cancelDeadline()
	}

	var stepMu sync.Mutex
	emit := func(stage Stage, actor, message string, status StepStatus) {
		stepMu.Lock()
		step := Step{
			Seq:       len(run.Steps) + 1,
			Stage:     stage,
			Actor:     actor,
			Message:   message,
			Status:    status,
			Timestamp: time.Now().UTC(),
		}
		run.Steps = append(run.Steps, step)
		stepMu.Unlock()
		if stepsCh != nil {
			select {
			case stepsCh <- step:
			case <-ctx.Done():
			}
		}
	}

	defer func() {
		e.logger.Info("run %s finished stage=%s steps=%d success=%t", run.ID, run.Stage, len(run.Steps), err == nil)
	}()

	fail := func(stage Stage, cause error) error {
		run.Stage = StageFailed
		run.Error = cause.Error()
		run.Finished = time.Now().UTC()
		emit(StageFailed, "orchestrator", cause.Error(), StepError)
		e.save(run)
		return cause
	}

	emit(StageInit, "orchestrator", fmt.Sprintf("procurement run started: %s", run.Request.Text), StepInfo)
	e.save(run)

	// INIT: derive the bill of materials. The only fatal stage.
	b, genErr := e.generator.Generate(runCtx, run.Request.Text)
	if genErr != nil {
		return fail(StageInit, &protocol.FatalPipelineError{Stage: string(StageInit), Err: genErr})
	}
	run.BOM = b
	emit(StageInit, "orchestrator", fmt.Sprintf("bill of materials ready: %s (%d items)", b.Product, len(b.Items)), StepSuccess)

	// DISCOVERY
	run.Stage = StageDiscovery
	e.save(run)
	if err := ctx.Err(); err != nil {
		return fail(StageDiscovery, err)
	}
	run.Candidates = e.discover(run.BOM, run.Request.DeadlineDays)
	if len(run.Candidates) == 0 {
		emit(StageDiscovery, "orchestrator", protocol.ErrNoSuppliersFound.Error(), StepWarning)
		run.Recommendation = &protocol.Recommendation{
			Justification: "no suppliers matched the bill of materials; nothing to recommend",
		}
		run.Stage = StageDone
		run.Finished = time.Now().UTC()
		emit(StageDone, "orchestrator", "run finished without candidates", StepWarning)
		e.save(run)
		return nil
	}
	emit(StageDiscovery, "orchestrator", fmt.Sprintf("discovered %d candidate supplier(s)", len(run.Candidates)), StepSuccess)

	// NEGOTIATION: parallel fan-out, one bounded task per candidate.
	run.Stage = StageNegotiation
	e.save(run)
	run.Quotes = e.negotiateAll(runCtx, run, emit)
	if err := ctx.Err(); err != nil {
		return fail(StageNegotiation, err)
	}
	if runCtx.Err() != nil {
		emit(StageNegotiation, "orchestrator", "run deadline exceeded; continuing with completed quotes", StepWarning)
	}
	usable := 0
	for _, q := range run.Quotes {
		if q.OK() {
			usable++
		}
	}
	emit(StageNegotiation, "orchestrator", fmt.Sprintf("negotiation finished: %d of %d supplier(s) quoted", usable, len(run.Quotes)), stepStatusFor(usable > 0))

	// COMPLIANCE
	run.Stage = StageCompliance
	e.save(run)
	run.Compliance = make(map[string]protocol.ComplianceResult)
	for _, q := range run.Quotes {
		if !q.OK() {
			continue
		}
		res, cerr := e.compliance.Check(ctx, compliance.Shipment{
			Items:         q.Quote.Items,
			OriginRegion:  q.Region,
			DestRegion:    run.Request.DestinationRegion,
			TransportType: run.Request.TransportType,
		})
		if cerr != nil {
			if ctx.Err() != nil {
				return fail(StageCompliance, ctx.Err())
			}
			emit(StageCompliance, "compliance", fmt.Sprintf("check failed for %s: %v", q.SupplierID, cerr), StepWarning)
			res = protocol.ComplianceResult{Status: protocol.ComplianceWarning, Details: cerr.Error()}
		}
		run.Compliance[q.SupplierID] = res
		emit(StageCompliance, "compliance", fmt.Sprintf("%s: %s", q.SupplierName, res.Status), complianceStepStatus(res.Status))
	}
	// Strict mode turns an all-blocked verdict into a failed run; a partial
	// block only excludes the affected options at recommendation time.
	if e.strictCompliance && usable > 0 {
		blocked := 0
		for _, q := range run.Quotes {
			if q.OK() && run.Compliance[q.SupplierID].Status == protocol.ComplianceFailed {
				blocked++
			}
		}
		if blocked == usable {
			return fail(StageCompliance, fmt.Errorf("all %d quoted option(s) have compliance blockers: %w", blocked, protocol.ErrComplianceBlocked))
		}
	}

	// LOGISTICS
	run.Stage = StageLogistics
	e.save(run)
	run.Logistics = make(map[string]protocol.LogisticsPlan)
	for _, q := range run.Quotes {
		if !q.OK() {
			continue
		}
		plan, perr := e.logistics.Plan(ctx, logistics.Request{
			Items:         q.Quote.Items,
			OriginRegion:  q.Region,
			DestRegion:    run.Request.DestinationRegion,
			TransportType: run.Request.TransportType,
			DeadlineDays:  run.Request.DeadlineDays,
		})
		if perr != nil {
			if ctx.Err() != nil {
				return fail(StageLogistics, ctx.Err())
			}
			emit(StageLogistics, "logistics", fmt.Sprintf("no plan for %s: %v", q.SupplierName, perr), StepWarning)
			continue
		}
		run.Logistics[q.SupplierID] = plan
		emit(StageLogistics, "logistics", fmt.Sprintf("%s: %s %.2f in %dd", q.SupplierName, plan.Provider, plan.ShippingCost, plan.TotalDays), StepSuccess)
	}

	// RECOMMENDATION
	run.Stage = StageRecommendation
	e.save(run)
	run.Recommendation = e.recommend(run, emit)

	run.Stage = StageDone
	run.Finished = time.Now().UTC()
	emit(StageDone, "orchestrator", "procurement run complete", StepSuccess)
	e.save(run)
	return nil
}

// discover returns suppliers able to serve the BOM, ranked by the registry.
// Suppliers declaring capabilities must match at least one BOM category;
// suppliers declaring none are assumed general-purpose and kept.
func (e *Engine) discover(b protocol.BOM, deadlineDays int) []protocol.AgentRecord {
	all := e.registry.Discover(registry.Filter{
		Role:         protocol.RoleSupplier,
		DeadlineDays: deadlineDays,
	})
	cats := b.Categories()
	var out []protocol.AgentRecord
	for _, rec := range all {
		if len(rec.Capabilities) == 0 {
			out = append(out, rec)
			continue
		}
		for _, cat := range cats {
			if rec.HasCapability(cat) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func (e *Engine) negotiateAll(ctx context.Context, run *Run, emit func(Stage, string, string, StepStatus)) []QuoteResult {
	results := make([]QuoteResult, len(run.Candidates))
	var wg sync.WaitGroup
	for i, cand := range run.Candidates {
		wg.Add(1)
		go func(i int, cand protocol.AgentRecord) {
			defer wg.Done()
			results[i] = e.negotiate(ctx, run, cand, emit)
		}(i, cand)
	}
	wg.Wait()
	return results
}

// negotiate runs one bounded RFQ round trip against a single supplier and
// feeds the outcome back into the bandit. Failures are captured in the
// result, never propagated: one dead supplier must not sink the run.
func (e *Engine) negotiate(ctx context.Context, run *Run, cand protocol.AgentRecord, emit func(Stage, string, string, StepStatus)) QuoteResult {
	res := QuoteResult{
		SupplierID:   cand.ID,
		SupplierName: cand.Name,
		Region:       cand.Region,
	}

	client, ok := e.suppliers.Supplier(cand.ID)
	if !ok {
		res.Err = "supplier has no reachable endpoint"
		emit(StageNegotiation, cand.ID, res.Err, StepWarning)
		return res
	}

	ask := e.bandit.Suggest(cand.ID, cand.MaxDiscountPct)
	res.DiscountAsked = ask
	emit(StageNegotiation, cand.ID, fmt.Sprintf("requesting quote with %.0f%% discount ask", ask), StepInfo)

	rfq := protocol.RFQ{
		ID:             util.NewID(),
		BuyerID:        run.Request.BuyerID,
		SupplierID:     cand.ID,
		DeadlineDays:   run.Request.DeadlineDays,
		Budget:         run.Request.Budget,
		DiscountAskPct: ask,
	}
	for _, it := range run.BOM.Items {
		rfq.Items = append(rfq.Items, protocol.RFQItem{
			PartName: it.PartName,
			Category: it.Category,
			Quantity: it.Quantity,
		})
	}

	tctx, cancel := context.WithTimeout(ctx, e.negotiationTimeout)
	defer cancel()

	start := time.Now()
	quote, err := client.RequestQuote(tctx, rfq)
	dur := time.Since(start)

	switch {
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		// The whole run is being torn down; record nothing.
		res.Err = ctx.Err().Error()
		return res
	case errors.Is(err, context.DeadlineExceeded):
		res.Err = protocol.ErrUpstreamTimeout.Error()
		e.bandit.RecordOutcome(cand.ID, bandit.Outcome{DiscountAsked: ask, Decision: bandit.DecisionNoResponse})
		emit(StageNegotiation, cand.ID, fmt.Sprintf("no response within %s", e.negotiationTimeout), StepWarning)
		return res
	case err != nil:
		res.Err = err.Error()
		e.bandit.RecordOutcome(cand.ID, bandit.Outcome{DiscountAsked: ask, Decision: bandit.DecisionReject})
		emit(StageNegotiation, cand.ID, fmt.Sprintf("quote request failed: %v", err), StepWarning)
		return res
	}

	if verr := quote.Validate(); verr != nil {
		res.Err = verr.Error()
		e.bandit.RecordOutcome(cand.ID, bandit.Outcome{DiscountAsked: ask, Decision: bandit.DecisionReject})
		emit(StageNegotiation, cand.ID, fmt.Sprintf("quote rejected: %v", verr), StepError)
		return res
	}

	decision := bandit.DecisionAccept
	switch {
	case quote.DiscountPct >= ask:
	case quote.DiscountPct > 0:
		decision = bandit.DecisionCounter
	default:
		decision = bandit.DecisionReject
	}
	e.bandit.RecordOutcome(cand.ID, bandit.Outcome{
		DiscountAsked:    ask,
		DiscountReceived: quote.DiscountPct,
		Decision:         decision,
	})

	res.Quote = &quote
	emit(StageNegotiation, cand.ID, fmt.Sprintf("quoted %.2f %s (%.1f%% granted) in %s", quote.Total, quote.Currency, quote.DiscountPct, dur.Round(time.Millisecond)), StepSuccess)
	return res
}

// recommend ranks the usable quotes into the final recommendation. The sort
// key is compliance verdict, then logistics availability, then landed cost,
// delivery days and supplier id, which makes the order total and repeatable
// for identical inputs.
func (e *Engine) recommend(run *Run, emit func(Stage, string, string, StepStatus)) *protocol.Recommendation {
	var options []protocol.RankedOption
	for _, q := range run.Quotes {
		if !q.OK() {
			continue
		}
		comp := run.Compliance[q.SupplierID]
		if e.strictCompliance && comp.Status == protocol.ComplianceFailed {
			emit(StageRecommendation, "orchestrator", fmt.Sprintf("%s excluded: %v", q.SupplierName, protocol.ErrComplianceBlocked), StepWarning)
			continue
		}
		opt := protocol.RankedOption{
			SupplierID:   q.SupplierID,
			SupplierName: q.SupplierName,
			Region:       q.Region,
			ItemCost:     q.Quote.Total,
			TotalCost:    q.Quote.Total,
			TotalDays:    q.Quote.LeadTimeDays,
			Compliance:   comp.Status,
			DiscountPct:  q.Quote.DiscountPct,
		}
		if plan, ok := run.Logistics[q.SupplierID]; ok {
			opt.HasLogistics = true
			opt.ShippingCost = plan.ShippingCost
			opt.TotalCost += plan.ShippingCost
			opt.TotalDays += plan.TotalDays
		}
		options = append(options, opt)
	}

	budget := run.Request.Budget
	sort.Slice(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if ar, br := a.Compliance.Rank(), b.Compliance.Rank(); ar != br {
			return ar < br
		}
		if a.HasLogistics != b.HasLogistics {
			return a.HasLogistics
		}
		if a.TotalCost != b.TotalCost {
			return a.TotalCost < b.TotalCost
		}
		if a.TotalDays != b.TotalDays {
			return a.TotalDays < b.TotalDays
		}
		return a.SupplierID < b.SupplierID
	})

	rec := &protocol.Recommendation{Options: options}
	if len(options) == 0 {
		rec.Justification = "no supplier produced a usable quote"
		emit(StageRecommendation, "orchestrator", rec.Justification, StepWarning)
		return rec
	}

	top := options[0]
	rec.Recommended = &top
	rec.Justification = justify(top, len(options), budget)
	emit(StageRecommendation, "orchestrator", fmt.Sprintf("recommended %s at %.2f total", top.SupplierName, top.TotalCost), StepSuccess)
	return rec
}

func justify(top protocol.RankedOption, total int, budget float64) string {
	msg := fmt.Sprintf("%s offers the best landed cost (%.2f) of %d option(s)", top.SupplierName, top.TotalCost, total)
	if top.HasLogistics {
		msg += fmt.Sprintf(" with delivery in %d day(s)", top.TotalDays)
	} else {
		msg += " (no logistics plan available)"
	}
	if top.Compliance == protocol.ComplianceWarning {
		msg += "; compliance caveats apply"
	}
	if budget > 0 && top.TotalCost > budget {
		msg += fmt.Sprintf("; exceeds the %.2f budget", budget)
	}
	return msg
}

func (e *Engine) save(run *Run) {
	if err := e.store.Save(run); err != nil {
		e.logger.Error("failed to persist run %s: %v", run.ID, err)
	}
}

func stepStatusFor(ok bool) StepStatus {
	if ok {
		return StepSuccess
	}
	return StepWarning
}

func complianceStepStatus(s protocol.ComplianceStatus) StepStatus {
	switch s {
	case protocol.CompliancePassed:
		return StepSuccess
	case protocol.ComplianceWarning:
		return StepWarning
	default:
		return StepError
	}
}
