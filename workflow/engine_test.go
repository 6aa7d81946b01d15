package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hupe1980/procuremesh/bandit"
	"github.com/hupe1980/procuremesh/bom"
	"github.com/hupe1980/procuremesh/protocol"
	"github.com/hupe1980/procuremesh/registry"
	"github.com/hupe1980/procuremesh/supplier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingGenerator always errors, simulating an unreachable LLM backend.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (protocol.BOM, error) {
	return protocol.BOM{}, errors.New("model backend unreachable")
}

// slowClient never answers within any reasonable timeout.
type slowClient struct{}

func (slowClient) RequestQuote(ctx context.Context, _ protocol.RFQ) (protocol.Quote, error) {
	<-ctx.Done()
	return protocol.Quote{}, ctx.Err()
}

func testBOM(batteries int) protocol.BOM {
	return protocol.BOM{
		Product: "quadcopter drone",
		Items: []protocol.BOMItem{
			{PartName: "brushless motor", Category: "motors", Quantity: 4},
			{PartName: "lipo battery 4s", Category: "power", Quantity: batteries},
		},
	}
}

func testGenerator(batteries int) *bom.StaticGenerator {
	g := bom.NewStaticGenerator()
	g.AddBOM("drone build", testBOM(batteries))
	return g
}

func newSupplierAgent(id, region string, motorPrice float64) *supplier.Agent {
	return supplier.New("supplier "+id, []supplier.CatalogItem{
		{PartName: "brushless motor", Category: "motors", UnitPrice: motorPrice, LeadTimeDays: 4, InStock: true},
		{PartName: "lipo battery 4s", Category: "power", UnitPrice: 30, LeadTimeDays: 5, InStock: true},
	}, func(o *supplier.Options) {
		o.ID = id
		o.Region = region
		o.Currency = "EUR"
		o.MaxDiscountPct = 10
	})
}

type fixture struct {
	registry  *registry.InMemoryRegistry
	directory *Directory
	engine    *Engine
}

func newFixture(t *testing.T, gen bom.Generator, engineOpts ...func(o *Options)) *fixture {
	t.Helper()
	f := &fixture{
		registry:  registry.NewInMemoryRegistry(),
		directory: NewDirectory(),
	}
	f.engine = New(append([]func(o *Options){func(o *Options) {
		o.Registry = f.registry
		o.Generator = gen
		o.Suppliers = f.directory
		o.Bandit = bandit.New(func(bo *bandit.Options) {
			bo.Epsilon = 0
			bo.Seed = 1
		})
		o.NegotiationTimeout = 100 * time.Millisecond
	}}, engineOpts...)...)
	return f
}

func (f *fixture) addSupplier(t *testing.T, a *supplier.Agent) {
	t.Helper()
	_, err := f.registry.Register(a.Record())
	require.NoError(t, err)
	f.directory.Add(a.ID(), a)
}

func TestExecute_HappyPath(t *testing.T) {
	f := newFixture(t, testGenerator(2))
	f.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))
	f.addSupplier(t, newSupplierAgent("sup-b", "US", 25))

	run, err := f.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)

	assert.Equal(t, StageDone, run.Stage)
	assert.Empty(t, run.Error)
	assert.False(t, run.Finished.IsZero())
	assert.Len(t, run.Candidates, 2)
	assert.Len(t, run.Quotes, 2)
	for _, q := range run.Quotes {
		require.True(t, q.OK(), "supplier %s failed: %s", q.SupplierID, q.Err)
		require.NoError(t, q.Quote.Validate())
	}

	rec := run.Recommendation
	require.NotNil(t, rec)
	require.Len(t, rec.Options, 2)
	require.NotNil(t, rec.Recommended)
	// Cheaper motors win once shipping is folded in (same battery price,
	// same logistics table).
	assert.Equal(t, "sup-a", rec.Recommended.SupplierID)
	assert.True(t, rec.Recommended.HasLogistics)
	assert.Equal(t, protocol.ComplianceWarning, rec.Recommended.Compliance)
	assert.NotEmpty(t, rec.Justification)

	// The step log is append-only with gap-free sequence numbers.
	for i, step := range run.Steps {
		assert.Equal(t, i+1, step.Seq)
	}
	assert.Equal(t, StageInit, run.Steps[0].Stage)
	assert.Equal(t, StageDone, run.Steps[len(run.Steps)-1].Stage)

	// The run is persisted in its terminal state.
	stored, err := f.engine.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StageDone, stored.Stage)
}

func TestExecute_BOMFailureIsFatal(t *testing.T) {
	f := newFixture(t, failingGenerator{})

	run, err := f.engine.Execute(context.Background(), Request{Text: "anything"})
	require.Error(t, err)
	var fatal *protocol.FatalPipelineError
	assert.ErrorAs(t, err, &fatal)

	assert.Equal(t, StageFailed, run.Stage)
	assert.NotEmpty(t, run.Error)
	assert.Empty(t, run.Quotes)

	stored, serr := f.engine.Get(run.ID)
	require.NoError(t, serr)
	assert.Equal(t, StageFailed, stored.Stage)
}

func TestExecute_NoSuppliersCompletesEmpty(t *testing.T) {
	f := newFixture(t, testGenerator(2))

	run, err := f.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)

	assert.Equal(t, StageDone, run.Stage)
	require.NotNil(t, run.Recommendation)
	assert.Empty(t, run.Recommendation.Options)
	assert.Nil(t, run.Recommendation.Recommended)

	found := false
	for _, step := range run.Steps {
		if step.Stage == StageDiscovery && step.Status == StepWarning {
			found = true
		}
	}
	assert.True(t, found, "missing no-suppliers warning step")
}

func TestExecute_SlowSupplierDegradesToPartialResult(t *testing.T) {
	f := newFixture(t, testGenerator(2))
	f.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))
	f.addSupplier(t, newSupplierAgent("sup-b", "US", 25))

	// A registered supplier whose client never answers.
	_, err := f.registry.Register(protocol.AgentRecord{
		ID:              "sup-dead",
		Name:            "supplier sup-dead",
		Role:            protocol.RoleSupplier,
		Region:          "EU",
		AvgLeadTimeDays: 3,
	})
	require.NoError(t, err)
	f.directory.Add("sup-dead", slowClient{})

	run, err := f.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)

	assert.Equal(t, StageDone, run.Stage)
	require.Len(t, run.Quotes, 3)

	byID := map[string]QuoteResult{}
	for _, q := range run.Quotes {
		byID[q.SupplierID] = q
	}
	assert.True(t, byID["sup-a"].OK())
	assert.True(t, byID["sup-b"].OK())
	assert.False(t, byID["sup-dead"].OK())
	assert.Equal(t, protocol.ErrUpstreamTimeout.Error(), byID["sup-dead"].Err)

	require.NotNil(t, run.Recommendation)
	assert.Len(t, run.Recommendation.Options, 2)
}

func TestExecute_RunDeadlineDegradesToPartialResult(t *testing.T) {
	f := newFixture(t, testGenerator(2), func(o *Options) {
		o.NegotiationTimeout = 10 * time.Second
		o.RunDeadline = 200 * time.Millisecond
	})
	f.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))
	_, err := f.registry.Register(protocol.AgentRecord{
		ID:              "sup-stuck",
		Name:            "supplier sup-stuck",
		Role:            protocol.RoleSupplier,
		Region:          "EU",
		AvgLeadTimeDays: 3,
	})
	require.NoError(t, err)
	f.directory.Add("sup-stuck", slowClient{})

	run, err := f.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)

	// The expired deadline fails the stuck supplier, not the run.
	assert.Equal(t, StageDone, run.Stage)
	byID := map[string]QuoteResult{}
	for _, q := range run.Quotes {
		byID[q.SupplierID] = q
	}
	assert.True(t, byID["sup-a"].OK())
	assert.Equal(t, protocol.ErrUpstreamTimeout.Error(), byID["sup-stuck"].Err)
	require.NotNil(t, run.Recommendation)
	assert.Len(t, run.Recommendation.Options, 1)

	found := false
	for _, step := range run.Steps {
		if step.Stage == StageNegotiation && step.Status == StepWarning {
			found = true
		}
	}
	assert.True(t, found, "missing deadline warning step")
}

func TestExecute_UnreachableSupplierIsSkipped(t *testing.T) {
	f := newFixture(t, testGenerator(2))
	f.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))
	// Registered but never added to the directory.
	_, err := f.registry.Register(protocol.AgentRecord{
		ID:              "sup-ghost",
		Name:            "supplier sup-ghost",
		Role:            protocol.RoleSupplier,
		Region:          "EU",
		AvgLeadTimeDays: 3,
	})
	require.NoError(t, err)

	run, err := f.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)
	assert.Equal(t, StageDone, run.Stage)

	byID := map[string]QuoteResult{}
	for _, q := range run.Quotes {
		byID[q.SupplierID] = q
	}
	assert.False(t, byID["sup-ghost"].OK())
	assert.Len(t, run.Recommendation.Options, 1)
}

func TestExecute_RankingIsDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		f := newFixture(t, testGenerator(2))
		// Identical offers: only the supplier id can break the tie.
		for _, id := range []string{"sup-c", "sup-a", "sup-b"} {
			f.addSupplier(t, newSupplierAgent(id, "EU", 20))
		}

		run, err := f.engine.Execute(context.Background(), Request{Text: "drone build"})
		require.NoError(t, err)
		require.Len(t, run.Recommendation.Options, 3)

		var got []string
		for _, opt := range run.Recommendation.Options {
			got = append(got, opt.SupplierID)
		}
		assert.Equal(t, []string{"sup-a", "sup-b", "sup-c"}, got, "iteration %d", i)
	}
}

func TestExecute_StrictComplianceBlocksRun(t *testing.T) {
	// Three standalone battery packs by air trip the dangerous goods rule.
	gen := testGenerator(3)

	strict := newFixture(t, gen, func(o *Options) { o.StrictCompliance = true })
	strict.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))

	run, err := strict.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrComplianceBlocked)
	assert.Equal(t, StageFailed, run.Stage)
	assert.Equal(t, protocol.ComplianceFailed, run.Compliance["sup-a"].Status)
	assert.Nil(t, run.Recommendation)

	stored, serr := strict.engine.Get(run.ID)
	require.NoError(t, serr)
	assert.Equal(t, StageFailed, stored.Stage)

	// Without strict mode the option survives, flagged.
	lax := newFixture(t, gen)
	lax.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))

	run, err = lax.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)
	assert.Equal(t, StageDone, run.Stage)
	require.Len(t, run.Recommendation.Options, 1)
	assert.Equal(t, protocol.ComplianceFailed, run.Recommendation.Options[0].Compliance)

	// Mixed verdicts under strict mode exclude only the blocked option.
	mixed := newFixture(t, gen, func(o *Options) { o.StrictCompliance = true })
	mixed.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))
	mixed.addSupplier(t, supplier.New("supplier sup-m", []supplier.CatalogItem{
		{PartName: "brushless motor", Category: "motors", UnitPrice: 22, LeadTimeDays: 4, InStock: true},
	}, func(o *supplier.Options) {
		o.ID = "sup-m"
		o.Region = "EU"
		o.Currency = "EUR"
		o.MaxDiscountPct = 10
	}))

	run, err = mixed.engine.Execute(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)
	assert.Equal(t, StageDone, run.Stage)
	require.Len(t, run.Recommendation.Options, 1)
	assert.Equal(t, "sup-m", run.Recommendation.Options[0].SupplierID)
}

func TestExecute_BudgetPrefersAffordableOptions(t *testing.T) {
	f := newFixture(t, testGenerator(2))
	f.addSupplier(t, newSupplierAgent("sup-cheap", "EU", 10))
	f.addSupplier(t, newSupplierAgent("sup-steep", "EU", 200))

	run, err := f.engine.Execute(context.Background(), Request{Text: "drone build", Budget: 300})
	require.NoError(t, err)
	require.Len(t, run.Recommendation.Options, 2)
	assert.Equal(t, "sup-cheap", run.Recommendation.Recommended.SupplierID)
	assert.LessOrEqual(t, run.Recommendation.Recommended.TotalCost, 300.0)
}

func TestExecuteStream_DeliversOrderedSteps(t *testing.T) {
	f := newFixture(t, testGenerator(2))
	f.addSupplier(t, newSupplierAgent("sup-a", "EU", 20))

	runID, stepsCh, errorsCh, err := f.engine.ExecuteStream(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	var steps []Step
	for step := range stepsCh {
		steps = append(steps, step)
	}
	require.NoError(t, <-errorsCh)

	require.NotEmpty(t, steps)
	for i, step := range steps {
		assert.Equal(t, i+1, step.Seq)
	}
	assert.Equal(t, StageDone, steps[len(steps)-1].Stage)

	run, err := f.engine.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, StageDone, run.Stage)
	assert.Equal(t, len(steps), len(run.Steps))
}

func TestCancel_AbortsRunningWorkflow(t *testing.T) {
	f := newFixture(t, testGenerator(2), func(o *Options) {
		o.NegotiationTimeout = 10 * time.Second
	})
	_, err := f.registry.Register(protocol.AgentRecord{
		ID:              "sup-slow",
		Name:            "supplier sup-slow",
		Role:            protocol.RoleSupplier,
		Region:          "EU",
		AvgLeadTimeDays: 3,
	})
	require.NoError(t, err)
	f.directory.Add("sup-slow", slowClient{})

	runID, stepsCh, errorsCh, err := f.engine.ExecuteStream(context.Background(), Request{Text: "drone build"})
	require.NoError(t, err)

	// Wait for the run to reach negotiation before cancelling.
	for step := range stepsCh {
		if step.Stage == StageNegotiation {
			require.NoError(t, f.engine.Cancel(runID))
			break
		}
	}
	for range stepsCh {
	}

	runErr := <-errorsCh
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, context.Canceled)

	run, err := f.engine.Get(runID)
	require.NoError(t, err)
	assert.Equal(t, StageFailed, run.Stage)

	assert.Error(t, f.engine.Cancel(runID)) // already gone
}

func TestCancel_UnknownRun(t *testing.T) {
	f := newFixture(t, testGenerator(2))
	assert.Error(t, f.engine.Cancel("nope"))
}

func TestRunStore_SaveGetList(t *testing.T) {
	s := NewInMemoryRunStore()
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, protocol.ErrNotFound)

	run := &Run{ID: "r1", Stage: StageInit, Steps: []Step{{Seq: 1, Stage: StageInit}}}
	require.NoError(t, s.Save(run))

	// Mutating the original must not leak into the store.
	run.Stage = StageFailed
	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, StageInit, got.Stage)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(&Run{ID: fmt.Sprintf("extra-%d", i)}))
	}
	all, err := s.List()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
