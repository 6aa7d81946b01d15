// Package procuremesh provides a high-level façade over the procurement
// workflow engine and its collaborating services (agent registry,
// negotiation bandit, BOM generation, compliance, logistics & logging).
// Most applications interact with this package by:
//  1. Creating a Mesh via New() (optionally overriding default in-memory services)
//  2. Registering supplier agents (RegisterSupplier) and other participants
//  3. Running procurements asynchronously (Procure) or synchronously (ProcureSync)
//
// The façade delegates orchestration to workflow.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply an LLM-backed BOM
// generator, durable run storage and a structured logger.
package procuremesh

import (
	"context"
	"time"

	"github.com/hupe1980/procuremesh/bandit"
	"github.com/hupe1980/procuremesh/bom"
	"github.com/hupe1980/procuremesh/compliance"
	"github.com/hupe1980/procuremesh/logging"
	"github.com/hupe1980/procuremesh/logistics"
	"github.com/hupe1980/procuremesh/protocol"
	"github.com/hupe1980/procuremesh/registry"
	"github.com/hupe1980/procuremesh/supplier"
	"github.com/hupe1980/procuremesh/trust"
	"github.com/hupe1980/procuremesh/workflow"
)

// Options configures the Mesh instance.
type Options struct {
	// Generator turns free-text requests into bills of materials. Defaults
	// to the deterministic catalog-backed generator; supply the openai or
	// anthropic subpackage implementations for LLM-backed generation.
	Generator bom.Generator

	// Bandit drives discount negotiation. Defaults to an epsilon-greedy
	// learner with the standard arm layout.
	Bandit *bandit.NegotiationBandit

	// Compliance evaluates regulatory feasibility. Defaults to the built-in
	// rulebook checker.
	Compliance compliance.Checker

	// Logistics plans shipping. Defaults to the built-in route planner.
	Logistics logistics.Planner

	// RunStore persists workflow runs (defaults to in-memory).
	RunStore workflow.RunStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// NegotiationTimeout bounds each supplier negotiation round trip.
	NegotiationTimeout time.Duration

	// StrictCompliance excludes options with failed compliance verdicts
	// from recommendations instead of carrying them flagged.
	StrictCompliance bool
}

// Mesh is the high-level façade aggregating the workflow engine and its
// services.
type Mesh struct {
	opts      Options
	registry  *registry.InMemoryRegistry
	bandit    *bandit.NegotiationBandit
	directory *workflow.Directory
	engine    *workflow.Engine
}

// New creates a new Mesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		Generator:          bom.NewStaticGenerator(),
		Bandit:             bandit.New(),
		Compliance:         compliance.NewRuleChecker(),
		Logistics:          logistics.NewRoutePlanner(),
		RunStore:           workflow.NewInMemoryRunStore(),
		Logger:             logging.NoOpLogger{},
		NegotiationTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reg := registry.NewInMemoryRegistry()
	dir := workflow.NewDirectory()

	eng := workflow.New(func(o *workflow.Options) {
		o.Registry = reg
		o.Bandit = opts.Bandit
		o.Generator = opts.Generator
		o.Suppliers = dir
		o.Compliance = opts.Compliance
		o.Logistics = opts.Logistics
		o.Store = opts.RunStore
		o.Logger = opts.Logger
		o.NegotiationTimeout = opts.NegotiationTimeout
		o.StrictCompliance = opts.StrictCompliance
	})

	return &Mesh{
		opts:      opts,
		registry:  reg,
		bandit:    opts.Bandit,
		directory: dir,
		engine:    eng,
	}
}

// Registry exposes the underlying agent registry for direct queries.
func (m *Mesh) Registry() *registry.InMemoryRegistry { return m.registry }

// RegisterAgent adds any participant record to the registry and returns its id.
func (m *Mesh) RegisterAgent(rec protocol.AgentRecord) (string, error) {
	return m.registry.Register(rec)
}

// RegisterSupplier registers an in-process supplier agent and wires it into
// the negotiation directory.
func (m *Mesh) RegisterSupplier(a *supplier.Agent) (string, error) {
	id, err := m.registry.Register(a.Record())
	if err != nil {
		return "", err
	}
	m.directory.Add(id, a)
	return id, nil
}

// Discover queries the registry with the given filter.
func (m *Mesh) Discover(f registry.Filter) []protocol.AgentRecord {
	return m.registry.Discover(f)
}

// ProcureSync runs a procurement workflow synchronously and returns the
// final run record.
func (m *Mesh) ProcureSync(ctx context.Context, req workflow.Request) (*workflow.Run, error) {
	return m.engine.Execute(ctx, req)
}

// Procure starts a procurement workflow asynchronously, returning the run
// id plus step and error channels.
func (m *Mesh) Procure(ctx context.Context, req workflow.Request) (string, <-chan workflow.Step, <-chan error, error) {
	return m.engine.ExecuteStream(ctx, req)
}

// Cancel aborts a running procurement by run id.
func (m *Mesh) Cancel(runID string) error { return m.engine.Cancel(runID) }

// Run returns the persisted state of a procurement run.
func (m *Mesh) Run(runID string) (*workflow.Run, error) { return m.engine.Get(runID) }

// RecordTransaction folds a settled transaction outcome into a supplier's
// trust profile.
func (m *Mesh) RecordTransaction(supplierID string, o trust.Outcome) (protocol.TrustProfile, error) {
	return m.registry.RecordOutcome(supplierID, o)
}

// Insights returns everything the negotiation bandit has learned.
func (m *Mesh) Insights() []bandit.SupplierStats { return m.bandit.Insights() }

// SupplierInsights returns learned negotiation statistics for one supplier.
func (m *Mesh) SupplierInsights(supplierID string) bandit.SupplierStats {
	return m.bandit.SupplierInsights(supplierID)
}
