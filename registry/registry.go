// Package registry stores agent identity records and answers discovery
// queries with deterministic, trust- and deadline-aware ranking.
package registry

import (
	"sort"
	"sync"

	"github.com/hupe1980/procuremesh/protocol"
	"github.com/hupe1980/procuremesh/trust"
)

// Filter narrows a discovery query. Zero values mean "no constraint".
// All supplied predicates must match.
type Filter struct {
	// Role restricts results to agents with this exact role.
	Role protocol.AgentRole
	// Capability matches agents declaring a capability containing this
	// string (case-insensitive).
	Capability string
	// Region matches the agent's region or country (case-insensitive
	// substring).
	Region string
	// MinTrust excludes agents whose reputation score is below this value.
	MinTrust float64
	// DeadlineDays, when positive, enables deadline-aware ranking: agents
	// whose average lead time would provably miss the deadline sort below
	// every agent that can meet it, regardless of reputation.
	DeadlineDays int
}

// InMemoryRegistry is a process-local agent registry safe for concurrent
// use. Registration replaces whole records atomically, so discovery reads
// never observe a half-written record; returned records are clones to keep
// internal state immutable from the outside.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	agents map[string]protocol.AgentRecord
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{agents: make(map[string]protocol.AgentRecord)}
}

// Register upserts an agent record keyed by its id and returns the id.
// Re-registering an existing agent updates its declared identity but
// preserves the earned trust profile, which only trust-model updates may
// change. A missing name or role is rejected before any state mutation.
func (r *InMemoryRegistry) Register(rec protocol.AgentRecord) (string, error) {
	if rec.Name == "" {
		return "", &protocol.ValidationError{Field: "name", Message: "required"}
	}
	if rec.Role == "" {
		return "", &protocol.ValidationError{Field: "role", Message: "required"}
	}
	if rec.ID == "" {
		rec.ID = protocol.NewAgentID()
	}
	rec = rec.Clone()
	rec.Active = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.agents[rec.ID]; ok {
		rec.Trust = existing.Trust
	} else if rec.Trust == (protocol.TrustProfile{}) {
		rec.Trust = protocol.NewTrustProfile()
	}
	r.agents[rec.ID] = rec
	return rec.ID, nil
}

// Get returns a clone of the record for the given agent id.
func (r *InMemoryRegistry) Get(id string) (protocol.AgentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.agents[id]
	if !ok {
		return protocol.AgentRecord{}, protocol.ErrNotFound
	}
	return rec.Clone(), nil
}

// Deactivate marks an agent inactive. The record is retained for audit;
// inactive agents are excluded from discovery.
func (r *InMemoryRegistry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[id]
	if !ok {
		return protocol.ErrNotFound
	}
	rec.Active = false
	r.agents[id] = rec
	return nil
}

// All returns clones of every record, active or not, in unspecified order.
func (r *InMemoryRegistry) All() []protocol.AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		out = append(out, rec.Clone())
	}
	return out
}

// Len returns the number of registered agents.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Discover returns active agents matching every supplied predicate, ranked
// by the composite key described on Rank. An empty result is not an error;
// callers decide whether "no candidates" is reportable.
func (r *InMemoryRegistry) Discover(f Filter) []protocol.AgentRecord {
	r.mu.RLock()
	var matched []protocol.AgentRecord
	for _, rec := range r.agents {
		if !rec.Active {
			continue
		}
		if f.Role != "" && rec.Role != f.Role {
			continue
		}
		if f.Capability != "" && !rec.HasCapability(f.Capability) {
			continue
		}
		if f.Region != "" && !rec.InRegion(f.Region) {
			continue
		}
		if rec.Trust.ReputationScore < f.MinTrust {
			continue
		}
		matched = append(matched, rec.Clone())
	}
	r.mu.RUnlock()

	Rank(matched, f.DeadlineDays)
	return matched
}

// RecordOutcome folds a settled transaction outcome into the agent's trust
// profile and returns the updated profile.
func (r *InMemoryRegistry) RecordOutcome(id string, o trust.Outcome) (protocol.TrustProfile, error) {
	return r.updateTrust(id, func(p protocol.TrustProfile) protocol.TrustProfile {
		return trust.Apply(p, o)
	})
}

// Attest records a peer attestation for the agent.
func (r *InMemoryRegistry) Attest(id string) (protocol.TrustProfile, error) {
	return r.updateTrust(id, trust.Attest)
}

// VerifyAuthority applies an explicit authority-verification event.
func (r *InMemoryRegistry) VerifyAuthority(id string) (protocol.TrustProfile, error) {
	return r.updateTrust(id, trust.Verify)
}

// RevokeVerification applies an authority revocation event.
func (r *InMemoryRegistry) RevokeVerification(id string) (protocol.TrustProfile, error) {
	return r.updateTrust(id, trust.Revoke)
}

func (r *InMemoryRegistry) updateTrust(id string, fn func(protocol.TrustProfile) protocol.TrustProfile) (protocol.TrustProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[id]
	if !ok {
		return protocol.TrustProfile{}, protocol.ErrNotFound
	}
	rec.Trust = fn(rec.Trust)
	r.agents[id] = rec
	return rec.Trust, nil
}

// Rank sorts records in place by the composite discovery key. Without a
// deadline: reputation descending, then agent id ascending. With a positive
// deadline, deadline feasibility dominates reputation: every agent whose
// average lead time fits the deadline sorts above every agent that would
// provably miss it; within each class the order is reputation descending,
// lead time ascending, agent id ascending. The id tiebreak makes the order
// total and stable across runs.
func Rank(records []protocol.AgentRecord, deadlineDays int) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if deadlineDays > 0 {
			af := a.AvgLeadTimeDays <= deadlineDays
			bf := b.AvgLeadTimeDays <= deadlineDays
			if af != bf {
				return af
			}
		}
		if a.Trust.ReputationScore != b.Trust.ReputationScore {
			return a.Trust.ReputationScore > b.Trust.ReputationScore
		}
		if deadlineDays > 0 && a.AvgLeadTimeDays != b.AvgLeadTimeDays {
			return a.AvgLeadTimeDays < b.AvgLeadTimeDays
		}
		return a.ID < b.ID
	})
}
