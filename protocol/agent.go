package protocol

import (
	"strings"

	"github.com/google/uuid"
)

// AgentRole categorizes a participant in the procurement network.
type AgentRole string

const (
	// RoleSupplier identifies agents that respond to RFQs with quotes.
	RoleSupplier AgentRole = "supplier"
	// RoleLogistics identifies agents that plan shipments.
	RoleLogistics AgentRole = "logistics"
	// RoleCompliance identifies agents that evaluate regulatory feasibility.
	RoleCompliance AgentRole = "compliance"
	// RoleOrchestrator identifies the coordinating buyer-side agent.
	RoleOrchestrator AgentRole = "orchestrator"
)

// TrustTier is the three-level trust ladder gating how much weight an
// agent's claims receive. Tiers are ordered; promotion is monotonic and
// regression happens only through an explicit authority revocation.
type TrustTier string

const (
	// TierSelfDeclared is the entry tier: the agent's claims are unverified.
	TierSelfDeclared TrustTier = "self_declared"
	// TierPeerAttested is reached once enough peers vouch for the agent.
	TierPeerAttested TrustTier = "peer_attested"
	// TierAuthorityVerified is granted only by an explicit authority event.
	TierAuthorityVerified TrustTier = "authority_verified"
)

// Rank returns the ordinal position of the tier for comparisons.
func (t TrustTier) Rank() int {
	switch t {
	case TierPeerAttested:
		return 1
	case TierAuthorityVerified:
		return 2
	default:
		return 0
	}
}

// Certification records a third-party attestation held by an agent.
type Certification struct {
	Authority     string `json:"authority"`
	Certification string `json:"certification"`
	CertID        string `json:"cert_id,omitempty"`
	ValidUntil    string `json:"valid_until,omitempty"`
}

// TrustProfile aggregates an agent's transaction history into a reputation
// score and trust tier. The score and dispute rate are always derived from
// the counters, never stored independently, so they cannot drift.
type TrustProfile struct {
	Tier                   TrustTier `json:"tier"`
	ReputationScore        float64   `json:"reputation_score"`
	TotalTransactions      int       `json:"total_transactions"`
	SuccessfulTransactions int       `json:"successful_transactions"`
	DisputeCount           int       `json:"dispute_count"`
	PeerAttestations       int       `json:"peer_attestations"`
}

// NewTrustProfile returns the neutral starting profile for an unknown agent:
// self-declared tier with the 0.5 reputation prior.
func NewTrustProfile() TrustProfile {
	return TrustProfile{Tier: TierSelfDeclared, ReputationScore: 0.5}
}

// DisputeRate recomputes disputes / max(total, 1) from the counters.
func (p TrustProfile) DisputeRate() float64 {
	total := p.TotalTransactions
	if total < 1 {
		total = 1
	}
	return float64(p.DisputeCount) / float64(total)
}

// AgentRecord is the identity card of a network participant: who it is,
// what it can do, where it operates and how much it has earned the right to
// be trusted. Records are created on registration and never deleted; agents
// leaving the network are marked inactive so history stays auditable.
type AgentRecord struct {
	ID              string          `json:"agent_id"`
	Name            string          `json:"name"`
	Role            AgentRole       `json:"role"`
	Description     string          `json:"description,omitempty"`
	Region          string          `json:"region,omitempty"`
	Country         string          `json:"country,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	Capabilities    []string        `json:"capabilities,omitempty"`
	Certifications  []Certification `json:"certifications,omitempty"`
	AvgLeadTimeDays int             `json:"avg_lead_time_days,omitempty"`
	MaxDiscountPct  float64         `json:"max_discount_pct,omitempty"`
	Endpoint        string          `json:"endpoint,omitempty"`
	Trust           TrustProfile    `json:"trust"`
	Active          bool            `json:"active"`
}

// HasCapability reports whether any declared capability contains the query
// (case-insensitive substring match, so category-style capabilities like
// "power" match "power_electronics").
func (r AgentRecord) HasCapability(query string) bool {
	q := strings.ToLower(query)
	for _, c := range r.Capabilities {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

// InRegion reports whether the query matches the agent's region or country.
func (r AgentRecord) InRegion(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.Region), q) ||
		strings.Contains(strings.ToLower(r.Country), q)
}

// Clone returns a deep copy safe for independent mutation.
func (r AgentRecord) Clone() AgentRecord {
	c := r
	c.Capabilities = append([]string(nil), r.Capabilities...)
	c.Certifications = append([]Certification(nil), r.Certifications...)
	return c
}

// NewAgentID generates a short unique agent identifier.
func NewAgentID() string { return uuid.NewString()[:8] }
