// Package trust computes reputation scores and trust tiers from transaction
// history. All functions are pure: they take a protocol.TrustProfile by
// value and return the updated profile, keeping every recomputation
// auditable and testable in isolation.
package trust

import "github.com/hupe1980/procuremesh/protocol"

const (
	// PriorWeight is the pseudo-count of neutral observations blended into
	// the reputation score. A brand-new agent starts at 0.5 and converges
	// to its observed success rate as transaction volume grows.
	PriorWeight = 5.0

	// NeutralPrior is the reputation assumed before any evidence exists.
	NeutralPrior = 0.5

	// AttestationThreshold is the peer-attestation count required for
	// promotion from self_declared to peer_attested.
	AttestationThreshold = 3
)

// Outcome classifies a settled transaction for reputation purposes.
type Outcome string

const (
	// OutcomeSuccess counts toward the success rate.
	OutcomeSuccess Outcome = "success"
	// OutcomeDispute counts against the agent.
	OutcomeDispute Outcome = "dispute"
	// OutcomeNeutral adds volume without moving the success counters.
	OutcomeNeutral Outcome = "neutral"
)

// Apply folds one transaction outcome into the profile and recomputes the
// Bayesian-smoothed reputation score. The tier is never changed by ordinary
// transaction outcomes.
func Apply(p protocol.TrustProfile, o Outcome) protocol.TrustProfile {
	p.TotalTransactions++
	switch o {
	case OutcomeSuccess:
		p.SuccessfulTransactions++
	case OutcomeDispute:
		p.DisputeCount++
	}
	p.ReputationScore = reputation(p.SuccessfulTransactions, p.TotalTransactions)
	return p
}

// Attest records one peer attestation and promotes the agent to
// peer_attested once the threshold is reached. Higher tiers are untouched:
// the ladder is monotonic and attestations alone never reach the top rung.
func Attest(p protocol.TrustProfile) protocol.TrustProfile {
	p.PeerAttestations++
	if p.Tier == protocol.TierSelfDeclared && p.PeerAttestations >= AttestationThreshold {
		p.Tier = protocol.TierPeerAttested
	}
	return p
}

// Verify applies an explicit authority-verification event. This is the only
// path to authority_verified; transaction volume never promotes there.
func Verify(p protocol.TrustProfile) protocol.TrustProfile {
	p.Tier = protocol.TierAuthorityVerified
	return p
}

// Revoke applies an authority revocation event, the only way a tier can
// regress. Reputation counters are retained for audit.
func Revoke(p protocol.TrustProfile) protocol.TrustProfile {
	p.Tier = protocol.TierSelfDeclared
	return p
}

// reputation is the Bayesian-smoothed success rate:
// (successful + PriorWeight*NeutralPrior) / (total + PriorWeight).
func reputation(successful, total int) float64 {
	score := (float64(successful) + PriorWeight*NeutralPrior) / (float64(total) + PriorWeight)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
