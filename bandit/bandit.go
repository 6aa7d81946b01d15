// Package bandit implements the per-supplier epsilon-greedy learner that
// picks discount asks during negotiation and learns from the outcomes.
package bandit

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// DefaultArms are the candidate discount percentages a negotiation can ask
// for. Arms above a supplier's declared maximum are excluded per decision.
var DefaultArms = []float64{5, 10, 15, 20, 25}

// DefaultEpsilon is the exploration rate: the fraction of decisions that
// pick a uniformly random eligible arm instead of the best-known one.
const DefaultEpsilon = 0.1

// Decision classifies a supplier's response to a discount ask.
type Decision string

const (
	// DecisionAccept means the supplier granted the full ask.
	DecisionAccept Decision = "accept"
	// DecisionCounter means the supplier granted part of the ask.
	DecisionCounter Decision = "counter"
	// DecisionReject means the supplier granted nothing.
	DecisionReject Decision = "reject"
	// DecisionNoResponse means the supplier never answered in time.
	DecisionNoResponse Decision = "no_response"
)

// Outcome is one settled negotiation round fed back into the learner.
type Outcome struct {
	DiscountAsked    float64
	DiscountReceived float64
	Decision         Decision
}

// ArmStats is the learned state of one arm for one supplier.
type ArmStats struct {
	Arm        float64 `json:"arm"`
	Pulls      int     `json:"pulls"`
	MeanReward float64 `json:"mean_reward"`
}

// SupplierStats is a read-only snapshot of everything learned about a
// single supplier, arms in ascending order.
type SupplierStats struct {
	SupplierID string     `json:"supplier_id"`
	Arms       []ArmStats `json:"arms"`
}

// Options configures a NegotiationBandit.
type Options struct {
	// Epsilon is the exploration rate in [0, 1]. Defaults to DefaultEpsilon.
	Epsilon float64
	// Arms are the candidate discount percentages. Defaults to DefaultArms.
	Arms []float64
	// Seed makes the exploration draws reproducible. Zero seeds from the
	// global source, which is fine for production use.
	Seed int64
}

type armState struct {
	pulls int
	mean  float64
}

type supplierState struct {
	mu   sync.Mutex
	arms map[float64]*armState
}

// NegotiationBandit learns, per supplier, which discount ask yields the
// best negotiation outcomes. State is keyed by supplier so one supplier's
// behavior never leaks into another's policy. Safe for concurrent use.
type NegotiationBandit struct {
	epsilon float64
	arms    []float64

	mu        sync.Mutex
	rng       *rand.Rand
	suppliers map[string]*supplierState
}

// New constructs a bandit.
func New(optFns ...func(o *Options)) *NegotiationBandit {
	opts := Options{
		Epsilon: DefaultEpsilon,
		Arms:    DefaultArms,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	arms := append([]float64(nil), opts.Arms...)
	sort.Float64s(arms)

	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewSource(opts.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return &NegotiationBandit{
		epsilon:   opts.Epsilon,
		arms:      arms,
		rng:       rng,
		suppliers: make(map[string]*supplierState),
	}
}

// Suggest picks the discount percentage to ask the given supplier for,
// restricted to arms at or below the supplier's declared maximum. When the
// cap excludes every arm, the lowest arm clamped to the cap is used so the
// ask never exceeds what the supplier could possibly grant. The policy is
// epsilon-greedy with an untried-arms-first sweep: explore with probability
// epsilon, otherwise play the first arm with no pulls, otherwise the arm
// with the best observed mean (ties resolve to the lower discount).
func (b *NegotiationBandit) Suggest(supplierID string, maxDiscountPct float64) float64 {
	candidates := b.eligibleArms(maxDiscountPct)
	if len(candidates) == 0 {
		low := b.arms[0]
		if maxDiscountPct > 0 && low > maxDiscountPct {
			return maxDiscountPct
		}
		return low
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	st := b.supplier(supplierID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if b.draw() < b.epsilon {
		return candidates[b.intn(len(candidates))]
	}
	for _, arm := range candidates {
		if s, ok := st.arms[arm]; !ok || s.pulls == 0 {
			return arm
		}
	}
	best := candidates[0]
	bestMean := st.arms[best].mean
	for _, arm := range candidates[1:] {
		if m := st.arms[arm].mean; m > bestMean {
			best, bestMean = arm, m
		}
	}
	return best
}

// RecordOutcome folds one settled negotiation round into the supplier's arm
// statistics. The ask is bucketed to the nearest configured arm so clamped
// asks still credit the arm that produced them.
func (b *NegotiationBandit) RecordOutcome(supplierID string, o Outcome) {
	arm := b.nearestArm(o.DiscountAsked)
	reward := Reward(o)

	st := b.supplier(supplierID)

	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.arms[arm]
	if !ok {
		s = &armState{}
		st.arms[arm] = s
	}
	s.pulls++
	s.mean += (reward - s.mean) / float64(s.pulls)
}

// Reward maps a negotiation outcome to a scalar in [-0.1, 1.0]. A full
// acceptance is worth at least as much as any counter, a counter scales
// with the fraction of the ask actually granted, a rejection carries a
// small penalty and silence is worthless but not punished.
func Reward(o Outcome) float64 {
	frac := 0.0
	if o.DiscountAsked > 0 {
		frac = o.DiscountReceived / o.DiscountAsked
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
	}
	switch o.Decision {
	case DecisionAccept:
		return 0.5 + 0.5*frac
	case DecisionCounter:
		return 0.5 * frac
	case DecisionReject:
		return -0.1
	default:
		return 0
	}
}

// SupplierInsights returns the learned arm statistics for one supplier.
// Suppliers the bandit has never negotiated with yield an empty snapshot.
func (b *NegotiationBandit) SupplierInsights(supplierID string) SupplierStats {
	b.mu.Lock()
	st, ok := b.suppliers[supplierID]
	b.mu.Unlock()

	out := SupplierStats{SupplierID: supplierID}
	if !ok {
		return out
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, arm := range b.arms {
		if s, ok := st.arms[arm]; ok {
			out.Arms = append(out.Arms, ArmStats{Arm: arm, Pulls: s.pulls, MeanReward: s.mean})
		}
	}
	return out
}

// Insights returns snapshots for every supplier the bandit has learned
// about, ordered by supplier id.
func (b *NegotiationBandit) Insights() []SupplierStats {
	b.mu.Lock()
	ids := make([]string, 0, len(b.suppliers))
	for id := range b.suppliers {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	sort.Strings(ids)
	out := make([]SupplierStats, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.SupplierInsights(id))
	}
	return out
}

// Reset discards everything learned about the given supplier.
func (b *NegotiationBandit) Reset(supplierID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.suppliers, supplierID)
}

// Restore seeds the learner with previously exported statistics, replacing
// any state held for the suppliers present in the snapshot. Arms not in the
// configured arm set are dropped.
func (b *NegotiationBandit) Restore(snapshots []SupplierStats) {
	for _, snap := range snapshots {
		st := b.supplier(snap.SupplierID)
		st.mu.Lock()
		st.arms = make(map[float64]*armState)
		for _, a := range snap.Arms {
			if !b.hasArm(a.Arm) {
				continue
			}
			st.arms[a.Arm] = &armState{pulls: a.Pulls, mean: a.MeanReward}
		}
		st.mu.Unlock()
	}
}

func (b *NegotiationBandit) supplier(id string) *supplierState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.suppliers[id]
	if !ok {
		st = &supplierState{arms: make(map[float64]*armState)}
		b.suppliers[id] = st
	}
	return st
}

func (b *NegotiationBandit) eligibleArms(maxDiscountPct float64) []float64 {
	if maxDiscountPct <= 0 {
		return b.arms
	}
	var out []float64
	for _, arm := range b.arms {
		if arm <= maxDiscountPct {
			out = append(out, arm)
		}
	}
	return out
}

func (b *NegotiationBandit) nearestArm(ask float64) float64 {
	best := b.arms[0]
	bestDist := math.Abs(ask - best)
	for _, arm := range b.arms[1:] {
		if d := math.Abs(ask - arm); d < bestDist {
			best, bestDist = arm, d
		}
	}
	return best
}

func (b *NegotiationBandit) hasArm(arm float64) bool {
	for _, a := range b.arms {
		if a == arm {
			return true
		}
	}
	return false
}

func (b *NegotiationBandit) draw() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64()
}

func (b *NegotiationBandit) intn(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Intn(n)
}
