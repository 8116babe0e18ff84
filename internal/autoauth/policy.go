package autoauth

import (
	"github.com/shopspring/decimal"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

// Decision is a policy verdict for one expense against the project's bills
type Decision struct {
	Match bool
	// Bill is the matched bill; nil when Match is false
	Bill *expense.Bill
	// Score is the winning bill's score, for the audit metadata
	Score float64
	// Basis names the signals that contributed to the match
	Basis []string
}

// MatchPolicy decides whether a pending expense is backed by a known bill.
// Policies are pure: no I/O, no clock, same inputs give the same decision.
type MatchPolicy interface {
	Evaluate(e *expense.Expense, bills []*expense.Bill) Decision
}

// WeightedPolicyConfig tunes the default scorer
type WeightedPolicyConfig struct {
	// AmountTolerance is the relative amount deviation still counted as a
	// match, e.g. 0.01 for one percent
	AmountTolerance float64
	// DateWindowDays is the maximum bill-to-transaction date distance that
	// still scores
	DateWindowDays int
	// Threshold is the minimum score that authorizes
	Threshold float64
}

// DefaultWeightedPolicyConfig returns the standard tuning
func DefaultWeightedPolicyConfig() WeightedPolicyConfig {
	return WeightedPolicyConfig{
		AmountTolerance: 0.01,
		DateWindowDays:  7,
		Threshold:       1.0,
	}
}

// Weights of the individual signals. A reference match alone clears the
// default threshold; vendor or amount alone does not.
const (
	weightReference = 1.0
	weightVendor    = 0.35
	weightAmount    = 0.5
	weightDate      = 0.25
)

// WeightedPolicy is the default matching policy: it scores each candidate
// bill on reference equality, vendor identity, amount proximity and date
// proximity, and matches when the best score clears the threshold.
type WeightedPolicy struct {
	cfg WeightedPolicyConfig
}

// NewWeightedPolicy creates the default policy
func NewWeightedPolicy(cfg WeightedPolicyConfig) *WeightedPolicy {
	if cfg.Threshold <= 0 {
		cfg = DefaultWeightedPolicyConfig()
	}
	return &WeightedPolicy{cfg: cfg}
}

// Evaluate scores every bill and returns the best clearing candidate
func (p *WeightedPolicy) Evaluate(e *expense.Expense, bills []*expense.Bill) Decision {
	best := Decision{}
	for _, bill := range bills {
		score, basis := p.score(e, bill)
		if score > best.Score {
			best = Decision{Bill: bill, Score: score, Basis: basis}
		}
	}
	if best.Score >= p.cfg.Threshold {
		best.Match = true
		return best
	}
	return Decision{}
}

func (p *WeightedPolicy) score(e *expense.Expense, bill *expense.Bill) (float64, []string) {
	var score float64
	var basis []string

	if e.BillReference != "" && e.BillReference == bill.Reference {
		score += weightReference
		basis = append(basis, "reference")
	}
	if e.VendorID != "" && e.VendorID == bill.VendorID {
		score += weightVendor
		basis = append(basis, "vendor")
	}
	if amountsClose(e.Amount, bill.Amount, p.cfg.AmountTolerance) {
		score += weightAmount
		basis = append(basis, "amount")
	}
	if days := bill.DateProximityDays(e.TransactionDate); days >= 0 && days <= p.cfg.DateWindowDays {
		score += weightDate
		basis = append(basis, "date")
	}

	return score, basis
}

// amountsClose reports whether two amounts are within the relative tolerance
// of each other, anchored on the bill amount
func amountsClose(a, b decimal.Decimal, tolerance float64) bool {
	if b.IsZero() {
		return a.IsZero()
	}
	diff := a.Sub(b).Abs()
	limit := b.Abs().Mul(decimal.NewFromFloat(tolerance))
	return diff.LessThanOrEqual(limit)
}
