package recon

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Candidate is a ledger transaction considered for matching against an
// external transaction. The caller (application layer) selects candidates
// within the configured date window; the matcher only scores them.
type Candidate struct {
	LedgerTxnID uuid.UUID
	AmountCents int64
	Currency    string
	PostedAt    time.Time
	Description string
}

// MatcherConfig tunes the fuzzy scoring. Weights must sum to 1 so the
// combined confidence stays within [0,1].
type MatcherConfig struct {
	WindowDays      int     // Date window used for date-proximity scoring
	MinConfidence   float64 // Candidates scoring below this stay unmatched
	AmountWeight    float64
	DateWeight      float64
	ReferenceWeight float64
}

// DefaultMatcherConfig returns the default matcher tuning
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		WindowDays:      7,
		MinConfidence:   0.75,
		AmountWeight:    0.5,
		DateWeight:      0.3,
		ReferenceWeight: 0.2,
	}
}

// MatchOutcome is the result of evaluating one external transaction
type MatchOutcome struct {
	// Match is set when a single exact or sufficiently confident fuzzy
	// candidate was found
	Match *Match
	// Discrepancy is set when the engine refuses to auto-pick (e.g.
	// multiple exact candidates)
	Discrepancy *Discrepancy
	// Neither set: the transaction stays unmatched for a later run
}

// Matcher scores external transactions against ledger candidates. Exact
// amount+currency matches win with confidence 1.0; otherwise a bounded
// fuzzy score combines amount delta, date proximity, and reference overlap.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher creates a matcher with the given configuration
func NewMatcher(cfg MatcherConfig) *Matcher {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultMatcherConfig().WindowDays
	}
	if cfg.MinConfidence <= 0 || cfg.MinConfidence > 1 {
		cfg.MinConfidence = DefaultMatcherConfig().MinConfidence
	}
	total := cfg.AmountWeight + cfg.DateWeight + cfg.ReferenceWeight
	if total <= 0 {
		def := DefaultMatcherConfig()
		cfg.AmountWeight = def.AmountWeight
		cfg.DateWeight = def.DateWeight
		cfg.ReferenceWeight = def.ReferenceWeight
	} else if math.Abs(total-1) > 1e-9 {
		// Normalize so confidence stays bounded
		cfg.AmountWeight /= total
		cfg.DateWeight /= total
		cfg.ReferenceWeight /= total
	}
	return &Matcher{cfg: cfg}
}

// Evaluate matches one external transaction against the candidate set.
// Candidates with a different currency are ignored.
func (m *Matcher) Evaluate(ext *ExternalTransaction, candidates []Candidate) (MatchOutcome, error) {
	inCurrency := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Currency == string(ext.Currency) {
			inCurrency = append(inCurrency, c)
		}
	}

	exact := make([]Candidate, 0, 1)
	for _, c := range inCurrency {
		if c.AmountCents == ext.AmountCents {
			exact = append(exact, c)
		}
	}

	switch {
	case len(exact) == 1:
		match, err := NewMatch(ext.ID, exact[0].LedgerTxnID, 1.0, MatchMethodExact, 0)
		if err != nil {
			return MatchOutcome{}, err
		}
		return MatchOutcome{Match: match}, nil

	case len(exact) > 1:
		// Multiple exact candidates are a discrepancy, not an auto-pick
		ids := make([]string, len(exact))
		for i, c := range exact {
			ids[i] = c.LedgerTxnID.String()
		}
		disc, err := NewDiscrepancy(ext.ID, DiscrepancyKindAmbiguousMatch, ext.AmountCents,
			fmt.Sprintf("%d exact candidates in window: %s", len(exact), strings.Join(ids, ", ")))
		if err != nil {
			return MatchOutcome{}, err
		}
		return MatchOutcome{Discrepancy: disc}, nil
	}

	// Fuzzy: best-scoring candidate above the confidence floor
	var best *Candidate
	bestScore := 0.0
	for i := range inCurrency {
		score := m.score(ext, inCurrency[i])
		if score > bestScore {
			bestScore = score
			best = &inCurrency[i]
		}
	}

	if best == nil || bestScore < m.cfg.MinConfidence {
		return MatchOutcome{}, nil
	}

	match, err := NewMatch(ext.ID, best.LedgerTxnID, bestScore, MatchMethodFuzzy, ext.AmountCents-best.AmountCents)
	if err != nil {
		return MatchOutcome{}, err
	}
	return MatchOutcome{Match: match}, nil
}

// score combines amount delta, date proximity, and reference overlap into
// a bounded [0,1] confidence
func (m *Matcher) score(ext *ExternalTransaction, c Candidate) float64 {
	amountScore := m.amountScore(ext.AmountCents, c.AmountCents)
	dateScore := m.dateScore(ext.OccurredAt, c.PostedAt)
	refScore := referenceOverlap(ext.Reference, c.Description)

	score := m.cfg.AmountWeight*amountScore + m.cfg.DateWeight*dateScore + m.cfg.ReferenceWeight*refScore
	return math.Min(1, math.Max(0, score))
}

// amountScore is 1 for identical amounts, decaying with the relative delta
func (m *Matcher) amountScore(extCents, candCents int64) float64 {
	delta := math.Abs(float64(extCents - candCents))
	base := math.Max(math.Abs(float64(extCents)), 1)
	return math.Max(0, 1-delta/base)
}

// dateScore is 1 for same-day, decaying linearly across the window
func (m *Matcher) dateScore(extAt, candAt time.Time) float64 {
	days := math.Abs(extAt.Sub(candAt).Hours()) / 24
	return math.Max(0, 1-days/float64(m.cfg.WindowDays))
}

// referenceOverlap computes token overlap between reference texts
func referenceOverlap(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, tok := range ta {
		set[tok] = true
	}
	overlap := 0
	for _, tok := range tb {
		if set[tok] {
			overlap++
			delete(set, tok)
		}
	}

	union := len(ta) + len(tb) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:#-")
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
