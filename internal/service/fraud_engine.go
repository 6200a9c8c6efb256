package service

import (
	"hash/fnv"
	"math"

	"usdc-settlement-ledger/internal/core/ports"
)

// DeterministicFraudEngine scores settlements without any external model
// call: a small feature embedding compared against a fixed store of
// suspicious patterns, combined with rule-based heuristics. Same input, same
// score, always.
type DeterministicFraudEngine struct{}

func NewFraudEngine() *DeterministicFraudEngine { return &DeterministicFraudEngine{} }

type suspiciousPattern struct {
	name string
	vec  [4]float64
}

// Pattern store. Dimensions: amount magnitude, reference hash, wallet hash,
// direction weight.
var suspiciousPatterns = []suspiciousPattern{
	{name: "large_round_onramp", vec: [4]float64{0.9, 0.2, 0.2, 0.2}},
	{name: "replay_reference", vec: [4]float64{0.2, 0.95, 0.1, 0.2}},
	{name: "wallet_hotspot", vec: [4]float64{0.2, 0.2, 0.95, 0.2}},
	{name: "transfer_churn", vec: [4]float64{0.6, 0.2, 0.2, 1.0}},
}

// Score produces a risk score in 0..100.
func (e *DeterministicFraudEngine) Score(input ports.ScoreInput) uint8 {
	features := embed(input)

	maxSim := 0.0
	for _, p := range suspiciousPatterns {
		if sim := cosine(features, p.vec); sim > maxSim {
			maxSim = sim
		}
	}

	score := int(math.Round(maxSim * 60))

	// Round-number anomalies (amounts are USDC base units, 6 decimals).
	if input.Amount%1_000_000 == 0 {
		score += 10
	}

	// Volume spike buckets.
	switch {
	case input.Amount >= 5_000_000_000: // 5,000 USDC
		score += 35
	case input.Amount >= 1_000_000_000: // 1,000 USDC
		score += 20
	}

	// Low-entropy reference (one character repeated).
	if isLowEntropyReference(input.Reference) {
		score += 20
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return uint8(score)
}

func embed(input ports.ScoreInput) [4]float64 {
	amount := float64(input.Amount)
	if amount < 1 {
		amount = 1
	}
	a := math.Log10(amount)

	var d float64
	switch input.Direction {
	case ports.DirectionOnramp:
		d = 0.2
	case ports.DirectionOfframp:
		d = 0.6
	default:
		d = 1.0
	}

	return [4]float64{a / 10, stableHash01(input.Reference), stableHash01(input.StudentWallet), d}
}

func cosine(a, b [4]float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// isLowEntropyReference reports whether the reference is a single byte
// repeated 8 or more times.
func isLowEntropyReference(ref string) bool {
	if len(ref) < 8 {
		return false
	}
	for i := 1; i < len(ref); i++ {
		if ref[i] != ref[0] {
			return false
		}
	}
	return true
}

// stableHash01 maps a string to [0,1) via FNV-1a 32-bit.
func stableHash01(s string) float64 {
	h := fnv.New32a()
	h.Write([]byte(s)) //nolint:errcheck
	return float64(h.Sum32()%10_000) / 10_000
}
