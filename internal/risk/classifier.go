// Package risk holds the pure derivations that turn raw scoring output into
// a displayable view: tier classification and attribution ranking. Nothing
// here touches I/O or shared state, so all of it is safe from any goroutine.
package risk

// Tier is the coarse classification of a default probability.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tier boundaries in percent. Boundary values belong to the higher tier:
// exactly 20 is Medium, exactly 50 is High.
const (
	mediumThresholdPercent = 20
	highThresholdPercent   = 50
)

// Classify maps a default probability, expressed as a percentage, to a tier.
func Classify(probabilityPercent float64) Tier {
	switch {
	case probabilityPercent < mediumThresholdPercent:
		return TierLow
	case probabilityPercent < highThresholdPercent:
		return TierMedium
	default:
		return TierHigh
	}
}

// ClassifyProbability maps a probability in [0,1] to a tier. The scoring
// service reports probabilities in unit scale; display uses percent.
func ClassifyProbability(probability float64) Tier {
	return Classify(probability * 100)
}
