package risk

import (
	"math"
	"sort"
)

// maxAttributions bounds the displayed explanation to the strongest features.
const maxAttributions = 10

// Direction reports which way a feature pushed the prediction.
type Direction string

const (
	DirectionIncreasesRisk Direction = "increases_risk"
	DirectionDecreasesRisk Direction = "decreases_risk"
)

// AttributionEntry is one row of the ranked explanation view. Derived,
// immutable, never persisted.
type AttributionEntry struct {
	Feature string
	Value   float64
	// NormalizedMagnitude is |Value| relative to the largest |Value| among
	// the selected entries, in [0,1]. Zero when every selected value is zero.
	NormalizedMagnitude float64
	Direction           Direction
}

// Rank orders a feature-attribution map by absolute contribution, descending,
// and truncates to the strongest ten. Ties keep ascending feature-name order;
// Go maps carry no iteration order, so name order is the deterministic stand-in
// for the source mapping's order.
func Rank(explanation map[string]float64) []AttributionEntry {
	if len(explanation) == 0 {
		return nil
	}

	features := make([]string, 0, len(explanation))
	for feature := range explanation {
		features = append(features, feature)
	}
	sort.Strings(features)

	entries := make([]AttributionEntry, 0, len(features))
	for _, feature := range features {
		value := explanation[feature]
		direction := DirectionDecreasesRisk
		if value > 0 {
			direction = DirectionIncreasesRisk
		}
		entries = append(entries, AttributionEntry{
			Feature:   feature,
			Value:     value,
			Direction: direction,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].Value) > math.Abs(entries[j].Value)
	})

	if len(entries) > maxAttributions {
		entries = entries[:maxAttributions]
	}

	// Normalize against the largest selected magnitude so the strongest
	// feature renders at full scale.
	var maxAbs float64
	for _, e := range entries {
		if abs := math.Abs(e.Value); abs > maxAbs {
			maxAbs = abs
		}
	}
	if maxAbs > 0 {
		for i := range entries {
			entries[i].NormalizedMagnitude = math.Abs(entries[i].Value) / maxAbs
		}
	}

	return entries
}
