package types

// WeightedTerm is a normalized term paired with its importance weight in (0, 1]
type WeightedTerm struct {
	Term   string
	Weight float64
}

// TermWeights converts a weighted term list into a term -> summed weight map
func TermWeights(terms []WeightedTerm) map[string]float64 {
	m := make(map[string]float64, len(terms))
	for _, t := range terms {
		m[t.Term] += t.Weight
	}
	return m
}

// TotalWeight sums the weights of a term list
func TotalWeight(terms []WeightedTerm) float64 {
	var total float64
	for _, t := range terms {
		total += t.Weight
	}
	return total
}
