package classify

import "math"

// Entropy computes the Shannon entropy of s in bits per character over
// its character frequency distribution. Pure and deterministic; a
// single repeated character yields 0.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}

	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
