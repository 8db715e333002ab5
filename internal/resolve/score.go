package resolve

// Scoring constants. These, together with Thresholds, are the entire tuning
// surface of the resolution policy.
const (
	// AcronymBoost is added when two names match on acronym form.
	AcronymBoost = 0.3
	// ShortNamePenalty scales the score when either normalized name is very
	// short, guarding against trivial matches between short strings.
	ShortNamePenalty = 0.7
	shortNameMax     = 3
)

// Score computes the confidence in [0,1] that two company names denote the
// same entity. Symmetric, deterministic, and pure.
func Score(nameA, nameB string) float64 {
	if nameA == "" || nameB == "" {
		return 0
	}

	normA := NormalizeName(nameA)
	normB := NormalizeName(nameB)

	if normA == normB {
		return 1.0
	}

	score := sequenceRatio(normA, normB)

	if acronymMatch(normA, normB) {
		score += AcronymBoost
	}
	if score > 1 {
		score = 1
	}

	if len([]rune(normA)) <= shortNameMax || len([]rune(normB)) <= shortNameMax {
		score *= ShortNamePenalty
	}

	if score < 0 {
		score = 0
	}
	return score
}

// sequenceRatio is the Ratcliff/Obershelp similarity ratio:
// 2 * matching characters / total characters, where matches are counted over
// the recursively-found longest common blocks.
func sequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return 2 * float64(matchCount(ra, rb)) / float64(total)
}

func matchCount(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchCount(a[:ai], b[:bi]) +
		matchCount(a[ai+size:], b[bi+size:])
}

// longestMatch finds the longest block of runes common to a and b, preferring
// the earliest occurrence in a, then in b.
func longestMatch(a, b []rune) (bestA, bestB, bestSize int) {
	positions := make(map[rune][]int, len(b))
	for j, r := range b {
		positions[r] = append(positions[r], j)
	}

	// lengths[j] is the length of the match ending at a[i-1], b[j].
	lengths := map[int]int{}
	for i, r := range a {
		next := map[int]int{}
		for _, j := range positions[r] {
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA, bestB, bestSize = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return bestA, bestB, bestSize
}
