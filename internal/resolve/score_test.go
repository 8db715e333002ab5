package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_IdenticalAfterNormalization(t *testing.T) {
	assert.Equal(t, 1.0, Score("Acme Robotics, Inc.", "ACME ROBOTICS"))
	assert.Equal(t, 1.0, Score("The Acme Group", "Acme Holdings"))
}

func TestScore_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Score("", "Acme"))
	assert.Equal(t, 0.0, Score("Acme", ""))
	assert.Equal(t, 0.0, Score("", ""))
}

func TestScore_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Acme Robotics", "Acme Robotic Systems"},
		{"Quantum Widget Co", "Quantum Widgets LLC"},
		{"Advanced Micro Devices", "AMD"},
	}
	for _, p := range pairs {
		assert.Equal(t, Score(p[0], p[1]), Score(p[1], p[0]), "Score(%q, %q)", p[0], p[1])
	}
}

func TestScore_NearDuplicateAboveAutoMerge(t *testing.T) {
	// The canonical dedup scenario: same company, slightly different spelling.
	score := Score("Acme Robotics Inc", "Acme Robotic")
	assert.GreaterOrEqual(t, score, 0.85, "near-duplicate should clear the auto-merge threshold")
}

func TestScore_UnrelatedNamesBelowFloor(t *testing.T) {
	score := Score("Quantum Widget Manufacturing", "Pacific Seafood Distributors")
	assert.Less(t, score, 0.60)
}

func TestScore_AcronymBoost(t *testing.T) {
	// Same three-letter acronym, dissimilar spellings: the boost alone should
	// put the pair at or above its contribution.
	boosted := Score("General Dynamics Information", "Global Data Insights")
	assert.GreaterOrEqual(t, boosted, AcronymBoost)

	unboosted := Score("General Dynamics Information", "Pacific Data Insights")
	assert.Greater(t, boosted, unboosted)
}

func TestScore_ShortNamePenalty(t *testing.T) {
	// "abc" vs "abd": raw ratio is 2*2/6 ≈ 0.667, scaled by the penalty.
	score := Score("abc", "abd")
	assert.InDelta(t, (2.0*2.0/6.0)*ShortNamePenalty, score, 1e-9)
}

func TestScore_NeverAboveOne(t *testing.T) {
	// Acronym boost on an already-high ratio must clamp at 1.
	score := Score("Alpha Beta Gamma", "Alpha Beta Gamme")
	assert.LessOrEqual(t, score, 1.0)
}

func TestSequenceRatio(t *testing.T) {
	assert.Equal(t, 1.0, sequenceRatio("acme", "acme"))
	assert.Equal(t, 0.0, sequenceRatio("abc", "xyz"))
	assert.Equal(t, 0.0, sequenceRatio("", ""))
	// difflib reference value: SequenceMatcher(None, "abcd", "bcde").ratio() == 0.75
	assert.InDelta(t, 0.75, sequenceRatio("abcd", "bcde"), 1e-9)
}
