package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/council/internal/models"
)

func claim(id, text string) models.ParaphrasedClaim {
	return models.ParaphrasedClaim{ClaimID: id, CanonicalText: text}
}

func review(claimID string, verdict models.Verdict, evidenceNeeded bool) models.ReviewItem {
	return models.ReviewItem{ClaimID: claimID, Verdict: verdict, Reason: "r", EvidenceNeeded: evidenceNeeded, Confidence: 0.8}
}

func TestUnanimousPositive(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A"), claim("a_claim_1", "B")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, false), review("a_claim_1", models.VerdictCorrect, false)}},
		{ReviewerLabel: "R2", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, false), review("a_claim_1", models.VerdictCorrect, false)}},
	}

	agg := Aggregate(claims, verdicts)

	assert.ElementsMatch(t, []string{"A", "B"}, agg.Supported)
	assert.Empty(t, agg.Rejected)
	assert.Empty(t, agg.Disputed)
	assert.Empty(t, agg.Uncertain)
	assert.Equal(t, 1.0, agg.ConsensusScore)
	assert.Equal(t, 0, agg.EvidenceNeededCount)
}

func TestDisputed(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, false)}},
		{ReviewerLabel: "R2", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictIncorrect, false)}},
	}

	agg := Aggregate(claims, verdicts)

	assert.Empty(t, agg.Supported)
	assert.Empty(t, agg.Rejected)
	assert.Equal(t, []string{"A"}, agg.Disputed)
	assert.Empty(t, agg.Uncertain)
	assert.Equal(t, 0.0, agg.ConsensusScore)
}

func TestStrictMajority(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, false)}},
		{ReviewerLabel: "R2", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, false)}},
		{ReviewerLabel: "R3", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictUncertain, false)}},
	}

	agg := Aggregate(claims, verdicts)

	require.Equal(t, []string{"A"}, agg.Supported)
	assert.Equal(t, 0.0, agg.ConsensusScore)
}

func TestEvidenceNeededCount(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A"), claim("a_claim_1", "B")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, true), review("a_claim_1", models.VerdictCorrect, true)}},
		{ReviewerLabel: "R2", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, false), review("a_claim_1", models.VerdictCorrect, false)}},
	}

	agg := Aggregate(claims, verdicts)

	assert.Equal(t, 2, agg.EvidenceNeededCount)
}

func TestConsensusNeutralWhenNoCrossCheck(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{review("a_claim_0", models.VerdictCorrect, false)}},
	}

	agg := Aggregate(claims, verdicts)

	assert.Equal(t, 0.5, agg.ConsensusScore)
}

func TestConsensusZeroWhenNoReviews(t *testing.T) {
	agg := Aggregate(nil, nil)
	assert.Equal(t, 0.0, agg.ConsensusScore)
	assert.Equal(t, 0, agg.TotalClaims)
}

func TestBucketDisjointness(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A"), claim("a_claim_1", "B"), claim("a_claim_2", "C")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{
			review("a_claim_0", models.VerdictCorrect, false),
			review("a_claim_1", models.VerdictIncorrect, false),
			review("a_claim_2", models.VerdictUncertain, false),
		}},
	}

	agg := Aggregate(claims, verdicts)

	seen := map[string]int{}
	for _, s := range agg.Supported {
		seen[s]++
	}
	for _, s := range agg.Rejected {
		seen[s]++
	}
	for _, s := range agg.Disputed {
		seen[s]++
	}
	for _, s := range agg.Uncertain {
		seen[s]++
	}
	for text, count := range seen {
		assert.Equalf(t, 1, count, "claim %q appeared in more than one bucket", text)
	}
}

func TestReviewsForUnknownClaimIDsAreIgnoredEntirely(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{
			review("a_claim_0", models.VerdictCorrect, false),
			review("bogus_id", models.VerdictIncorrect, false),
		}},
		{ReviewerLabel: "R2", Reviews: []models.ReviewItem{
			review("bogus_id", models.VerdictIncorrect, false),
		}},
	}

	agg := Aggregate(claims, verdicts)

	assert.Empty(t, agg.Rejected)
	assert.Empty(t, agg.Disputed)
	assert.Equal(t, 0.5, agg.ConsensusScore)
}

func TestInsertionOrderPreserved(t *testing.T) {
	claims := []models.ParaphrasedClaim{claim("a_claim_0", "A"), claim("a_claim_1", "B"), claim("a_claim_2", "C")}
	verdicts := []models.ReviewerVerdict{
		{ReviewerLabel: "R1", Reviews: []models.ReviewItem{
			review("a_claim_2", models.VerdictCorrect, false),
			review("a_claim_0", models.VerdictCorrect, false),
			review("a_claim_1", models.VerdictCorrect, false),
		}},
	}

	agg := Aggregate(claims, verdicts)

	assert.Equal(t, []string{"C", "A", "B"}, agg.Supported)
}
