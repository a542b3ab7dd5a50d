// Package aggregate is the pure reduction over reviewer verdicts: bucket
// each claim by cross-reviewer agreement and derive a consensus score
// (spec §4.5).
package aggregate

import (
	"math"

	"dev.helix.agent/council/internal/models"
)

// Aggregate reduces claims and verdicts into the final Aggregation. It is a
// pure function: identical inputs always produce an identical output.
func Aggregate(claims []models.ParaphrasedClaim, verdicts []models.ReviewerVerdict) models.Aggregation {
	claimText := make(map[string]string, len(claims))
	for _, c := range claims {
		claimText[c.ClaimID] = c.CanonicalText
	}

	// Reviews whose claim_id does not name one of the paraphrased claims are
	// ignored entirely — they neither occupy a bucket nor count toward the
	// consensus score.
	var order []string
	reviewsByClaim := make(map[string][]models.ReviewItem)
	for _, verdict := range verdicts {
		for _, r := range verdict.Reviews {
			if _, known := claimText[r.ClaimID]; !known {
				continue
			}
			if _, seen := reviewsByClaim[r.ClaimID]; !seen {
				order = append(order, r.ClaimID)
			}
			reviewsByClaim[r.ClaimID] = append(reviewsByClaim[r.ClaimID], r)
		}
	}

	result := models.Aggregation{TotalClaims: len(claims)}

	for _, claimID := range order {
		text := claimText[claimID]
		reviews := reviewsByClaim[claimID]

		var correct, incorrect, uncertain int
		evidenceNeeded := false
		for _, r := range reviews {
			switch r.Verdict {
			case models.VerdictCorrect:
				correct++
			case models.VerdictIncorrect:
				incorrect++
			case models.VerdictUncertain:
				uncertain++
			}
			if r.EvidenceNeeded {
				evidenceNeeded = true
			}
		}
		if evidenceNeeded {
			result.EvidenceNeededCount++
		}

		total := len(reviews)
		switch {
		case correct == total:
			result.Supported = append(result.Supported, text)
		case incorrect == total:
			result.Rejected = append(result.Rejected, text)
		case uncertain == total:
			result.Uncertain = append(result.Uncertain, text)
		case correct > incorrect && correct > uncertain:
			result.Supported = append(result.Supported, text)
		case incorrect > correct && incorrect > uncertain:
			result.Rejected = append(result.Rejected, text)
		default:
			result.Disputed = append(result.Disputed, text)
		}
	}

	result.ConsensusScore = consensusScore(reviewsByClaim)
	return result
}

// consensusScore computes unanimous/counted over claims reviewed by at
// least two reviewers; 0.5 when no claim was cross-reviewed, 0.0 when there
// are no reviewed claims at all.
func consensusScore(reviewsByClaim map[string][]models.ReviewItem) float64 {
	if len(reviewsByClaim) == 0 {
		return 0.0
	}

	var unanimous, counted int
	for _, reviews := range reviewsByClaim {
		if len(reviews) < 2 {
			continue
		}
		counted++
		if allAgree(reviews) {
			unanimous++
		}
	}

	if counted == 0 {
		return 0.5
	}
	return round3(float64(unanimous) / float64(counted))
}

func allAgree(reviews []models.ReviewItem) bool {
	first := reviews[0].Verdict
	for _, r := range reviews[1:] {
		if r.Verdict != first {
			return false
		}
	}
	return true
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
