// Package review has each configured reviewer invoker pass judgment on the
// canonical claim set (spec §4.4).
package review

import (
	"context"
	"fmt"
	"strings"

	"dev.helix.agent/council/internal/invoker"
	"dev.helix.agent/council/internal/jsonrecovery"
	"dev.helix.agent/council/internal/models"
)

type reviewItemWire struct {
	ClaimID        string      `json:"claim_id"`
	Verdict        string      `json:"verdict"`
	Reason         string      `json:"reason"`
	EvidenceNeeded interface{} `json:"evidence_needed"`
	Confidence     interface{} `json:"confidence"`
}

type reviewsResponse struct {
	Reviews []reviewItemWire `json:"reviews"`
}

// Review has inv judge every claim in claims against query, returning a
// fully populated ReviewerVerdict. It never fails outright: on invoker or
// parse error it degrades to the uncertain-fallback described in spec §4.4.
// The second return value is the raw invoker error that triggered a
// fallback, if any — it never invalidates the returned verdict, but lets a
// caller classify a whole-stage failure by its last underlying cause.
func Review(ctx context.Context, inv invoker.Invoker, reviewerLabel, query string, claims []models.ParaphrasedClaim) (models.ReviewerVerdict, error) {
	prompt := invoker.Prompt{Text: buildPrompt(query, claims), Temperature: 0.0}

	raw, err := inv.Generate(ctx, prompt)
	if err != nil {
		return fallback(reviewerLabel, claims), err
	}

	var parsed reviewsResponse
	if !jsonrecovery.Extract(raw, &parsed) || parsed.Reviews == nil {
		return fallback(reviewerLabel, claims), nil
	}

	reviews := make([]models.ReviewItem, 0, len(parsed.Reviews))
	for _, item := range parsed.Reviews {
		review, ok := validate(item)
		if ok {
			reviews = append(reviews, review)
		}
	}

	return models.ReviewerVerdict{
		ReviewerLabel: reviewerLabel,
		Reviews:       reviews,
		Meta:          models.ReviewerMeta{TotalReviewed: len(reviews)},
	}, nil
}

// validate enforces the required-field and verdict-vocabulary checks and
// applies the documented defaults for evidence_needed/confidence.
func validate(item reviewItemWire) (models.ReviewItem, bool) {
	if item.ClaimID == "" || item.Reason == "" || item.Verdict == "" {
		return models.ReviewItem{}, false
	}
	verdict, ok := models.ValidVerdict(item.Verdict)
	if !ok {
		return models.ReviewItem{}, false
	}

	evidenceNeeded := false
	if b, ok := item.EvidenceNeeded.(bool); ok {
		evidenceNeeded = b
	}

	confidence := 0.5
	switch v := item.Confidence.(type) {
	case float64:
		confidence = v
	}

	return models.ReviewItem{
		ClaimID:        item.ClaimID,
		Verdict:        verdict,
		Reason:         item.Reason,
		EvidenceNeeded: evidenceNeeded,
		Confidence:     confidence,
	}, true
}

// fallback marks every input claim UNCERTAIN, per spec §4.4's degradation
// path for a failed or unparseable reviewer response.
func fallback(reviewerLabel string, claims []models.ParaphrasedClaim) models.ReviewerVerdict {
	reviews := make([]models.ReviewItem, 0, len(claims))
	for _, c := range claims {
		reviews = append(reviews, models.ReviewItem{
			ClaimID:        c.ClaimID,
			Verdict:        models.VerdictUncertain,
			Reason:         "Unable to verify due to reviewer error",
			EvidenceNeeded: true,
			Confidence:     0.3,
		})
	}
	return models.ReviewerVerdict{
		ReviewerLabel: reviewerLabel,
		Reviews:       reviews,
		Meta:          models.ReviewerMeta{Fallback: true, TotalReviewed: len(reviews)},
	}
}

func buildPrompt(query string, claims []models.ParaphrasedClaim) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\nEvaluate each claim as CORRECT, INCORRECT, or UNCERTAIN. "+
		"Respond with a JSON object of the form "+
		"{\"reviews\": [{\"claim_id\": \"...\", \"verdict\": \"...\", \"reason\": \"...\", "+
		"\"evidence_needed\": false, \"confidence\": 0.0}]}.\n\nClaims:\n", query)
	for _, c := range claims {
		fmt.Fprintf(&b, "- %s: %s\n", c.ClaimID, c.CanonicalText)
	}
	return b.String()
}
