// Package paraphrase extracts canonical, atomic claims from a Stage-1
// opinion's free text (spec §4.3), one opinion at a time.
package paraphrase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"dev.helix.agent/council/internal/invoker"
	"dev.helix.agent/council/internal/jsonrecovery"
	"dev.helix.agent/council/internal/models"
)

type claimsResponse struct {
	Claims []string `json:"claims"`
}

// Extract turns one Stage-1 opinion's answer text into a slice of canonical
// claims, calling inv once. It never returns an error: on any invoker or
// parse failure it degrades to the sentence-split fallback so the pipeline
// can always proceed with whatever claims are recoverable.
func Extract(ctx context.Context, inv invoker.Invoker, modelLabel, answerText string) []models.ParaphrasedClaim {
	prompt := invoker.Prompt{Text: buildPrompt(answerText), Temperature: 0.0}

	raw, err := inv.Generate(ctx, prompt)
	if err != nil {
		return fallback(modelLabel, answerText)
	}

	var parsed claimsResponse
	if !jsonrecovery.Extract(raw, &parsed) || parsed.Claims == nil {
		return fallback(modelLabel, answerText)
	}

	claims := make([]models.ParaphrasedClaim, 0, len(parsed.Claims))
	for idx, text := range parsed.Claims {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		claims = append(claims, models.ParaphrasedClaim{
			ClaimID:       claimID(modelLabel, idx),
			OriginModel:   modelLabel,
			OriginalText:  answerText,
			CanonicalText: text,
			WordCount:     len(strings.Fields(text)),
		})
	}
	return claims
}

// fallback splits answerText on '.', keeps the first five non-empty
// segments, and emits those longer than 10 characters as claims — spec
// §4.3's degradation path when the paraphrase backend fails or returns
// unparseable output.
func fallback(modelLabel, answerText string) []models.ParaphrasedClaim {
	rawSegments := strings.Split(answerText, ".")
	segments := make([]string, 0, len(rawSegments))
	for _, s := range rawSegments {
		s = strings.TrimSpace(s)
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) > 5 {
		segments = segments[:5]
	}

	claims := make([]models.ParaphrasedClaim, 0, len(segments))
	for idx, sentence := range segments {
		if len(sentence) <= 10 {
			continue
		}
		text := sentence + "."
		claims = append(claims, models.ParaphrasedClaim{
			ClaimID:       claimID(modelLabel, idx),
			OriginModel:   modelLabel,
			OriginalText:  answerText,
			CanonicalText: text,
			WordCount:     len(strings.Fields(text)),
		})
	}
	return claims
}

// claimID builds "<lowercased origin_model>_claim_<index>" (spec glossary).
func claimID(modelLabel string, idx int) string {
	return strings.ToLower(modelLabel) + "_claim_" + strconv.Itoa(idx)
}

func buildPrompt(answerText string) string {
	return fmt.Sprintf(
		"Extract the atomic factual claims made in the following answer. "+
			"Respond with a JSON object of the form {\"claims\": [\"...\"]}.\n\nAnswer:\n%s",
		answerText,
	)
}
