// Package synthesis invokes the Chairman backend to produce the pipeline's
// final answer, falling back to a deterministic summary when the backend is
// unavailable, disabled, or returns unparseable output (spec §4.5).
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"dev.helix.agent/council/internal/invoker"
	"dev.helix.agent/council/internal/jsonrecovery"
	"dev.helix.agent/council/internal/models"
)

const (
	maxSupporting = 10
	maxUncertain  = 5
	maxRejected   = 5
	maxCitations  = 10

	fallbackSentinel      = "Unable to synthesize answer."
	fallbackReason        = "Unable to provide a confident answer due to insufficient verified claims."
	fallbackReasoningText = "Fallback synthesis: chairman unavailable or returned no usable answer; final answer derived directly from aggregated claims."
)

type chairmanWire struct {
	FinalAnswer      string             `json:"final_answer"`
	SupportingClaims []string           `json:"supporting_claims"`
	UncertainPoints  []string           `json:"uncertain_points"`
	RejectedClaims   []string           `json:"rejected_claims"`
	Citations        []models.Citation  `json:"citations"`
	Confidence       *float64           `json:"confidence"`
	ReasoningSummary string             `json:"reasoning_summary"`
}

// Synthesize invokes inv (when non-nil) to produce the final answer. A nil
// inv means synthesis is disabled and the deterministic fallback is used
// immediately, matching the "disabled" branch of spec §4.5's fallback
// condition.
func Synthesize(
	ctx context.Context,
	inv invoker.Invoker,
	query string,
	opinions []models.Stage1Opinion,
	claims []models.ParaphrasedClaim,
	verdicts []models.ReviewerVerdict,
	agg models.Aggregation,
) models.FinalAnswer {
	if inv == nil {
		return fallback(agg)
	}

	prompt := invoker.Prompt{Text: buildPrompt(query, opinions, claims, verdicts, agg), Temperature: 0.2}
	raw, err := inv.Generate(ctx, prompt)
	if err != nil {
		return fallback(agg)
	}

	var parsed chairmanWire
	if !jsonrecovery.Extract(raw, &parsed) || strings.TrimSpace(parsed.FinalAnswer) == "" {
		return fallback(agg)
	}

	confidence := 0.7
	if parsed.Confidence != nil {
		confidence = *parsed.Confidence
	}

	return models.FinalAnswer{
		FinalAnswer:      parsed.FinalAnswer,
		Supporting:       truncate(parsed.SupportingClaims, maxSupporting),
		Uncertain:        truncate(parsed.UncertainPoints, maxUncertain),
		Rejected:         truncate(parsed.RejectedClaims, maxRejected),
		Citations:        truncateCitations(parsed.Citations, maxCitations),
		Confidence:       confidence,
		ReasoningSummary: parsed.ReasoningSummary,
	}
}

// fallback builds the deterministic degradation answer directly from the
// aggregation, with no invoker call.
func fallback(agg models.Aggregation) models.FinalAnswer {
	var answer string
	if len(agg.Supported) > 0 {
		n := 3
		if len(agg.Supported) < n {
			n = len(agg.Supported)
		}
		answer = strings.Join(agg.Supported[:n], " ")
	} else {
		answer = fallbackSentinel
	}

	return models.FinalAnswer{
		FinalAnswer:      answer,
		Supporting:       truncate(agg.Supported, maxSupporting),
		Uncertain:        truncate(agg.Uncertain, maxUncertain),
		Rejected:         truncate(agg.Rejected, maxRejected),
		Citations:        nil,
		Confidence:       0.5,
		ReasoningSummary: reasoningFor(agg),
	}
}

func reasoningFor(agg models.Aggregation) string {
	if len(agg.Supported) > 0 {
		return fallbackReasoningText
	}
	return fallbackReason
}

func truncate(values []string, max int) []string {
	if values == nil {
		return []string{}
	}
	if len(values) > max {
		return values[:max]
	}
	return values
}

func truncateCitations(values []models.Citation, max int) []models.Citation {
	if values == nil {
		return []models.Citation{}
	}
	if len(values) > max {
		return values[:max]
	}
	return values
}

func buildPrompt(
	query string,
	opinions []models.Stage1Opinion,
	claims []models.ParaphrasedClaim,
	verdicts []models.ReviewerVerdict,
	agg models.Aggregation,
) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nExpert opinions:\n", query)
	for idx, op := range opinions {
		fmt.Fprintf(&b, "Expert %d: %s\n", idx+1, op.AnswerText)
	}

	b.WriteString("\nCanonical claims:\n")
	for _, c := range claims {
		fmt.Fprintf(&b, "- %s: %s\n", c.ClaimID, c.CanonicalText)
	}

	b.WriteString("\nReviewer verdicts:\n")
	for _, v := range verdicts {
		for _, item := range v.Reviews {
			fmt.Fprintf(&b, "- %s [%s]: %s -> %s\n", v.ReviewerLabel, item.ClaimID, item.Verdict, item.Reason)
		}
	}

	fmt.Fprintf(&b,
		"\nAggregation: %d total, %d supported, %d rejected, %d disputed, %d uncertain, consensus=%.3f\n",
		agg.TotalClaims, len(agg.Supported), len(agg.Rejected), len(agg.Disputed), len(agg.Uncertain), agg.ConsensusScore,
	)

	b.WriteString("\nRespond with a JSON object of the form {\"final_answer\": \"...\", " +
		"\"supporting_claims\": [...], \"uncertain_points\": [...], \"rejected_claims\": [...], " +
		"\"citations\": [...], \"confidence\": 0.0, \"reasoning_summary\": \"...\"}.\n")
	return b.String()
}
