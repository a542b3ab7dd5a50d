package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.agent/council/internal/invoker"
	"dev.helix.agent/council/internal/models"
)

type fakeInvoker struct {
	label    string
	response string
	err      error
}

func (f *fakeInvoker) Label() string { return f.label }
func (f *fakeInvoker) Generate(ctx context.Context, prompt invoker.Prompt) (string, error) {
	return f.response, f.err
}
func (f *fakeInvoker) HealthCheck(ctx context.Context) bool { return f.err == nil }

func TestReviewParsesValidItems(t *testing.T) {
	inv := &fakeInvoker{label: "Reviewer_A", response: `{"reviews": [
		{"claim_id": "llama-7b_claim_0", "verdict": "correct", "reason": "matches known facts", "confidence": 0.9},
		{"claim_id": "llama-7b_claim_1", "verdict": "INCORRECT", "reason": "wrong", "evidence_needed": true}
	]}`}

	verdict, cause := Review(context.Background(), inv, "Reviewer_A", "query", nil)

	require.NoError(t, cause)
	require.Len(t, verdict.Reviews, 2)
	assert.Equal(t, models.VerdictCorrect, verdict.Reviews[0].Verdict)
	assert.Equal(t, 0.9, verdict.Reviews[0].Confidence)
	assert.False(t, verdict.Reviews[0].EvidenceNeeded)
	assert.Equal(t, models.VerdictIncorrect, verdict.Reviews[1].Verdict)
	assert.True(t, verdict.Reviews[1].EvidenceNeeded)
	assert.Equal(t, 0.5, verdict.Reviews[1].Confidence)
}

func TestReviewDiscardsInvalidItems(t *testing.T) {
	inv := &fakeInvoker{label: "Reviewer_A", response: `{"reviews": [
		{"claim_id": "c0", "verdict": "MAYBE", "reason": "bad verdict"},
		{"claim_id": "", "verdict": "CORRECT", "reason": "missing id"},
		{"claim_id": "c1", "verdict": "CORRECT", "reason": ""}
	]}`}

	verdict, cause := Review(context.Background(), inv, "Reviewer_A", "query", nil)

	require.NoError(t, cause)
	assert.Empty(t, verdict.Reviews)
}

func TestReviewFallsBackOnInvokerError(t *testing.T) {
	claims := []models.ParaphrasedClaim{{ClaimID: "c0"}, {ClaimID: "c1"}}
	inv := &fakeInvoker{label: "Reviewer_A", err: errors.New("timeout")}

	verdict, cause := Review(context.Background(), inv, "Reviewer_A", "query", claims)

	require.Error(t, cause)
	require.Len(t, verdict.Reviews, 2)
	assert.True(t, verdict.Meta.Fallback)
	for _, r := range verdict.Reviews {
		assert.Equal(t, models.VerdictUncertain, r.Verdict)
		assert.Equal(t, 0.3, r.Confidence)
		assert.True(t, r.EvidenceNeeded)
		assert.Equal(t, "Unable to verify due to reviewer error", r.Reason)
	}
}

func TestReviewFallsBackOnUnparseableResponse(t *testing.T) {
	claims := []models.ParaphrasedClaim{{ClaimID: "c0"}}
	inv := &fakeInvoker{label: "Reviewer_A", response: "garbage"}

	verdict, cause := Review(context.Background(), inv, "Reviewer_A", "query", claims)

	require.NoError(t, cause)
	require.Len(t, verdict.Reviews, 1)
	assert.True(t, verdict.Meta.Fallback)
}
