package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatchParallelCollectsAllOutcomesInOrder(t *testing.T) {
	calls := []Call[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, errors.New("boom") },
		func(ctx context.Context) (int, error) { return 3, nil },
	}

	outcomes := Dispatch(context.Background(), calls)

	require.Len(t, outcomes, 3)
	assert.Equal(t, 1, outcomes[0].Value)
	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.Equal(t, 3, outcomes[2].Value)
}

func TestDispatchOneFailingSiblingDoesNotCancelOthers(t *testing.T) {
	calls := []Call[string]{
		func(ctx context.Context) (string, error) { return "", errors.New("fails immediately") },
		func(ctx context.Context) (string, error) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "ok", nil
		},
	}

	outcomes := Dispatch(context.Background(), calls)

	assert.Error(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)
	assert.Equal(t, "ok", outcomes[1].Value)
}

func TestDispatchSequentialRunsInOrder(t *testing.T) {
	var order []int
	calls := []Call[int]{
		func(ctx context.Context) (int, error) { order = append(order, 1); return 1, nil },
		func(ctx context.Context) (int, error) { order = append(order, 2); return 2, nil },
	}

	outcomes := DispatchSequential(context.Background(), calls)

	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, outcomes[0].Value)
	assert.Equal(t, 2, outcomes[1].Value)
}

func TestSuccessesAndFailures(t *testing.T) {
	outcomes := []Outcome[int]{{Value: 1}, {Err: errors.New("x")}, {Value: 2}}

	assert.Equal(t, []int{1, 2}, Successes(outcomes))
	assert.Len(t, Failures(outcomes), 1)
}

func TestRequireAtLeastOne(t *testing.T) {
	allFailed := []Outcome[int]{{Err: errors.New("a")}, {Err: errors.New("b")}}
	assert.Error(t, RequireAtLeastOne[int]("stage1", allFailed))

	oneSucceeded := []Outcome[int]{{Err: errors.New("a")}, {Value: 1}}
	assert.NoError(t, RequireAtLeastOne[int]("stage1", oneSucceeded))

	assert.Error(t, RequireAtLeastOne[int]("stage1", nil))
}
