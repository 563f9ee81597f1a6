package types

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchOutcomeConcurrentUse(t *testing.T) {
	t.Parallel()

	var outcome BatchOutcome
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(odd bool) {
			defer wg.Done()
			if odd {
				outcome.AddFailure("line", errors.New("boom"))
				return
			}
			outcome.AddSuccess("line")
		}(i%2 == 1)
	}
	wg.Wait()

	require.Len(t, outcome.Succeeded(), 5)
	require.Len(t, outcome.Failed(), 5)
	require.False(t, outcome.OK())
	require.Error(t, outcome.Err())
}

func TestBatchOutcomeEmptyIsOK(t *testing.T) {
	t.Parallel()

	var outcome BatchOutcome
	require.True(t, outcome.OK())
	require.NoError(t, outcome.Err())
}

func TestBottlesCost(t *testing.T) {
	t.Parallel()

	selections := []BottleSelection{
		{BottleID: "b1", UnitPrice: 20, Quantity: 2},
		{BottleID: "b2", UnitPrice: 15, Quantity: 1},
	}
	require.InEpsilon(t, 55.0, BottlesCost(selections), 1e-9)
	require.Zero(t, BottlesCost(nil))
}
