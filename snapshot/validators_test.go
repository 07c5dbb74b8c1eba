package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakesnap/snapshot"
)

func TestEnumerateValidators(t *testing.T) {
	t.Parallel()

	t.Run("it collects validators across pages in response order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := newFakeChain(validatorPages(
			[]snapshot.Validator{validator("junovaloper1b"), validator("junovaloper1a")},
			[]snapshot.Validator{validator("junovaloper1c")},
		)...)

		// Act
		validators, err := snapshot.EnumerateValidators(t.Context(), chain, "", 2)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"junovaloper1b", "junovaloper1a", "junovaloper1c"}, validators)
		assert.Equal(t, 2, chain.validatorRequestCount())
	})

	t.Run("it skips jailed validators", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := newFakeChain(validatorPages(
			[]snapshot.Validator{jailed("junovaloper1jailed"), validator("junovaloper1ok")},
		)...)

		// Act
		validators, err := snapshot.EnumerateValidators(t.Context(), chain, "", 100)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"junovaloper1ok"}, validators)
	})

	t.Run("it forwards the status filter and page limit on every request", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := newFakeChain(validatorPages(
			[]snapshot.Validator{validator("junovaloper1a")},
			[]snapshot.Validator{validator("junovaloper1b")},
		)...)

		// Act
		_, err := snapshot.EnumerateValidators(t.Context(), chain, "BOND_STATUS_BONDED", 50)

		// Assert
		require.NoError(t, err)
		require.Len(t, chain.validatorRequests, 2)
		for _, req := range chain.validatorRequests {
			assert.Equal(t, "BOND_STATUS_BONDED", req.Status)
			assert.Equal(t, uint64(50), req.Page.Limit)
		}
		assert.Nil(t, chain.validatorRequests[0].Page.Key, "First request should carry no key")
		assert.Equal(t, pageKey(1), chain.validatorRequests[1].Page.Key)
	})

	t.Run("it returns an empty set when the chain has no validators", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := newFakeChain()

		// Act
		validators, err := snapshot.EnumerateValidators(t.Context(), chain, "", 100)

		// Assert
		require.NoError(t, err)
		assert.NotNil(t, validators)
		assert.Empty(t, validators)
	})

	t.Run("it returns nothing when a page fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		chain := newFakeChain().failingValidators(errNodeUnavailable)

		// Act
		validators, err := snapshot.EnumerateValidators(t.Context(), chain, "", 100)

		// Assert
		require.ErrorIs(t, err, snapshot.ErrValidatorQueryFailed)
		require.ErrorIs(t, err, errNodeUnavailable)
		assert.Nil(t, validators)
	})
}
