package snapshot_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakesnap/snapshot"
)

func TestLedgerAdd(t *testing.T) {
	t.Parallel()

	t.Run("it inserts a new delegator with the given amount", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ledger := snapshot.NewLedger()

		// Act
		err := ledger.Add("juno1a", uint256.NewInt(100))

		// Assert
		require.NoError(t, err)
		assertExported(t, ledger, map[string]string{"juno1a": "100"})
	})

	t.Run("it sums repeated delegators instead of overwriting", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ledger := snapshot.NewLedger()

		// Act
		require.NoError(t, ledger.Add("juno1a", uint256.NewInt(100)))
		require.NoError(t, ledger.Add("juno1a", uint256.NewInt(50)))

		// Assert
		assertExported(t, ledger, map[string]string{"juno1a": "150"})
		assert.Equal(t, 1, ledger.Len())
	})

	t.Run("it does not keep a reference to the caller's amount", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ledger := snapshot.NewLedger()
		amount := uint256.NewInt(7)

		// Act
		require.NoError(t, ledger.Add("juno1a", amount))
		amount.SetUint64(1000)

		// Assert
		assertExported(t, ledger, map[string]string{"juno1a": "7"})
	})

	t.Run("it fails on overflow and keeps the previous total", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ledger := snapshot.NewLedger()
		maxUint256 := new(uint256.Int).SetAllOne()
		require.NoError(t, ledger.Add("juno1whale", maxUint256))

		// Act
		err := ledger.Add("juno1whale", uint256.NewInt(1))

		// Assert
		require.ErrorIs(t, err, snapshot.ErrStakeOverflow)
		assertExported(t, ledger, map[string]string{"juno1whale": maxUint256.Dec()})
	})

	t.Run("it is safe for concurrent writers", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ledger := snapshot.NewLedger()
		const writers, perWriter = 8, 250

		// Act
		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range perWriter {
					assert.NoError(t, ledger.Add("juno1shared", uint256.NewInt(1)))
				}
			}()
		}
		wg.Wait()

		// Assert
		assertExported(t, ledger, map[string]string{"juno1shared": fmt.Sprint(writers * perWriter)})
	})
}

func TestLedgerExport(t *testing.T) {
	t.Parallel()

	t.Run("it excludes delegators with a zero total", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ledger := snapshot.NewLedger()
		require.NoError(t, ledger.Add("juno1zero", uint256.NewInt(0)))
		require.NoError(t, ledger.Add("juno1zero", uint256.NewInt(0)))
		require.NoError(t, ledger.Add("juno1some", uint256.NewInt(3)))

		// Act
		stakes := ledger.Export()

		// Assert
		require.Len(t, stakes, 1)
		assert.Equal(t, "juno1some", stakes[0].Delegator)
		assert.Equal(t, 2, ledger.Len(), "Zero totals are tracked but not exported")
	})

	t.Run("it orders delegators by id", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ledger := snapshot.NewLedger()
		for _, id := range []string{"juno1c", "juno1a", "juno1b"} {
			require.NoError(t, ledger.Add(id, uint256.NewInt(1)))
		}

		// Act
		stakes := ledger.Export()

		// Assert
		assert.Equal(t, []string{"juno1a", "juno1b", "juno1c"}, delegatorsOf(stakes))
	})

	t.Run("it returns an empty export for an empty ledger", func(t *testing.T) {
		t.Parallel()

		// Act
		stakes := snapshot.NewLedger().Export()

		// Assert
		assert.Empty(t, stakes)
	})

	t.Run("it produces the same export regardless of accumulation order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		records := []struct {
			delegator string
			amount    uint64
		}{
			{"juno1a", 10}, {"juno1b", 20}, {"juno1a", 5}, {"juno1c", 0}, {"juno1b", 1}, {"juno1d", 42},
		}
		reference := snapshot.NewLedger()
		for _, r := range records {
			require.NoError(t, reference.Add(r.delegator, uint256.NewInt(r.amount)))
		}

		rng := rand.New(rand.NewPCG(1, 2))
		for range 20 {
			shuffled := append(records[:0:0], records...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			ledger := snapshot.NewLedger()
			for _, r := range shuffled {
				require.NoError(t, ledger.Add(r.delegator, uint256.NewInt(r.amount)))
			}

			// Assert
			assert.Equal(t, reference.Export(), ledger.Export())
		}
	})
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	t.Run("when the amount is valid", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			name  string
			input string
			want  string
		}{
			{name: "zero", input: "0", want: "0"},
			{name: "small", input: "150", want: "150"},
			{name: "beyond 64 bits", input: "340282366920938463463374607431768211455", want: "340282366920938463463374607431768211455"},
			{name: "leading zeros", input: "000042", want: "42"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				// Act
				amount, err := snapshot.ParseAmount(tc.input)

				// Assert
				require.NoError(t, err)
				assert.Equal(t, tc.want, amount.Dec())
			})
		}
	})

	t.Run("when the amount is invalid", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			name  string
			input string
		}{
			{name: "empty", input: ""},
			{name: "negative", input: "-1"},
			{name: "decimal point", input: "1.5"},
			{name: "not a number", input: "abc"},
			{name: "beyond 256 bits", input: "115792089237316195423570985008687907853269984665640564039457584007913129639936"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				// Act
				_, err := snapshot.ParseAmount(tc.input)

				// Assert
				assert.ErrorIs(t, err, snapshot.ErrInvalidAmount)
			})
		}
	})
}

// Domain-specific assertions

func assertExported(t *testing.T, ledger *snapshot.Ledger, want map[string]string) {
	t.Helper()

	got := make(map[string]string)
	for _, s := range ledger.Export() {
		got[s.Delegator] = s.Amount.Dec()
	}
	assert.Equal(t, want, got)
}

func delegatorsOf(stakes []snapshot.Stake) []string {
	ids := make([]string, len(stakes))
	for i, s := range stakes {
		ids[i] = s.Delegator
	}
	return ids
}
