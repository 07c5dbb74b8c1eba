package snapshot

import (
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

// Stake is one exported ledger entry
type Stake struct {
	Delegator string
	Amount    *uint256.Int
}

// Ledger accumulates stake per delegator. It is safe for concurrent use;
// Add is the only mutation and runs under a single lock.
type Ledger struct {
	mu     sync.Mutex
	stakes map[string]*uint256.Int
}

// NewLedger returns an empty ledger
func NewLedger() *Ledger {
	return &Ledger{stakes: make(map[string]*uint256.Int)}
}

// Add adds amount to the delegator's total, inserting the delegator if it is new.
// On overflow the stored total is left untouched and ErrStakeOverflow is returned.
func (l *Ledger) Add(delegator string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.stakes[delegator]
	if !ok {
		l.stakes[delegator] = amount.Clone()
		return nil
	}

	total, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("%w: delegator %s: %s + %s", ErrStakeOverflow, delegator, current.Dec(), amount.Dec())
	}
	l.stakes[delegator] = total
	return nil
}

// Len returns the number of distinct delegators seen so far, including zero totals
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.stakes)
}

// Export returns every delegator with a positive total, ordered by delegator id
func (l *Ledger) Export() []Stake {
	l.mu.Lock()
	stakes := make([]Stake, 0, len(l.stakes))
	for delegator, amount := range l.stakes {
		if amount.IsZero() {
			continue
		}
		stakes = append(stakes, Stake{Delegator: delegator, Amount: amount.Clone()})
	}
	l.mu.Unlock()

	slices.SortFunc(stakes, func(a, b Stake) int {
		return strings.Compare(a.Delegator, b.Delegator)
	})
	return stakes
}

// ParseAmount parses a decimal, non-negative integer amount as sent by the node
func ParseAmount(s string) (*uint256.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a decimal integer", ErrInvalidAmount, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}

	amount, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("%w: %q does not fit in 256 bits", ErrInvalidAmount, s)
	}
	return amount, nil
}
