package snapshot

import "fmt"

// RewriteDelegators maps every delegator id through rewrite and re-aggregates the result,
// so ids that collapse onto the same rewritten id are summed. Order is the same as Export.
func RewriteDelegators(stakes []Stake, rewrite func(string) (string, error)) ([]Stake, error) {
	ledger := NewLedger()
	for _, s := range stakes {
		id, err := rewrite(s.Delegator)
		if err != nil {
			return nil, fmt.Errorf("rewrite delegator %s: %w", s.Delegator, err)
		}
		if err := ledger.Add(id, s.Amount); err != nil {
			return nil, err
		}
	}
	return ledger.Export(), nil
}
