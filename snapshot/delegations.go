package snapshot

import (
	"context"
	"fmt"
)

// AggregateDelegations walks every delegation to validator and folds its balance into ledger.
// It returns the number of delegation records that were added.
func AggregateDelegations(ctx context.Context, api DelegationLister, validator string, limit uint64, ledger *Ledger) (int, error) {
	var folded int

	fetch := func(ctx context.Context, page PageRequest) (DelegationsPage, error) {
		resp, err := api.ValidatorDelegations(ctx, DelegationsRequest{Validator: validator, Page: page})
		if err != nil {
			return DelegationsPage{}, fmt.Errorf("%w: validator %s: %w", ErrDelegationQueryFailed, validator, err)
		}
		return resp, nil
	}

	fold := func(page DelegationsPage) error {
		for _, d := range page.Delegations {
			// no delegation body, nothing to attribute the balance to
			if d.Delegator == "" {
				continue
			}
			if d.Balance == nil {
				return fmt.Errorf("%w: validator %s, delegator %s", ErrMissingBalance, validator, d.Delegator)
			}

			amount, err := ParseAmount(d.Balance.Amount)
			if err != nil {
				return fmt.Errorf("validator %s, delegator %s: %w", validator, d.Delegator, err)
			}

			if err := ledger.Add(d.Delegator, amount); err != nil {
				return err
			}
			folded++
		}
		return nil
	}

	if err := Crawl(ctx, limit, fetch, fold); err != nil {
		return folded, err
	}
	return folded, nil
}
