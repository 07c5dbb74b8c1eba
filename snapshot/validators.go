package snapshot

import (
	"context"
	"fmt"
)

// EnumerateValidators lists every non-jailed validator with the given status, in response order.
// An empty status means all statuses. Either the full set is returned or an error and nothing.
func EnumerateValidators(ctx context.Context, api ValidatorLister, status string, limit uint64) ([]string, error) {
	validators := []string{}

	fetch := func(ctx context.Context, page PageRequest) (ValidatorsPage, error) {
		resp, err := api.Validators(ctx, ValidatorsRequest{Status: status, Page: page})
		if err != nil {
			return ValidatorsPage{}, fmt.Errorf("%w: %w", ErrValidatorQueryFailed, err)
		}
		return resp, nil
	}

	collect := func(page ValidatorsPage) error {
		for _, v := range page.Validators {
			if v.Jailed {
				continue
			}
			validators = append(validators, v.OperatorAddress)
		}
		return nil
	}

	if err := Crawl(ctx, limit, fetch, collect); err != nil {
		return nil, err
	}
	return validators, nil
}
