// Package querier holds decorators shared by the snapshot.Querier transports
package querier

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/screwyprof/stakesnap/snapshot"
)

// Throttled waits on a rate limiter before every page fetch
type Throttled struct {
	next    snapshot.Querier
	limiter *rate.Limiter
}

// NewThrottled limits next to perSecond requests per second with the given burst.
// A non-positive rate disables the limit.
func NewThrottled(next snapshot.Querier, perSecond float64, burst int) snapshot.Querier {
	if perSecond <= 0 {
		return next
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Validators implements snapshot.ValidatorLister
func (t *Throttled) Validators(ctx context.Context, req snapshot.ValidatorsRequest) (snapshot.ValidatorsPage, error) {
	if err := t.wait(ctx); err != nil {
		return snapshot.ValidatorsPage{}, err
	}
	return t.next.Validators(ctx, req)
}

// ValidatorDelegations implements snapshot.DelegationLister
func (t *Throttled) ValidatorDelegations(ctx context.Context, req snapshot.DelegationsRequest) (snapshot.DelegationsPage, error) {
	if err := t.wait(ctx); err != nil {
		return snapshot.DelegationsPage{}, err
	}
	return t.next.ValidatorDelegations(ctx, req)
}

func (t *Throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
