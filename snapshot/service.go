package snapshot

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/screwyprof/stakesnap/pkg/clock"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithPageLimit sets the number of records requested per page
func WithPageLimit(n uint64) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageLimit = n
		}
	}
}

// WithValidatorStatus restricts the snapshot to validators with the given bond status
func WithValidatorStatus(status string) Option {
	return func(s *Service) { s.status = status }
}

// WithWorkers sets how many validators are crawled at the same time
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Service takes a stake snapshot: enumerate validators, then aggregate their delegations
// ---------------------------------------------------------------------------------------
type Service struct {
	api       Querier
	clock     Clock
	pageLimit uint64
	status    string
	workers   int
}

// NewService constructs a Service with required dependencies and options
// ---------------------------------------------------------------------
// By default, it uses a real clock, 100 records per page, all validator statuses and one worker.
func NewService(api Querier, opts ...Option) *Service {
	s := &Service{
		api:       api,
		clock:     clock.System{},
		pageLimit: DefaultPageLimit,
		workers:   DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one snapshot and returns the events channel and done channel.
//
// The events channel carries progress and ends with exactly one SnapshotDone or
// SnapshotError, then closes. It must be drained, see NewSubscriber.
// Cancelling ctx aborts the crawl with a SnapshotError.
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	events := make(chan Event, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		s.run(ctx, events)
	}()
	return events, done
}

// Run takes a snapshot and blocks until it is complete, dispatching every event to the
// given handlers. The ledger is only returned when every validator was aggregated.
func (s *Service) Run(ctx context.Context, handlers ...func(*Subscriber)) (*Ledger, error) {
	sub := newSubscriber(handlers...)
	events, done := s.Start(ctx)

	var (
		ledger *Ledger
		err    error
	)
	for ev := range events {
		sub.dispatch(ev)
		switch e := ev.(type) {
		case SnapshotDone:
			ledger = e.Ledger
		case SnapshotError:
			err = e.Err
		}
	}
	<-done

	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// run enumerates validators and folds their delegations into one ledger
// ----------------------------------------------------------------------
func (s *Service) run(ctx context.Context, events chan<- Event) {
	start := s.clock.Now()
	events <- SnapshotStarted{
		StartedAt: start,
		Status:    s.status,
		PageLimit: s.pageLimit,
		Workers:   s.workers,
	}

	validators, err := EnumerateValidators(ctx, s.api, s.status, s.pageLimit)
	if err != nil {
		events <- SnapshotError{Err: err}
		return
	}
	events <- ValidatorsEnumerated{Count: len(validators)}

	ledger := NewLedger()
	if err := s.aggregate(ctx, validators, ledger, events); err != nil {
		events <- SnapshotError{Err: err}
		return
	}

	events <- SnapshotDone{
		Ledger:     ledger,
		Validators: len(validators),
		Delegators: ledger.Len(),
		Duration:   s.clock.Now().Sub(start),
	}
}

// aggregate crawls validators on a bounded pool. With one worker validators are
// processed strictly in order; the first failure cancels the rest.
func (s *Service) aggregate(ctx context.Context, validators []string, ledger *Ledger, events chan<- Event) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	// progress counts and sends under one lock so Processed arrives in order
	var (
		mu        sync.Mutex
		processed int
	)
	for _, validator := range validators {
		g.Go(func() error {
			n, err := AggregateDelegations(gctx, s.api, validator, s.pageLimit, ledger)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			processed++
			events <- ValidatorProcessed{
				Processed:   processed,
				Total:       len(validators),
				Validator:   validator,
				Delegations: n,
				Delegators:  ledger.Len(),
			}
			return nil
		})
	}
	return g.Wait()
}
