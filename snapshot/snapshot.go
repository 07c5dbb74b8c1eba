package snapshot

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for failure cases
var (
	ErrValidatorQueryFailed  = errors.New("validator query failed")
	ErrDelegationQueryFailed = errors.New("delegation query failed")
	ErrMissingBalance        = errors.New("delegation record has no balance")
	ErrInvalidAmount         = errors.New("invalid stake amount")
	ErrStakeOverflow         = errors.New("stake accumulation overflow")
)

// Default configuration values
const (
	DefaultPageLimit = uint64(100)
	DefaultWorkers   = 1
)

// Querier is the paginated staking query surface of a chain node
// --------------------------------------------------------------
type Querier interface {
	ValidatorLister
	DelegationLister
}

// ValidatorLister lists one page of validators
type ValidatorLister interface {
	Validators(ctx context.Context, req ValidatorsRequest) (ValidatorsPage, error)
}

// DelegationLister lists one page of delegations to a validator
type DelegationLister interface {
	ValidatorDelegations(ctx context.Context, req DelegationsRequest) (DelegationsPage, error)
}

// ValidatorsRequest selects a page of validators. An empty Status means all statuses.
type ValidatorsRequest struct {
	Status string
	Page   PageRequest
}

// DelegationsRequest selects a page of delegations to Validator
type DelegationsRequest struct {
	Validator string
	Page      PageRequest
}

// Validator is a validator as reported by the staking module
type Validator struct {
	OperatorAddress string
	Jailed          bool
}

// Delegation is one delegation record. A nil Balance means the node sent none.
type Delegation struct {
	Delegator string
	Balance   *Balance
}

// Balance is the staked coin of a delegation, Amount is a decimal integer
type Balance struct {
	Denom  string
	Amount string
}

// ValidatorsPage is one page of the validator listing
type ValidatorsPage struct {
	Validators   []Validator
	Continuation *Continuation
}

// NextKey implements Paginated
func (p ValidatorsPage) NextKey() ([]byte, bool) {
	return p.Continuation.nextKey()
}

// DelegationsPage is one page of a validator's delegations
type DelegationsPage struct {
	Delegations  []Delegation
	Continuation *Continuation
}

// NextKey implements Paginated
func (p DelegationsPage) NextKey() ([]byte, bool) {
	return p.Continuation.nextKey()
}

// Sink receives the exported ledger
type Sink interface {
	Write(ctx context.Context, stakes []Stake) error
}

// Clock abstracts time for production and testing
type Clock interface {
	Now() time.Time
}

// Event represents a snapshot lifecycle event
// -------------------------------------------
type Event any

type SnapshotStarted struct {
	StartedAt time.Time
	Status    string
	PageLimit uint64
	Workers   int
}

type ValidatorsEnumerated struct {
	Count int
}

// ValidatorProcessed reports one finished validator. Processed counts up by one
// per event in emission order, whatever the worker count.
type ValidatorProcessed struct {
	Processed   int
	Total       int
	Validator   string
	Delegations int
	Delegators  int
}

// Percent reports how much of the validator set is done. An empty set counts as complete.
func (e ValidatorProcessed) Percent() float64 {
	if e.Total <= 0 {
		return 100
	}
	return float64(e.Processed) * 100 / float64(e.Total)
}

type SnapshotDone struct {
	Ledger     *Ledger
	Validators int
	Delegators int
	Duration   time.Duration
}

type SnapshotError struct {
	Err error
}
