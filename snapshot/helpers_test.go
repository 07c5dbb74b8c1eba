package snapshot_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/screwyprof/stakesnap/snapshot"
)

var errNodeUnavailable = errors.New("node unavailable")

// Test data builders

func validator(addr string) snapshot.Validator {
	return snapshot.Validator{OperatorAddress: addr}
}

func jailed(addr string) snapshot.Validator {
	return snapshot.Validator{OperatorAddress: addr, Jailed: true}
}

func delegation(delegator, amount string) snapshot.Delegation {
	return snapshot.Delegation{
		Delegator: delegator,
		Balance:   &snapshot.Balance{Denom: "ustake", Amount: amount},
	}
}

func delegationWithoutBalance(delegator string) snapshot.Delegation {
	return snapshot.Delegation{Delegator: delegator}
}

func pageKey(i int) []byte {
	return []byte("page-" + strconv.Itoa(i))
}

func pageIndex(key []byte) (int, error) {
	if key == nil {
		return 0, nil
	}
	return strconv.Atoi(strings.TrimPrefix(string(key), "page-"))
}

// continuation links page i to page i+1; the last page carries no continuation
func continuation(i, total int) *snapshot.Continuation {
	if i == total-1 {
		return nil
	}
	return &snapshot.Continuation{NextKey: pageKey(i + 1)}
}

func validatorPages(pages ...[]snapshot.Validator) []snapshot.ValidatorsPage {
	out := make([]snapshot.ValidatorsPage, len(pages))
	for i, p := range pages {
		out[i] = snapshot.ValidatorsPage{Validators: p, Continuation: continuation(i, len(pages))}
	}
	return out
}

func delegationPages(pages ...[]snapshot.Delegation) []snapshot.DelegationsPage {
	out := make([]snapshot.DelegationsPage, len(pages))
	for i, p := range pages {
		out[i] = snapshot.DelegationsPage{Delegations: p, Continuation: continuation(i, len(pages))}
	}
	return out
}

// Mock implementations

// fakeChain implements snapshot.Querier over scripted pages
type fakeChain struct {
	mu                 sync.Mutex
	validators         []snapshot.ValidatorsPage
	delegations        map[string][]snapshot.DelegationsPage
	validatorsErr      error
	delegationErrs     map[string]error
	validatorRequests  []snapshot.ValidatorsRequest
	delegationRequests map[string][]snapshot.DelegationsRequest
}

func newFakeChain(validators ...snapshot.ValidatorsPage) *fakeChain {
	return &fakeChain{
		validators:         validators,
		delegations:        make(map[string][]snapshot.DelegationsPage),
		delegationErrs:     make(map[string]error),
		delegationRequests: make(map[string][]snapshot.DelegationsRequest),
	}
}

func (f *fakeChain) withDelegations(validator string, pages ...snapshot.DelegationsPage) *fakeChain {
	f.delegations[validator] = pages
	return f
}

func (f *fakeChain) failingValidators(err error) *fakeChain {
	f.validatorsErr = err
	return f
}

func (f *fakeChain) failingDelegations(validator string, err error) *fakeChain {
	f.delegationErrs[validator] = err
	return f
}

func (f *fakeChain) Validators(_ context.Context, req snapshot.ValidatorsRequest) (snapshot.ValidatorsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.validatorRequests = append(f.validatorRequests, req)
	if f.validatorsErr != nil {
		return snapshot.ValidatorsPage{}, f.validatorsErr
	}
	if len(f.validators) == 0 {
		return snapshot.ValidatorsPage{}, nil
	}

	i, err := pageIndex(req.Page.Key)
	if err != nil || i >= len(f.validators) {
		return snapshot.ValidatorsPage{}, fmt.Errorf("unknown validators page key %q", req.Page.Key)
	}
	return f.validators[i], nil
}

func (f *fakeChain) ValidatorDelegations(_ context.Context, req snapshot.DelegationsRequest) (snapshot.DelegationsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delegationRequests[req.Validator] = append(f.delegationRequests[req.Validator], req)
	if err := f.delegationErrs[req.Validator]; err != nil {
		return snapshot.DelegationsPage{}, err
	}

	pages := f.delegations[req.Validator]
	if len(pages) == 0 {
		return snapshot.DelegationsPage{}, nil
	}

	i, err := pageIndex(req.Page.Key)
	if err != nil || i >= len(pages) {
		return snapshot.DelegationsPage{}, fmt.Errorf("unknown delegations page key %q", req.Page.Key)
	}
	return pages[i], nil
}

func (f *fakeChain) delegationRequestsFor(validator string) []snapshot.DelegationsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delegationRequests[validator]
}

func (f *fakeChain) validatorRequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.validatorRequests)
}
