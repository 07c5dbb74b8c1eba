// Package grpcquerier serves snapshot queries from the staking Query service of a node's gRPC endpoint
package grpcquerier

import (
	"context"

	"github.com/cosmos/cosmos-sdk/types/query"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"google.golang.org/grpc"

	"github.com/screwyprof/stakesnap/snapshot"
)

// Querier adapts a staking QueryClient to snapshot.Querier
type Querier struct {
	client stakingtypes.QueryClient
}

// New creates a Querier over an established connection
func New(conn grpc.ClientConnInterface) *Querier {
	return NewFromClient(stakingtypes.NewQueryClient(conn))
}

// NewFromClient creates a Querier over an existing staking QueryClient
func NewFromClient(client stakingtypes.QueryClient) *Querier {
	return &Querier{client: client}
}

// Validators implements snapshot.ValidatorLister
func (q *Querier) Validators(ctx context.Context, req snapshot.ValidatorsRequest) (snapshot.ValidatorsPage, error) {
	resp, err := q.client.Validators(ctx, &stakingtypes.QueryValidatorsRequest{
		Status:     req.Status,
		Pagination: toPageRequest(req.Page),
	})
	if err != nil {
		return snapshot.ValidatorsPage{}, err
	}

	validators := make([]snapshot.Validator, 0, len(resp.Validators))
	for _, v := range resp.Validators {
		validators = append(validators, snapshot.Validator{
			OperatorAddress: v.OperatorAddress,
			Jailed:          v.Jailed,
		})
	}

	return snapshot.ValidatorsPage{
		Validators:   validators,
		Continuation: toContinuation(resp.Pagination),
	}, nil
}

// ValidatorDelegations implements snapshot.DelegationLister
func (q *Querier) ValidatorDelegations(ctx context.Context, req snapshot.DelegationsRequest) (snapshot.DelegationsPage, error) {
	resp, err := q.client.ValidatorDelegations(ctx, &stakingtypes.QueryValidatorDelegationsRequest{
		ValidatorAddr: req.Validator,
		Pagination:    toPageRequest(req.Page),
	})
	if err != nil {
		return snapshot.DelegationsPage{}, err
	}

	delegations := make([]snapshot.Delegation, 0, len(resp.DelegationResponses))
	for _, r := range resp.DelegationResponses {
		delegations = append(delegations, snapshot.Delegation{
			Delegator: r.Delegation.DelegatorAddress,
			Balance:   toBalance(r),
		})
	}

	return snapshot.DelegationsPage{
		Delegations:  delegations,
		Continuation: toContinuation(resp.Pagination),
	}, nil
}

// toBalance reports the balance as absent when the node left it unset.
// The generated type is not nullable, so an unset coin decodes with an empty denom and a nil amount.
func toBalance(r stakingtypes.DelegationResponse) *snapshot.Balance {
	if r.Balance.Denom == "" || r.Balance.Amount.IsNil() {
		return nil
	}
	return &snapshot.Balance{
		Denom:  r.Balance.Denom,
		Amount: r.Balance.Amount.String(),
	}
}

func toPageRequest(p snapshot.PageRequest) *query.PageRequest {
	return &query.PageRequest{Key: p.Key, Limit: p.Limit}
}

func toContinuation(p *query.PageResponse) *snapshot.Continuation {
	if p == nil {
		return nil
	}
	return &snapshot.Continuation{NextKey: p.NextKey}
}
