// Package lcdquerier serves snapshot queries from a Cosmos SDK REST gateway
package lcdquerier

import (
	"context"

	"github.com/screwyprof/stakesnap/pkg/lcd"
	"github.com/screwyprof/stakesnap/snapshot"
)

// Querier adapts an lcd.Client to snapshot.Querier
type Querier struct {
	client *lcd.Client
}

// New creates a Querier over client
func New(client *lcd.Client) *Querier {
	return &Querier{client: client}
}

// Ping checks that the gateway answers before any staking query is made
func (q *Querier) Ping(ctx context.Context) (string, error) {
	info, err := q.client.NodeInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.DefaultNodeInfo.Network, nil
}

// Validators implements snapshot.ValidatorLister
func (q *Querier) Validators(ctx context.Context, req snapshot.ValidatorsRequest) (snapshot.ValidatorsPage, error) {
	resp, err := q.client.Validators(ctx, req.Status, toPageRequest(req.Page))
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
	resp, err := q.client.ValidatorDelegations(ctx, req.Validator, toPageRequest(req.Page))
	if err != nil {
		return snapshot.DelegationsPage{}, err
	}

	delegations := make([]snapshot.Delegation, 0, len(resp.DelegationResponses))
	for _, r := range resp.DelegationResponses {
		var d snapshot.Delegation
		if r.Delegation != nil {
			d.Delegator = r.Delegation.DelegatorAddress
		}
		if r.Balance != nil {
			d.Balance = &snapshot.Balance{Denom: r.Balance.Denom, Amount: r.Balance.Amount}
		}
		delegations = append(delegations, d)
	}

	return snapshot.DelegationsPage{
		Delegations:  delegations,
		Continuation: toContinuation(resp.Pagination),
	}, nil
}

func toPageRequest(p snapshot.PageRequest) lcd.PageRequest {
	return lcd.PageRequest{Key: p.Key, Limit: p.Limit}
}

func toContinuation(p *lcd.Pagination) *snapshot.Continuation {
	if p == nil {
		return nil
	}
	return &snapshot.Continuation{NextKey: p.NextKey}
}
