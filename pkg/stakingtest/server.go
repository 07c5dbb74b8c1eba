// Package stakingtest provides an in-memory staking Query server for tests
package stakingtest

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/query"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/screwyprof/stakesnap/pkg/grpcconn"
)

const (
	defaultDenom = "ustake"
	defaultLimit = 100
)

// Request records one query received by the Server
type Request struct {
	Method    string
	Validator string
	Key       []byte
	Limit     uint64
}

// Option configures the Server
type Option func(*Server)

// WithValidator adds a bonded validator
func WithValidator(operator string, jailed bool) Option {
	return WithValidatorStatus(operator, stakingtypes.Bonded, jailed)
}

// WithValidatorStatus adds a validator with the given bond status
func WithValidatorStatus(operator string, bond stakingtypes.BondStatus, jailed bool) Option {
	return func(s *Server) {
		s.validators = append(s.validators, stakingtypes.Validator{
			OperatorAddress:   operator,
			Jailed:            jailed,
			Status:            bond,
			Tokens:            sdkmath.ZeroInt(),
			DelegatorShares:   sdkmath.LegacyZeroDec(),
			MinSelfDelegation: sdkmath.OneInt(),
		})
	}
}

// WithDelegation adds a delegation of amount to validator
func WithDelegation(validator, delegator, amount string) Option {
	return func(s *Server) {
		amt, ok := sdkmath.NewIntFromString(amount)
		if !ok {
			panic("stakingtest: invalid amount " + amount)
		}
		s.delegations[validator] = append(s.delegations[validator], stakingtypes.DelegationResponse{
			Delegation: stakingtypes.Delegation{
				DelegatorAddress: delegator,
				ValidatorAddress: validator,
				Shares:           sdkmath.LegacyNewDecFromInt(amt),
			},
			Balance: sdk.Coin{Denom: defaultDenom, Amount: amt},
		})
	}
}

// WithDelegationWithoutBalance adds a delegation whose balance is unset
func WithDelegationWithoutBalance(validator, delegator string) Option {
	return func(s *Server) {
		s.delegations[validator] = append(s.delegations[validator], stakingtypes.DelegationResponse{
			Delegation: stakingtypes.Delegation{
				DelegatorAddress: delegator,
				ValidatorAddress: validator,
				Shares:           sdkmath.LegacyZeroDec(),
			},
		})
	}
}

// WithEmptyFinalKey makes the last page carry a present but empty next key instead of none
func WithEmptyFinalKey() Option {
	return func(s *Server) { s.emptyFinalKey = true }
}

// WithValidatorsError makes every validator listing fail with code
func WithValidatorsError(code codes.Code) Option {
	return func(s *Server) { s.validatorsErr = status.Error(code, "validators unavailable") }
}

// WithDelegationsError makes the delegation listing of validator fail with code
func WithDelegationsError(validator string, code codes.Code) Option {
	return func(s *Server) { s.delegationsErr[validator] = status.Error(code, "delegations unavailable") }
}

// Server is a staking QueryServer backed by fixed validators and delegations.
// Pages are cut by the requested limit; keys are opaque offsets.
type Server struct {
	stakingtypes.UnimplementedQueryServer

	validators     []stakingtypes.Validator
	delegations    map[string][]stakingtypes.DelegationResponse
	emptyFinalKey  bool
	validatorsErr  error
	delegationsErr map[string]error

	mu       sync.Mutex
	requests []Request
}

// NewServer creates a Server from options
func NewServer(opts ...Option) *Server {
	s := &Server{
		delegations:    make(map[string][]stakingtypes.DelegationResponse),
		delegationsErr: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Requests returns the queries received so far, in arrival order
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Validators implements stakingtypes.QueryServer
func (s *Server) Validators(_ context.Context, req *stakingtypes.QueryValidatorsRequest) (*stakingtypes.QueryValidatorsResponse, error) {
	s.record("Validators", "", req.Pagination)
	if s.validatorsErr != nil {
		return nil, s.validatorsErr
	}

	var matching []stakingtypes.Validator
	for _, v := range s.validators {
		if req.Status == "" || v.Status.String() == req.Status {
			matching = append(matching, v)
		}
	}

	start, end, next, err := s.window(len(matching), req.Pagination)
	if err != nil {
		return nil, err
	}
	return &stakingtypes.QueryValidatorsResponse{
		Validators: matching[start:end],
		Pagination: next,
	}, nil
}

// ValidatorDelegations implements stakingtypes.QueryServer
func (s *Server) ValidatorDelegations(_ context.Context, req *stakingtypes.QueryValidatorDelegationsRequest) (*stakingtypes.QueryValidatorDelegationsResponse, error) {
	s.record("ValidatorDelegations", req.ValidatorAddr, req.Pagination)
	if err, ok := s.delegationsErr[req.ValidatorAddr]; ok {
		return nil, err
	}

	all := s.delegations[req.ValidatorAddr]
	start, end, next, err := s.window(len(all), req.Pagination)
	if err != nil {
		return nil, err
	}
	return &stakingtypes.QueryValidatorDelegationsResponse{
		DelegationResponses: all[start:end],
		Pagination:          next,
	}, nil
}

func (s *Server) record(method, validator string, page *query.PageRequest) {
	r := Request{Method: method, Validator: validator}
	if page != nil {
		r.Key = append([]byte(nil), page.Key...)
		r.Limit = page.Limit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
}

func (s *Server) window(total int, page *query.PageRequest) (int, int, *query.PageResponse, error) {
	start, limit := 0, uint64(defaultLimit)
	if page != nil {
		if len(page.Key) > 0 {
			offset, err := strconv.Atoi(string(page.Key))
			if err != nil || offset < 0 || offset > total {
				return 0, 0, nil, status.Errorf(codes.InvalidArgument, "invalid page key %q", page.Key)
			}
			start = offset
		}
		if page.Limit > 0 {
			limit = page.Limit
		}
	}

	end := total
	if limit < uint64(total-start) {
		end = start + int(limit)
	}
	resp := &query.PageResponse{Total: uint64(total)}
	switch {
	case end < total:
		resp.NextKey = []byte(strconv.Itoa(end))
	case s.emptyFinalKey:
		resp.NextKey = []byte{}
	}
	return start, end, resp, nil
}

// Serve runs srv on an in-memory listener and returns a connection to it
func Serve(t *testing.T, srv stakingtypes.QueryServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	start(t, srv, lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(grpcconn.Codec())),
	)
	require.NoError(t, err, "Failed to create client connection")
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// ServeTCP runs srv on a loopback TCP port and returns its host:port
func ServeTCP(t *testing.T, srv stakingtypes.QueryServer) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Failed to listen")
	start(t, srv, lis)

	return lis.Addr().String()
}

func start(t *testing.T, srv stakingtypes.QueryServer, lis net.Listener) {
	t.Helper()

	server := grpc.NewServer(grpc.ForceServerCodec(grpcconn.Codec()))
	stakingtypes.RegisterQueryServer(server, srv)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)
}
