// Package lcd is a client for the staking endpoints of a Cosmos SDK REST gateway
package lcd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Sentinel errors for client operations
var (
	ErrNodeUnreachable   = errors.New("node unreachable")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrInvalidBaseURL    = errors.New("invalid base URL")
	ErrMalformedResponse = errors.New("malformed response")
)

const (
	nodeInfoPath   = "cosmos/base/tendermint/v1beta1/node_info"
	validatorsPath = "cosmos/staking/v1beta1/validators"
)

// Client represents a REST gateway client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new REST gateway client with custom HTTP client and base URL
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// PageRequest represents the pagination parameters of a request
type PageRequest struct {
	Key   []byte
	Limit uint64
}

// Pagination is the pagination trailer of a listing; NextKey arrives base64 encoded or null
type Pagination struct {
	NextKey []byte `json:"next_key"`
	Total   string `json:"total"`
}

// Validator represents a validator from the staking module
type Validator struct {
	OperatorAddress string `json:"operator_address"`
	Jailed          bool   `json:"jailed"`
	Status          string `json:"status"`
	Tokens          string `json:"tokens"`
}

// ValidatorsResponse represents one page of validators
type ValidatorsResponse struct {
	Validators []Validator `json:"validators"`
	Pagination *Pagination `json:"pagination"`
}

// Delegation represents the delegation body of a delegation response
type Delegation struct {
	DelegatorAddress string `json:"delegator_address"`
	ValidatorAddress string `json:"validator_address"`
	Shares           string `json:"shares"`
}

// Coin represents a denominated amount
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// DelegationResponse represents a delegation together with its balance
type DelegationResponse struct {
	Delegation *Delegation `json:"delegation"`
	Balance    *Coin       `json:"balance"`
}

// DelegationsResponse represents one page of delegations to a validator
type DelegationsResponse struct {
	DelegationResponses []DelegationResponse `json:"delegation_responses"`
	Pagination          *Pagination          `json:"pagination"`
}

// NodeInfo represents the parts of the node info we report
type NodeInfo struct {
	DefaultNodeInfo struct {
		Network string `json:"network"`
		Moniker string `json:"moniker"`
	} `json:"default_node_info"`
	ApplicationVersion struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"application_version"`
}

// apiError is the error body returned by the gateway
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NodeInfo retrieves the node info; used to check the node is reachable before crawling
func (c *Client) NodeInfo(ctx context.Context) (NodeInfo, error) {
	var info NodeInfo
	if err := c.get(ctx, nodeInfoPath, nil, &info); err != nil {
		return NodeInfo{}, fmt.Errorf("%w: %w", ErrNodeUnreachable, err)
	}
	return info, nil
}

// Validators retrieves one page of validators. An empty status means all statuses.
func (c *Client) Validators(ctx context.Context, status string, page PageRequest) (ValidatorsResponse, error) {
	query := paginationQuery(page)
	if status != "" {
		query.Set("status", status)
	}

	var resp ValidatorsResponse
	if err := c.get(ctx, validatorsPath, query, &resp); err != nil {
		return ValidatorsResponse{}, err
	}
	return resp, nil
}

// ValidatorDelegations retrieves one page of delegations to validator
func (c *Client) ValidatorDelegations(ctx context.Context, validator string, page PageRequest) (DelegationsResponse, error) {
	var resp DelegationsResponse
	path := validatorsPath + "/" + url.PathEscape(validator) + "/delegations"
	if err := c.get(ctx, path, paginationQuery(page), &resp); err != nil {
		return DelegationsResponse{}, err
	}
	return resp, nil
}

func paginationQuery(page PageRequest) url.Values {
	query := url.Values{}
	if len(page.Key) > 0 {
		query.Set("pagination.key", base64.StdEncoding.EncodeToString(page.Key))
	}
	if page.Limit > 0 {
		query.Set("pagination.limit", strconv.FormatUint(page.Limit, 10))
	}
	return query
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrMalformedResponse, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("%w: %d: %s (code %d)", ErrUnexpectedStatus, resp.StatusCode, apiErr.Message, apiErr.Code)
	}
	return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
}
