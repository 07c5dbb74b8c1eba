package lcd_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakesnap/pkg/lcd"
)

func TestClientValidators(t *testing.T) {
	t.Parallel()

	t.Run("it parses validators and the base64 next key", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{
			"validators": [
				{"operator_address": "junovaloper1a", "jailed": false, "status": "BOND_STATUS_BONDED", "tokens": "100"},
				{"operator_address": "junovaloper1b", "jailed": true, "status": "BOND_STATUS_UNBONDED", "tokens": "0"}
			],
			"pagination": {"next_key": "AQID", "total": "0"}
		}`, nil))
		defer server.Close()
		client := lcd.NewClient(server.Client(), server.URL)

		// Act
		resp, err := client.Validators(t.Context(), "", lcd.PageRequest{Limit: 2})

		// Assert
		require.NoError(t, err)
		require.Len(t, resp.Validators, 2)
		assert.Equal(t, "junovaloper1a", resp.Validators[0].OperatorAddress)
		assert.False(t, resp.Validators[0].Jailed)
		assert.True(t, resp.Validators[1].Jailed)
		require.NotNil(t, resp.Pagination)
		assert.Equal(t, []byte{1, 2, 3}, resp.Pagination.NextKey)
	})

	t.Run("it sends status, key and limit as query parameters", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var got *http.Request
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"validators": [], "pagination": null}`, &got))
		defer server.Close()
		client := lcd.NewClient(server.Client(), server.URL)

		// Act
		resp, err := client.Validators(t.Context(), "BOND_STATUS_BONDED", lcd.PageRequest{Key: []byte{0xff, 0x00}, Limit: 100})

		// Assert
		require.NoError(t, err)
		assert.Nil(t, resp.Pagination)
		require.NotNil(t, got)
		assert.Equal(t, "/cosmos/staking/v1beta1/validators", got.URL.Path)
		assert.Equal(t, url.Values{
			"status":           {"BOND_STATUS_BONDED"},
			"pagination.key":   {"/wA="},
			"pagination.limit": {"100"},
		}, got.URL.Query())
	})

	t.Run("it omits the key on the first page", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var got *http.Request
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"validators": []}`, &got))
		defer server.Close()
		client := lcd.NewClient(server.Client(), server.URL)

		// Act
		_, err := client.Validators(t.Context(), "", lcd.PageRequest{Limit: 10})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, url.Values{"pagination.limit": {"10"}}, got.URL.Query())
	})

	t.Run("it reports the gateway error message", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusBadRequest, `{"code": 3, "message": "invalid validator status", "details": []}`, nil))
		defer server.Close()
		client := lcd.NewClient(server.Client(), server.URL)

		// Act
		_, err := client.Validators(t.Context(), "BOGUS", lcd.PageRequest{Limit: 10})

		// Assert
		require.ErrorIs(t, err, lcd.ErrUnexpectedStatus)
		assert.Contains(t, err.Error(), "invalid validator status")
	})

	t.Run("it rejects a malformed body", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"validators": [`, nil))
		defer server.Close()
		client := lcd.NewClient(server.Client(), server.URL)

		// Act
		_, err := client.Validators(t.Context(), "", lcd.PageRequest{Limit: 10})

		// Assert
		require.ErrorIs(t, err, lcd.ErrMalformedResponse)
	})
}

func TestClientValidatorDelegations(t *testing.T) {
	t.Parallel()

	t.Run("it parses delegations with and without balances", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var got *http.Request
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{
			"delegation_responses": [
				{
					"delegation": {"delegator_address": "juno1x", "validator_address": "junovaloper1a", "shares": "100.000000000000000000"},
					"balance": {"denom": "ujuno", "amount": "100"}
				},
				{
					"delegation": {"delegator_address": "juno1y", "validator_address": "junovaloper1a", "shares": "1.0"}
				}
			],
			"pagination": {"next_key": null, "total": "2"}
		}`, &got))
		defer server.Close()
		client := lcd.NewClient(server.Client(), server.URL)

		// Act
		resp, err := client.ValidatorDelegations(t.Context(), "junovaloper1a", lcd.PageRequest{Limit: 2})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "/cosmos/staking/v1beta1/validators/junovaloper1a/delegations", got.URL.Path)
		require.Len(t, resp.DelegationResponses, 2)
		assert.Equal(t, "juno1x", resp.DelegationResponses[0].Delegation.DelegatorAddress)
		assert.Equal(t, &lcd.Coin{Denom: "ujuno", Amount: "100"}, resp.DelegationResponses[0].Balance)
		assert.Nil(t, resp.DelegationResponses[1].Balance)
		require.NotNil(t, resp.Pagination)
		assert.Nil(t, resp.Pagination.NextKey)
	})
}

func TestClientNodeInfo(t *testing.T) {
	t.Parallel()

	t.Run("it reads the network name", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{
			"default_node_info": {"network": "juno-1", "moniker": "node"},
			"application_version": {"name": "juno", "version": "v25.0.0"}
		}`, nil))
		defer server.Close()
		client := lcd.NewClient(server.Client(), server.URL)

		// Act
		info, err := client.NodeInfo(t.Context())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "juno-1", info.DefaultNodeInfo.Network)
		assert.Equal(t, "v25.0.0", info.ApplicationVersion.Version)
	})

	t.Run("it reports an unreachable node", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{}`, nil))
		client := lcd.NewClient(server.Client(), server.URL)
		server.Close()

		// Act
		_, err := client.NodeInfo(t.Context())

		// Assert
		require.ErrorIs(t, err, lcd.ErrNodeUnreachable)
	})
}

// jsonHandler replies with status and body and optionally captures the request
func jsonHandler(t *testing.T, status int, body string, captured **http.Request) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = r.Clone(r.Context())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, err := w.Write([]byte(body))
		assert.NoError(t, err, "Failed to write response")
	}
}
