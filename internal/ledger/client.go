// Package ledger queries the Solana ledger, read-only, to verify that a
// payment transaction settled and actually moved tokens to the recipient.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

type (
	// A Client fetches transactions from the ledger.
	Client interface {
		// GetTransaction returns the confirmed transaction for the given
		// signature, or nil when the ledger does not know it.
		GetTransaction(ctx context.Context, signature string) (*Transaction, error)
	}

	// A Transaction is the subset of the getTransaction RPC payload used
	// for transfer verification.
	Transaction struct {
		BlockTime int64 `json:"blockTime"`
		Meta      *Meta `json:"meta"`
	}

	// Meta holds the execution result and the token balance snapshots.
	Meta struct {
		Err               interface{}    `json:"err"`
		PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
		PostTokenBalances []TokenBalance `json:"postTokenBalances"`
	}

	// A TokenBalance is one token-account balance inside a transaction.
	TokenBalance struct {
		AccountIndex  int         `json:"accountIndex"`
		Mint          string      `json:"mint"`
		Owner         string      `json:"owner"`
		UITokenAmount TokenAmount `json:"uiTokenAmount"`
	}

	// A TokenAmount is a token amount in both raw and UI units.
	TokenAmount struct {
		Amount   string   `json:"amount"`
		Decimals int      `json:"decimals"`
		UIAmount *float64 `json:"uiAmount"`
	}
)

// Value returns the amount in UI units, 0 when the RPC reports null.
func (a TokenAmount) Value() float64 {
	if a.UIAmount == nil {
		return 0
	}
	return *a.UIAmount
}

type rpc struct {
	endpoint string
	client   *http.Client
}

// NewRPC returns a Client backed by the Solana JSON-RPC endpoint.
func NewRPC(endpoint string, timeout time.Duration) Client {
	return &rpc{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result *Transaction `json:"result"`
	Error  *rpcError    `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *rpc) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []interface{}{
			signature,
			map[string]interface{}{
				"commitment":                     "confirmed",
				"encoding":                       "json",
				"maxSupportedTransactionVersion": 0,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not reach ledger")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("ledger returned status %d", res.StatusCode)
	}

	var response rpcResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "could not decode response")
	}
	if response.Error != nil {
		return nil, errors.Errorf("ledger error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}
