package ledger_test

import (
	"context"
	"testing"

	"github.com/mdouchement/x402vault/internal/ledger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mint      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	recipient = "ReC1pienTWaLLetAddreSS"
	payer     = "PaYeRWaLLetAddreSS"
)

type stubClient struct {
	tx  *ledger.Transaction
	err error
}

func (c *stubClient) GetTransaction(context.Context, string) (*ledger.Transaction, error) {
	return c.tx, c.err
}

func amount(v float64) ledger.TokenAmount {
	return ledger.TokenAmount{UIAmount: &v}
}

func transaction(pre, post []ledger.TokenBalance) *ledger.Transaction {
	return &ledger.Transaction{
		BlockTime: 1700000000,
		Meta: &ledger.Meta{
			PreTokenBalances:  pre,
			PostTokenBalances: post,
		},
	}
}

func TestVerifierVerify(t *testing.T) {
	tx := transaction(
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(50)},
			{AccountIndex: 2, Mint: mint, Owner: recipient, UITokenAmount: amount(5)},
		},
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(29.52)},
			{AccountIndex: 2, Mint: mint, Owner: recipient, UITokenAmount: amount(25.48)},
		},
	)

	v := &ledger.Verifier{Client: &stubClient{tx: tx}}
	transfer, err := v.Verify(context.Background(), "sig", recipient, mint)
	require.NoError(t, err)

	assert.InDelta(t, 20.48, transfer.Amount, 1e-9)
	assert.Equal(t, int64(1700000000), transfer.BlockTime)
	assert.Equal(t, payer, transfer.Payer)
}

func TestVerifierVerifyFreshAccount(t *testing.T) {
	// No pre-balance entry: the recipient account was created within the
	// transaction, the pre-balance defaults to 0.
	tx := transaction(
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(50)},
		},
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(39.76)},
			{AccountIndex: 2, Mint: mint, Owner: recipient, UITokenAmount: amount(10.24)},
		},
	)

	v := &ledger.Verifier{Client: &stubClient{tx: tx}}
	transfer, err := v.Verify(context.Background(), "sig", recipient, mint)
	require.NoError(t, err)

	assert.InDelta(t, 10.24, transfer.Amount, 1e-9)
}

func TestVerifierVerifyNotFound(t *testing.T) {
	v := &ledger.Verifier{Client: &stubClient{}}

	_, err := v.Verify(context.Background(), "sig", recipient, mint)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestVerifierVerifySettlementFailed(t *testing.T) {
	tx := transaction(nil, nil)
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}

	v := &ledger.Verifier{Client: &stubClient{tx: tx}}
	_, err := v.Verify(context.Background(), "sig", recipient, mint)
	assert.ErrorIs(t, err, ledger.ErrSettlementFailed)
}

func TestVerifierVerifyRecipientMismatch(t *testing.T) {
	tx := transaction(
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(50)},
		},
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(40)},
			{AccountIndex: 2, Mint: mint, Owner: "SomeoneElse", UITokenAmount: amount(10)},
		},
	)

	v := &ledger.Verifier{Client: &stubClient{tx: tx}}
	_, err := v.Verify(context.Background(), "sig", recipient, mint)
	assert.ErrorIs(t, err, ledger.ErrRecipientMismatch)
}

func TestVerifierVerifyTransportError(t *testing.T) {
	v := &ledger.Verifier{Client: &stubClient{err: errors.New("connection refused")}}

	_, err := v.Verify(context.Background(), "sig", recipient, mint)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestVerifierPayerInference(t *testing.T) {
	other := "OtherWaLLetAddreSS"

	// Two decreasing accounts: the largest decrease wins.
	tx := transaction(
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: other, UITokenAmount: amount(10)},
			{AccountIndex: 2, Mint: mint, Owner: payer, UITokenAmount: amount(50)},
			{AccountIndex: 3, Mint: mint, Owner: recipient, UITokenAmount: amount(0)},
		},
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: other, UITokenAmount: amount(9)},
			{AccountIndex: 2, Mint: mint, Owner: payer, UITokenAmount: amount(39)},
			{AccountIndex: 3, Mint: mint, Owner: recipient, UITokenAmount: amount(12)},
		},
	)

	v := &ledger.Verifier{Client: &stubClient{tx: tx}}
	transfer, err := v.Verify(context.Background(), "sig", recipient, mint)
	require.NoError(t, err)
	assert.Equal(t, payer, transfer.Payer)
}

func TestVerifierPayerInferenceTie(t *testing.T) {
	other := "OtherWaLLetAddreSS"

	// Equal decreases: first seen wins.
	tx := transaction(
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(20)},
			{AccountIndex: 2, Mint: mint, Owner: other, UITokenAmount: amount(20)},
			{AccountIndex: 3, Mint: mint, Owner: recipient, UITokenAmount: amount(0)},
		},
		[]ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Owner: payer, UITokenAmount: amount(15)},
			{AccountIndex: 2, Mint: mint, Owner: other, UITokenAmount: amount(15)},
			{AccountIndex: 3, Mint: mint, Owner: recipient, UITokenAmount: amount(10)},
		},
	)

	v := &ledger.Verifier{Client: &stubClient{tx: tx}}
	transfer, err := v.Verify(context.Background(), "sig", recipient, mint)
	require.NoError(t, err)
	assert.Equal(t, payer, transfer.Payer)
}

func TestVerifierPayerInferenceAbsent(t *testing.T) {
	// Nothing decreased for the expected mint: payer stays unset and
	// verification still succeeds.
	tx := transaction(
		[]ledger.TokenBalance{
			{AccountIndex: 2, Mint: "OtherMint", Owner: payer, UITokenAmount: amount(50)},
		},
		[]ledger.TokenBalance{
			{AccountIndex: 2, Mint: "OtherMint", Owner: payer, UITokenAmount: amount(40)},
			{AccountIndex: 3, Mint: mint, Owner: recipient, UITokenAmount: amount(10)},
		},
	)

	v := &ledger.Verifier{Client: &stubClient{tx: tx}}
	transfer, err := v.Verify(context.Background(), "sig", recipient, mint)
	require.NoError(t, err)
	assert.Empty(t, transfer.Payer)
}
