package ledger

import (
	"context"

	"github.com/pkg/errors"
)

// Typed verification failures. Anything else returned by Verify is a
// transport error and retryable by the client.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSettlementFailed    = errors.New("transaction failed on chain")
	ErrRecipientMismatch   = errors.New("payment recipient mismatch")
)

// A Transfer is the verified outcome of a payment transaction.
type Transfer struct {
	// Amount received by the recipient's token account, in UI units.
	Amount float64
	// BlockTime is the settlement time, unix seconds.
	BlockTime int64
	// Payer is a best-effort guess of the paying wallet. Empty when no
	// candidate was found. Never treat it as a proven identity.
	Payer string
}

// A Verifier checks token transfers against the ledger.
type Verifier struct {
	Client Client
}

// Verify fetches the transaction and computes the balance delta of the
// recipient's token account for the given mint. The recipient is resolved
// by scanning the transaction's token balances for an account owned by the
// recipient wallet holding the expected mint; a missing pre-balance means
// the account was created within the transaction and counts as 0.
func (v *Verifier) Verify(ctx context.Context, signature, recipient, mint string) (*Transfer, error) {
	tx, err := v.Client.GetTransaction(ctx, signature)
	if err != nil {
		return nil, errors.Wrap(err, "ledger verification")
	}
	if tx == nil || tx.Meta == nil {
		return nil, ErrTransactionNotFound
	}
	if tx.Meta.Err != nil {
		return nil, ErrSettlementFailed
	}

	post, ok := balanceFor(tx.Meta.PostTokenBalances, recipient, mint)
	if !ok {
		return nil, ErrRecipientMismatch
	}

	pre := 0.0
	for _, balance := range tx.Meta.PreTokenBalances {
		if balance.AccountIndex == post.AccountIndex {
			pre = balance.UITokenAmount.Value()
			break
		}
	}

	return &Transfer{
		Amount:    post.UITokenAmount.Value() - pre,
		BlockTime: tx.BlockTime,
		Payer:     inferPayer(tx.Meta, mint),
	}, nil
}

func balanceFor(balances []TokenBalance, owner, mint string) (TokenBalance, bool) {
	for _, balance := range balances {
		if balance.Owner == owner && balance.Mint == mint {
			return balance, true
		}
	}
	return TokenBalance{}, false
}

// inferPayer picks, among the token accounts of the same mint whose
// balance decreased, the owner of the largest decrease. First seen wins
// ties. Best-effort only.
func inferPayer(meta *Meta, mint string) string {
	var payer string
	var largest float64

	for _, pre := range meta.PreTokenBalances {
		if pre.Mint != mint {
			continue
		}

		for _, post := range meta.PostTokenBalances {
			if post.AccountIndex != pre.AccountIndex {
				continue
			}

			delta := pre.UITokenAmount.Value() - post.UITokenAmount.Value()
			if delta > largest {
				largest = delta
				payer = pre.Owner
			}
			break
		}
	}

	return payer
}
