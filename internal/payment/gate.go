package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/ledger"
	"github.com/mdouchement/x402vault/internal/webserver/weberror"
	"github.com/pkg/errors"
)

const (
	receiptKey       = "payment_receipt"
	challengeTimeout = 300
	verifyTimeout    = 15 * time.Second
)

// A Gate verifies the X-Payment header of incoming requests.
type Gate struct {
	Logger    logger.Logger
	Verifier  *ledger.Verifier
	Recipient string
	Asset     string
	Mint      string
	// TestMode accepts any syntactically present proof with a synthetic
	// receipt. Must be enabled explicitly, never by default.
	TestMode bool
}

// Middleware gates a route for the given price. Without a proof the
// request terminates with a 402 challenge; with a valid one the receipt is
// stored in the context and echoed in the X-Payment-Response header.
func (g *Gate) Middleware(amount func(echo.Context) float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			receipt, err := g.Clear(c, amount(c))
			if err != nil {
				return err
			}
			if receipt == nil {
				// Challenge rendered, terminal for this request.
				return nil
			}
			return next(c)
		}
	}
}

// Clear runs the full gate for one request: challenge, decode, scheme
// check, ledger verification, amount check. A nil receipt with a nil
// error means the 402 challenge has been rendered.
func (g *Gate) Clear(c echo.Context, amount float64) (*Receipt, error) {
	header := c.Request().Header.Get(Header)
	if header == "" {
		return nil, c.JSON(http.StatusPaymentRequired, g.Challenge(c, amount))
	}

	if g.TestMode {
		receipt := &Receipt{
			Verified:  true,
			Signature: "TEST_SIGNATURE",
			Amount:    amount,
			Timestamp: time.Now().Unix(),
			Token:     g.Asset,
		}
		g.attach(c, receipt)
		return receipt, nil
	}

	proof, err := DecodeProof(header)
	if err != nil {
		g.Logger.WithPrefix("[x402]").Error(err)
		return nil, weberror.New(http.StatusBadRequest, "invalid payment data")
	}

	if proof.Scheme != SchemeExact || proof.Network != NetworkSolana {
		return nil, weberror.New(http.StatusBadRequest, "unsupported payment scheme or network")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), verifyTimeout)
	defer cancel()

	transfer, err := g.Verifier.Verify(ctx, proof.Signature, g.Recipient, g.Mint)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrSettlementFailed),
		errors.Is(err, ledger.ErrRecipientMismatch):
		return nil, weberror.New(http.StatusBadRequest, err.Error())
	default:
		// Transport failure: retryable by the client, never a receipt.
		g.Logger.WithPrefix("[x402]").Error(err)
		return nil, weberror.New(http.StatusBadGateway, "payment verification unavailable")
	}

	if transfer.Amount < amount {
		return nil, weberror.New(http.StatusBadRequest, "insufficient payment amount")
	}

	receipt := &Receipt{
		Verified:  true,
		Signature: proof.Signature,
		Amount:    transfer.Amount,
		Timestamp: transfer.BlockTime,
		Token:     g.Asset,
		Payer:     transfer.Payer,
	}
	g.attach(c, receipt)
	return receipt, nil
}

// Challenge builds the 402 body for the requested resource and amount.
func (g *Gate) Challenge(c echo.Context, amount float64) Challenge {
	return Challenge{
		Version: Version,
		Requirements: []Requirement{
			{
				Scheme:      SchemeExact,
				Network:     NetworkSolana,
				MaxAmount:   FormatAmount(amount),
				Recipient:   g.Recipient,
				Asset:       g.Asset,
				Mint:        g.Mint,
				Timeout:     challengeTimeout,
				Resource:    c.Request().URL.RequestURI(),
				Description: "Payment required for file operation",
			},
		},
		Error: "Payment required",
	}
}

// attach stores the receipt in the context and echoes the settlement
// correlation header. Pass-through correlation, not a security control.
func (g *Gate) attach(c echo.Context, receipt *Receipt) {
	c.Set(receiptKey, receipt)

	echoed, _ := json.Marshal(map[string]interface{}{
		"signature": receipt.Signature,
		"amount":    receipt.Amount,
	})
	c.Response().Header().Set(ResponseHeader, string(echoed))
}

// ReceiptFrom returns the receipt attached by the gate, or nil.
func ReceiptFrom(c echo.Context) *Receipt {
	receipt, _ := c.Get(receiptKey).(*Receipt)
	return receipt
}
