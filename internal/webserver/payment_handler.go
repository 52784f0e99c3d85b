package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/ledger"
	"github.com/mdouchement/x402vault/internal/payment"
	"github.com/mdouchement/x402vault/internal/webserver/weberror"
	"github.com/pkg/errors"
)

type payments struct {
	logger   logger.Logger
	verifier *ledger.Verifier
	wallet   string
	asset    string
	mint     string
}

// Supported advertises the accepted payment schemes.
func (h *payments) Supported(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"schemes":  []string{payment.SchemeExact},
		"networks": []string{payment.NetworkSolana},
		"tokens":   []string{h.asset},
		"mint":     h.mint,
	})
}

// Wallet returns the configured recipient wallet.
func (h *payments) Wallet(c echo.Context) error {
	if h.wallet == "" {
		return weberror.New(http.StatusInternalServerError, "wallet not configured")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"address": h.wallet,
		"network": payment.NetworkSolana,
	})
}

type verifyParams struct {
	Signature         string  `json:"signature"`
	ExpectedAmount    float64 `json:"expectedAmount"`
	ExpectedRecipient string  `json:"expectedRecipient"`
}

// Verify checks a settled transaction outside of any gated route.
func (h *payments) Verify(c echo.Context) error {
	c.Set("handler_method", "payments.Verify")

	var params verifyParams
	if err := c.Bind(&params); err != nil {
		return weberror.New(http.StatusBadRequest, "invalid request body")
	}
	if params.Signature == "" || params.ExpectedAmount <= 0 || params.ExpectedRecipient == "" {
		return weberror.New(http.StatusBadRequest, "missing required fields: signature, expectedAmount, expectedRecipient")
	}

	transfer, err := h.verifier.Verify(c.Request().Context(), params.Signature, params.ExpectedRecipient, h.mint)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return weberror.New(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrSettlementFailed), errors.Is(err, ledger.ErrRecipientMismatch):
		return weberror.New(http.StatusBadRequest, err.Error())
	default:
		h.logger.WithPrefix("[payments]").Error(err)
		return weberror.New(http.StatusBadGateway, "payment verification unavailable")
	}

	if transfer.Amount < params.ExpectedAmount {
		return weberror.New(http.StatusBadRequest, "insufficient payment amount")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"verified":  true,
		"signature": params.Signature,
		"amount":    transfer.Amount,
		"recipient": params.ExpectedRecipient,
		"timestamp": transfer.BlockTime,
		"token":     h.asset,
	})
}
