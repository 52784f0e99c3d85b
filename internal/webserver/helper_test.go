package webserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/database"
	"github.com/mdouchement/x402vault/internal/ledger"
	"github.com/mdouchement/x402vault/internal/model"
	"github.com/mdouchement/x402vault/internal/pricing"
	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/mdouchement/x402vault/internal/webserver"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	baseURL = "http://vault.test"
	wallet  = "ReC1pienTWaLLetAddreSS"
	mint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var secret = []byte("test-secret")

type stubLedger struct {
	tx  *ledger.Transaction
	err error
}

func (c *stubLedger) GetTransaction(context.Context, string) (*ledger.Transaction, error) {
	return c.tx, c.err
}

func setup(t *testing.T, mutate func(*webserver.Controller)) (*echo.Echo, database.Client) {
	t.Helper()

	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	//

	db, err := database.StormOpen(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	//

	ctrl := webserver.Controller{
		Version:  "test",
		Logger:   logger.WrapLogrus(log),
		Database: db,
		Storage:  storage.NewFileSystem(t.TempDir(), baseURL, secret),
		Ledger:   &stubLedger{},

		Wallet: wallet,
		Asset:  "USDC",
		Mint:   mint,

		Pricer:          pricing.Pricer{MaxSizeMB: 100, PerGBRate: 10.24},
		ViewPrice:       0.01,
		DeletePrice:     0.005,
		SignedURLTTL:    time.Minute,
		LocalURLSecret:  secret,
		PaymentTestMode: true,
	}
	if mutate != nil {
		mutate(&ctrl)
	}

	return webserver.EchoEngine(ctrl), db
}

func do(engine *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func seedObject(t *testing.T, db database.Client, key string, mutate func(*model.Object)) *model.Object {
	t.Helper()

	o := &model.Object{
		Key:         key,
		Name:        "report.pdf",
		Size:        7,
		ContentType: "application/pdf",
		UploadedAt:  time.Now(),
		Status:      model.ObjectActive,
		StorageKey:  "uploads/" + key + "/report.pdf",
	}
	if mutate != nil {
		mutate(o)
	}
	require.NoError(t, db.Save(o))
	return o
}
