package webserver

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/database"
	"github.com/mdouchement/x402vault/internal/ledger"
	"github.com/mdouchement/x402vault/internal/payment"
	"github.com/mdouchement/x402vault/internal/pricing"
	"github.com/mdouchement/x402vault/internal/storage"
	middlewarepkg "github.com/mdouchement/x402vault/internal/webserver/middleware"
)

// A Controller is an Inversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Logger   logger.Logger
	Database database.Client
	Storage  storage.Backend
	Ledger   ledger.Client
	//
	Wallet string
	Asset  string
	Mint   string
	//
	Pricer         pricing.Pricer
	ViewPrice      float64
	DeletePrice    float64
	SignedURLTTL   time.Duration
	RestrictDelete bool
	LocalURLSecret []byte
	// PaymentTestMode short-circuits the payment gate. Explicit opt-in
	// for integration environments without a funded wallet.
	PaymentTestMode bool
}

// EchoEngine instantiates the web server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Gzip())
	engine.Use(middlewarepkg.Logger(ctrl.Logger))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

	//
	//
	//

	verifier := &ledger.Verifier{Client: ctrl.Ledger}
	gate := &payment.Gate{
		Logger:    ctrl.Logger,
		Verifier:  verifier,
		Recipient: ctrl.Wallet,
		Asset:     ctrl.Asset,
		Mint:      ctrl.Mint,
		TestMode:  ctrl.PaymentTestMode,
	}

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	// Uploads
	//
	upload := upload{
		logger:  ctrl.Logger,
		db:      ctrl.Database,
		storage: ctrl.Storage,
		gate:    gate,
		pricer:  ctrl.Pricer,
	}
	router.POST("/uploads/initiate", upload.Initiate)
	router.PUT("/uploads/upload/:id", upload.Upload)
	router.GET("/uploads/verify/:key", upload.Verify)

	// Objects
	//
	object := object{
		logger:         ctrl.Logger,
		db:             ctrl.Database,
		storage:        ctrl.Storage,
		signedURLTTL:   ctrl.SignedURLTTL,
		restrictDelete: ctrl.RestrictDelete,
	}
	router.GET("/objects", object.List)
	router.GET("/objects/:id", object.Show)
	router.GET("/objects/:id/view", object.View, gate.Middleware(fixed(ctrl.ViewPrice)))
	router.DELETE("/objects/:id", object.Delete, gate.Middleware(fixed(ctrl.DeletePrice)))

	// Payments
	//
	payments := payments{
		logger:   ctrl.Logger,
		verifier: verifier,
		wallet:   ctrl.Wallet,
		asset:    ctrl.Asset,
		mint:     ctrl.Mint,
	}
	router.GET("/payments/supported", payments.Supported)
	router.GET("/payments/wallet", payments.Wallet)
	router.POST("/payments/verify", payments.Verify)

	// Local signed downloads (filesystem backend only)
	//
	local := local{
		logger:  ctrl.Logger,
		storage: ctrl.Storage,
		secret:  ctrl.LocalURLSecret,
	}
	router.GET("/local/:token", local.Download)

	return engine
}

func fixed(amount float64) func(echo.Context) float64 {
	return func(echo.Context) float64 {
		return amount
	}
}

// PrintRoutes prints the Echo engine exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
