package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/x402vault/internal/database"
	"github.com/mdouchement/x402vault/internal/ledger"
	"github.com/mdouchement/x402vault/internal/pricing"
	"github.com/mdouchement/x402vault/internal/scheduler"
	"github.com/mdouchement/x402vault/internal/storage"
	"github.com/mdouchement/x402vault/internal/webserver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const dbname = "vault.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	binding string
	port    string
)

func main() {
	c := &cobra.Command{
		Use:     "vault",
		Short:   "Payment-gated file vault server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for vault",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&binding, "binding", "b", "0.0.0.0", "Server's binding")
	serverCmd.Flags().StringVarP(&port, "port", "p", "3001", "Server's port")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormInit(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormReIndex(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			log := logrus.New()
			log.SetFormatter(&logger.LogrusTextFormatter{
				DisableColors:   false,
				ForceColors:     true,
				ForceFormatting: true,
				PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})

			ctrl := webserver.Controller{
				Version: c.Parent().Version,
				Logger:  logger.WrapLogrus(log),
				//
				Wallet: os.Getenv("SOLANA_WALLET_ADDRESS"),
				Asset:  envORdefault("PAYMENT_ASSET", "USDC"),
				Mint:   envORdefault("USDC_MINT", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
				//
				ViewPrice:       envFloat("DOWNLOAD_PRICE", 0.01),
				DeletePrice:     envFloat("DELETE_PRICE", 0.005),
				SignedURLTTL:    envSeconds("S3_PRESIGN_DOWNLOAD_TTL_SECONDS", 60),
				RestrictDelete:  os.Getenv("RESTRICT_DELETE_TO_OWNER") == "true",
				LocalURLSecret:  []byte(envORdefault("LOCAL_URL_SECRET", "insecure-local-secret")),
				PaymentTestMode: os.Getenv("X402_TEST_MODE") == "true",
			}

			ctrl.Pricer = pricing.Pricer{
				MaxSizeMB: envInt("MAX_FILE_SIZE", 100),
				PerGBRate: envFloat("PRICE_PER_GB", pricing.DerivePerGBRate(envFloat("PRICE_PER_MB", 0.01))),
			}

			//

			db, err := database.StormOpen(nameWithEnv("DATABASE_PATH", dbname))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()
			ctrl.Database = db

			//

			switch envORdefault("STORAGE_BACKEND", "filesystem") {
			case "s3":
				ctrl.Storage, err = storage.NewS3(context.Background(), storage.S3Config{
					Region:    os.Getenv("S3_REGION"),
					Bucket:    os.Getenv("S3_BUCKET"),
					Endpoint:  os.Getenv("S3_ENDPOINT"),
					AccessKey: os.Getenv("S3_ACCESS_KEY"),
					SecretKey: os.Getenv("S3_SECRET_KEY"),
				})
				if err != nil {
					return errors.Wrap(err, "could not setup S3 storage")
				}
			default:
				baseurl := envORdefault("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%s", port))
				ctrl.Storage = storage.NewFileSystem(nameWithEnv("STORAGE_PATH", "storage"), baseurl, ctrl.LocalURLSecret)
			}

			//

			ctrl.Ledger = ledger.NewRPC(envORdefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"), 15*time.Second)

			//

			if os.Getenv("AUTO_DELETE_EXPIRED") != "false" {
				interval := envInt("EXPIRED_CLEANUP_INTERVAL_SECONDS", 60)
				scheduler.Start(scheduler.Controller{
					Logger:        ctrl.Logger,
					Database:      ctrl.Database,
					Storage:       ctrl.Storage,
					Specification: fmt.Sprintf("@every %ds", interval),
					Grace:         ctrl.SignedURLTTL,
				})
			}

			//

			engine := webserver.EchoEngine(ctrl)
			webserver.PrintRoutes(engine)

			listen := fmt.Sprintf("%s:%s", binding, port)
			log.Printf("Server listening on %s", listen)
			return errors.Wrap(
				engine.Start(listen),
				"could not run server",
			)
		},
	}
)

func nameWithEnv(env, name string) string {
	p := os.Getenv(env)
	if len(p) == 0 {
		return name
	}
	return filepath.Join(p, name)
}

func envORdefault(name, fallback string) string {
	p := os.Getenv(name)
	if len(p) == 0 {
		return fallback
	}
	return p
}

func envInt(name string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(name string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(name), 64)
	if err != nil {
		return fallback
	}
	return f
}

func envSeconds(name string, fallback int) time.Duration {
	return time.Duration(envInt(name, fallback)) * time.Second
}
