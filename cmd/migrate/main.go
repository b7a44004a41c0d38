package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/partner"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	var (
		logLevel string
		timeout  time.Duration
	)
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(log, logger.MapGormLogLevel(logLevel)))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("driver", cfg.Database.Driver),
	)

	switch command {
	case "up":
		if err := db.AutoMigrate(ctx); err != nil {
			log.Fatal("Schema migration failed", zap.Error(err))
		}
		log.Info("Schema is up to date")

	case "seed":
		methods, err := persistence.SeedPaymentMethods(ctx, db.DB)
		if err != nil {
			log.Fatal("Seeding payment methods failed", zap.Error(err))
		}
		log.Info("Payment methods seeded", zap.Int("count", len(methods)))

	case "demo":
		if err := seedDemo(ctx, db, log); err != nil {
			log.Fatal("Seeding demo data failed", zap.Error(err))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// seedDemo creates the schema, the payment methods and a small catalog for loadgen
func seedDemo(ctx context.Context, db *persistence.Database, log *zap.Logger) error {
	if err := db.AutoMigrate(ctx); err != nil {
		return err
	}
	if _, err := persistence.SeedPaymentMethods(ctx, db.DB); err != nil {
		return err
	}

	client, err := partner.NewClient("Demo Customer", "demo@example.com")
	if err != nil {
		return err
	}
	if err := persistence.NewGormClientRepository(db.DB).Save(ctx, client); err != nil {
		return err
	}

	products := persistence.NewGormProductRepository(db.DB)
	catalogRows := []struct {
		code, name, price string
		stock             int
	}{
		{"LAMP-01", "Desk lamp", "19.90", 50},
		{"CHAIR-01", "Office chair", "89.29", 20},
		{"PEN-01", "Ballpoint pen", "1.10", 500},
	}
	for _, row := range catalogRows {
		if existing, err := products.FindByCode(ctx, row.code); err == nil {
			log.Info("Product already present", zap.String("code", existing.Code), zap.Int64("id", existing.ID))
			continue
		}
		p, err := catalog.NewProduct(row.code, row.name, decimal.RequireFromString(row.price), row.stock)
		if err != nil {
			return err
		}
		if err := products.Save(ctx, p); err != nil {
			return err
		}
		log.Info("Product created", zap.String("code", p.Code), zap.Int64("id", p.ID), zap.Int("stock", p.Stock))
	}

	log.Info("Demo data ready", zap.Int64("client_id", client.ID))
	return nil
}

func printUsage() {
	fmt.Println(`Invoicing schema tool

Usage:
  migrate [flags] <command>

Commands:
  up      Create or update every table and index
  seed    Insert the supported payment methods (idempotent)
  demo    up + seed, then a demo client and a small product catalog

Flags:
  -log-level string   Log level: debug, info, warn, error (default: info)
  -timeout duration   Abort after this long (default: 2m)

Environment Variables (also read from .env):
  INV_DATABASE_DRIVER, INV_DATABASE_HOST, INV_DATABASE_PORT, INV_DATABASE_USER,
  INV_DATABASE_PASSWORD, INV_DATABASE_DBNAME, INV_DATABASE_SSLMODE, INV_DATABASE_PATH

Examples:
  migrate up
  INV_DATABASE_DRIVER=sqlite INV_DATABASE_PATH=dev.db migrate demo`)
}
