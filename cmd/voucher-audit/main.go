package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/offer-checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		outFile     string
		capacity    uint
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outFile, "out", "vouchers.csv.gz", "path of the gzip export")
	flag.UintVar(&capacity, "expected", 1_000_000, "expected number of vouchers, sizes the bloom filter")
	flag.Parse()

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rep, err := run(ctx, lg, databaseURL, outFile, capacity)
	if err != nil {
		lg.Fatal("Voucher audit failed", zap.Error(err))
	}
	if !rep.Clean() {
		lg.Fatal("Voucher audit found problems",
			zap.Strings("malformed", rep.Malformed),
			zap.Strings("duplicates", rep.Duplicates),
		)
	}
	lg.Info("Voucher audit passed", zap.Uint64("vouchers", rep.Total))
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, outFile string, capacity uint) (*report, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	f, err := os.Create(outFile)
	if err != nil {
		return nil, errors.Wrap(err, "create export file")
	}
	defer func() { _ = f.Close() }()

	a := &auditor{
		vouchers: postgres.NewVoucherRepository(pool),
		capacity: capacity,
		lg:       lg,
	}
	rep, err := a.Run(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "close export file")
	}
	lg.Info("Export written", zap.String("path", outFile), zap.Uint64("vouchers", rep.Total))
	return rep, nil
}
