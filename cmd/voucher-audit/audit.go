package main

import (
	"context"
	"encoding/csv"
	"io"
	"slices"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	// confirmBatch bounds the number of codes sent in one duplicate query.
	confirmBatch = 1000
)

// report summarizes one audit run.
type report struct {
	Total      uint64
	Malformed  []string
	Duplicates []string
}

// Clean reports whether every voucher code is well formed and unique.
func (r *report) Clean() bool {
	return len(r.Malformed) == 0 && len(r.Duplicates) == 0
}

type auditor struct {
	vouchers voucher.Repository
	capacity uint
	lg       *zap.Logger
}

// Run streams every voucher into a gzip CSV export on w while screening codes.
// Bloom filter hits are only candidates; they are confirmed against the
// repository before being reported as duplicates.
func (a *auditor) Run(ctx context.Context, w io.Writer) (*report, error) {
	capacity := a.capacity
	if capacity == 0 {
		capacity = 1
	}
	filter := bloom.NewWithEstimates(capacity, bloomFPR)

	var (
		rep        report
		candidates []string
	)
	stream := make(chan voucher.Voucher, 256)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(stream)
		return a.vouchers.Each(gctx, func(v voucher.Voucher) error {
			select {
			case stream <- v:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	g.Go(func() error {
		gz := pgzip.NewWriter(w)
		out := csv.NewWriter(gz)
		for v := range stream {
			if err := out.Write(exportRecord(v)); err != nil {
				return errors.Wrap(err, "write export line")
			}
			rep.Total++
			if rep.Total%progressEvery == 0 {
				a.lg.Info("Audit progress", zap.Uint64("vouchers", rep.Total))
			}
			if !voucher.ValidCode(v.Code) {
				rep.Malformed = append(rep.Malformed, v.Code)
			}
			if filter.TestOrAddString(v.Code) {
				candidates = append(candidates, v.Code)
			}
		}
		out.Flush()
		if err := out.Error(); err != nil {
			return errors.Wrap(err, "flush export")
		}
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "close gzip writer")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.lg.Info("Screening complete",
		zap.Uint64("vouchers", rep.Total),
		zap.Int("malformed", len(rep.Malformed)),
		zap.Int("candidates", len(candidates)),
	)

	dups, err := a.confirm(ctx, candidates)
	if err != nil {
		return nil, err
	}
	rep.Duplicates = dups
	return &rep, nil
}

func (a *auditor) confirm(ctx context.Context, candidates []string) ([]string, error) {
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)

	var dups []string
	for chunk := range slices.Chunk(candidates, confirmBatch) {
		found, err := a.vouchers.Duplicates(ctx, chunk)
		if err != nil {
			return nil, errors.Wrap(err, "confirm duplicates")
		}
		dups = append(dups, found...)
	}
	slices.Sort(dups)
	return dups, nil
}

// exportRecord is one export row: code, order_id, offer_id, created_ts.
func exportRecord(v voucher.Voucher) []string {
	return []string{
		v.Code,
		v.OrderID.String(),
		v.OfferID.String(),
		v.CreatedAt.UTC().Format(time.RFC3339),
	}
}
