package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

type memVouchers struct {
	items   []voucher.Voucher
	eachErr error
	queried [][]string
}

func (m *memVouchers) Each(ctx context.Context, fn func(voucher.Voucher) error) error {
	for _, v := range m.items {
		if err := fn(v); err != nil {
			return err
		}
	}
	return m.eachErr
}

func (m *memVouchers) Duplicates(_ context.Context, codes []string) ([]string, error) {
	m.queried = append(m.queried, codes)
	counts := make(map[string]int)
	for _, v := range m.items {
		counts[v.Code]++
	}
	var dups []string
	for _, c := range codes {
		if counts[c] > 1 {
			dups = append(dups, c)
		}
	}
	return dups, nil
}

var created = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newVoucher(code string) voucher.Voucher {
	return voucher.Voucher{
		ID:        uuid.New(),
		Code:      code,
		OfferID:   uuid.MustParse("0f8c1b2a-3d4e-4f50-8a61-7b2c3d4e5f60"),
		OrderID:   uuid.New(),
		CreatedAt: created,
	}
}

func readExport(t *testing.T, b []byte) []string {
	t.Helper()
	gz, err := pgzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = gz.Close() }()
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
}

func TestAuditor_Clean(t *testing.T) {
	src := &memVouchers{items: []voucher.Voucher{
		newVoucher("ABCD-EFGH-JKLM-NPQR"),
		newVoucher("STUV-WXYZ-2345-6789"),
	}}
	a := &auditor{vouchers: src, capacity: 10, lg: zaptest.NewLogger(t)}

	var out bytes.Buffer
	rep, err := a.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.True(t, rep.Clean())
	assert.Equal(t, uint64(2), rep.Total)

	lines := readExport(t, out.Bytes())
	require.Len(t, lines, 2)
	v := src.items[0]
	assert.Equal(t,
		"ABCD-EFGH-JKLM-NPQR,"+v.OrderID.String()+","+v.OfferID.String()+",2026-03-14T12:00:00Z",
		lines[0],
	)
}

func TestAuditor_FindsProblems(t *testing.T) {
	src := &memVouchers{items: []voucher.Voucher{
		newVoucher("ABCD-EFGH-JKLM-NPQR"),
		newVoucher("bad code"),
		newVoucher("ABCD-EFGH-JKLM-NPQR"),
		newVoucher("STUV-WXYZ-2345-6789"),
	}}
	a := &auditor{vouchers: src, capacity: 10, lg: zaptest.NewLogger(t)}

	var out bytes.Buffer
	rep, err := a.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.False(t, rep.Clean())
	assert.Equal(t, uint64(4), rep.Total)
	assert.Equal(t, []string{"bad code"}, rep.Malformed)
	assert.Equal(t, []string{"ABCD-EFGH-JKLM-NPQR"}, rep.Duplicates)
	require.NotEmpty(t, src.queried)
	assert.Contains(t, src.queried[0], "ABCD-EFGH-JKLM-NPQR")
	assert.Len(t, readExport(t, out.Bytes()), 4)
}

func TestAuditor_QuotesExportFields(t *testing.T) {
	src := &memVouchers{items: []voucher.Voucher{newVoucher("AB,CD")}}
	a := &auditor{vouchers: src, capacity: 10, lg: zaptest.NewLogger(t)}

	var out bytes.Buffer
	rep, err := a.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"AB,CD"}, rep.Malformed)

	lines := readExport(t, out.Bytes())
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], `"AB,CD",`), lines[0])
}

func TestAuditor_SourceError(t *testing.T) {
	src := &memVouchers{
		items:   []voucher.Voucher{newVoucher("ABCD-EFGH-JKLM-NPQR")},
		eachErr: errors.New("connection reset"),
	}
	a := &auditor{vouchers: src, capacity: 10, lg: zaptest.NewLogger(t)}

	_, err := a.Run(context.Background(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, src.queried)
}
