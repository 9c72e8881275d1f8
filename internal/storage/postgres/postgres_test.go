//go:build integration

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/offer-checkout/internal/domain/customer"
	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/order"
	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("checkout"),
		tcpostgres.WithUsername("checkout"),
		tcpostgres.WithPassword("checkout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		panic(err)
	}
	defer func() { _ = testcontainers.TerminateContainer(container) }()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		panic(err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		panic(err)
	}
	// Migrations must be re-runnable on startup.
	if err := RunMigrations(ctx, testPool); err != nil {
		panic(err)
	}

	return m.Run()
}

func ptr[T any](v T) *T { return &v }

// seedCatalog stores a fresh organization with one ranked, one unranked, and
// one expired offer.
func seedCatalog(t *testing.T) (offer.Organization, []offer.Offer) {
	t.Helper()
	org := offer.Organization{ID: uuid.New(), Name: "Local Eats", Description: "Food"}
	past := time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond)
	offers := []offer.Offer{
		{
			ID:              uuid.New(),
			Title:           "Unranked",
			Value:           decimal.RequireFromString("18.00"),
			DiscountedValue: decimal.RequireFromString("12.00"),
			OrganizationID:  &org.ID,
		},
		{
			ID:              uuid.New(),
			Title:           "Ranked",
			Value:           decimal.RequireFromString("20.00"),
			DiscountedValue: decimal.RequireFromString("15.00"),
			Rank:            ptr(1),
			OrganizationID:  &org.ID,
		},
		{
			ID:              uuid.New(),
			Title:           "Expired",
			Value:           decimal.RequireFromString("40.00"),
			DiscountedValue: decimal.RequireFromString("25.00"),
			ExpiresAt:       &past,
			OrganizationID:  &org.ID,
		},
	}
	repo := NewOfferRepository(testPool)
	require.NoError(t, repo.SaveCatalog(context.Background(), []offer.Organization{org}, offers))
	return org, offers
}

func TestOfferRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOfferRepository(testPool)
	org, offers := seedCatalog(t)

	t.Run("ListActiveByOrganization", func(t *testing.T) {
		got, err := repo.ListActiveByOrganization(ctx, org.ID, time.Now())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Ranked", got[0].Title)
		assert.Equal(t, "Unranked", got[1].Title)
		assert.Nil(t, got[1].Rank)
		assert.True(t, decimal.RequireFromString("15.00").Equal(got[0].DiscountedValue))
	})

	t.Run("GetByIDReturnsExpired", func(t *testing.T) {
		got, err := repo.GetByID(ctx, offers[2].ID)
		require.NoError(t, err)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, got.Expired(time.Now()))
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, offer.ErrNotFound)
	})

	t.Run("GetOrganization", func(t *testing.T) {
		got, err := repo.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Local Eats", got.Name)

		_, err = repo.GetOrganization(ctx, uuid.New())
		require.ErrorIs(t, err, offer.ErrOrganizationNotFound)
	})
}

func TestCustomerRepository_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository(testPool)
	email := uuid.NewString() + "@example.com"

	first, err := repo.FindOrCreate(ctx, &customer.Customer{
		ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Email: email,
	})
	require.NoError(t, err)
	assert.Empty(t, first.PhoneNumber)

	second, err := repo.FindOrCreate(ctx, &customer.Customer{
		ID: uuid.New(), FirstName: "Augusta", LastName: "King", Email: email, PhoneNumber: "555",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada", second.FirstName)
}

func TestCustomerRepository_ConcurrentFirstOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository(testPool)
	email := uuid.NewString() + "@example.com"

	const n = 8
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := repo.FindOrCreate(ctx, &customer.Customer{
				ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Email: email,
			})
			assert.NoError(t, err)
			if c != nil {
				ids[i] = c.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT count(*) FROM customers WHERE email = $1`, email).Scan(&count))
	assert.Equal(t, 1, count)
}

// sequenceGenerator replays codes in order.
type sequenceGenerator struct {
	codes []string
	next  int
}

func (g *sequenceGenerator) Generate() (string, error) {
	code := g.codes[g.next%len(g.codes)]
	g.next++
	return code, nil
}

func newOrder(t *testing.T, qty int) *order.Order {
	t.Helper()
	ctx := context.Background()
	_, offers := seedCatalog(t)
	cust, err := NewCustomerRepository(testPool).FindOrCreate(ctx, &customer.Customer{
		ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Email: uuid.NewString() + "@example.com",
	})
	require.NoError(t, err)
	return &order.Order{
		ID:            uuid.New(),
		CustomerID:    cust.ID,
		OfferID:       offers[1].ID,
		Quantity:      qty,
		TransactionID: "txn-" + uuid.NewString(),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestOrderRepository_CreateWithVouchers(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	o := newOrder(t, 3)
	require.NoError(t, repo.CreateWithVouchers(ctx, o, voucher.NewRandomGenerator()))
	require.Len(t, o.Vouchers, 3)

	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT count(*) FROM vouchers WHERE order_id = $1`, o.ID).Scan(&count))
	assert.Equal(t, 3, count)
	for _, v := range o.Vouchers {
		assert.True(t, voucher.ValidCode(v.Code))
		assert.Equal(t, o.CustomerID, v.CustomerID)
	}
}

func TestOrderRepository_RegeneratesCollidingCode(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	taken := "TAKN-" + uuid.NewString()[:4] + "-AAAA-AAAA"
	first := newOrder(t, 1)
	require.NoError(t, repo.CreateWithVouchers(ctx, first, &sequenceGenerator{codes: []string{taken}}))

	fresh := "FRSH-" + uuid.NewString()[:4] + "-BBBB-BBBB"
	second := newOrder(t, 1)
	gen := &sequenceGenerator{codes: []string{taken, fresh}}
	require.NoError(t, repo.CreateWithVouchers(ctx, second, gen))

	require.Len(t, second.Vouchers, 1)
	assert.Equal(t, fresh, second.Vouchers[0].Code)
	assert.Equal(t, 2, gen.next)
}

func TestOrderRepository_CodeExhaustionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	taken := "XHST-" + uuid.NewString()[:4] + "-CCCC-CCCC"
	first := newOrder(t, 1)
	require.NoError(t, repo.CreateWithVouchers(ctx, first, &sequenceGenerator{codes: []string{taken}}))

	second := newOrder(t, 2)
	err := repo.CreateWithVouchers(ctx, second, &sequenceGenerator{codes: []string{taken}})
	require.ErrorIs(t, err, voucher.ErrCodeExhausted)
	assert.Empty(t, second.Vouchers)

	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE id = $1`, second.ID).Scan(&count))
	assert.Zero(t, count)
}

func TestOrderRepository_RepeatedWriteReturnsStoredVouchers(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	o := newOrder(t, 2)
	require.NoError(t, repo.CreateWithVouchers(ctx, o, voucher.NewRandomGenerator()))
	stored := map[string]bool{}
	for _, v := range o.Vouchers {
		stored[v.Code] = true
	}

	again := *o
	again.Vouchers = nil
	require.NoError(t, repo.CreateWithVouchers(ctx, &again, voucher.NewRandomGenerator()))
	require.Len(t, again.Vouchers, 2)
	for _, v := range again.Vouchers {
		assert.True(t, stored[v.Code], v.Code)
		assert.Equal(t, o.ID, v.OrderID)
	}

	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT count(*) FROM vouchers WHERE order_id = $1`, o.ID).Scan(&count))
	assert.Equal(t, 2, count)

	other := *o
	other.Vouchers = nil
	other.TransactionID = "txn-" + uuid.NewString()
	require.Error(t, repo.CreateWithVouchers(ctx, &other, voucher.NewRandomGenerator()))
}

func TestVoucherRepository(t *testing.T) {
	ctx := context.Background()
	o := newOrder(t, 2)
	require.NoError(t, NewOrderRepository(testPool).CreateWithVouchers(ctx, o, voucher.NewRandomGenerator()))

	repo := NewVoucherRepository(testPool)
	seen := make(map[string]bool)
	require.NoError(t, repo.Each(ctx, func(v voucher.Voucher) error {
		seen[v.Code] = true
		return nil
	}))
	for _, v := range o.Vouchers {
		assert.True(t, seen[v.Code])
	}

	dups, err := repo.Duplicates(ctx, []string{o.Vouchers[0].Code, o.Vouchers[1].Code})
	require.NoError(t, err)
	assert.Empty(t, dups)
}
