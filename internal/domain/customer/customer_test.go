package customer

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo mimics the unique-email upsert of the storage layer.
type memRepo struct {
	mu      sync.Mutex
	byEmail map[string]*Customer
	inserts int
	err     error
}

func newMemRepo() *memRepo {
	return &memRepo{byEmail: make(map[string]*Customer)}
}

func (m *memRepo) FindOrCreate(_ context.Context, c *Customer) (*Customer, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byEmail[c.Email]; ok {
		return existing, nil
	}
	m.byEmail[c.Email] = c
	m.inserts++
	return c, nil
}

func jason() Contact {
	return Contact{
		FirstName: "Jason",
		LastName:  "Parent",
		Email:     "jason.a.parent@gmail.com",
	}
}

func TestResolve_NewCustomer(t *testing.T) {
	repo := newMemRepo()
	r := NewResolver(repo)

	c, err := r.Resolve(context.Background(), jason())
	require.NoError(t, err)
	assert.Equal(t, "jason.a.parent@gmail.com", c.Email)
	assert.Equal(t, "Jason", c.FirstName)
	assert.Equal(t, 1, repo.inserts)
}

func TestResolve_ExistingCustomerReused(t *testing.T) {
	repo := newMemRepo()
	r := NewResolver(repo)

	first, err := r.Resolve(context.Background(), jason())
	require.NoError(t, err)

	again := jason()
	again.FirstName = "Jay"
	again.Email = "  Jason.A.Parent@Gmail.com "
	second, err := r.Resolve(context.Background(), again)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jason", second.FirstName, "existing customer must not be overwritten")
	assert.Equal(t, 1, repo.inserts)
}

func TestResolve_ConcurrentSameEmail(t *testing.T) {
	repo := newMemRepo()
	r := NewResolver(repo)

	const n = 16
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.Resolve(context.Background(), jason())
			if assert.NoError(t, err) {
				ids <- c.ID.String()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, repo.inserts)
}

func TestResolve_RepositoryError(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("db down")

	_, err := NewResolver(repo).Resolve(context.Background(), jason())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve customer")
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.co", NormalizeEmail("  A@B.co\n"))
}
