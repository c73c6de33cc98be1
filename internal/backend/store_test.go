package backend

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogue_CreateGetDelete(t *testing.T) {
	c := NewCatalogue()
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	a := c.Create(ProductRequest{Name: "Lamp", Price: 10})
	b := c.Create(ProductRequest{Name: "Chair", Price: 20})
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, fixed, a.CreatedAt)

	got, err := c.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "Chair", got.Name)

	require.NoError(t, c.Delete(1))
	assert.ErrorIs(t, c.Delete(1), ErrProductNotFound)
	_, err = c.Get(1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	// Ids are never reused
	assert.Equal(t, int64(3), c.Create(ProductRequest{Name: "Desk"}).ID)
}

func TestCatalogue_PageAndSearch(t *testing.T) {
	c := NewCatalogue()
	c.Seed()

	items, total := c.Page(1, 2)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)

	items, _ = c.Page(3, 2)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].ID)

	items, _ = c.Page(4, 2)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	assert.Len(t, c.Search("", 0, 0), 5)
	assert.Len(t, c.Search("  LAMP ", 0, 0), 2)
	assert.Len(t, c.Search("silent", 0, 0), 1, "description matches")
	assert.Len(t, c.Search("lamp", 2, 1), 1)
	assert.NotNil(t, c.Search("zzz", 0, 0))

	assert.Equal(t, 2, c.DeleteMany([]int64{1, 2, 42}))
	assert.Equal(t, 3, c.Len())
}

func TestCatalogue_Concurrent(t *testing.T) {
	c := NewCatalogue()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Create(ProductRequest{Name: "Item"})
			c.Page(1, 10)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
	all := c.All()
	assert.Equal(t, int64(50), all[len(all)-1].ID)
}

func TestUsers(t *testing.T) {
	u := NewUsers()

	alice, err := u.Register("Alice", "secret123", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)

	_, err = u.Register("alice", "other", "")
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := u.Authenticate("ALICE", "secret123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = u.Authenticate("alice", "secret124")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = u.Authenticate("nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = u.Get(1)
	require.NoError(t, err)
	_, err = u.Get(2)
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Equal passwords hash differently per user
	bob, err := u.Register("bob", "secret123", "")
	require.NoError(t, err)
	assert.NotEqual(t, alice.hash, bob.hash)
}

func TestTokenIssuer(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue(7)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	// Expired
	issuer.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Wrong secret
	other, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = other.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeCSV(t *testing.T) {
	input := "\ufeffname, price ,stock,unknown\n" +
		"Lamp,10.5,3,x\n" +
		"\n" +
		"Chair,,,\n" +
		"Desk,abc,1,\n" +
		"Bench,5,many,\n"
	rows, failed, err := DecodeCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, ImportRow{Line: 2, Product: ProductRequest{Name: "Lamp", Price: 10.5, Stock: 3}}, rows[0])
	assert.Equal(t, ImportRow{Line: 4, Product: ProductRequest{Name: "Chair"}}, rows[1])

	require.Len(t, failed, 2)
	assert.Equal(t, 5, failed[0].Line)
	assert.Contains(t, failed[0].Error, "price")
	assert.Equal(t, 6, failed[1].Line)
	assert.Contains(t, failed[1].Error, "stock")

	_, _, err = DecodeCSV(strings.NewReader("sku,price\n1,2\n"))
	assert.ErrorContains(t, err, "name column")
}

func TestEncodeCSV(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := EncodeCSV([]Product{{ID: 1, Name: "Lamp, brass", Price: 12, Stock: 2, CreatedAt: at, UpdatedAt: at}})
	require.NoError(t, err)
	assert.Equal(t,
		"id,name,category,price,stock,description,createdAt,updatedAt\n"+
			`1,"Lamp, brass",,12,2,,2026-01-02T03:04:05Z,2026-01-02T03:04:05Z`+"\n",
		string(data))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SHELF_BACKEND_PORT", "4000")
	t.Setenv("SHELF_BACKEND_LOGIN_SHAPE", "NESTED")
	t.Setenv("SHELF_BACKEND_TOKEN_TTL", "15m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:4000", cfg.Addr())
	assert.Equal(t, LoginShapeNested, cfg.LoginShape)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.allowCredentials())

	t.Setenv("SHELF_BACKEND_LOGIN_SHAPE", "sideways")
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("SHELF_BACKEND_LOGIN_SHAPE", "")
	t.Setenv("SHELF_BACKEND_PORT", "eighty")
	_, err = LoadConfig()
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.AllowOrigins = "http://a.test, *"
	assert.False(t, cfg.allowCredentials())
}
