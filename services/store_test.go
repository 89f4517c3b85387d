package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flashbots/river/negotiation"
	"github.com/flashbots/river/testutil"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store negotiation.Store) {
	ctx := context.Background()
	employer := testutil.NewParty(t)
	candidate := testutil.NewParty(t)

	t.Run("create and load", func(t *testing.T) {
		s := testutil.NewSession(t, employer, testutil.WithVariant(negotiation.VariantBreakdown))
		require.NoError(t, store.Create(ctx, s))

		loaded, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s, loaded)
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := testutil.NewSession(t, employer)
		require.NoError(t, store.Create(ctx, s))
		require.ErrorIs(t, store.Create(ctx, s), negotiation.ErrDuplicateID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.Load(ctx, testutil.RandomID(t))
		require.ErrorIs(t, err, negotiation.ErrNotFound)

		s := testutil.NewSession(t, employer)
		require.ErrorIs(t, store.Save(ctx, s), negotiation.ErrNotFound)
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := testutil.NewSession(t, employer)
		require.NoError(t, store.Create(ctx, s))

		require.NoError(t, s.Join(candidate.Identity))
		require.NoError(t, s.SubmitEmployer(employer.Identity, negotiation.Single(100)))
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s, loaded)
	})

	t.Run("ids above max int64", func(t *testing.T) {
		id := testutil.RandomID(t) | 1<<63
		s := testutil.NewSession(t, employer, testutil.WithID(id))
		require.NoError(t, store.Create(ctx, s))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.Equal(t, id, loaded.ID)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, negotiation.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "river.db")
	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)

	// Records survive a reopen.
	employer := testutil.NewParty(t)
	s := testutil.NewSession(t, employer)
	require.NoError(t, store.Create(context.Background(), s))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("RIVER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RIVER_TEST_POSTGRES_DSN not set")
	}

	store, err := OpenPostgresStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := &PostgresConfig{Host: "db", Port: 5432, User: "river", Password: "pw", Database: "river"}
	require.Equal(t, "host=db port=5432 user=river password=pw dbname=river sslmode=disable", cfg.ConnectionString())

	cfg.SSLMode = "require"
	require.Contains(t, cfg.ConnectionString(), "sslmode=require")
}
