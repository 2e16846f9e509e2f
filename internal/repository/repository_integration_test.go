//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-checkout/internal/domain/business"
	"github.com/xenking/kart-checkout/internal/domain/geo"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Schema must tolerate being applied twice.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	w := NewCatalogWriter(pool)

	require.NoError(t, w.UpsertBusiness(ctx, business.Business{
		ID:       "b1",
		Name:     "Apparel",
		Activity: "Clothing store",
		Location: geo.Location{
			City:   "Almaty",
			Coords: geo.Coordinates{Latitude: 43.2389, Longitude: 76.9578},
		},
		Located: true,
	}))
	require.NoError(t, w.UpsertBusiness(ctx, business.Business{
		ID:       "b2",
		Name:     "Workshop",
		Activity: "Knitwear",
	}))

	require.NoError(t, w.UpsertProducts(ctx, []product.Product{
		{
			ID: "p1", Name: "Shirt", Price: decimal.RequireFromString("45.00"), Discount: 10,
			Category: "CLOTHES", Images: []string{"a.jpg", "b.jpg"},
			Business: product.Business{ID: "b1"},
		},
		{
			ID: "p2", Name: "Scarf", Price: decimal.RequireFromString("30.00"),
			Category: "CLOTHES",
			Business: product.Business{ID: "b2"},
		},
	}))
}

func TestProductRepository(t *testing.T) {
	pool := startPostgres(t)
	seedCatalog(t, pool)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	t.Run("List", func(t *testing.T) {
		products, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "Scarf", products[0].Name)
		assert.Equal(t, "Shirt", products[1].Name)
		assert.Empty(t, products[0].Images)
	})

	t.Run("GetByID", func(t *testing.T) {
		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("45").Equal(p.Price))
		assert.Equal(t, 10, p.Discount)
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, p.Images)
		assert.Equal(t, product.Business{ID: "b1", Activity: "Clothing store"}, p.Business)
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("GetByIDs", func(t *testing.T) {
		products, err := repo.GetByIDs(ctx, []string{"p2", "missing", "p1"})
		require.NoError(t, err)
		assert.Len(t, products, 2)
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		w := NewCatalogWriter(pool)
		require.NoError(t, w.UpsertProducts(ctx, []product.Product{{
			ID: "p2", Name: "Scarf", Price: decimal.RequireFromString("25.50"), Discount: 5,
			Category: "CLOTHES", Business: product.Business{ID: "b2"},
		}}))

		p, err := repo.GetByID(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, "25.5", p.Price.String())
		assert.Equal(t, 5, p.Discount)
	})
}

func TestBusinessRepository_Locations(t *testing.T) {
	pool := startPostgres(t)
	seedCatalog(t, pool)
	repo := NewBusinessRepository(pool)

	locations, err := repo.Locations(context.Background(), []string{"b1", "b2", "b3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]geo.Coordinates{
		"b1": {Latitude: 43.2389, Longitude: 76.9578},
	}, locations)

	empty, err := repo.Locations(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
