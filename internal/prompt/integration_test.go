//go:build integration

package prompt

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alysis/alysis/internal/app"
	"github.com/alysis/alysis/internal/database"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(ctx, pool, "../../migrations"))
	t.Cleanup(pool.Close)
	return pool
}

func createTestApp(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	apps := app.NewService(pool)
	a, _, err := apps.Create(context.Background(), app.CreateRequest{
		Name:         "itest " + uuid.NewString(),
		SystemPrompt: "You classify things.",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		apps.Delete(context.Background(), a.ID)
	})
	return a.ID
}

func TestPublishAtomicity(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewService(pool)
	appID := createTestApp(t, pool)

	v2, err := svc.Create(ctx, appID, CreateRequest{SystemPrompt: "updated prompt"})
	require.NoError(t, err)
	require.Nil(t, v2.PublishedAt)

	published, err := svc.Publish(ctx, appID, v2.ID)
	require.NoError(t, err)
	require.NotNil(t, published)
	require.NotNil(t, published.PublishedAt)

	// Both halves of the publish must be visible together.
	var activeVersionID *string
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT active_version_id FROM apps WHERE id = $1", appID).Scan(&activeVersionID))
	require.NotNil(t, activeVersionID)
	assert.Equal(t, v2.ID, *activeVersionID)

	// Publishing a version the app does not own touches nothing.
	missing, err := svc.Publish(ctx, appID, "pv-"+uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT active_version_id FROM apps WHERE id = $1", appID).Scan(&activeVersionID))
	assert.Equal(t, v2.ID, *activeVersionID)
}

func TestMaxVersionNumberStableAcrossFailedCreate(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewService(pool)
	appID := createTestApp(t, pool)

	before, err := svc.MaxVersionNumber(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, 1, before)

	// An unknown vendor violates the enum and the insert fails whole.
	_, err = svc.Create(ctx, appID, CreateRequest{SystemPrompt: "x", Vendor: "cohere"})
	require.Error(t, err)

	after, err := svc.MaxVersionNumber(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	v, err := svc.Create(ctx, appID, CreateRequest{SystemPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, before+1, v.Version)
}
