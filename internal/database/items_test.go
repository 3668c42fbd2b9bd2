package database

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsgram/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := New(context.Background(), dbPath, slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func testItem(source string) *models.NewsItem {
	return &models.NewsItem{
		Title:       "Final exam schedule released",
		Body:        "Final exam schedule released\n\nSee the attached table.",
		Source:      source,
		SourceTitle: "Campus News",
		PostURL:     "https://t.me/" + source + "/42",
	}
}

func TestInsertItemIfNewAcceptsThenRejects(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	key := models.IngestionKey{Source: "campus", ExternalID: "42"}

	accepted, err := db.InsertItemIfNew(ctx, testItem("campus"), key)
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = db.InsertItemIfNew(ctx, testItem("campus"), key)
	require.NoError(t, err)
	assert.False(t, accepted)

	items, err := db.LatestItems(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestInsertItemIfNewDistinctKeys(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for _, externalID := range []string{"1", "2", "3"} {
		accepted, err := db.InsertItemIfNew(ctx, testItem("campus"),
			models.IngestionKey{Source: "campus", ExternalID: externalID})
		require.NoError(t, err)
		assert.True(t, accepted)
	}

	// The same sequence number under another source is a different key.
	accepted, err := db.InsertItemIfNew(ctx, testItem("sports"),
		models.IngestionKey{Source: "sports", ExternalID: "1"})
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestInsertItemIfNewUnattributableAlwaysAccepted(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	key := models.IngestionKey{Source: "unknown"}

	for range 3 {
		accepted, err := db.InsertItemIfNew(ctx, testItem("unknown"), key)
		require.NoError(t, err)
		assert.True(t, accepted)
	}

	items, err := db.LatestItems(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestInsertItemIfNewConcurrentSameKey(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	key := models.IngestionKey{Source: "campus", ExternalID: "7"}

	const attempts = 8

	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()

			accepted, err := db.InsertItemIfNew(ctx, testItem("campus"), key)
			assert.NoError(t, err)
			results <- accepted
		}()
	}

	wg.Wait()
	close(results)

	acceptedCount := 0
	for accepted := range results {
		if accepted {
			acceptedCount++
		}
	}

	assert.Equal(t, 1, acceptedCount)
}

func TestLatestItemsOrderedNewestFirst(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for i, title := range []string{"first", "second", "third"} {
		item := testItem("campus")
		item.Title = title

		accepted, err := db.InsertItemIfNew(ctx, item,
			models.IngestionKey{Source: "campus", ExternalID: string(rune('a' + i))})
		require.NoError(t, err)
		require.True(t, accepted)
	}

	items, err := db.LatestItems(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "third", items[0].Title)
	assert.Equal(t, "second", items[1].Title)
}

func TestInsertItemIfNewAssignsID(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	item := testItem("campus")
	accepted, err := db.InsertItemIfNew(ctx, item,
		models.IngestionKey{Source: "campus", ExternalID: "42"})
	require.NoError(t, err)
	require.True(t, accepted)
	assert.NotZero(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())
}
