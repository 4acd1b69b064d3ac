package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/testutil"
)

func TestSettingRepository_CreateGetUpdate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSettingRepository(db)
	ctx := t.Context()

	s := &entities.Setting{Category: "sync", Key: "batch_size", Value: entities.JSONText(`100`), Description: "Records per page"}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, "sync", "batch_size")
	require.NoError(t, err)
	assert.JSONEq(t, `100`, string(got.Value))
	assert.Equal(t, "Records per page", got.Description)

	got.Value = entities.JSONText(`250`)
	got.Description = ""
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.Get(ctx, "sync", "batch_size")
	require.NoError(t, err)
	assert.JSONEq(t, `250`, string(got.Value))
	assert.Empty(t, got.Description)

	_, err = repo.Get(ctx, "sync", "missing")
	require.ErrorIs(t, err, ErrSettingNotFound)

	err = repo.Update(ctx, &entities.Setting{Category: "sync", Key: "missing", Value: entities.JSONText(`1`)})
	require.ErrorIs(t, err, ErrSettingNotFound)
}

func TestSettingRepository_UniquePerCategory(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSettingRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.Create(ctx, &entities.Setting{Category: "alerts", Key: "enabled", Value: entities.JSONText(`true`)}))
	require.NoError(t, repo.Create(ctx, &entities.Setting{Category: "features", Key: "enabled", Value: entities.JSONText(`false`)}),
		"same key in another category is allowed")

	err := repo.Create(ctx, &entities.Setting{Category: "alerts", Key: "enabled", Value: entities.JSONText(`false`)})
	require.ErrorIs(t, err, ErrUniqueViolation)
}

func TestSettingRepository_CreateIfAbsent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSettingRepository(db)
	ctx := t.Context()

	created, err := repo.CreateIfAbsent(ctx, &entities.Setting{Category: "alerts", Key: "failure_threshold", Value: entities.JSONText(`3`)})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, &entities.Setting{Category: "alerts", Key: "failure_threshold", Value: entities.JSONText(`9`)})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.Get(ctx, "alerts", "failure_threshold")
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(got.Value))
}

func TestSettingRepository_List(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSettingRepository(db)
	ctx := t.Context()

	for _, s := range []entities.Setting{
		{Category: "sync", Key: "full_sync_time", Value: entities.JSONText(`"02:00"`)},
		{Category: "sync", Key: "batch_size", Value: entities.JSONText(`100`)},
		{Category: "rate_limit", Key: "max_retries", Value: entities.JSONText(`5`)},
	} {
		require.NoError(t, repo.Create(ctx, &s))
	}

	syncRows, err := repo.ListByCategory(ctx, "sync")
	require.NoError(t, err)
	require.Len(t, syncRows, 2)
	assert.Equal(t, "full_sync_time", syncRows[0].Key, "rows keep insertion order")

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "rate_limit", all[0].Category)
}

func TestSettingRepository_ScalarValuesRoundTrip(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSettingRepository(db)
	ctx := t.Context()

	values := map[string]string{
		"batch_size":   `100`,
		"ratio":        `0.25`,
		"enabled":      `true`,
		"cleared":      `null`,
		"full_sync":    `"02:00"`,
		"destinations": `["ops","finance"]`,
	}
	for key, raw := range values {
		require.NoError(t, repo.Create(ctx, &entities.Setting{Category: "sync", Key: key, Value: entities.JSONText(raw)}))
	}

	var storedType string
	require.NoError(t, db.Raw("SELECT typeof(value) FROM settings WHERE key = ?", "batch_size").Scan(&storedType).Error)
	assert.Equal(t, "text", storedType)

	for key, raw := range values {
		got, err := repo.Get(ctx, "sync", key)
		require.NoError(t, err, key)
		assert.JSONEq(t, raw, string(got.Value), key)
	}

	got, err := repo.Get(ctx, "sync", "batch_size")
	require.NoError(t, err)
	got.Value = entities.JSONText(`250`)
	require.NoError(t, repo.Update(ctx, got))

	rows, err := repo.ListByCategory(ctx, "sync")
	require.NoError(t, err)
	assert.Len(t, rows, len(values))
}
