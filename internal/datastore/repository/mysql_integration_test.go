//go:build integration

package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/testutil/containers"
)

// MySQL test container shared across all tests in this package
var mysqlContainer *containers.MySQLContainer

var allTables = []string{
	"alert_history", "alert_rules", "jobs", "expenses",
	"utility_formatting_rules", "utility_accounts", "utility_types", "settings",
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	mysqlContainer, err = containers.NewMySQLContainer(ctx, nil)
	if err != nil {
		panic("failed to create MySQL container: " + err.Error())
	}

	if err := mysqlContainer.DB().AutoMigrate(entities.All()...); err != nil {
		_ = mysqlContainer.Terminate(context.Background())
		panic("failed to run migrations: " + err.Error())
	}

	code := m.Run()

	if err := mysqlContainer.Terminate(context.Background()); err != nil {
		panic("failed to terminate MySQL container: " + err.Error())
	}
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	require.NoError(t, mysqlContainer.Reset(t.Context(), allTables))
}

func TestMySQL_SettingKeyColumnAndUniqueness(t *testing.T) {
	resetTables(t)
	repo := repository.NewSettingRepository(mysqlContainer.DB())
	ctx := t.Context()

	require.NoError(t, repo.Create(ctx, &entities.Setting{Category: "sync", Key: "batch_size", Value: entities.JSONText(`100`)}))

	got, err := repo.Get(ctx, "sync", "batch_size")
	require.NoError(t, err)
	assert.JSONEq(t, `100`, string(got.Value))

	err = repo.Create(ctx, &entities.Setting{Category: "sync", Key: "batch_size", Value: entities.JSONText(`5`)})
	require.ErrorIs(t, err, repository.ErrUniqueViolation)

	created, err := repo.CreateIfAbsent(ctx, &entities.Setting{Category: "sync", Key: "batch_size", Value: entities.JSONText(`5`)})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMySQL_ConcurrentSeedCreatesOnce(t *testing.T) {
	resetTables(t)
	repo := repository.NewSettingRepository(mysqlContainer.DB())
	ctx := t.Context()

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.CreateIfAbsent(ctx, &entities.Setting{Category: "alerts", Key: "failure_threshold", Value: entities.JSONText(`3`)})
			assert.NoError(t, err)
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	var inserted int
	for created := range results {
		if created {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)
}

func TestMySQL_UnmappedAndReset(t *testing.T) {
	resetTables(t)
	db := mysqlContainer.DB()
	ctx := t.Context()

	types := repository.NewUtilityTypeRepository(db)
	accounts := repository.NewUtilityAccountRepository(db)
	expenses := repository.NewExpenseRepository(db)

	water := &entities.UtilityType{Key: "water", Label: "Water", Icon: "droplet", ColorScheme: "blue", IsSystem: true}
	custom := &entities.UtilityType{Key: "solar", Label: "Solar", Icon: "sun", ColorScheme: "amber"}
	require.NoError(t, types.Create(ctx, water))
	require.NoError(t, types.Create(ctx, custom))
	require.NoError(t, accounts.Create(ctx, &entities.UtilityAccount{GLAccountNumber: "6100", UtilityTypeID: water.ID, IsActive: true}))

	now := time.Now().UTC().Truncate(time.Second)
	for i, account := range []string{"6100", "6210", "6210", "6250"} {
		require.NoError(t, expenses.Upsert(ctx, &entities.Expense{
			SourceID:        "af-" + string(rune('a'+i)),
			PropertyID:      "p-1",
			GLAccountNumber: account,
			Amount:          decimal.NewFromInt(50),
			PostedOn:        now,
		}))
	}

	unmapped, err := expenses.UnmappedSince(ctx, now.AddDate(0, 0, -90), 0)
	require.NoError(t, err)
	require.Len(t, unmapped, 2)
	assert.Equal(t, "6210", unmapped[0].GLAccountNumber)
	assert.Equal(t, int64(2), unmapped[0].Occurrences)

	removed, err := types.DeleteUnusedCustom(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
