package utilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/testutil"
)

func newRegistry(t *testing.T) (*Registry, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	r := NewRegistry(repository.NewUtilityTypeRepository(db), nil)
	_, err := r.SeedSystemTypes(t.Context())
	require.NoError(t, err)
	return r, db
}

func typeByKey(t *testing.T, r *Registry, key string) *entities.UtilityType {
	t.Helper()
	types, err := r.List(t.Context())
	require.NoError(t, err)
	for i := range types {
		if types[i].Key == key {
			return &types[i]
		}
	}
	t.Fatalf("utility type %q not found", key)
	return nil
}

func TestSeedSystemTypes_Idempotent(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)

	created, err := r.SeedSystemTypes(t.Context())
	require.NoError(t, err)
	assert.Zero(t, created)

	types, err := r.List(t.Context())
	require.NoError(t, err)
	require.Len(t, types, len(SystemTypes()))
	for _, ut := range types {
		assert.True(t, ut.IsSystem, ut.Key)
	}
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	ctx := t.Context()

	_, err := r.Create(ctx, TypeInput{Key: "Storm Water"})
	require.ErrorIs(t, err, errors.ErrInvalidKeyFormat)
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = r.Create(ctx, TypeInput{Key: "storm_water", Icon: "rocket"})
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "icon", verr.Field)

	_, err = r.Create(ctx, TypeInput{Key: "storm_water", ColorScheme: "plaid"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "color_scheme", verr.Field)

	ut, err := r.Create(ctx, TypeInput{Key: "storm_water"})
	require.NoError(t, err)
	assert.Equal(t, "Storm Water", ut.Label)
	assert.Equal(t, defaultIcon, ut.Icon)
	assert.Equal(t, defaultColorScheme, ut.ColorScheme)
	assert.False(t, ut.IsSystem)

	_, err = r.Create(ctx, TypeInput{Key: "storm_water", Label: "Again"})
	require.ErrorIs(t, err, errors.ErrDuplicateKey)
	var dup *errors.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "storm_water", dup.Key)

	_, err = r.Create(ctx, TypeInput{Key: "water"})
	require.ErrorIs(t, err, errors.ErrDuplicateKey, "system keys are taken too")
}

func TestRename(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t)
	ctx := t.Context()

	water := typeByKey(t, r, "water")
	renamed, err := r.Rename(ctx, water.ID, "City Water")
	require.NoError(t, err)
	assert.Equal(t, "City Water", renamed.Label)
	assert.Equal(t, "water", renamed.Key, "key is immutable")

	_, err = r.Rename(ctx, water.ID, "  ")
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = r.Rename(ctx, 9999, "Nope")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDelete_Guard(t *testing.T) {
	t.Parallel()
	r, db := newRegistry(t)
	ctx := t.Context()

	err := r.Delete(ctx, typeByKey(t, r, "gas").ID)
	require.ErrorIs(t, err, errors.ErrInUse, "system types cannot be deleted")

	unused, err := r.Create(ctx, TypeInput{Key: "hoa"})
	require.NoError(t, err)
	usage, err := r.Usage(ctx, unused.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.UtilityTypeUsage{}, usage)
	require.NoError(t, r.Delete(ctx, unused.ID))

	used, err := r.Create(ctx, TypeInput{Key: "solar"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&entities.UtilityAccount{
		GLAccountNumber: "6400", UtilityTypeID: used.ID, IsActive: true,
	}).Error)

	err = r.Delete(ctx, used.ID)
	require.ErrorIs(t, err, errors.ErrInUse)
	var inUse *errors.InUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, int64(1), inUse.Accounts)
	assert.Zero(t, inUse.Expenses)

	err = r.Delete(ctx, 4242)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestResetToDefaults(t *testing.T) {
	t.Parallel()
	r, db := newRegistry(t)
	ctx := t.Context()

	for _, key := range []string{"hoa", "pest_control", "solar"} {
		_, err := r.Create(ctx, TypeInput{Key: key})
		require.NoError(t, err)
	}
	solar := typeByKey(t, r, "solar")
	require.NoError(t, db.Create(&entities.UtilityAccount{
		GLAccountNumber: "6450", UtilityTypeID: solar.ID, IsActive: false,
	}).Error)

	// A missing system type is restored.
	require.NoError(t, db.Where(map[string]any{"key": "trash"}).Delete(&entities.UtilityType{}).Error)

	removed, err := r.ResetToDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	types, err := r.List(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(types))
	for _, ut := range types {
		keys = append(keys, ut.Key)
	}
	assert.ElementsMatch(t, []string{"water", "electric", "gas", "sewer", "trash", "internet", "solar"}, keys)
}

func TestDefaultLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Storm Water", DefaultLabel("storm_water"))
	assert.Equal(t, "Hoa", DefaultLabel("hoa"))
	assert.Equal(t, "Zone 2 Heat", DefaultLabel("zone_2_heat"))
}
