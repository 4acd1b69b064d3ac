package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/formatting"
	"github.com/ledgerline/propops/internal/testutil"
)

type fixture struct {
	report   *UtilityCosts
	expenses repository.ExpenseRepository
	water    uint
	electric uint
	seq      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	types := repository.NewUtilityTypeRepository(db)
	rules := repository.NewFormattingRuleRepository(db)
	ctx := t.Context()

	water := &entities.UtilityType{Key: "water", Label: "Water", Icon: "droplet", ColorScheme: "blue", IsSystem: true}
	electric := &entities.UtilityType{Key: "electric", Label: "Electric", Icon: "zap", ColorScheme: "yellow", IsSystem: true}
	require.NoError(t, types.Create(ctx, water))
	require.NoError(t, types.Create(ctx, electric))

	require.NoError(t, rules.Create(ctx, &entities.FormattingRule{
		UtilityTypeID: water.ID, Name: "Water spike", Operator: entities.OperatorIncreaseOverAverage,
		Threshold: decimal.NewFromInt(25), Color: "#b91c1c", BackgroundColor: "#fee", Priority: 10, Enabled: true,
	}))
	require.NoError(t, rules.Create(ctx, &entities.FormattingRule{
		UtilityTypeID: water.ID, Name: "Water drop", Operator: entities.OperatorDecreaseUnderAverage,
		Threshold: decimal.NewFromInt(25), Color: "#15803d", Enabled: true,
	}))

	expenses := repository.NewExpenseRepository(db)
	return &fixture{
		report:   NewUtilityCosts(expenses, types, rules, nil),
		expenses: expenses,
		water:    water.ID,
		electric: electric.ID,
	}
}

func (f *fixture) add(t *testing.T, property string, typeID uint, posted time.Time, amount string) {
	t.Helper()
	f.seq++
	tag := typeID
	require.NoError(t, f.expenses.Upsert(t.Context(), &entities.Expense{
		SourceID:        fmt.Sprintf("exp-%d", f.seq),
		PropertyID:      property,
		GLAccountNumber: "6210",
		Amount:          decimal.RequireFromString(amount),
		PostedOn:        posted,
		UtilityTypeID:   &tag,
	}))
}

func month(y int, m time.Month) formatting.Month { return formatting.Month{Year: y, Month: m} }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func (f *fixture) seedHistory(t *testing.T) {
	t.Helper()
	for m := time.January; m <= time.December; m++ {
		f.add(t, "p1", f.water, day(2024, m, 10), "100")
	}
	// Two bills in one month are summed.
	f.add(t, "p1", f.water, day(2025, 1, 5), "80")
	f.add(t, "p1", f.water, day(2025, 1, 20), "50")
	f.add(t, "p1", f.water, day(2025, 2, 3), "70")
	// Only before the range: feeds nothing and creates no row.
	f.add(t, "p2", f.electric, day(2024, 6, 1), "300")
	// In range without history: no average, no annotation.
	f.add(t, "p0", f.electric, day(2025, 2, 14), "45.50")
}

func TestRows(t *testing.T) {
	f := newFixture(t)
	f.seedHistory(t)

	rows, err := f.report.Rows(t.Context(), Range{From: month(2025, 1), To: month(2025, 3)})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "p0", rows[0].PropertyID)
	assert.Equal(t, "Electric", rows[0].TypeLabel)
	assert.False(t, rows[0].Cells[1].HasAverage)
	assert.Nil(t, rows[0].Cells[1].Annotation)

	water := rows[1]
	assert.Equal(t, "p1", water.PropertyID)
	require.Len(t, water.Cells, 3)
	assert.True(t, decimal.NewFromInt(200).Equal(water.Total), "got %s", water.Total)

	jan := water.Cells[0]
	assert.True(t, jan.HasData)
	assert.True(t, decimal.NewFromInt(130).Equal(jan.Amount))
	assert.True(t, decimal.NewFromInt(100).Equal(jan.Average))
	require.NotNil(t, jan.Annotation)
	assert.Equal(t, "Water spike", jan.Annotation.RuleName)
	assert.Equal(t, "30", jan.Annotation.DeltaPercent.String())

	// February averages Feb 2024..Jan 2025: (11*100 + 130) / 12 = 102.5, so 70 is -31.7%.
	feb := water.Cells[1]
	require.NotNil(t, feb.Annotation)
	assert.Equal(t, "Water drop", feb.Annotation.RuleName)

	mar := water.Cells[2]
	assert.False(t, mar.HasData)
	assert.Nil(t, mar.Annotation)
}

func TestRange(t *testing.T) {
	r := Range{From: month(2024, 11), To: month(2025, 2)}
	require.NoError(t, r.Validate())
	assert.Equal(t, []formatting.Month{month(2024, 11), month(2024, 12), month(2025, 1), month(2025, 2)}, r.Months())

	err := Range{From: month(2025, 2), To: month(2025, 1)}.Validate()
	require.ErrorIs(t, err, errors.ErrValidation)

	err = Range{From: month(2020, 1), To: month(2025, 1)}.Validate()
	require.ErrorIs(t, err, errors.ErrValidation)
}

func TestWriteXLSX(t *testing.T) {
	f := newFixture(t)
	f.seedHistory(t)

	var buf bytes.Buffer
	require.NoError(t, f.report.WriteXLSX(t.Context(), &buf, Range{From: month(2025, 1), To: month(2025, 2)}))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{costsSheet, flagsSheet}, wb.GetSheetList())

	raw := excelize.Options{RawCellValue: true}
	costs, err := wb.GetRows(costsSheet, raw)
	require.NoError(t, err)
	require.Len(t, costs, 3)
	assert.Equal(t, []string{"Property", "Utility", "2025-01", "2025-02", "Total"}, costs[0])
	assert.Equal(t, []string{"p0", "Electric", "", "45.5", "45.5"}, costs[1])
	assert.Equal(t, []string{"p1", "Water", "130", "70", "200"}, costs[2])

	plain, err := wb.GetCellStyle(costsSheet, "E3")
	require.NoError(t, err)
	spike, err := wb.GetCellStyle(costsSheet, "C3")
	require.NoError(t, err)
	drop, err := wb.GetCellStyle(costsSheet, "D3")
	require.NoError(t, err)
	assert.NotEqual(t, plain, spike)
	assert.NotEqual(t, spike, drop)

	flags, err := wb.GetRows(flagsSheet, raw)
	require.NoError(t, err)
	require.Len(t, flags, 3)
	assert.Equal(t, []string{"p1", "Water", "2025-01", "130", "100", "30", "Water spike"}, flags[1])
	assert.Equal(t, "Water drop", flags[2][6])
}

func TestExpandHex(t *testing.T) {
	assert.Equal(t, "#ffeeee", expandHex("#fee"))
	assert.Equal(t, "#b91c1c", expandHex("#b91c1c"))
}
