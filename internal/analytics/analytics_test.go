package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/budgetbox/internal/model"
)

func demoBudget() model.Budget {
	return model.Budget{
		Income:        50000,
		MonthlyBills:  15000,
		Food:          8000,
		Transport:     5000,
		Subscriptions: 2000,
		Miscellaneous: 3000,
		Month:         "2025-11",
	}
}

func TestSummarize_DemoScenario(t *testing.T) {
	s := Summarize(demoBudget())

	assert.Equal(t, 33000.0, s.TotalExpenses)
	assert.InDelta(t, 66.0, s.BurnRate, 1e-9)
	assert.Equal(t, 17000.0, s.SavingsPotential)
	assert.InDelta(t, 34.0, s.SavingsPotential/50000*100, 1e-9)
	require.Len(t, s.Categories, 5)
}

func TestTotalExpenses_SumsCategories(t *testing.T) {
	budgets := []model.Budget{
		{},
		demoBudget(),
		{MonthlyBills: 1.5, Food: 2.25, Transport: 0, Subscriptions: 10, Miscellaneous: 0.25},
		{Income: 999, Food: 1000},
	}
	for _, b := range budgets {
		want := b.MonthlyBills + b.Food + b.Transport + b.Subscriptions + b.Miscellaneous
		assert.Equal(t, want, TotalExpenses(b))
	}
}

func TestBurnRate_ZeroIncome(t *testing.T) {
	assert.Equal(t, 0.0, BurnRate(model.Budget{Food: 500}))
	assert.Equal(t, 0.0, BurnRate(model.Budget{}))
}

func TestSavingsPotential_CanBeNegative(t *testing.T) {
	b := model.Budget{Income: 1000, Food: 1500}
	assert.Equal(t, -500.0, SavingsPotential(b))
	assert.InDelta(t, 150.0, BurnRate(b), 1e-9)
}

func TestCategories_ExcludesZeroValues(t *testing.T) {
	b := model.Budget{MonthlyBills: 0, Food: 100, Transport: 0, Subscriptions: 50, Miscellaneous: 0}
	cats := Categories(b)

	require.Len(t, cats, 2)
	assert.Equal(t, "Food", cats[0].Name)
	assert.Equal(t, "#36A2EB", cats[0].Color)
	assert.Equal(t, "Subscriptions", cats[1].Name)
	assert.Equal(t, "#4BC0C0", cats[1].Color)
	assert.InDelta(t, 100.0, cats[0].SharePercent+cats[1].SharePercent, 1e-9)
}

func TestCategories_CanonicalOrder(t *testing.T) {
	cats := Categories(demoBudget())
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Monthly Bills", "Food", "Transport", "Subscriptions", "Miscellaneous"}, names)
	assert.Equal(t, []model.Field{
		model.FieldMonthlyBills, model.FieldFood, model.FieldTransport,
		model.FieldSubscriptions, model.FieldMiscellaneous,
	}, ExpenseFields())
}

func TestProject_MidMonth(t *testing.T) {
	b := demoBudget()
	now := time.Date(2025, 11, 15, 9, 0, 0, 0, time.UTC)

	p := Project(b, now)
	assert.Equal(t, 15, p.CurrentDay)
	assert.Equal(t, 30, p.DaysInMonth)
	assert.InDelta(t, 0.5, p.MonthProgress, 1e-9)
	assert.InDelta(t, 66000.0, p.ProjectedExpenses, 1e-6)
	assert.InDelta(t, -16000.0, p.ProjectedSavings, 1e-6)
}

func TestProject_PastMonthIsComplete(t *testing.T) {
	b := demoBudget()
	b.Month = "2025-10"
	p := Project(b, time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 31, p.CurrentDay)
	assert.Equal(t, 31, p.DaysInMonth)
	assert.Equal(t, 1.0, p.MonthProgress)
	assert.Equal(t, 33000.0, p.ProjectedExpenses)
}

func TestProject_ZeroProgressUsesTotal(t *testing.T) {
	b := demoBudget()
	b.Month = "2025-12"
	p := Project(b, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 0.0, p.MonthProgress)
	assert.Equal(t, 33000.0, p.ProjectedExpenses)
	assert.Equal(t, 17000.0, p.ProjectedSavings)
	assert.False(t, math.IsInf(p.ProjectedExpenses, 0))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, model.BurnHealthy, Level(60))
	assert.Equal(t, model.BurnElevated, Level(66))
	assert.Equal(t, model.BurnHigh, Level(80.5))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2025, time.February))
	assert.Equal(t, 31, DaysIn(2025, time.December))
}
