// Package analytics derives totals, burn rate, savings and the category
// breakdown from a budget snapshot. Every function here is pure.
package analytics

import (
	"time"

	"github.com/theirongolddev/budgetbox/internal/model"
)

// categoryOrder fixes the canonical order and display color of the five
// expense categories.
var categoryOrder = []struct {
	field model.Field
	color string
}{
	{model.FieldMonthlyBills, "#FF6384"},
	{model.FieldFood, "#36A2EB"},
	{model.FieldTransport, "#FFCE56"},
	{model.FieldSubscriptions, "#4BC0C0"},
	{model.FieldMiscellaneous, "#9966FF"},
}

// ExpenseFields returns the five expense fields in canonical order.
func ExpenseFields() []model.Field {
	fields := make([]model.Field, len(categoryOrder))
	for i, c := range categoryOrder {
		fields[i] = c.field
	}
	return fields
}

// Summarize computes every derived figure for b.
func Summarize(b model.Budget) model.Summary {
	total := TotalExpenses(b)
	return model.Summary{
		TotalExpenses:    total,
		BurnRate:         BurnRate(b),
		SavingsPotential: b.Income - total,
		Categories:       Categories(b),
	}
}

// TotalExpenses is the sum of the five expense categories.
func TotalExpenses(b model.Budget) float64 {
	return b.MonthlyBills + b.Food + b.Transport + b.Subscriptions + b.Miscellaneous
}

// BurnRate is total expenses as a percentage of income, or 0 without income.
func BurnRate(b model.Budget) float64 {
	if b.Income <= 0 {
		return 0
	}
	return TotalExpenses(b) / b.Income * 100
}

// SavingsPotential is income minus total expenses. It may be negative.
func SavingsPotential(b model.Budget) float64 {
	return b.Income - TotalExpenses(b)
}

// Categories returns the non-zero expense categories in canonical order.
func Categories(b model.Budget) []model.Category {
	total := TotalExpenses(b)
	cats := make([]model.Category, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		v := b.Get(c.field)
		if v == 0 {
			continue
		}
		cat := model.Category{
			Field: c.field,
			Name:  c.field.Label(),
			Value: v,
			Color: c.color,
		}
		if total > 0 {
			cat.SharePercent = v / total * 100
		}
		cats = append(cats, cat)
	}
	return cats
}

// Level buckets a burn rate: above 80 is high, above 60 elevated.
func Level(burnRate float64) model.BurnLevel {
	switch {
	case burnRate > 80:
		return model.BurnHigh
	case burnRate > 60:
		return model.BurnElevated
	default:
		return model.BurnHealthy
	}
}

// Project extrapolates spend to month end as of now.
//
// Progress is measured through the budget's own month: a past month counts as
// complete, a future month as not started. With zero progress the projection
// is the current total.
func Project(b model.Budget, now time.Time) model.Projection {
	total := TotalExpenses(b)

	year, month := now.Year(), now.Month()
	day := now.Day()
	if bm, err := time.Parse(model.MonthLayout, b.Month); err == nil {
		switch {
		case bm.Year() < year || (bm.Year() == year && bm.Month() < month):
			day = DaysIn(bm.Year(), bm.Month())
		case bm.Year() > year || (bm.Year() == year && bm.Month() > month):
			day = 0
		}
		year, month = bm.Year(), bm.Month()
	}

	p := model.Projection{
		CurrentDay:  day,
		DaysInMonth: DaysIn(year, month),
	}
	p.MonthProgress = float64(p.CurrentDay) / float64(p.DaysInMonth)

	if p.MonthProgress == 0 {
		p.ProjectedExpenses = total
	} else {
		p.ProjectedExpenses = total / p.MonthProgress
	}
	p.ProjectedSavings = b.Income - p.ProjectedExpenses
	return p
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
