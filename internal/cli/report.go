package cli

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/budgetbox/internal/advisor"
	"github.com/theirongolddev/budgetbox/internal/analytics"
	"github.com/theirongolddev/budgetbox/internal/model"
)

// Report is everything the show command prints for one budget.
type Report struct {
	Currency     string
	Budget       model.Budget
	Unsynced     bool
	LastSyncTime *time.Time
	Owner        string
	Now          time.Time
}

// RenderReport renders the budget, its analytics and the advisories.
func RenderReport(r Report) string {
	b := r.Budget
	sum := analytics.Summarize(b)
	proj := analytics.Project(b, r.Now)

	var out strings.Builder
	out.WriteString(RenderTitle("BudgetBox  " + FormatMonth(b.Month)))
	out.WriteString("\n")

	status := lipgloss.NewStyle().Foreground(StatusColor(b.SyncStatus)).Render(FormatStatus(b.SyncStatus, r.Unsynced))
	line := "  Status: " + status
	if r.LastSyncTime != nil {
		line += Muted("  (last synced " + FormatAgo(*r.LastSyncTime, r.Now) + ")")
	}
	if r.Owner != "" {
		line += Muted("  " + r.Owner)
	}
	out.WriteString(line + "\n\n")

	rows := make([][]string, 0, len(model.Fields)+1)
	rows = append(rows, []string{model.FieldIncome.Label(), FormatMoney(r.Currency, b.Income), ""})
	rows = append(rows, []string{"---"})
	for _, f := range analytics.ExpenseFields() {
		share := ""
		if sum.TotalExpenses > 0 {
			share = FormatPercent(b.Get(f) / sum.TotalExpenses * 100)
		}
		rows = append(rows, []string{f.Label(), FormatMoney(r.Currency, b.Get(f)), share})
	}
	rows = append(rows, []string{"---"})
	rows = append(rows, []string{"Total expenses", FormatMoney(r.Currency, sum.TotalExpenses), ""})
	out.WriteString(RenderTable(Table{
		Title:   "Budget",
		Headers: []string{"Field", "Amount", "Share"},
		Rows:    rows,
	}))
	out.WriteString("\n")

	level := analytics.Level(sum.BurnRate)
	burn := lipgloss.NewStyle().Foreground(BurnColor(level)).Render(FormatPercent(sum.BurnRate))
	out.WriteString(RenderTable(Table{
		Title:   "Analytics",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Burn rate", burn},
			{"Savings potential", FormatMoney(r.Currency, sum.SavingsPotential)},
			{"Month progress", FormatPercent(proj.MonthProgress * 100)},
			{"Projected expenses", FormatMoney(r.Currency, proj.ProjectedExpenses)},
			{"Projected savings", FormatMoney(r.Currency, proj.ProjectedSavings)},
		},
	}))

	if len(sum.Categories) > 0 {
		out.WriteString("\n  " + headerStyle.Render("Breakdown") + "\n")
		for _, c := range sum.Categories {
			out.WriteString("  " + padRight(c.Name, 14) + " " +
				RenderShareBar(c.SharePercent, 30, lipgloss.Color(c.Color)) + " " +
				FormatPercent(c.SharePercent) + "\n")
		}
	}

	out.WriteString("\n  " + headerStyle.Render("Insights") + "\n")
	for _, a := range advisor.Evaluate(b, sum) {
		out.WriteString("  " + RenderAdvice(a) + "\n")
	}
	return out.String()
}
