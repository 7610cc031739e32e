// Package advisor evaluates the rule-based budget advisories.
//
// Rules run in a fixed order over a budget and its analytics summary. The
// output is a pure function of the input: identical budgets always produce
// identical advice, in the same order.
package advisor

import (
	"fmt"

	"github.com/theirongolddev/budgetbox/internal/analytics"
	"github.com/theirongolddev/budgetbox/internal/model"
)

// Thresholds, as percentages of income.
const (
	foodWarnPct         = 40
	subscriptionWarnPct = 30
	transportInfoPct    = 20
	lowSavingsPct       = 10
	highSavingsPct      = 30
	burnErrorPct        = 90
	burnSuccessPct      = 50
)

// Messages that carry no figures.
const (
	MsgAddIncome   = "Please add your monthly income to get accurate insights."
	MsgOverspend   = "Your expenses exceed income. Review and cut unnecessary spending immediately."
	MsgLowSavings  = "Your savings rate is below 10%. Try to increase your savings for better financial health."
	MsgHighSavings = "Excellent! You're saving over 30% of your income. Consider investing the surplus."
	MsgBalanced    = "Your budget looks balanced! Keep up the good work."
)

// Advise summarizes b and evaluates the rules against it.
func Advise(b model.Budget) []model.Advice {
	return Evaluate(b, analytics.Summarize(b))
}

// Evaluate runs the rules against b and its precomputed summary s.
func Evaluate(b model.Budget, s model.Summary) []model.Advice {
	if b.Income == 0 {
		return []model.Advice{{Severity: model.SeverityWarning, Message: MsgAddIncome}}
	}

	pct := func(v float64) float64 { return v / b.Income * 100 }
	var out []model.Advice

	if p := pct(b.Food); p > foodWarnPct {
		out = append(out, model.Advice{
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("Food expenses are %.1f%% of your income - consider reducing food spend next month.", p),
		})
	}

	if p := pct(b.Subscriptions); p > subscriptionWarnPct {
		out = append(out, model.Advice{
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("Subscriptions are %.1f%% of your income - too high! Consider cancelling unused apps.", p),
		})
	}

	switch {
	case s.SavingsPotential < 0:
		out = append(out, model.Advice{Severity: model.SeverityError, Message: MsgOverspend})
	case s.SavingsPotential < b.Income*lowSavingsPct/100:
		out = append(out, model.Advice{Severity: model.SeverityWarning, Message: MsgLowSavings})
	case s.SavingsPotential > b.Income*highSavingsPct/100:
		out = append(out, model.Advice{Severity: model.SeveritySuccess, Message: MsgHighSavings})
	}

	if p := pct(b.Transport); p > transportInfoPct {
		out = append(out, model.Advice{
			Severity: model.SeverityInfo,
			Message:  fmt.Sprintf("Transport costs are %.1f%% of income. Consider carpooling or public transport.", p),
		})
	}

	switch {
	case s.BurnRate > burnErrorPct:
		out = append(out, model.Advice{
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("High burn rate of %.1f%%! You need to reduce expenses urgently.", s.BurnRate),
		})
	case s.BurnRate < burnSuccessPct:
		out = append(out, model.Advice{
			Severity: model.SeveritySuccess,
			Message:  fmt.Sprintf("Great job! Your burn rate is only %.1f%%. You have excellent spending control.", s.BurnRate),
		})
	}

	if len(out) == 0 {
		return []model.Advice{{Severity: model.SeveritySuccess, Message: MsgBalanced}}
	}
	return out
}
