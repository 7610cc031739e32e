package model

// Category is one expense category slice of the breakdown.
type Category struct {
	Field        Field   `json:"field" yaml:"field"`
	Name         string  `json:"name" yaml:"name"`
	Value        float64 `json:"value" yaml:"value"`
	Color        string  `json:"color" yaml:"color"`
	SharePercent float64 `json:"sharePercent" yaml:"sharePercent"` // of total expenses
}

// Summary holds the derived totals for one budget snapshot.
type Summary struct {
	TotalExpenses    float64    `json:"totalExpenses" yaml:"totalExpenses"`
	BurnRate         float64    `json:"burnRate" yaml:"burnRate"` // percent of income
	SavingsPotential float64    `json:"savingsPotential" yaml:"savingsPotential"`
	Categories       []Category `json:"categories" yaml:"categories"`
}

// Projection is the naive month-end extrapolation of current spend.
type Projection struct {
	CurrentDay        int     `json:"currentDay" yaml:"currentDay"`
	DaysInMonth       int     `json:"daysInMonth" yaml:"daysInMonth"`
	MonthProgress     float64 `json:"monthProgress" yaml:"monthProgress"` // 0.0-1.0
	ProjectedExpenses float64 `json:"projectedExpenses" yaml:"projectedExpenses"`
	ProjectedSavings  float64 `json:"projectedSavings" yaml:"projectedSavings"`
}

// BurnLevel buckets the burn rate for display.
type BurnLevel string

const (
	BurnHealthy  BurnLevel = "healthy"
	BurnElevated BurnLevel = "elevated"
	BurnHigh     BurnLevel = "high"
)

// Severity classifies an advisory entry.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// Advice is one advisory entry.
type Advice struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
}
