// Package model defines domain types for budgetbox budgets, sessions and sync state.
package model

import (
	"fmt"
	"time"
)

// MonthLayout is the reference layout for Budget.Month ("YYYY-MM").
const MonthLayout = "2006-01"

// Field names one of the six editable money fields of a Budget.
type Field string

const (
	FieldIncome        Field = "income"
	FieldMonthlyBills  Field = "monthlyBills"
	FieldFood          Field = "food"
	FieldTransport     Field = "transport"
	FieldSubscriptions Field = "subscriptions"
	FieldMiscellaneous Field = "miscellaneous"
)

// Fields lists every editable field in form order.
var Fields = []Field{
	FieldIncome,
	FieldMonthlyBills,
	FieldFood,
	FieldTransport,
	FieldSubscriptions,
	FieldMiscellaneous,
}

// ParseField resolves a field name. Matching is exact on the wire name, with
// a few lowercase aliases accepted for command-line use.
func ParseField(s string) (Field, error) {
	switch s {
	case "income":
		return FieldIncome, nil
	case "monthlyBills", "monthlybills", "bills":
		return FieldMonthlyBills, nil
	case "food":
		return FieldFood, nil
	case "transport":
		return FieldTransport, nil
	case "subscriptions", "subs":
		return FieldSubscriptions, nil
	case "miscellaneous", "misc":
		return FieldMiscellaneous, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Label returns the human-readable form label for the field.
func (f Field) Label() string {
	switch f {
	case FieldIncome:
		return "Monthly Income"
	case FieldMonthlyBills:
		return "Monthly Bills"
	case FieldFood:
		return "Food"
	case FieldTransport:
		return "Transport"
	case FieldSubscriptions:
		return "Subscriptions"
	case FieldMiscellaneous:
		return "Miscellaneous"
	}
	return string(f)
}

// SyncStatus is the reconciliation state of the local budget.
type SyncStatus string

const (
	StatusLocal   SyncStatus = "local"
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
)

// Valid reports whether s is one of the three known states.
func (s SyncStatus) Valid() bool {
	return s == StatusLocal || s == StatusPending || s == StatusSynced
}

// Budget is one owner's budget for one calendar month.
type Budget struct {
	ID            string     `json:"id,omitempty" yaml:"id,omitempty"`
	Income        float64    `json:"income" yaml:"income"`
	MonthlyBills  float64    `json:"monthlyBills" yaml:"monthlyBills"`
	Food          float64    `json:"food" yaml:"food"`
	Transport     float64    `json:"transport" yaml:"transport"`
	Subscriptions float64    `json:"subscriptions" yaml:"subscriptions"`
	Miscellaneous float64    `json:"miscellaneous" yaml:"miscellaneous"`
	Month         string     `json:"month" yaml:"month"`
	LastUpdated   time.Time  `json:"lastUpdated" yaml:"lastUpdated"`
	SyncStatus    SyncStatus `json:"syncStatus" yaml:"syncStatus"`
}

// NewBudget returns a zeroed budget for the month containing now.
func NewBudget(now time.Time) Budget {
	return Budget{
		Month:       MonthOf(now),
		LastUpdated: now.UTC(),
		SyncStatus:  StatusLocal,
	}
}

// MonthOf formats t as a budget month key in UTC.
func MonthOf(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// Get returns the value of a money field.
func (b Budget) Get(f Field) float64 {
	switch f {
	case FieldIncome:
		return b.Income
	case FieldMonthlyBills:
		return b.MonthlyBills
	case FieldFood:
		return b.Food
	case FieldTransport:
		return b.Transport
	case FieldSubscriptions:
		return b.Subscriptions
	case FieldMiscellaneous:
		return b.Miscellaneous
	}
	return 0
}

// Set assigns a money field. Unknown fields are an error and leave b unchanged.
func (b *Budget) Set(f Field, v float64) error {
	switch f {
	case FieldIncome:
		b.Income = v
	case FieldMonthlyBills:
		b.MonthlyBills = v
	case FieldFood:
		b.Food = v
	case FieldTransport:
		b.Transport = v
	case FieldSubscriptions:
		b.Subscriptions = v
	case FieldMiscellaneous:
		b.Miscellaneous = v
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	return nil
}

// SameValues reports whether two budgets carry identical money fields and month.
func (b Budget) SameValues(o Budget) bool {
	return b.Month == o.Month &&
		b.Income == o.Income &&
		b.MonthlyBills == o.MonthlyBills &&
		b.Food == o.Food &&
		b.Transport == o.Transport &&
		b.Subscriptions == o.Subscriptions &&
		b.Miscellaneous == o.Miscellaneous
}
