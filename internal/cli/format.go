// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/syncer"
)

// FormatMoney formats an amount with the currency symbol and comma
// separators. Whole amounts drop the decimals.
// e.g., ("₹", 50000) -> "₹50,000", ("$", 1234.5) -> "$1,234.50"
func FormatMoney(currency string, v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	cents := int64(math.Round(v * 100))
	whole, frac := cents/100, cents%100
	s := currency + FormatNumber(whole)
	if frac != 0 {
		s += fmt.Sprintf(".%02d", frac)
	}
	return sign + s
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatPercent formats a value already on the 0-100 scale.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatStatus returns a short label for a sync status.
func FormatStatus(s model.SyncStatus, unsynced bool) string {
	switch s {
	case model.StatusSynced:
		return "synced"
	case model.StatusPending:
		return "pending sync"
	case model.StatusLocal:
		if unsynced {
			return "saved locally"
		}
		return "local"
	}
	return string(s)
}

// FormatAgo formats the time since t relative to now.
// e.g., 45s -> "just now", 5m -> "5m ago", 3h -> "3h ago", 2d -> "2d ago"
func FormatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

// FormatMonth renders a "YYYY-MM" key as "November 2025". Unparseable keys
// are returned unchanged.
func FormatMonth(month string) string {
	t, err := time.Parse(model.MonthLayout, month)
	if err != nil {
		return month
	}
	return t.Format("January 2006")
}

// FriendlyError turns an operation error into a one-line message for the
// terminal. Unknown errors are returned as-is.
func FriendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrNotAuthenticated):
		return "Not signed in. Run `budgetbox login` first."
	case errors.Is(err, model.ErrAuthentication):
		return "Authentication failed. Check your credentials and sign in again."
	case errors.Is(err, model.ErrConnectivity):
		return "You're offline. Changes are saved locally and can be pushed later."
	case errors.Is(err, syncer.ErrSuperseded):
		return "A newer change arrived while syncing; nothing was overwritten."
	case errors.Is(err, model.ErrRemote):
		return "The server rejected the request: " + err.Error()
	case errors.Is(err, model.ErrStorage):
		return "Local storage problem: " + err.Error()
	}
	return err.Error()
}
