package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/theirongolddev/budgetbox/internal/model"
	"github.com/theirongolddev/budgetbox/internal/syncer"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "₹0"},
		{999, "₹999"},
		{50000, "₹50,000"},
		{1234.5, "₹1,234.50"},
		{-17000, "-₹17,000"},
		{1234567.891, "₹1,234,567.89"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMoney("₹", tt.v))
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "1,000", FormatNumber(1000))
	assert.Equal(t, "-12,345", FormatNumber(-12345))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "66.0%", FormatPercent(66))
	assert.Equal(t, "33.3%", FormatPercent(100.0/3))
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "synced", FormatStatus(model.StatusSynced, false))
	assert.Equal(t, "pending sync", FormatStatus(model.StatusPending, true))
	assert.Equal(t, "saved locally", FormatStatus(model.StatusLocal, true))
	assert.Equal(t, "local", FormatStatus(model.StatusLocal, false))
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "never", FormatAgo(time.Time{}, now))
	assert.Equal(t, "just now", FormatAgo(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", FormatAgo(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", FormatAgo(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", FormatAgo(now.Add(-50*time.Hour), now))
}

func TestFormatMonth(t *testing.T) {
	assert.Equal(t, "November 2025", FormatMonth("2025-11"))
	assert.Equal(t, "garbage", FormatMonth("garbage"))
}

func TestRenderTable_AlignsMultibyteCells(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Field", "Amount"},
		Rows: [][]string{
			{"Food", "₹8,000"},
			{"---"},
			{"Income", "₹50,000"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 7)
	width := lipgloss.Width(lines[0])
	for _, l := range lines {
		assert.Equal(t, width, lipgloss.Width(l), "line %q", l)
	}
	assert.Contains(t, out, "₹50,000")
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Empty(t, RenderTable(Table{}))
}

func TestRenderShareBar(t *testing.T) {
	assert.Equal(t, 10, lipgloss.Width(RenderShareBar(50, 10, ColorGreen)))
	assert.Equal(t, 10, lipgloss.Width(RenderShareBar(150, 10, ColorGreen)))
	assert.Empty(t, RenderShareBar(50, 0, ColorGreen))
}

func TestColors(t *testing.T) {
	assert.Equal(t, ColorRed, BurnColor(model.BurnHigh))
	assert.Equal(t, ColorYellow, BurnColor(model.BurnElevated))
	assert.Equal(t, ColorGreen, BurnColor(model.BurnHealthy))
	assert.Equal(t, ColorBlue, SeverityColor(model.SeverityInfo))
	assert.Equal(t, ColorGreen, StatusColor(model.StatusSynced))
}

func TestRenderReport(t *testing.T) {
	now := time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)
	synced := now.Add(-2 * time.Hour)
	out := RenderReport(Report{
		Currency: "₹",
		Budget: model.Budget{
			Income: 50000, MonthlyBills: 15000, Food: 8000, Transport: 5000,
			Subscriptions: 2000, Miscellaneous: 3000,
			Month: "2025-11", SyncStatus: model.StatusSynced,
		},
		LastSyncTime: &synced,
		Owner:        "hire-me@anshumat.org",
		Now:          now,
	})

	for _, want := range []string{
		"November 2025",
		"synced",
		"last synced 2h ago",
		"₹33,000",
		"66.0%",
		"₹17,000",
		"Excellent! You're saving over 30% of your income.",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFriendlyError(t *testing.T) {
	assert.Empty(t, FriendlyError(nil))
	assert.Contains(t, FriendlyError(fmt.Errorf("push: %w", model.ErrConnectivity)), "offline")
	assert.Contains(t, FriendlyError(model.ErrNotAuthenticated), "budgetbox login")
	assert.Contains(t, FriendlyError(model.ErrAuthentication), "sign in again")
	assert.Contains(t, FriendlyError(syncer.ErrSuperseded), "newer change")
	assert.Contains(t, FriendlyError(fmt.Errorf("%w: status 500", model.ErrRemote)), "status 500")
	assert.Equal(t, "boom", FriendlyError(errors.New("boom")))
}
