package model

import (
	"fmt"
	"math"
	"time"
)

// Snapshot is the durable subset of client state. Transient flags such as
// connectivity, loading and the last error are deliberately absent.
type Snapshot struct {
	Session            AuthSession `json:"session"`
	Budget             Budget      `json:"budget"`
	SyncStatus         SyncStatus  `json:"syncStatus"`
	HasUnsyncedChanges bool        `json:"hasUnsyncedChanges"`
	LastSyncTime       *time.Time  `json:"lastSyncTime"`
}

// Validate rejects snapshots that could not have been written by a healthy
// client. Hydration treats a failure as corruption and falls back to defaults.
func (s Snapshot) Validate() error {
	if !s.SyncStatus.Valid() {
		return fmt.Errorf("invalid sync status %q", s.SyncStatus)
	}
	return s.Budget.Validate()
}

// Validate checks the month key and that every money field is a finite,
// non-negative number.
func (b Budget) Validate() error {
	if _, err := time.Parse(MonthLayout, b.Month); err != nil {
		return fmt.Errorf("invalid month %q", b.Month)
	}
	for _, f := range Fields {
		v := b.Get(f)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("invalid %s value %v", f, v)
		}
	}
	return nil
}
