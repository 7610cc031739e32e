// Package syncstatus implements the local/pending/synced state machine that
// tracks whether the local budget has reached the remote store.
package syncstatus

import "github.com/theirongolddev/budgetbox/internal/model"

// Event drives a transition.
type Event int

const (
	// CommitOnline is a committed field mutation while the device is online.
	CommitOnline Event = iota
	// CommitOffline is a committed field mutation while offline.
	CommitOffline
	// PushSucceeded is an applied, non-superseded successful push.
	PushSucceeded
	// PushFailed is a push rejected by the remote or lost in transit.
	PushFailed
	// ConnectivityLost is a push or pull refused because the device is offline.
	ConnectivityLost
	// Pulled is an applied pull that replaced the local budget.
	Pulled
	// Reset is a logout or fresh record.
	Reset
)

func (e Event) String() string {
	switch e {
	case CommitOnline:
		return "commit-online"
	case CommitOffline:
		return "commit-offline"
	case PushSucceeded:
		return "push-succeeded"
	case PushFailed:
		return "push-failed"
	case ConnectivityLost:
		return "connectivity-lost"
	case Pulled:
		return "pulled"
	case Reset:
		return "reset"
	}
	return "unknown"
}

// Commit returns the commit event for the given connectivity.
func Commit(online bool) Event {
	if online {
		return CommitOnline
	}
	return CommitOffline
}

// Machine is the sync status plus the unsynced-changes flag. There is no
// terminal state. The zero value is not meaningful; use New.
//
// Invariant: Unsynced is true iff Status is local or pending and a mutation
// committed since the last applied push or pull.
type Machine struct {
	Status   model.SyncStatus
	Unsynced bool
}

// New returns the machine for a freshly created record.
func New() Machine {
	return Machine{Status: model.StatusLocal}
}

// On returns the machine after ev. Machine is a value type so callers can
// apply transitions inside their own critical section.
func (m Machine) On(ev Event) Machine {
	switch ev {
	case CommitOnline:
		return Machine{Status: model.StatusPending, Unsynced: true}
	case CommitOffline:
		return Machine{Status: model.StatusLocal, Unsynced: true}
	case PushSucceeded, Pulled:
		return Machine{Status: model.StatusSynced}
	case PushFailed:
		// Synced with nothing outstanding stays synced; otherwise the change
		// is still waiting for the remote.
		if m.Status == model.StatusSynced && !m.Unsynced {
			return m
		}
		return Machine{Status: model.StatusPending, Unsynced: m.Unsynced}
	case ConnectivityLost:
		return Machine{Status: model.StatusLocal, Unsynced: m.Unsynced}
	case Reset:
		return New()
	}
	return m
}
