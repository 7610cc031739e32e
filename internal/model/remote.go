package model

import "time"

// UpsertResult is the remote store's answer to a pushed budget.
type UpsertResult struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Budget    Budget    `json:"budget"`
}
