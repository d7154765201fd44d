// Package models provides request and response models for the gf3d query server.
package models

// HealthStatus is the state reported by the ops endpoints, ordered from
// best to worst.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)
