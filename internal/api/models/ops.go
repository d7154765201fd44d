package models

import "time"

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    time.Time              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      time.Time        `json:"time"`
	Version   string           `json:"version"`
	BuildTime string           `json:"buildTime,omitempty"`
	Databases []DatabaseStatus `json:"databases"`
	Breakers  []BreakerStatus  `json:"breakers"`
}

// DatabaseStatus reports one registered database.
type DatabaseStatus struct {
	Alias        string       `json:"alias"`
	Status       HealthStatus `json:"status"`
	StationFiles int          `json:"stationFiles"`
	Detail       *string      `json:"detail,omitempty"`
}

// BreakerStatus reports the state of a circuit breaker.
type BreakerStatus struct {
	Name                string       `json:"name"`
	Status              HealthStatus `json:"status"`
	State               string       `json:"state"`
	Requests            uint32       `json:"requests"`
	TotalFailures       uint32       `json:"totalFailures"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time   `json:"lastFailureAt,omitempty"`
	LastError           *string      `json:"lastError,omitempty"`
}
