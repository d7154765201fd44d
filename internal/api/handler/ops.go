package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gf3d/gf3dserver/internal/api/models"
	"github.com/gf3d/gf3dserver/internal/api/response"
	"github.com/gf3d/gf3dserver/internal/provider/resilience"
	"github.com/gf3d/gf3dserver/internal/registry"
)

// now returns the current time at the precision reported by the ops payloads.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	catalog   Catalog
	breakers  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. breakers may be nil.
func NewOpsHandler(version, buildTime string, catalog Catalog, breakers *resilience.Registry) *OpsHandler {
	if breakers == nil {
		breakers = resilience.NewRegistry()
	}
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		catalog:   catalog,
		breakers:  breakers,
	}
}

// HealthCheck handles GET /ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   now(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /ops/ready - ready once at least one database
// is registered.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   now(),
		Details: map[string]interface{}{
			"databases": h.catalog.Len(),
		},
	}
	if h.catalog.Len() == 0 {
		health.Status = models.HealthStatusFail
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /ops/status - database and circuit breaker status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      now(),
		Version:   h.version,
		BuildTime: h.buildTime,
		Databases: h.databaseStatuses(),
		Breakers:  h.breakerStatuses(),
	}

	for _, db := range status.Databases {
		status.Status = worst(status.Status, db.Status)
	}
	for _, b := range status.Breakers {
		status.Status = worst(status.Status, b.Status)
	}
	if len(status.Databases) == 0 {
		status.Status = models.HealthStatusFail
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) databaseStatuses() []models.DatabaseStatus {
	aliases := h.catalog.Aliases()
	statuses := make([]models.DatabaseStatus, 0, len(aliases))
	for _, alias := range aliases {
		st := models.DatabaseStatus{Alias: alias, Status: models.HealthStatusOK}
		files, err := h.catalog.StationFiles(alias)
		switch {
		case err == nil:
			st.StationFiles = len(files)
		case errors.Is(err, registry.ErrNoStationFiles):
			st.Status = models.HealthStatusDegraded
			detail := err.Error()
			st.Detail = &detail
		default:
			st.Status = models.HealthStatusFail
			detail := err.Error()
			st.Detail = &detail
		}
		statuses = append(statuses, st)
	}
	return statuses
}

func (h *OpsHandler) breakerStatuses() []models.BreakerStatus {
	all := h.breakers.GetAllHealth()
	statuses := make([]models.BreakerStatus, 0, len(all))
	for _, health := range all {
		st := models.BreakerStatus{
			Name:                health.Name,
			Status:              breakerHealth(health),
			State:               health.CircuitState.String(),
			Requests:            health.Counts.Requests,
			TotalFailures:       health.Counts.TotalFailures,
			ConsecutiveFailures: health.Counts.ConsecutiveFailures,
		}
		if health.LastSuccessAt != nil {
			ts := health.LastSuccessAt.UTC().Truncate(time.Second)
			st.LastSuccessAt = &ts
		}
		if health.LastFailureAt != nil {
			ts := health.LastFailureAt.UTC().Truncate(time.Second)
			st.LastFailureAt = &ts
		}
		if health.LastError != "" {
			msg := health.LastError
			st.LastError = &msg
		}
		statuses = append(statuses, st)
	}
	return statuses
}

func breakerHealth(h *resilience.Health) models.HealthStatus {
	switch {
	case h.IsUnhealthy():
		return models.HealthStatusFail
	case h.IsDegraded():
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

var severity = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
