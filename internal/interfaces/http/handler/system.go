package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/erp/setoff/internal/infrastructure/persistence"
	"github.com/erp/setoff/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SystemHandler serves service metadata and diagnostics endpoints.
type SystemHandler struct {
	BaseHandler
	db        *persistence.Database
	startTime time.Time
}

func NewSystemHandler(db *persistence.Database) *SystemHandler {
	return &SystemHandler{
		db:        db,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"Setoff API"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @Summary      Get system information
// @Description  Returns basic system information including version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "Setoff API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @Summary      Ping the API
// @Description  Simple ping endpoint to check if the API is responsive
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=PingResponse}
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// DBStatsResponse reports connection pool counters.
type DBStatsResponse struct {
	MaxOpenConnections int    `json:"max_open_connections" example:"25"`
	OpenConnections    int    `json:"open_connections" example:"10"`
	InUse              int    `json:"in_use" example:"3"`
	Idle               int    `json:"idle" example:"7"`
	WaitCount          int64  `json:"wait_count" example:"0"`
	WaitDuration       string `json:"wait_duration" example:"0s"`
}

// GetDBStats godoc
// @Summary      Get database pool statistics
// @Description  Returns connection pool counters for operational diagnostics
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=DBStatsResponse}
// @Router       /system/db-stats [get]
func (h *SystemHandler) GetDBStats(c *gin.Context) {
	stats, err := h.db.Stats()
	if err != nil {
		h.InternalError(c, "failed to read database stats")
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(DBStatsResponse{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}))
}
