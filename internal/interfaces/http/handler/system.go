package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is the API version reported by the system endpoints. Set at
// build time with -ldflags "-X .../handler.Version=...".
var Version = "1.0.0"

// SystemHandler serves the identification endpoints operators use to
// check what is deployed where.
type SystemHandler struct {
	BaseHandler
	name      string
	env       string
	startTime time.Time
}

// NewSystemHandler creates a SystemHandler reporting the given app
// name and environment.
func NewSystemHandler(name, env string) *SystemHandler {
	return &SystemHandler{
		name:      name,
		env:       env,
		startTime: time.Now(),
	}
}

// SystemInfoResponse identifies the running deployment
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name          string `json:"name" example:"StreamCart Financial Core"`
	Env           string `json:"env" example:"production"`
	Version       string `json:"version" example:"1.0.0"`
	GoVersion     string `json:"go_version" example:"go1.25.5"`
	Uptime        string `json:"uptime" example:"1h30m45s"`
	UptimeSeconds int64  `json:"uptime_seconds" example:"5445"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns deployment identity, version, and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	uptime := time.Since(h.startTime)
	h.Success(c, SystemInfoResponse{
		Name:          h.name,
		Env:           h.env,
		Version:       Version,
		GoVersion:     runtime.Version(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
	})
}

// PingResponse acknowledges a ping
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Liveness check through the full middleware stack
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
